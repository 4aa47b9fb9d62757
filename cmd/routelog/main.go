package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	natsadapter "github.com/samirrijal/tripplanner/internal/adapters/nats"
	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
	"github.com/samirrijal/tripplanner/internal/pkg/config"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
)

const durableName = "routelog"

func main() {
	cfg, err := config.Load("tripplanner-routelog")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// The publisher owns the stream definition; make sure it exists before
	// binding a durable consumer to it.
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, durableName)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	routeLog := usecases.NewRouteLogService(postgres.NewRouteLogRepo(db))
	err = sub.SubscribeRouteEvents(ctx, func(ctx context.Context, ev *domain.RouteEvent) error {
		if err := routeLog.Record(ctx, ev); err != nil {
			slog.Warn("record route event", "session_id", ev.SessionID, "generation", ev.Generation, "error", err)
			return err
		}
		slog.Debug("route event recorded", "session_id", ev.SessionID, "generation", ev.Generation)
		return nil
	})
	if err != nil {
		slog.Error("subscribe route events", "error", err)
		os.Exit(1)
	}

	slog.Info("route log consumer started", "durable", durableName)
	<-ctx.Done()
	slog.Info("route log consumer stopped")
}
