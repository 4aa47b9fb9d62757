package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/tripplanner/internal/adapters/auth"
	"github.com/samirrijal/tripplanner/internal/adapters/http"
	natsadapter "github.com/samirrijal/tripplanner/internal/adapters/nats"
	"github.com/samirrijal/tripplanner/internal/adapters/positionfeed"
	"github.com/samirrijal/tripplanner/internal/adapters/postgres"
	"github.com/samirrijal/tripplanner/internal/adapters/providers"
	"github.com/samirrijal/tripplanner/internal/adapters/valkey"
	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/core/usecases"
	"github.com/samirrijal/tripplanner/internal/pkg/config"
	"github.com/samirrijal/tripplanner/internal/pkg/logging"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
	"github.com/samirrijal/tripplanner/internal/pkg/telemetry"
	"github.com/samirrijal/tripplanner/internal/workflows"
)

func main() {
	cfg, err := config.Load("tripplanner-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Telemetry.ServiceName, cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache. A nil *valkey.Cache must not leak into an interface.
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.KeyPrefix)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
		vc = nil
	} else {
		cache = vc
		defer vc.Close()
	}

	// NATS: frames and route events are optional extras.
	var publisher ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
		pub = nil
	} else {
		publisher = pub
		defer pub.Close()
	}

	// External providers
	httpClient := &nethttp.Client{Timeout: cfg.Directions.Timeout}
	mapbox := providers.NewMapbox(cfg.Mapbox.BaseURL, cfg.Mapbox.Token, cfg.Mapbox.Profile, httpClient, cfg.Directions.MaxRetries)

	var directions ports.DirectionsProvider = mapbox
	if cfg.Directions.Provider == "osrm" {
		directions = providers.NewOSRM(cfg.Directions.OSRMURL, httpClient, cfg.Directions.MaxRetries)
	}

	var cities ports.CityResolver
	var model ports.ChatModel
	if cfg.Google.APIKey != "" {
		cities = providers.NewGoogleGeocoder(cfg.Google.GeocodingURL, cfg.Google.APIKey, httpClient, cfg.Directions.MaxRetries)
		model = providers.NewGemini(cfg.Google.GeminiURL, cfg.Google.GeminiModel, cfg.Google.APIKey, &nethttp.Client{Timeout: 30 * time.Second}, cfg.Directions.MaxRetries)
	} else {
		slog.Warn("google api key not set; city lookup disabled and chat uses fallback replies")
	}

	// Identity
	tokens, err := auth.NewManager(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	var syncRunner ports.UserSyncRunner
	if cfg.Temporal.Enabled {
		tc, err := client.Dial(client.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			slog.Warn("temporal unavailable, syncing users inline", "error", err)
		} else {
			defer tc.Close()
			syncRunner = workflows.NewTemporalUserSync(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Use cases
	geocode := usecases.NewGeocodeService(mapbox, cities, cache, cfg.Cache.GeocodeTTL, logger)
	sessions := usecases.NewSessionService(ctx, usecases.SessionConfig{
		Features: domain.FeatureFlags{
			SearchBar:    cfg.Planner.SearchBar,
			Autocomplete: cfg.Planner.Autocomplete,
			RoutePanel:   cfg.Planner.RoutePanel,
		},
		Watch:         domain.NewWatchOptions(cfg.Planner.WatchMaxAge, cfg.Planner.WatchTimeout, cfg.Planner.HighAccuracy),
		Fallback:      domain.Coordinate{Lat: cfg.Planner.FallbackLat, Lng: cfg.Planner.FallbackLng},
		FocusZoom:     cfg.Planner.FocusZoom,
		SearchZoom:    cfg.Planner.SearchZoom,
		FocusDuration: cfg.Planner.FocusDuration,
		RouteTimeout:  cfg.Directions.Timeout,
	}, usecases.SessionDeps{
		Directions: directions,
		Geocoder:   geocode,
		Publisher:  publisher,
		NewFeed:    func() ports.PositionFeed { return positionfeed.New() },
	}, cfg.Planner.SessionIdleTTL, logger)
	go sessions.Run(ctx)

	deps := &http.Dependencies{
		Sessions:     sessions,
		Geocode:      geocode,
		Destinations: usecases.NewDestinationService(postgres.NewDestinationRepo(db), cache),
		Chat:         usecases.NewChatService(model, logger),
		Users:        usecases.NewUserService(postgres.NewUserRepo(db), tokens, syncRunner),
		RouteLog:     usecases.NewRouteLogService(postgres.NewRouteLogRepo(db)),
		DB:           db,
		Cache:        vc,
		AllowOrigins: cfg.Server.AllowOrigins,
	}
	if pub != nil {
		deps.NATS = pub.Conn()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Trip Planner API",
	})

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "directions", cfg.Directions.Provider)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	sessions.CloseAll()

	slog.Info("server stopped")
}

// reportPoolStats refreshes the connection pool gauges until ctx is done.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
