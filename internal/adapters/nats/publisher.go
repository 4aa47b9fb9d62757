package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

const (
	routeStream = "PLANNER_ROUTES"

	routeSubjectPrefix = "planner.route."
	frameSubjectPrefix = "planner.session."
)

// FrameSubject is the core NATS subject carrying a session's frames.
func FrameSubject(sessionID string) string {
	return frameSubjectPrefix + sessionID + ".frame"
}

// RouteSubject is the JetStream subject for a session's installed routes.
func RouteSubject(sessionID string) string {
	return routeSubjectPrefix + sessionID
}

// Publisher implements ports.EventPublisher. Frames are fire-and-forget on
// core NATS; route events go through JetStream so consumers can replay them.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and makes sure the route stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      routeStream,
		Subjects:  []string{routeSubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return p.conn.Publish(FrameSubject(frame.SessionID), data)
}

func (p *Publisher) PublishRouteEvent(ctx context.Context, event *domain.RouteEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msgID := fmt.Sprintf("%s-%d", event.SessionID, event.Generation)
	_, err = p.js.Publish(RouteSubject(event.SessionID), data, nats.MsgId(msgID), nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for relays and readiness checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
