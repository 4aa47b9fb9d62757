package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
)

// RouteLogService records installed routes consumed from the broker.
type RouteLogService struct {
	logs ports.RouteLogRepository
}

// NewRouteLogService creates a new RouteLogService.
func NewRouteLogService(logs ports.RouteLogRepository) *RouteLogService {
	return &RouteLogService{logs: logs}
}

// Record appends one route event. Events without a session are rejected so
// the broker stops redelivering them.
func (s *RouteLogService) Record(ctx context.Context, ev *domain.RouteEvent) error {
	if ev == nil || ev.SessionID == "" {
		return fmt.Errorf("route event without session: %w", domain.ErrNotFound)
	}
	if err := ev.Origin.Validate(); err != nil {
		return err
	}
	return s.logs.Insert(ctx, ev)
}

// History returns the latest route events for a session, newest first.
func (s *RouteLogService) History(ctx context.Context, sessionID string, limit int) ([]domain.RouteEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.logs.ListBySession(ctx, sessionID, limit)
}
