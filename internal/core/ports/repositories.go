package ports

import (
	"context"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// UserRepository persists synced identities.
type UserRepository interface {
	Upsert(ctx context.Context, user *domain.User) error
	GetByExternalID(ctx context.Context, externalID string) (*domain.User, error)
}

// DestinationRepository persists the curated destination catalog.
type DestinationRepository interface {
	Upsert(ctx context.Context, d *domain.Destination) error
	UpsertBatch(ctx context.Context, ds []domain.Destination) error
	GetByID(ctx context.Context, id string) (*domain.Destination, error)
	FindNearby(ctx context.Context, lat, lng, radiusMeters float64, limit int) ([]domain.Destination, error)
}

// RouteLogRepository appends installed routes for analytics.
type RouteLogRepository interface {
	Insert(ctx context.Context, event *domain.RouteEvent) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.RouteEvent, error)
}
