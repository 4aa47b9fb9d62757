package ports

import (
	"context"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// Geocoder resolves coordinates to names and free text to places.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error)
	SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error)
}

// CityResolver returns the locality name for a coordinate.
type CityResolver interface {
	ResolveCity(ctx context.Context, c domain.Coordinate) (string, error)
}

// DirectionsProvider returns candidate paths through the ordered points.
// An unroutable request yields an empty slice and a nil error.
type DirectionsProvider interface {
	Directions(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error)
}

// PositionProvider delivers one-shot and continuous position fixes.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error)
	// Watch registers callbacks and returns a function that unregisters them.
	Watch(opts domain.WatchOptions, onFix func(domain.PositionFix), onErr func(error)) (stop func())
}

// ChatModel generates an answer for a prompt.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(userID, email, name string) (string, error)
	Verify(token string) (*domain.TokenClaims, error)
}

// EventPublisher publishes planner events to a message broker.
type EventPublisher interface {
	PublishFrame(ctx context.Context, frame *domain.Frame) error
	PublishRouteEvent(ctx context.Context, event *domain.RouteEvent) error
}

// EventSubscriber consumes planner events from a message broker.
type EventSubscriber interface {
	SubscribeRouteEvents(ctx context.Context, handler func(ctx context.Context, event *domain.RouteEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// PositionFeed is a PositionProvider fed by the client device.
type PositionFeed interface {
	PositionProvider
	Publish(fix domain.PositionFix)
	Fail(err error)
}

// UserSyncRunner runs identity sync out of process, e.g. as a workflow.
type UserSyncRunner interface {
	RunUserSync(ctx context.Context, identity domain.Identity) (*domain.User, error)
}
