package usecases_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock PositionProvider ---

// mockPosition answers one-shot requests through currentFn and records
// watch registrations so tests can fire callbacks by hand.
type mockPosition struct {
	currentFn func(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error)

	mu      sync.Mutex
	onFix   func(domain.PositionFix)
	onErr   func(error)
	watches int
	stops   int
}

func (m *mockPosition) CurrentPosition(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, opts)
	}
	return domain.PositionFix{}, &domain.PositionError{Reason: domain.PositionTimeout}
}

func (m *mockPosition) Watch(opts domain.WatchOptions, onFix func(domain.PositionFix), onErr func(error)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches++
	m.onFix = onFix
	m.onErr = onErr
	return func() {
		m.mu.Lock()
		m.stops++
		m.mu.Unlock()
	}
}

// fire delivers a fix through the most recent watch registration, even one
// that has been stopped.
func (m *mockPosition) fire(fix domain.PositionFix) {
	m.mu.Lock()
	fn := m.onFix
	m.mu.Unlock()
	if fn != nil {
		fn(fix)
	}
}

func (m *mockPosition) fail(err error) {
	m.mu.Lock()
	fn := m.onErr
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func fixedPosition(c domain.Coordinate) *mockPosition {
	return &mockPosition{
		currentFn: func(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error) {
			return domain.PositionFix{Coordinate: c, Accuracy: 5, Timestamp: time.Now()}, nil
		},
	}
}

// --- Mock DirectionsProvider ---

type mockDirections struct {
	directionsFn func(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error)

	mu    sync.Mutex
	calls [][]domain.Coordinate
}

func (m *mockDirections) Directions(ctx context.Context, points []domain.Coordinate) ([]domain.RouteCandidate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, points)
	m.mu.Unlock()
	if m.directionsFn != nil {
		return m.directionsFn(ctx, points)
	}
	return []domain.RouteCandidate{{Geometry: points, DistanceMeters: 100, DurationSeconds: 60}}, nil
}

func (m *mockDirections) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// --- Mock Geocoder / CityResolver ---

type mockGeocoder struct {
	reverseFn func(ctx context.Context, c domain.Coordinate) (string, error)
	searchFn  func(ctx context.Context, query string, limit int) ([]domain.Place, error)

	mu       sync.Mutex
	reverses int
	searches int
}

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, c domain.Coordinate) (string, error) {
	m.mu.Lock()
	m.reverses++
	m.mu.Unlock()
	if m.reverseFn != nil {
		return m.reverseFn(ctx, c)
	}
	return "", nil
}

func (m *mockGeocoder) SearchPlaces(ctx context.Context, query string, limit int) ([]domain.Place, error) {
	m.mu.Lock()
	m.searches++
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, query, limit)
	}
	return nil, nil
}

func (m *mockGeocoder) counts() (reverses, searches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverses, m.searches
}

type mockCities struct {
	resolveFn func(ctx context.Context, c domain.Coordinate) (string, error)
}

func (m *mockCities) ResolveCity(ctx context.Context, c domain.Coordinate) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, c)
	}
	return "", domain.ErrEmptyResult
}

// --- Mock CacheService ---

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	// onFrame runs after a frame is recorded, outside the lock.
	onFrame func(domain.Frame)

	mu     sync.Mutex
	frames []domain.Frame
	routes []domain.RouteEvent
}

func (m *mockPublisher) PublishFrame(ctx context.Context, frame *domain.Frame) error {
	m.mu.Lock()
	m.frames = append(m.frames, *frame)
	m.mu.Unlock()
	if m.onFrame != nil {
		m.onFrame(*frame)
	}
	return nil
}

func (m *mockPublisher) PublishRouteEvent(ctx context.Context, event *domain.RouteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, *event)
	return nil
}

func (m *mockPublisher) snapshot() ([]domain.Frame, []domain.RouteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Frame(nil), m.frames...), append([]domain.RouteEvent(nil), m.routes...)
}
