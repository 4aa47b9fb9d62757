package usecases

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/geospatial"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// RouteOutcome labels how a generation ended.
type RouteOutcome string

const (
	RouteInstalled RouteOutcome = "installed"
	RouteCleared   RouteOutcome = "cleared"
	RouteEmpty     RouteOutcome = "empty"
	RouteFailed    RouteOutcome = "failed"
)

// RouteChange is pushed when the installed route is replaced or removed.
type RouteChange struct {
	Route      *domain.RoutePath
	Generation uint64
	Outcome    RouteOutcome
	Points     []domain.Coordinate
}

// RouteSynthesizer keeps one routed path through the current location and
// every waypoint in store order. Responses are applied in generation order:
// a response whose generation has been superseded is discarded.
type RouteSynthesizer struct {
	ctx        context.Context
	directions ports.DirectionsProvider
	store      *WaypointStore
	tracker    *LocationTracker
	timeout    time.Duration
	logger     *slog.Logger

	mu         sync.Mutex
	generation uint64
	route      *domain.RoutePath
	closed     bool
	unsubs     []func()

	inflight sync.WaitGroup
	events   Broadcaster[RouteChange]
}

// NewRouteSynthesizer wires the synthesizer to store and tracker changes.
// Requests are bound to ctx and cut off after timeout.
func NewRouteSynthesizer(ctx context.Context, directions ports.DirectionsProvider, store *WaypointStore, tracker *LocationTracker, timeout time.Duration, logger *slog.Logger) *RouteSynthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &RouteSynthesizer{
		ctx:        ctx,
		directions: directions,
		store:      store,
		tracker:    tracker,
		timeout:    timeout,
		logger:     logger,
	}
	s.unsubs = []func(){
		store.Subscribe(func(ev StoreEvent) {
			if ev.Change != StoreRelabeled {
				s.Recompute()
			}
		}),
		tracker.Subscribe(func(ev LocationEvent) {
			if ev.Moved {
				s.Recompute()
			}
		}),
	}
	return s
}

// Recompute starts a new generation for the current inputs. With no
// waypoints or no location the route is cleared and no request is issued.
func (s *RouteSynthesizer) Recompute() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	waypoints := s.store.List()
	loc := s.tracker.Location()

	if len(waypoints) == 0 || loc == nil {
		hadRoute := s.route != nil
		s.route = nil
		s.mu.Unlock()

		metrics.RouteRequests.WithLabelValues("skipped").Inc()
		if hadRoute {
			s.events.Publish(RouteChange{Generation: gen, Outcome: RouteCleared})
		}
		return
	}

	points := make([]domain.Coordinate, 0, len(waypoints)+1)
	points = append(points, loc.Coordinate)
	for _, wp := range waypoints {
		points = append(points, wp.Coordinate)
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	go s.request(gen, points)
}

func (s *RouteSynthesizer) request(gen uint64, points []domain.Coordinate) {
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	candidates, err := s.directions.Directions(ctx, points)
	metrics.RouteRequestDuration.Observe(time.Since(start).Seconds())

	s.mu.Lock()
	if s.closed || gen != s.generation {
		current := s.generation
		s.mu.Unlock()
		metrics.RouteRequests.WithLabelValues("stale").Inc()
		s.logger.Debug("discarding superseded directions response",
			"generation", gen, "current", current, "reason", domain.ErrStaleResponse)
		return
	}

	change := RouteChange{Generation: gen, Points: points}
	switch {
	case err != nil:
		s.logger.Warn("directions request failed", "generation", gen, "points", len(points), "error", err)
		change.Outcome = RouteFailed
		s.route = nil
	case len(candidates) == 0:
		change.Outcome = RouteEmpty
		s.route = nil
	default:
		best := candidates[0]
		route := &domain.RoutePath{
			Geometry:        slices.Clone(best.Geometry),
			DistanceMeters:  best.DistanceMeters,
			DurationSeconds: best.DurationSeconds,
			Generation:      gen,
		}
		if route.DistanceMeters == 0 {
			route.DistanceMeters = geospatial.PathLength(route.Geometry)
		}
		s.route = route
		change.Outcome = RouteInstalled
		copied := *route
		change.Route = &copied
	}
	s.mu.Unlock()

	metrics.RouteRequests.WithLabelValues(string(change.Outcome)).Inc()
	s.events.Publish(change)
}

// Route returns a copy of the installed route, or nil.
func (s *RouteSynthesizer) Route() *domain.RoutePath {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.route == nil {
		return nil
	}
	r := *s.route
	r.Geometry = slices.Clone(s.route.Geometry)
	return &r
}

// Generation returns the newest generation issued.
func (s *RouteSynthesizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Wait blocks until every in-flight request has been applied or discarded.
func (s *RouteSynthesizer) Wait() {
	s.inflight.Wait()
}

// Subscribe registers fn for route replacements and removals.
func (s *RouteSynthesizer) Subscribe(fn func(RouteChange)) func() {
	return s.events.Subscribe(fn)
}

// Close detaches the synthesizer from its inputs; later responses are dropped.
func (s *RouteSynthesizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}
