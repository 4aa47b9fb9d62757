package usecases

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
)

// SessionConfig fixes the behaviour of one planning session.
type SessionConfig struct {
	Features      domain.FeatureFlags
	Watch         domain.WatchOptions
	Fallback      domain.Coordinate
	FocusZoom     float64
	SearchZoom    float64
	FocusDuration time.Duration
	RouteTimeout  time.Duration
}

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Directions ports.DirectionsProvider
	Geocoder   *GeocodeService
	Publisher  ports.EventPublisher
	NewFeed    func() ports.PositionFeed
}

// Session is one headless planning view: a waypoint store, a location
// tracker, a route synthesizer and the map projection derived from them.
type Session struct {
	ID     string
	UserID string

	cfg       SessionConfig
	ctx       context.Context
	cancel    context.CancelFunc
	feed      ports.PositionFeed
	geocoder  *GeocodeService
	publisher ports.EventPublisher
	logger    *slog.Logger

	store      *WaypointStore
	tracker    *LocationTracker
	routes     *RouteSynthesizer
	projection *MapProjection

	mu         sync.Mutex
	query      string
	lastActive time.Time
	viewers    int
	closed     bool

	queries   Broadcaster[string]
	labeling  sync.WaitGroup
	unsubs    []func()
	closeOnce sync.Once
}

// NewSession assembles a session bound to parent.
func NewSession(parent context.Context, id, userID string, cfg SessionConfig, deps SessionDeps, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		ID:         id,
		UserID:     userID,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		feed:       deps.NewFeed(),
		geocoder:   deps.Geocoder,
		publisher:  deps.Publisher,
		logger:     logger,
		lastActive: time.Now(),
	}

	s.store = NewWaypointStore()
	s.tracker = NewLocationTracker(s.feed, cfg.Fallback, cfg.Watch, logger)
	s.routes = NewRouteSynthesizer(ctx, deps.Directions, s.store, s.tracker, cfg.RouteTimeout, logger)
	s.projection = NewMapProjection(ProjectionConfig{
		SessionID:     id,
		Features:      cfg.Features,
		FocusZoom:     cfg.FocusZoom,
		FocusDuration: cfg.FocusDuration,
	}, s.store, s.tracker, s.routes, logger)

	if s.publisher != nil {
		s.unsubs = append(s.unsubs,
			s.projection.Subscribe(s.publishFrame),
			s.routes.Subscribe(s.publishRoute),
		)
	}
	return s
}

func (s *Session) publishFrame(f domain.Frame) {
	if err := s.publisher.PublishFrame(s.ctx, &f); err != nil {
		s.logger.Warn("publish frame failed", "version", f.Version, "error", err)
	}
}

func (s *Session) publishRoute(ch RouteChange) {
	if ch.Outcome != RouteInstalled || len(ch.Points) < 2 {
		return
	}
	if ch.Generation != s.routes.Generation() {
		s.logger.Debug("skipping superseded route event", "generation", ch.Generation)
		return
	}
	ev := &domain.RouteEvent{
		SessionID:       s.ID,
		UserID:          s.UserID,
		Generation:      ch.Generation,
		Origin:          ch.Points[0],
		Stops:           ch.Points[1:],
		DistanceMeters:  ch.Route.DistanceMeters,
		DurationSeconds: ch.Route.DurationSeconds,
		InstalledAt:     time.Now().UTC(),
	}
	if err := s.publisher.PublishRouteEvent(s.ctx, ev); err != nil {
		s.logger.Warn("publish route event failed", "generation", ch.Generation, "error", err)
	}
}

// touch records activity and reports whether the session is still open.
func (s *Session) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.lastActive = time.Now()
	return nil
}

// Features returns the enabled planning surfaces.
func (s *Session) Features() domain.FeatureFlags {
	return s.cfg.Features
}

// AddWaypoint appends a map-clicked coordinate under a placeholder label
// and resolves its name in the background.
func (s *Session) AddWaypoint(c domain.Coordinate) (domain.Waypoint, error) {
	if err := s.touch(); err != nil {
		return domain.Waypoint{}, err
	}
	wp, err := s.store.Append(domain.Waypoint{Coordinate: c, Label: domain.PlaceholderLabel})
	if err != nil {
		return domain.Waypoint{}, err
	}

	s.labeling.Add(1)
	go func() {
		defer s.labeling.Done()
		name := s.geocoder.ResolveName(s.ctx, c)
		if !s.store.UpdateLabel(wp.ID, name) {
			s.logger.Debug("waypoint gone before its name resolved", "waypoint_id", wp.ID)
		}
	}()
	return wp, nil
}

// AddLabeledWaypoint appends a waypoint whose name is already known.
func (s *Session) AddLabeledWaypoint(c domain.Coordinate, label string) (domain.Waypoint, error) {
	if err := s.touch(); err != nil {
		return domain.Waypoint{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return s.AddWaypoint(c)
	}
	return s.store.Append(domain.Waypoint{Coordinate: c, Label: label, Resolved: true})
}

// SelectSuggestion appends an autocomplete pick and flies to it.
func (s *Session) SelectSuggestion(p domain.Place) (domain.Waypoint, domain.Camera, error) {
	if !s.cfg.Features.Autocomplete {
		return domain.Waypoint{}, domain.Camera{}, domain.ErrFeatureDisabled
	}
	wp, err := s.AddLabeledWaypoint(p.Coordinate, p.Label)
	if err != nil {
		return domain.Waypoint{}, domain.Camera{}, err
	}
	cam, err := s.projection.FocusOn(wp.Coordinate)
	if err != nil {
		return domain.Waypoint{}, domain.Camera{}, err
	}
	return wp, cam, nil
}

// ClearWaypoints empties the store; the route and markers follow.
func (s *Session) ClearWaypoints() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.store.Clear()
	return nil
}

// Waypoints returns the waypoints in store order.
func (s *Session) Waypoints() []domain.Waypoint {
	return s.store.List()
}

// LatestWaypoint returns the most recently added waypoint.
func (s *Session) LatestWaypoint() (domain.Waypoint, bool) {
	return s.store.Latest()
}

// GetCurrentFix requests one position from the device feed.
func (s *Session) GetCurrentFix(ctx context.Context) (FixResult, error) {
	if err := s.touch(); err != nil {
		return FixResult{}, err
	}
	return s.tracker.GetCurrentFix(ctx)
}

// StartWatching begins continuous tracking.
func (s *Session) StartWatching() (domain.TrackerStatus, error) {
	if err := s.touch(); err != nil {
		return domain.TrackerStatus{}, err
	}
	s.tracker.StartWatching()
	return s.tracker.Status(), nil
}

// StopWatching ends continuous tracking.
func (s *Session) StopWatching() (domain.TrackerStatus, error) {
	if err := s.touch(); err != nil {
		return domain.TrackerStatus{}, err
	}
	s.tracker.StopWatching()
	return s.tracker.Status(), nil
}

// PushFix hands a device reading to the session's position feed.
func (s *Session) PushFix(fix domain.PositionFix) error {
	if err := s.touch(); err != nil {
		return err
	}
	if err := fix.Coordinate.Validate(); err != nil {
		return err
	}
	s.feed.Publish(fix)
	return nil
}

// PushFailure reports a device-side position failure.
func (s *Session) PushFailure(reason domain.PositionFailure, message string) error {
	if err := s.touch(); err != nil {
		return err
	}
	s.feed.Fail(&domain.PositionError{Reason: reason, Message: message})
	return nil
}

// Location returns the current location, or nil.
func (s *Session) Location() *domain.CurrentLocation {
	return s.tracker.Location()
}

// TrackerStatus returns the location tracker status.
func (s *Session) TrackerStatus() domain.TrackerStatus {
	return s.tracker.Status()
}

// Route returns the installed route, or nil.
func (s *Session) Route() *domain.RoutePath {
	return s.routes.Route()
}

// FocusOn moves the camera to c.
func (s *Session) FocusOn(c domain.Coordinate) (domain.Camera, error) {
	if err := s.touch(); err != nil {
		return domain.Camera{}, err
	}
	return s.projection.FocusOn(c)
}

// FocusOnLocation centres the camera on the user.
func (s *Session) FocusOnLocation() (domain.Camera, error) {
	if err := s.touch(); err != nil {
		return domain.Camera{}, err
	}
	loc := s.tracker.Location()
	if loc == nil {
		return domain.Camera{}, domain.ErrNotFound
	}
	return s.projection.FocusOn(loc.Coordinate)
}

// SubmitQuery runs a search-bar query: it flies to the first match at the
// search zoom and then resets the query. A query without matches returns
// a nil place.
func (s *Session) SubmitQuery(ctx context.Context, query string) (*domain.Place, *domain.Camera, error) {
	if !s.cfg.Features.SearchBar {
		return nil, nil, domain.ErrFeatureDisabled
	}
	if err := s.touch(); err != nil {
		return nil, nil, err
	}
	s.setQuery(query)
	defer s.setQuery("")

	places := s.geocoder.SearchByText(ctx, query, 1)
	if len(places) == 0 {
		return nil, nil, nil
	}
	place := places[0]
	cam, err := s.projection.FlyTo(place.Coordinate, s.cfg.SearchZoom)
	if err != nil {
		return nil, nil, err
	}
	return &place, &cam, nil
}

func (s *Session) setQuery(q string) {
	s.mu.Lock()
	if s.query == q {
		s.mu.Unlock()
		return
	}
	s.query = q
	s.mu.Unlock()
	s.queries.Publish(q)
}

// Query returns the pending search-bar query.
func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// SubscribeQuery registers fn for query changes.
func (s *Session) SubscribeQuery(fn func(string)) func() {
	return s.queries.Subscribe(fn)
}

// Reset returns the view to a fresh state on navigation: the query,
// waypoints, route and camera are dropped while tracking continues.
func (s *Session) Reset() error {
	if err := s.touch(); err != nil {
		return err
	}
	s.setQuery("")
	s.store.Clear()
	s.projection.ResetCamera()
	return nil
}

// Frame returns the latest desired map state. Reading it counts as activity.
func (s *Session) Frame() domain.Frame {
	_ = s.touch()
	return s.projection.Frame()
}

// Attach marks a live viewer, such as a websocket stream. A session with a
// viewer attached is never idle. The returned detach is idempotent.
func (s *Session) Attach() (detach func()) {
	s.mu.Lock()
	s.viewers++
	s.lastActive = time.Now()
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.viewers--
			s.lastActive = time.Now()
			s.mu.Unlock()
		})
	}
}

// IdleSince reports whether nothing has used the session since cutoff.
func (s *Session) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewers == 0 && s.lastActive.Before(cutoff)
}

// Subscribe registers fn for every emitted frame.
func (s *Session) Subscribe(fn func(domain.Frame)) func() {
	return s.projection.Subscribe(fn)
}

// WaitIdle blocks until pending label lookups and directions requests finish.
func (s *Session) WaitIdle() {
	s.labeling.Wait()
	s.routes.Wait()
}

// Close stops tracking, releases the projection and cancels in-flight work.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.tracker.StopWatching()
		s.routes.Close()
		_ = s.projection.Close()
		for _, u := range s.unsubs {
			u()
		}
		s.cancel()
		s.logger.Info("session closed")
	})
}
