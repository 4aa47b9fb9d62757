package usecases

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

const (
	locationMarkerColor = "black"
	waypointMarkerColor = "blue"
)

// ProjectionConfig holds the fixed camera parameters.
type ProjectionConfig struct {
	SessionID     string
	Features      domain.FeatureFlags
	FocusZoom     float64
	FocusDuration time.Duration
}

// MapProjection derives the desired map state from the store, tracker and
// synthesizer, and emits a Frame whenever that state changes.
type MapProjection struct {
	cfg     ProjectionConfig
	store   *WaypointStore
	tracker *LocationTracker
	routes  *RouteSynthesizer
	logger  *slog.Logger
	now     func() time.Time

	// emitMu serialises build+publish so frames leave in version order.
	emitMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	version   uint64
	last      domain.Frame
	camera    *domain.Camera
	cameraSeq uint64
	animation *time.Timer
	unsubs    []func()

	closeOnce sync.Once
	events    Broadcaster[domain.Frame]
}

// NewMapProjection subscribes to every source and builds the initial frame.
func NewMapProjection(cfg ProjectionConfig, store *WaypointStore, tracker *LocationTracker, routes *RouteSynthesizer, logger *slog.Logger) *MapProjection {
	if logger == nil {
		logger = slog.Default()
	}
	p := &MapProjection{
		cfg:     cfg,
		store:   store,
		tracker: tracker,
		routes:  routes,
		logger:  logger,
		now:     time.Now,
	}
	p.mu.Lock()
	p.version = 1
	p.last = p.buildLocked()
	p.last.Version = p.version
	p.last.EmittedAt = p.now()
	p.mu.Unlock()

	p.unsubs = []func(){
		store.Subscribe(func(StoreEvent) { p.render() }),
		tracker.Subscribe(func(LocationEvent) { p.render() }),
		routes.Subscribe(func(RouteChange) { p.render() }),
	}
	return p
}

func (p *MapProjection) render() {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	next := p.buildLocked()
	changed := diffFrames(p.last, next)
	if len(changed) == 0 {
		p.mu.Unlock()
		return
	}
	p.version++
	next.Version = p.version
	next.Changed = changed
	next.EmittedAt = p.now()
	p.last = next
	p.mu.Unlock()

	p.events.Publish(next)
}

func (p *MapProjection) buildLocked() domain.Frame {
	f := domain.Frame{
		SessionID: p.cfg.SessionID,
		Tracker:   p.tracker.Status(),
		Watch:     p.tracker.Options(),
		Features:  p.cfg.Features,
		Waypoints: []domain.Marker{},
	}

	if loc := p.tracker.Location(); loc != nil {
		f.Location = &domain.Marker{
			ID:         "location",
			Kind:       domain.MarkerLocation,
			Coordinate: loc.Coordinate,
			Label:      "Current Location",
			Color:      locationMarkerColor,
		}
	}

	waypoints := p.store.List()
	for i, wp := range waypoints {
		label := wp.Label
		if label == "" {
			label = fmt.Sprintf("Destination %d", i+1)
		}
		f.Waypoints = append(f.Waypoints, domain.Marker{
			ID:         wp.ID,
			Kind:       domain.MarkerWaypoint,
			Coordinate: wp.Coordinate,
			Label:      label,
			Color:      waypointMarkerColor,
		})
	}

	if route := p.routes.Route(); route != nil {
		f.Path = route.Geometry
		f.FitBounds = domain.BoundsOf(route.Geometry)
		if p.cfg.Features.RoutePanel {
			stops := make([]string, 0, len(f.Waypoints))
			for _, m := range f.Waypoints {
				stops = append(stops, m.Label)
			}
			f.Summary = &domain.RouteSummary{
				DistanceMeters:  route.DistanceMeters,
				DurationSeconds: route.DurationSeconds,
				Stops:           stops,
			}
		}
	}

	if p.camera != nil {
		cam := *p.camera
		f.Camera = &cam
	}
	return f
}

// diffFrames lists the layers that differ between two frames.
func diffFrames(prev, next domain.Frame) []string {
	var changed []string
	if !equalPtr(prev.Location, next.Location) {
		changed = append(changed, "location")
	}
	if !slices.Equal(prev.Waypoints, next.Waypoints) {
		changed = append(changed, "markers")
	}
	if !slices.Equal(prev.Path, next.Path) {
		changed = append(changed, "path")
	}
	if !equalPtr(prev.Camera, next.Camera) {
		changed = append(changed, "camera")
	}
	if prev.Tracker != next.Tracker {
		changed = append(changed, "status")
	}
	if !equalSummary(prev.Summary, next.Summary) {
		changed = append(changed, "summary")
	}
	return changed
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalSummary(a, b *domain.RouteSummary) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.DistanceMeters == b.DistanceMeters &&
		a.DurationSeconds == b.DurationSeconds &&
		slices.Equal(a.Stops, b.Stops)
}

// FocusOn animates the camera to c at the fixed focus zoom. A newer focus
// request cancels the animation in flight.
func (p *MapProjection) FocusOn(c domain.Coordinate) (domain.Camera, error) {
	return p.FlyTo(c, p.cfg.FocusZoom)
}

// FlyTo is FocusOn with an explicit zoom level.
func (p *MapProjection) FlyTo(c domain.Coordinate, zoom float64) (domain.Camera, error) {
	if err := c.Validate(); err != nil {
		return domain.Camera{}, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.Camera{}, domain.ErrSessionClosed
	}
	if p.animation != nil {
		p.animation.Stop()
	}
	p.cameraSeq++
	seq := p.cameraSeq
	cam := domain.Camera{
		Center:     c,
		Zoom:       zoom,
		DurationMs: p.cfg.FocusDuration.Milliseconds(),
		Seq:        seq,
		Animating:  true,
	}
	p.camera = &cam
	p.animation = time.AfterFunc(p.cfg.FocusDuration, func() { p.land(seq) })
	p.mu.Unlock()

	p.render()
	return cam, nil
}

func (p *MapProjection) land(seq uint64) {
	p.mu.Lock()
	if p.closed || p.cameraSeq != seq || p.camera == nil {
		p.mu.Unlock()
		return
	}
	landed := *p.camera
	landed.Animating = false
	p.camera = &landed
	p.animation = nil
	p.mu.Unlock()

	p.render()
}

// ResetCamera drops the camera target and any animation in flight.
func (p *MapProjection) ResetCamera() {
	p.mu.Lock()
	if p.animation != nil {
		p.animation.Stop()
		p.animation = nil
	}
	p.cameraSeq++
	p.camera = nil
	p.mu.Unlock()

	p.render()
}

// Frame returns the latest emitted frame.
func (p *MapProjection) Frame() domain.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Subscribe registers fn for every emitted frame.
func (p *MapProjection) Subscribe(fn func(domain.Frame)) func() {
	return p.events.Subscribe(fn)
}

// Close releases the projection exactly once. It unsubscribes from every
// source, stops the camera animation and emits a final closed frame.
func (p *MapProjection) Close() error {
	p.closeOnce.Do(func() {
		p.emitMu.Lock()
		defer p.emitMu.Unlock()

		p.mu.Lock()
		p.closed = true
		if p.animation != nil {
			p.animation.Stop()
			p.animation = nil
		}
		unsubs := p.unsubs
		p.unsubs = nil
		p.version++
		final := domain.Frame{
			SessionID: p.cfg.SessionID,
			Version:   p.version,
			Waypoints: []domain.Marker{},
			Closed:    true,
			EmittedAt: p.now(),
		}
		p.last = final
		p.mu.Unlock()

		for _, u := range unsubs {
			u()
		}
		p.events.Publish(final)
		p.logger.Debug("map projection released", "session_id", p.cfg.SessionID)
	})
	return nil
}
