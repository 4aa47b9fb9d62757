package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/core/ports"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

const permissionDeniedMessage = "Location access is blocked. Allow location access for this site in your browser or device settings to plan routes from where you are."

// LocationEvent is pushed whenever the location or tracker status changes.
// Moved is true only when a new fix replaced the current location.
type LocationEvent struct {
	Location *domain.CurrentLocation
	Status   domain.TrackerStatus
	Moved    bool
}

// FixResult is the outcome of a one-shot position request.
type FixResult struct {
	Location domain.CurrentLocation `json:"location"`
	Fallback bool                   `json:"fallback"`
	Warning  string                 `json:"warning,omitempty"`
}

// LocationTracker owns the session's current location.
type LocationTracker struct {
	provider ports.PositionProvider
	fallback domain.Coordinate
	opts     domain.WatchOptions
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	location *domain.CurrentLocation
	status   domain.TrackerStatus
	epoch    uint64
	watching bool
	stop     func()

	events Broadcaster[LocationEvent]
}

// NewLocationTracker creates a tracker that falls back to the given
// coordinate when a fix cannot be obtained.
func NewLocationTracker(provider ports.PositionProvider, fallback domain.Coordinate, opts domain.WatchOptions, logger *slog.Logger) *LocationTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationTracker{
		provider: provider,
		fallback: fallback,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		status:   domain.TrackerStatus{State: domain.TrackerIdle},
	}
}

// GetCurrentFix requests one position. Timeouts and unavailability fall back
// to the default coordinate with a warning; a denied permission leaves the
// location untouched and puts the tracker in a blocking state.
func (t *LocationTracker) GetCurrentFix(ctx context.Context) (FixResult, error) {
	fix, err := t.provider.CurrentPosition(ctx, t.opts)
	if err == nil {
		if verr := fix.Coordinate.Validate(); verr != nil {
			err = &domain.PositionError{Reason: domain.PositionUnavailable, Message: verr.Error()}
		}
	}

	switch {
	case err == nil:
		loc := domain.CurrentLocation{Coordinate: fix.Coordinate, Accuracy: fix.Accuracy, Timestamp: fix.Timestamp}
		t.mu.Lock()
		t.location = &loc
		t.status = domain.TrackerStatus{State: domain.TrackerOK, Watching: t.watching}
		ev := t.eventLocked(true)
		t.mu.Unlock()

		metrics.PositionFixes.WithLabelValues("accepted").Inc()
		t.events.Publish(ev)
		return FixResult{Location: loc}, nil

	case errors.Is(err, domain.ErrPermissionDenied):
		t.mu.Lock()
		t.status = domain.TrackerStatus{
			State:    domain.TrackerPermissionDenied,
			Watching: t.watching,
			Blocking: true,
			Message:  permissionDeniedMessage,
		}
		ev := t.eventLocked(false)
		t.mu.Unlock()

		metrics.PositionFixes.WithLabelValues("denied").Inc()
		t.events.Publish(ev)
		return FixResult{}, fmt.Errorf("current fix: %w", err)

	default:
		warning := fmt.Sprintf("Could not determine your position (%v). Showing the default location instead.", err)
		loc := domain.CurrentLocation{Coordinate: t.fallback, Timestamp: t.now(), Fallback: true}
		t.mu.Lock()
		t.location = &loc
		t.status = domain.TrackerStatus{State: domain.TrackerFallback, Watching: t.watching, Message: warning}
		ev := t.eventLocked(true)
		t.mu.Unlock()

		t.logger.Warn("position unavailable, using default location", "error", err)
		metrics.PositionFixes.WithLabelValues("fallback").Inc()
		t.events.Publish(ev)
		return FixResult{Location: loc, Fallback: true, Warning: warning}, nil
	}
}

// StartWatching subscribes to continuous updates. It is a no-op when
// already watching.
func (t *LocationTracker) StartWatching() {
	t.mu.Lock()
	if t.watching {
		t.mu.Unlock()
		return
	}
	t.epoch++
	epoch := t.epoch
	t.watching = true
	if t.status.Blocking {
		t.status = domain.TrackerStatus{State: domain.TrackerIdle}
	}
	t.status.Watching = true
	ev := t.eventLocked(false)
	t.mu.Unlock()

	t.events.Publish(ev)

	stop := t.provider.Watch(t.opts,
		func(fix domain.PositionFix) { t.applyFix(epoch, fix) },
		func(err error) { t.applyError(epoch, err) },
	)

	t.mu.Lock()
	if t.epoch != epoch {
		// Stopped while the provider was registering us.
		t.mu.Unlock()
		stop()
		return
	}
	t.stop = stop
	t.mu.Unlock()
}

// StopWatching makes every earlier subscription inert. Once it returns no
// callback from the provider can change the location.
func (t *LocationTracker) StopWatching() {
	t.mu.Lock()
	if !t.watching {
		t.mu.Unlock()
		return
	}
	t.watching = false
	t.epoch++
	stop := t.stop
	t.stop = nil
	t.status.Watching = false
	ev := t.eventLocked(false)
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	t.events.Publish(ev)
}

func (t *LocationTracker) applyFix(epoch uint64, fix domain.PositionFix) {
	if err := fix.Coordinate.Validate(); err != nil {
		t.logger.Warn("dropping invalid position fix", "error", err)
		metrics.PositionFixes.WithLabelValues("dropped").Inc()
		return
	}

	t.mu.Lock()
	if !t.watching || t.epoch != epoch {
		t.mu.Unlock()
		metrics.PositionFixes.WithLabelValues("dropped").Inc()
		return
	}
	ts := fix.Timestamp
	if ts.IsZero() {
		ts = t.now()
	}
	t.location = &domain.CurrentLocation{Coordinate: fix.Coordinate, Accuracy: fix.Accuracy, Timestamp: ts}
	t.status = domain.TrackerStatus{State: domain.TrackerOK, Watching: true}
	ev := t.eventLocked(true)
	t.mu.Unlock()

	metrics.PositionFixes.WithLabelValues("accepted").Inc()
	t.events.Publish(ev)
}

func (t *LocationTracker) applyError(epoch uint64, err error) {
	t.mu.Lock()
	if !t.watching || t.epoch != epoch {
		t.mu.Unlock()
		return
	}

	var stop func()
	if errors.Is(err, domain.ErrPermissionDenied) {
		t.watching = false
		t.epoch++
		stop = t.stop
		t.stop = nil
		t.status = domain.TrackerStatus{
			State:    domain.TrackerPermissionDenied,
			Blocking: true,
			Message:  permissionDeniedMessage,
		}
		metrics.PositionFixes.WithLabelValues("denied").Inc()
	} else {
		t.status = domain.TrackerStatus{
			State:    domain.TrackerDegraded,
			Watching: true,
			Message:  fmt.Sprintf("Live location is temporarily unavailable (%v).", err),
		}
	}
	ev := t.eventLocked(false)
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
	t.logger.Warn("position watch error", "error", err)
	t.events.Publish(ev)
}

func (t *LocationTracker) eventLocked(moved bool) LocationEvent {
	ev := LocationEvent{Status: t.status, Moved: moved}
	if t.location != nil {
		loc := *t.location
		ev.Location = &loc
	}
	return ev
}

// Location returns a copy of the current location, or nil before the first fix.
func (t *LocationTracker) Location() *domain.CurrentLocation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.location == nil {
		return nil
	}
	loc := *t.location
	return &loc
}

// Status returns the tracker status.
func (t *LocationTracker) Status() domain.TrackerStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Watching reports whether continuous updates are active.
func (t *LocationTracker) Watching() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watching
}

// Options returns the watch configuration.
func (t *LocationTracker) Options() domain.WatchOptions {
	return t.opts
}

// Subscribe registers fn for location and status changes.
func (t *LocationTracker) Subscribe(fn func(LocationEvent)) func() {
	return t.events.Subscribe(fn)
}
