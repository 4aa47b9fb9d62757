package positionfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

var bilbao = domain.Coordinate{Lat: 43.263, Lng: -2.935}

func opts(maxAge, timeout time.Duration) domain.WatchOptions {
	return domain.NewWatchOptions(maxAge, timeout, true)
}

func TestFeed_CurrentPositionUsesFreshCache(t *testing.T) {
	f := New()
	f.Publish(domain.PositionFix{Coordinate: bilbao, Accuracy: 8})

	fix, err := f.CurrentPosition(context.Background(), opts(time.Minute, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fix.Coordinate != bilbao || fix.Timestamp.IsZero() {
		t.Errorf("unexpected fix %+v", fix)
	}
}

func TestFeed_CurrentPositionIgnoresStaleCache(t *testing.T) {
	f := New()
	clock := time.Now()
	f.now = func() time.Time { return clock }
	f.Publish(domain.PositionFix{Coordinate: bilbao})
	clock = clock.Add(time.Hour)

	_, err := f.CurrentPosition(context.Background(), opts(time.Minute, 10*time.Millisecond))
	if !errors.Is(err, domain.ErrPositionTimeout) {
		t.Errorf("expected a timeout for a stale cache, got %v", err)
	}
}

func TestFeed_CurrentPositionWaitsForNextFix(t *testing.T) {
	f := New()

	go func() {
		for {
			f.mu.Lock()
			n := len(f.waiters)
			f.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		f.Publish(domain.PositionFix{Coordinate: bilbao})
	}()

	fix, err := f.CurrentPosition(context.Background(), opts(0, time.Second))
	if err != nil || fix.Coordinate != bilbao {
		t.Errorf("expected the pushed fix, got %+v err=%v", fix, err)
	}
}

func TestFeed_CurrentPositionFailure(t *testing.T) {
	f := New()

	go func() {
		for {
			f.mu.Lock()
			n := len(f.waiters)
			f.mu.Unlock()
			if n > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		f.Fail(&domain.PositionError{Reason: domain.PositionPermissionDenied})
	}()

	_, err := f.CurrentPosition(context.Background(), opts(0, time.Second))
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestFeed_CurrentPositionContextCancelled(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.CurrentPosition(ctx, opts(0, time.Second))
	if !errors.Is(err, domain.ErrPositionUnavailable) {
		t.Errorf("expected ErrPositionUnavailable, got %v", err)
	}
	if len(f.waiters) != 0 {
		t.Error("expected the waiter to be dropped")
	}
}

func TestFeed_FailDoesNotReplaceCache(t *testing.T) {
	f := New()
	f.Publish(domain.PositionFix{Coordinate: bilbao})
	f.Fail(errors.New("gps glitch"))

	fix, err := f.CurrentPosition(context.Background(), opts(time.Minute, 10*time.Millisecond))
	if err != nil || fix.Coordinate != bilbao {
		t.Errorf("expected the cached fix to survive a failure, got %+v err=%v", fix, err)
	}
}

func TestFeed_Watch(t *testing.T) {
	f := New()
	f.Publish(domain.PositionFix{Coordinate: bilbao})

	var fixes []domain.PositionFix
	var errs []error
	stop := f.Watch(opts(time.Minute, time.Second),
		func(fix domain.PositionFix) { fixes = append(fixes, fix) },
		func(err error) { errs = append(errs, err) },
	)

	if len(fixes) != 1 {
		t.Fatalf("expected the cached fix delivered on watch, got %d", len(fixes))
	}

	next := domain.Coordinate{Lat: 43.27, Lng: -2.94}
	f.Publish(domain.PositionFix{Coordinate: next})
	f.Fail(&domain.PositionError{Reason: domain.PositionTimeout})

	if len(fixes) != 2 || fixes[1].Coordinate != next || len(errs) != 1 {
		t.Errorf("unexpected deliveries fixes=%v errs=%v", fixes, errs)
	}

	stop()
	stop()
	if f.Watchers() != 0 {
		t.Errorf("expected no watchers after stop, got %d", f.Watchers())
	}
	f.Publish(domain.PositionFix{Coordinate: bilbao})
	if len(fixes) != 2 {
		t.Error("stopped watcher still receives fixes")
	}
}

func TestFeed_WatchSkipsStaleCache(t *testing.T) {
	f := New()
	clock := time.Now()
	f.now = func() time.Time { return clock }
	f.Publish(domain.PositionFix{Coordinate: bilbao})
	clock = clock.Add(time.Hour)

	delivered := false
	stop := f.Watch(opts(time.Minute, time.Second), func(domain.PositionFix) { delivered = true }, nil)
	defer stop()

	if delivered {
		t.Error("a stale cached fix must not be delivered on watch")
	}
}
