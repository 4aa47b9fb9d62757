// Package positionfeed turns position fixes pushed by a client device into a
// ports.PositionProvider.
package positionfeed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

type watcher struct {
	onFix func(domain.PositionFix)
	onErr func(error)
}

type reading struct {
	fix domain.PositionFix
	err error
}

// Feed relays pushed fixes to one-shot waiters and watchers.
type Feed struct {
	mu       sync.Mutex
	latest   *domain.PositionFix
	latestAt time.Time
	nextID   uint64
	watchers map[uint64]watcher
	waiters  []chan reading
	now      func() time.Time
}

// New creates an empty feed.
func New() *Feed {
	return &Feed{
		watchers: make(map[uint64]watcher),
		now:      time.Now,
	}
}

// Publish delivers a fix to every waiter and watcher.
func (f *Feed) Publish(fix domain.PositionFix) {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}

	f.mu.Lock()
	f.latest = &fix
	f.latestAt = f.now()
	waiters := f.waiters
	f.waiters = nil
	watchers := f.snapshotLocked()
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- reading{fix: fix}
	}
	for _, w := range watchers {
		w.onFix(fix)
	}
}

// Fail reports a failed reading. The cached fix is kept.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	waiters := f.waiters
	f.waiters = nil
	watchers := f.snapshotLocked()
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- reading{err: err}
	}
	for _, w := range watchers {
		if w.onErr != nil {
			w.onErr(err)
		}
	}
}

func (f *Feed) snapshotLocked() []watcher {
	out := make([]watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		out = append(out, w)
	}
	return out
}

// CurrentPosition returns the cached fix when it is younger than
// opts.MaxAge, otherwise it waits for the next reading up to opts.Timeout.
func (f *Feed) CurrentPosition(ctx context.Context, opts domain.WatchOptions) (domain.PositionFix, error) {
	f.mu.Lock()
	if f.latest != nil && f.now().Sub(f.latestAt) <= opts.MaxAge {
		fix := *f.latest
		f.mu.Unlock()
		return fix, nil
	}
	ch := make(chan reading, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-ch:
		return r.fix, r.err
	case <-timeout:
		f.dropWaiter(ch)
		return domain.PositionFix{}, &domain.PositionError{
			Reason:  domain.PositionTimeout,
			Message: fmt.Sprintf("no position within %s", opts.Timeout),
		}
	case <-ctx.Done():
		f.dropWaiter(ch)
		return domain.PositionFix{}, &domain.PositionError{
			Reason:  domain.PositionUnavailable,
			Message: ctx.Err().Error(),
		}
	}
}

func (f *Feed) dropWaiter(ch chan reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// Watch registers a callback pair. A cached fix younger than opts.MaxAge is
// delivered immediately. The returned stop function is idempotent.
func (f *Feed) Watch(opts domain.WatchOptions, onFix func(domain.PositionFix), onErr func(error)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.watchers[id] = watcher{onFix: onFix, onErr: onErr}
	var cached *domain.PositionFix
	if f.latest != nil && f.now().Sub(f.latestAt) <= opts.MaxAge {
		fix := *f.latest
		cached = &fix
	}
	f.mu.Unlock()

	if cached != nil {
		onFix(*cached)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}
}

// Watchers returns the number of registered watchers.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}
