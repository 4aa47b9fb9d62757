package usecases

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/tripplanner/internal/core/domain"
)

// StoreChange names a waypoint store mutation.
type StoreChange string

const (
	StoreAppended  StoreChange = "appended"
	StoreCleared   StoreChange = "cleared"
	StoreRelabeled StoreChange = "relabeled"
)

// StoreEvent is pushed to subscribers after every mutation.
type StoreEvent struct {
	Change   StoreChange
	Waypoint *domain.Waypoint
	Count    int
}

// WaypointStore is the ordered set of destinations for one planning session.
type WaypointStore struct {
	mu        sync.RWMutex
	waypoints []domain.Waypoint
	events    Broadcaster[StoreEvent]
	now       func() time.Time
}

// NewWaypointStore creates an empty store.
func NewWaypointStore() *WaypointStore {
	return &WaypointStore{now: time.Now}
}

// Append validates wp and adds it to the end of the sequence.
// ID and CreatedAt are assigned when empty.
func (s *WaypointStore) Append(wp domain.Waypoint) (domain.Waypoint, error) {
	if err := wp.Coordinate.Validate(); err != nil {
		return domain.Waypoint{}, err
	}
	if wp.ID == "" {
		wp.ID = uuid.NewString()
	}
	if wp.CreatedAt.IsZero() {
		wp.CreatedAt = s.now()
	}

	s.mu.Lock()
	s.waypoints = append(s.waypoints, wp)
	n := len(s.waypoints)
	s.mu.Unlock()

	s.events.Publish(StoreEvent{Change: StoreAppended, Waypoint: &wp, Count: n})
	return wp, nil
}

// Clear empties the sequence.
func (s *WaypointStore) Clear() {
	s.mu.Lock()
	s.waypoints = nil
	s.mu.Unlock()

	s.events.Publish(StoreEvent{Change: StoreCleared})
}

// Latest returns the most recently appended waypoint.
func (s *WaypointStore) Latest() (domain.Waypoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.waypoints) == 0 {
		return domain.Waypoint{}, false
	}
	return s.waypoints[len(s.waypoints)-1], true
}

// List returns a copy of the sequence in store order.
func (s *WaypointStore) List() []domain.Waypoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.waypoints)
}

// Len returns the number of waypoints.
func (s *WaypointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.waypoints)
}

// UpdateLabel upgrades the label of a waypoint in place. It reports false
// when the waypoint no longer exists, e.g. after a clear.
func (s *WaypointStore) UpdateLabel(id, label string) bool {
	s.mu.Lock()
	idx := slices.IndexFunc(s.waypoints, func(w domain.Waypoint) bool { return w.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.waypoints[idx].Label = label
	s.waypoints[idx].Resolved = true
	wp := s.waypoints[idx]
	n := len(s.waypoints)
	s.mu.Unlock()

	s.events.Publish(StoreEvent{Change: StoreRelabeled, Waypoint: &wp, Count: n})
	return true
}

// Subscribe registers fn for every mutation.
func (s *WaypointStore) Subscribe(fn func(StoreEvent)) func() {
	return s.events.Subscribe(fn)
}
