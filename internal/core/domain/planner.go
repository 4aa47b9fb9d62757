package domain

import "time"

// PlaceholderLabel is shown on a waypoint while its name is being resolved.
const PlaceholderLabel = "Resolving…"

// UnknownLocation is the label used when reverse geocoding fails or finds nothing.
const UnknownLocation = "Unknown Location"

// Waypoint is a user-chosen stop. Only the label may change after creation.
type Waypoint struct {
	ID         string     `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
	Label      string     `json:"label,omitempty"`
	Resolved   bool       `json:"resolved"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CurrentLocation is the latest accepted position fix.
type CurrentLocation struct {
	Coordinate Coordinate `json:"coordinate"`
	Accuracy   float64    `json:"accuracy,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Fallback   bool       `json:"fallback,omitempty"`
}

// PositionFix is one reading from a position provider.
type PositionFix struct {
	Coordinate Coordinate `json:"coordinate"`
	Accuracy   float64    `json:"accuracy"`
	Timestamp  time.Time  `json:"timestamp"`
}

// WatchOptions configure continuous position updates.
type WatchOptions struct {
	MaxAge       time.Duration `json:"-"`
	Timeout      time.Duration `json:"-"`
	HighAccuracy bool          `json:"high_accuracy"`
	MaxAgeMs     int64         `json:"max_age_ms"`
	TimeoutMs    int64         `json:"timeout_ms"`
}

// NewWatchOptions fills in the millisecond mirrors sent to clients.
func NewWatchOptions(maxAge, timeout time.Duration, highAccuracy bool) WatchOptions {
	return WatchOptions{
		MaxAge:       maxAge,
		Timeout:      timeout,
		HighAccuracy: highAccuracy,
		MaxAgeMs:     maxAge.Milliseconds(),
		TimeoutMs:    timeout.Milliseconds(),
	}
}

// TrackerState describes the health of location tracking.
type TrackerState string

const (
	TrackerIdle             TrackerState = "idle"
	TrackerOK               TrackerState = "ok"
	TrackerFallback         TrackerState = "fallback"
	TrackerDegraded         TrackerState = "degraded"
	TrackerPermissionDenied TrackerState = "permission_denied"
)

// TrackerStatus is surfaced to the client. Blocking statuses must be shown
// as an explicit message rather than silently substituted.
type TrackerStatus struct {
	State    TrackerState `json:"state"`
	Watching bool         `json:"watching"`
	Blocking bool         `json:"blocking"`
	Message  string       `json:"message,omitempty"`
}

// RoutePath is the geometry produced for one (location, waypoints) pair.
type RoutePath struct {
	Geometry        []Coordinate `json:"geometry"`
	DistanceMeters  float64      `json:"distance_meters"`
	DurationSeconds float64      `json:"duration_seconds"`
	Generation      uint64       `json:"generation"`
}

// RouteCandidate is one path returned by a directions provider.
type RouteCandidate struct {
	Geometry        []Coordinate
	DistanceMeters  float64
	DurationSeconds float64
}

// Place is a geocoding candidate.
type Place struct {
	Coordinate Coordinate `json:"coordinate"`
	Label      string     `json:"label"`
}

// FeatureFlags select which planning surfaces a session exposes.
type FeatureFlags struct {
	SearchBar    bool `json:"search_bar"`
	Autocomplete bool `json:"autocomplete"`
	RoutePanel   bool `json:"route_panel"`
}

// RouteEvent records an installed route for downstream consumers.
type RouteEvent struct {
	SessionID       string       `json:"session_id"`
	UserID          string       `json:"user_id,omitempty"`
	Generation      uint64       `json:"generation"`
	Origin          Coordinate   `json:"origin"`
	Stops           []Coordinate `json:"stops"`
	DistanceMeters  float64      `json:"distance_meters"`
	DurationSeconds float64      `json:"duration_seconds"`
	InstalledAt     time.Time    `json:"installed_at"`
}
