package domain

import "time"

// MarkerKind distinguishes the user's own marker from destination markers.
type MarkerKind string

const (
	MarkerLocation MarkerKind = "location"
	MarkerWaypoint MarkerKind = "waypoint"
)

// Marker is one desired pin on the map.
type Marker struct {
	ID         string     `json:"id"`
	Kind       MarkerKind `json:"kind"`
	Coordinate Coordinate `json:"coordinate"`
	Label      string     `json:"label"`
	Color      string     `json:"color"`
}

// Camera is the desired camera target. Seq increases with every focus request.
type Camera struct {
	Center     Coordinate `json:"center"`
	Zoom       float64    `json:"zoom"`
	DurationMs int64      `json:"duration_ms"`
	Seq        uint64     `json:"seq"`
	Animating  bool       `json:"animating"`
}

// RouteSummary feeds the route panel.
type RouteSummary struct {
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds float64  `json:"duration_seconds"`
	Stops           []string `json:"stops"`
}

// Frame is the full desired visual state of a session's map.
type Frame struct {
	SessionID string        `json:"session_id"`
	Version   uint64        `json:"version"`
	Changed   []string      `json:"changed,omitempty"`
	Location  *Marker       `json:"location,omitempty"`
	Waypoints []Marker      `json:"waypoints"`
	Path      []Coordinate  `json:"path,omitempty"`
	FitBounds *Bounds       `json:"fit_bounds,omitempty"`
	Camera    *Camera       `json:"camera,omitempty"`
	Summary   *RouteSummary `json:"summary,omitempty"`
	Tracker   TrackerStatus `json:"tracker"`
	Watch     WatchOptions  `json:"watch"`
	Features  FeatureFlags  `json:"features"`
	Closed    bool          `json:"closed,omitempty"`
	EmittedAt time.Time     `json:"emitted_at"`
}
