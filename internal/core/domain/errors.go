package domain

import "errors"

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionTimeout     = errors.New("position request timed out")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrNetworkFailure      = errors.New("network failure")
	ErrEmptyResult         = errors.New("empty result")
	ErrStaleResponse       = errors.New("stale response")
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
	ErrNotFound            = errors.New("not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionClosed       = errors.New("session closed")
	ErrFeatureDisabled     = errors.New("feature disabled for this session")
	ErrEmptyMessage        = errors.New("message must not be empty")
)

// PositionFailure is the reason a position provider gave up.
type PositionFailure string

const (
	PositionPermissionDenied PositionFailure = "permission-denied"
	PositionTimeout          PositionFailure = "timeout"
	PositionUnavailable      PositionFailure = "unavailable"
)

// PositionError carries a provider failure reason.
type PositionError struct {
	Reason  PositionFailure
	Message string
}

func (e *PositionError) Error() string {
	if e.Message != "" {
		return string(e.Reason) + ": " + e.Message
	}
	return string(e.Reason)
}

// Unwrap maps the reason onto the package sentinels so callers can use errors.Is.
func (e *PositionError) Unwrap() error {
	switch e.Reason {
	case PositionPermissionDenied:
		return ErrPermissionDenied
	case PositionTimeout:
		return ErrPositionTimeout
	default:
		return ErrPositionUnavailable
	}
}

// ParsePositionFailure maps a client-reported reason, defaulting to unavailable.
func ParsePositionFailure(s string) PositionFailure {
	switch PositionFailure(s) {
	case PositionPermissionDenied, PositionTimeout:
		return PositionFailure(s)
	default:
		return PositionUnavailable
	}
}
