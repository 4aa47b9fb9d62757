package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/tripplanner/internal/core/domain"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// CreateSessionOptions override the defaults for one session.
type CreateSessionOptions struct {
	UserID   string
	Features *domain.FeatureFlags
	Watch    *domain.WatchOptions
}

// SessionService is the registry of open planning sessions.
type SessionService struct {
	base     context.Context
	defaults SessionConfig
	deps     SessionDeps
	idleTTL  time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a registry. Sessions inherit base and are
// cancelled with it.
func NewSessionService(base context.Context, defaults SessionConfig, deps SessionDeps, idleTTL time.Duration, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		base:     base,
		defaults: defaults,
		deps:     deps,
		idleTTL:  idleTTL,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create opens a new session.
func (s *SessionService) Create(opts CreateSessionOptions) (*Session, error) {
	cfg := s.defaults
	if opts.Features != nil {
		cfg.Features = *opts.Features
	}
	if opts.Watch != nil {
		w := *opts.Watch
		if w.MaxAgeMs > 0 {
			w.MaxAge = time.Duration(w.MaxAgeMs) * time.Millisecond
		}
		if w.TimeoutMs > 0 {
			w.Timeout = time.Duration(w.TimeoutMs) * time.Millisecond
		}
		if w.MaxAge <= 0 {
			w.MaxAge = cfg.Watch.MaxAge
		}
		if w.Timeout <= 0 {
			w.Timeout = cfg.Watch.Timeout
		}
		cfg.Watch = domain.NewWatchOptions(w.MaxAge, w.Timeout, w.HighAccuracy)
	}

	id := uuid.NewString()
	sess := NewSession(s.base, id, opts.UserID, cfg, s.deps, s.logger)

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	s.logger.Info("session opened", "session_id", id, "user_id", opts.UserID, "active", n)
	return sess, nil
}

// Get looks up an open session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Close closes and forgets a session.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	sess.Close()
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// Count returns the number of open sessions.
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep closes sessions idle since before now-idleTTL and returns how many
// were closed. Sessions with an attached viewer are kept.
func (s *SessionService) Sweep(now time.Time) int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	var idle []*Session
	for id, sess := range s.sessions {
		if sess.IdleSince(cutoff) {
			idle = append(idle, sess)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range idle {
		sess.Close()
	}
	if len(idle) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		s.logger.Info("closed idle sessions", "closed", len(idle), "active", n)
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (s *SessionService) Run(ctx context.Context) {
	interval := s.idleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// CloseAll closes every open session.
func (s *SessionService) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range all {
		sess.Close()
	}
	metrics.ActiveSessions.Set(0)
}
