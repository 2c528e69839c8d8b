package engagement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// DefaultSessionIdle is how long an unused search session survives.
const DefaultSessionIdle = 30 * time.Minute

// DefaultMaxSessions caps live search sessions.
const DefaultMaxSessions = 1000

// JobTypeSessionSweep labels sweep runs in background job metrics.
const JobTypeSessionSweep = "session_sweep"

// SweepObserver receives the result of each periodic sweep.
type SweepObserver interface {
	RecordRun(jobType string, start time.Time, removed int)
}

type session struct {
	cache    *Cache
	lastUsed time.Time
}

// Sessions owns one Cache per search session. A session's cache lives until
// End is called, the session sits idle past the sweep threshold, or it is the
// least recently used session when a new one would exceed the cap.
type Sessions struct {
	newCache func() *Cache
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
	max      int

	mu       sync.Mutex
	sessions *lru.Cache
}

// SessionsOption configures a Sessions registry.
type SessionsOption func(*Sessions)

// WithMaxSessions caps the number of live sessions. Values <= 0 keep DefaultMaxSessions.
func WithMaxSessions(n int) SessionsOption {
	return func(s *Sessions) {
		if n > 0 {
			s.max = n
		}
	}
}

// NewSessions creates a registry that builds caches with newCache.
func NewSessions(newCache func() *Cache, logger *slog.Logger, metrics *Metrics, opts ...SessionsOption) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sessions{
		newCache: newCache,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		max:      DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	// NewWithEvict only fails for a non-positive size.
	s.sessions, _ = lru.NewWithEvict(s.max, func(_, value interface{}) {
		value.(*session).cache.Invalidate()
	})
	return s
}

// Get returns the cache for id, creating it on first use. Creating a session
// past the cap evicts the least recently used one.
func (s *Sessions) Get(id string) *Cache {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.sessions.Get(id); ok {
		sess := v.(*session)
		sess.lastUsed = s.now()
		return sess.cache
	}

	sess := &session{cache: s.newCache(), lastUsed: s.now()}
	if evicted := s.sessions.Add(id, sess); evicted {
		if s.metrics != nil {
			s.metrics.IncSessionsEvicted()
		}
		s.logger.Debug("evicted least recently used search session", "max_sessions", s.max)
	}
	s.reportLocked()
	return sess.cache
}

// End tears down the session's cache. It reports whether the session existed.
func (s *Sessions) End(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessions.Remove(id) {
		return false
	}
	s.reportLocked()
	return true
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.sessions.Len()
}

// Sweep ends every session unused for longer than idle and returns how many were removed.
func (s *Sessions) Sweep(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-idle)
	removed := 0
	for _, key := range s.sessions.Keys() {
		v, ok := s.sessions.Peek(key)
		if !ok {
			continue
		}
		if v.(*session).lastUsed.Before(cutoff) {
			s.sessions.Remove(key)
			removed++
		}
	}
	if removed > 0 {
		s.reportLocked()
	}
	return removed
}

func (s *Sessions) reportLocked() {
	if s.metrics != nil {
		s.metrics.SetSessionsActive(s.sessions.Len())
	}
}

// RunSweeper sweeps idle sessions every interval until ctx is done.
// It blocks and should be run in a goroutine.
func (s *Sessions) RunSweeper(ctx context.Context, interval, idle time.Duration, observer SweepObserver) {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	if interval <= 0 {
		interval = idle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			removed := s.Sweep(idle)
			if observer != nil {
				observer.RecordRun(JobTypeSessionSweep, start, removed)
			}
			if removed > 0 {
				s.logger.Info("swept idle search sessions", "removed", removed, "idle", idle)
			}
		case <-ctx.Done():
			s.logger.Info("stopping search session sweeper")
			return
		}
	}
}
