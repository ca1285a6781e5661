package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/parvbhullar/media-gateway/runtime/logger"
	metrics "github.com/parvbhullar/media-gateway/runtime/metrics/prometheus"
)

// DefaultMaxSessions is the default concurrent call limit.
const DefaultMaxSessions = 100

// Registry admits calls up to a fixed limit and tracks the live ones.
type Registry struct {
	pipeline Pipeline
	cfg      Config
	slots    *semaphore.Weighted
	max      int
	newID    func() string

	mu       sync.RWMutex
	sessions map[string]*CallSession
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator overrides the session id generator.
func WithIDGenerator(fn func() string) RegistryOption {
	return func(r *Registry) {
		r.newID = fn
	}
}

// NewRegistry creates a registry admitting at most maxSessions concurrent
// calls. A non-positive limit uses DefaultMaxSessions.
func NewRegistry(pipeline Pipeline, cfg Config, maxSessions int, opts ...RegistryOption) *Registry {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	r := &Registry{
		pipeline: pipeline,
		cfg:      cfg,
		slots:    semaphore.NewWeighted(int64(maxSessions)),
		max:      maxSessions,
		newID:    uuid.NewString,
		sessions: make(map[string]*CallSession),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accept admits a new call on tx. It returns ErrTooManySessions without
// blocking when the limit is reached. The caller must pass the session to
// Run, which releases the slot.
func (r *Registry) Accept(tx Transport) (*CallSession, error) {
	if !r.slots.TryAcquire(1) {
		metrics.RecordSessionRejected()
		return nil, ErrTooManySessions
	}
	s := NewCallSession(r.newID(), tx, r.pipeline, r.cfg)

	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Run drives an accepted session to completion and frees its slot.
func (r *Registry) Run(ctx context.Context, s *CallSession) error {
	defer func() {
		r.mu.Lock()
		delete(r.sessions, s.ID())
		r.mu.Unlock()
		r.slots.Release(1)
	}()
	return s.Run(ctx)
}

// Get returns a live session by id.
func (r *Registry) Get(id string) (*CallSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Active returns the number of admitted sessions that have not finished.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Max returns the concurrent call limit.
func (r *Registry) Max() int {
	return r.max
}

// CloseAll closes every live session.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	live := make([]*CallSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	for _, s := range live {
		s.Close()
	}
	if len(live) > 0 {
		logger.Info("closed live sessions", "count", len(live))
	}
}
