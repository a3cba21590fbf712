package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Beto18v/AdoptaFacil-sub000/internal/pipeline"
)

// SessionFactory creates a new import session.
type SessionFactory func() *pipeline.Session

// Store keeps the open import sessions by ID and evicts idle ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*pipeline.Session

	factory SessionFactory
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewStore returns an empty store. Sessions idle for longer than ttl are
// removed by Sweep.
func NewStore(factory SessionFactory, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*pipeline.Session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Create opens a new session.
func (st *Store) Create() *pipeline.Session {
	sess := st.factory()

	st.mu.Lock()
	st.sessions[sess.ID()] = sess
	st.mu.Unlock()

	st.logger.Debug("session opened", zap.String("session", sess.ID()))
	return sess
}

// Get returns the session with id.
func (st *Store) Get(id string) (*pipeline.Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

// Delete closes and removes the session with id.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		sess.Close()
	}
	return ok
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep closes every session idle for longer than the TTL and returns how
// many were removed.
func (st *Store) Sweep() int {
	if st.ttl <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.ttl)

	var expired []*pipeline.Session
	st.mu.Lock()
	for id, sess := range st.sessions {
		if sess.LastActive().Before(cutoff) {
			expired = append(expired, sess)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		st.logger.Info("session expired", zap.String("session", sess.ID()))
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done.
func (st *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep()
		}
	}
}
