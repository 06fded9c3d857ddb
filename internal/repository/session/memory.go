package session

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/tutorbot/internal/domain"
	domsession "github.com/kailas-cloud/tutorbot/internal/domain/session"
)

// MemoryRepo keeps sessions in process memory. Used with the SQL drivers,
// where no key-value store is configured.
type MemoryRepo struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]domsession.Session
}

// NewMemory creates an in-process session repository.
func NewMemory(ttl time.Duration, now func() time.Time) *MemoryRepo {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepo{ttl: ttl, now: now, sessions: make(map[int64]domsession.Session)}
}

// Get loads a session. Expired sessions are dropped lazily.
func (m *MemoryRepo) Get(_ context.Context, userID int64) (domsession.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return domsession.Session{}, domain.ErrNotFound
	}
	if m.ttl > 0 && m.now().Sub(time.UnixMilli(s.UpdatedAt())) > m.ttl {
		delete(m.sessions, userID)
		return domsession.Session{}, domain.ErrNotFound
	}
	return s, nil
}

// Save stores a session.
func (m *MemoryRepo) Save(_ context.Context, userID int64, s domsession.Session) error {
	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()
	return nil
}

// Delete removes a session.
func (m *MemoryRepo) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}
