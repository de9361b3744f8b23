package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"agendei/internal/clock"
)

type entry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are hidden on read and
// removed by Sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
	clock    clock.Clock
}

// NewMemoryStore creates a memory store; ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, c clock.Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clock.System{}
	}
	return &MemoryStore{sessions: make(map[string]entry), ttl: ttl, clock: c}
}

func (m *MemoryStore) Get(_ context.Context, callerID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[callerID]
	if !ok || !m.clock.Now().Before(e.expiresAt) {
		return nil, nil
	}
	s := e.session
	s.Data = copyData(e.session.Data)
	return &s, nil
}

func (m *MemoryStore) Set(_ context.Context, s *Session) error {
	now := m.clock.Now()
	stored := *s
	stored.Data = copyData(s.Data)
	stored.UpdatedAt = now

	m.mu.Lock()
	m.sessions[s.CallerID] = entry{session: stored, expiresAt: now.Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, callerID string) error {
	m.mu.Lock()
	delete(m.sessions, callerID)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *MemoryStore) Sweep() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if !now.Before(e.expiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartCleanup sweeps every interval until ctx is done.
func (m *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration, logger *zerolog.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 && logger != nil {
					logger.Debug().Int("removed", n).Msg("Expired sessions swept")
				}
			}
		}
	}()
}

func copyData(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
