package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"agendei/internal/metrics"
)

const recheckInterval = time.Minute

// FailoverStore writes to the primary store and switches to the fallback while
// the primary is failing. The primary is retried once per recheckInterval.
// Clears the primary could not apply are replayed before it serves again.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	pending   map[string]struct{} // caller ids still to clear on the primary
}

// NewFailoverStore creates a store preferring primary.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "session_failover").Logger(),
		pending:  make(map[string]struct{}),
	}
}

// usePrimary reports whether the primary should be tried now.
func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) < recheckInterval {
		return false
	}
	f.lastCheck = time.Now()
	return true
}

func (f *FailoverStore) markDown(op string, err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("Session primary store failed, using fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("Session primary store recovered")
	}
}

// flushPending replays clears recorded while the primary was failing.
func (f *FailoverStore) flushPending(ctx context.Context) error {
	f.mu.Lock()
	ids := make([]string, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	f.mu.Unlock()

	for _, id := range ids {
		if err := f.primary.Clear(ctx, id); err != nil {
			return err
		}
		f.mu.Lock()
		delete(f.pending, id)
		f.mu.Unlock()
	}
	if len(ids) > 0 {
		f.logger.Info().Int("sessions", len(ids)).Msg("Replayed pending session clears")
	}
	return nil
}

func (f *FailoverStore) Get(ctx context.Context, callerID string) (*Session, error) {
	if f.usePrimary() {
		var s *Session
		err := f.flushPending(ctx)
		if err == nil {
			s, err = f.primary.Get(ctx, callerID)
		}
		if err == nil {
			f.markUp()
			return s, nil
		}
		f.markDown("get", err)
	}
	metrics.IncSessionFallback()
	return f.fallback.Get(ctx, callerID)
}

func (f *FailoverStore) Set(ctx context.Context, s *Session) error {
	if f.usePrimary() {
		err := f.flushPending(ctx)
		if err == nil {
			err = f.primary.Set(ctx, s)
		}
		if err == nil {
			f.markUp()
			return nil
		}
		f.markDown("set", err)
	}
	metrics.IncSessionFallback()
	return f.fallback.Set(ctx, s)
}

// Clear removes the session from both stores. The primary is always tried,
// even while marked down; a failed clear is kept and replayed so a recovered
// primary never resurrects a finished conversation.
func (f *FailoverStore) Clear(ctx context.Context, callerID string) error {
	ferr := f.fallback.Clear(ctx, callerID)
	if err := f.primary.Clear(ctx, callerID); err != nil {
		f.markDown("clear", err)
		f.mu.Lock()
		f.pending[callerID] = struct{}{}
		f.mu.Unlock()
		return ferr
	}
	f.mu.Lock()
	delete(f.pending, callerID)
	f.mu.Unlock()
	f.markUp()
	return ferr
}
