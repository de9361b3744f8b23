package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, callerID string) (*Session, error) {
	args := m.Called(ctx, callerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockStore) Clear(ctx context.Context, callerID string) error {
	args := m.Called(ctx, callerID)
	return args.Error(0)
}

func TestFailoverStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	store := NewFailoverStore(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		s := &Session{CallerID: "1"}
		primary.On("Get", ctx, "1").Return(s, nil).Once()

		got, err := store.Get(ctx, "1")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		s := &Session{CallerID: "2"}
		primary.On("Get", ctx, "2").Return(nil, errors.New("connection refused")).Once()
		fallback.On("Get", ctx, "2").Return(s, nil).Once()

		got, err := store.Get(ctx, "2")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		assert.True(t, store.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SkipsPrimaryWhileDown", func(t *testing.T) {
		s := &Session{CallerID: "3"}
		fallback.On("Set", ctx, s).Return(nil).Once()

		assert.NoError(t, store.Set(ctx, s))
		primary.AssertNotCalled(t, "Set", ctx, s)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		store.isDown.Store(true)
		store.lastCheck = time.Now().Add(-2 * time.Minute)

		s := &Session{CallerID: "4"}
		primary.On("Get", ctx, "4").Return(s, nil).Once()

		got, err := store.Get(ctx, "4")
		assert.NoError(t, err)
		assert.Equal(t, s, got)
		assert.False(t, store.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("ClearHitsBoth", func(t *testing.T) {
		fallback.On("Clear", ctx, "5").Return(nil).Once()
		primary.On("Clear", ctx, "5").Return(nil).Once()

		assert.NoError(t, store.Clear(ctx, "5"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestFailoverStore_ClearWhilePrimaryDown(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	logger := zerolog.New(io.Discard)
	memory := NewMemoryStore(time.Hour, nil)
	store := NewFailoverStore(NewRedisStore(rdb, time.Hour, ""), memory, &logger)

	require.NoError(t, store.Set(ctx, &Session{CallerID: "c1", BusinessID: 1, Step: StepConfirm}))
	require.True(t, mr.Exists("agendei:session:c1"))

	mr.SetError("ERR server unavailable")
	_, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, store.isDown.Load())

	require.NoError(t, store.Clear(ctx, "c1"))
	assert.Contains(t, store.pending, "c1")

	mr.SetError("")
	store.lastCheck = time.Now().Add(-2 * recheckInterval)

	got, err := store.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got, "cleared session must stay cleared after the primary recovers")
	assert.False(t, mr.Exists("agendei:session:c1"))
	assert.Empty(t, store.pending)
	assert.False(t, store.isDown.Load())
}

func TestFailoverStore_ClearTriesPrimaryWhileMarkedDown(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	store := NewFailoverStore(primary, fallback, &logger)
	ctx := context.Background()

	store.isDown.Store(true)
	store.lastCheck = time.Now()

	fallback.On("Clear", ctx, "7").Return(nil).Once()
	primary.On("Clear", ctx, "7").Return(nil).Once()

	assert.NoError(t, store.Clear(ctx, "7"))
	assert.False(t, store.isDown.Load())
	primary.AssertExpectations(t)
	fallback.AssertExpectations(t)
}
