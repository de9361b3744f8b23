package events

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus(t *testing.T) {
	logger := zerolog.New(io.Discard)
	bus := NewEventBus(&logger)

	var got []Event
	bus.Subscribe(BookingCreated, func(e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(BookingCreated, func(Event) error { return errors.New("ignored") })

	require.NoError(t, bus.PublishJSON(BookingCreated, 7, map[string]string{"reference": "abc"}))
	bus.Publish(Event{Type: BookingDeleted})

	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].BusinessID)
	assert.False(t, got[0].CreatedAt.IsZero())

	var payload map[string]string
	require.NoError(t, got[0].Decode(&payload))
	assert.Equal(t, "abc", payload["reference"])

	assert.Error(t, bus.PublishJSON(BookingCreated, 7, make(chan int)))
}
