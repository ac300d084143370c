package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFillsIdentityAndRunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()

	var seen []Event
	boom := errors.New("boom")
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, e)
		return boom
	})
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		seen = append(seen, e)
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(_ context.Context, e Event) error {
		t.Fatal("unexpected handler")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated, TicketID: "t-1"})

	assert.ErrorIs(t, err, boom)
	require.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0].ID)
	assert.False(t, seen[0].Timestamp.IsZero())
	assert.Equal(t, seen[0].ID, seen[1].ID)
}
