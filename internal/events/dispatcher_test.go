package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDispatcher_DeliversToSubscribersInOrder(t *testing.T) {
	d := NewInMemoryDispatcher()
	var seen []string

	d.Subscribe(EventQuerySubmitted, func(_ context.Context, e Event) error {
		seen = append(seen, "first:"+e.QueryID)
		return nil
	})
	d.Subscribe(EventQuerySubmitted, func(_ context.Context, e Event) error {
		seen = append(seen, "second:"+e.QueryID)
		return nil
	})
	d.Subscribe(EventQueryClosed, func(context.Context, Event) error {
		seen = append(seen, "closed")
		return nil
	})

	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventQuerySubmitted, QueryID: "Q5201"}))
	assert.Equal(t, []string{"first:Q5201", "second:Q5201"}, seen)
}

func TestDispatcher_ContinuesAfterHandlerError(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("webhook down")
	called := false

	d.Subscribe(EventQueryClosed, func(context.Context, Event) error { return boom })
	d.Subscribe(EventQueryClosed, func(context.Context, Event) error {
		called = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventQueryClosed})
	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestDispatcher_NoSubscribers(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventQueryClosed}))
}
