package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublish_SubscriptionOrder(t *testing.T) {
	b := New(nil)

	var order []int
	b.Subscribe(func(Event) { order = append(order, 1) })
	b.Subscribe(func(Event) { order = append(order, 2) })
	b.Subscribe(func(Event) { order = append(order, 3) })

	b.Publish(Event{Kind: StateChanged})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestPublish_PanickingSubscriberIsIsolated(t *testing.T) {
	b := New(nil)

	var delivered []Kind
	b.Subscribe(func(Event) { panic("bad subscriber") })
	b.Subscribe(func(e Event) { delivered = append(delivered, e.Kind) })

	assert.NotPanics(t, func() {
		b.Publish(Event{Kind: HistoryChanged})
	})
	assert.Equal(t, []Kind{HistoryChanged}, delivered)
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)

	var first, second int
	cancel := b.Subscribe(func(Event) { first++ })
	b.Subscribe(func(Event) { second++ })

	b.Publish(Event{Kind: StateChanged})
	cancel()
	b.Publish(Event{Kind: StateChanged})

	assert.Equal(t, 1, first, "removed after the first publish")
	assert.Equal(t, 2, second, "remaining subscribers keep receiving")

	// A second cancel must not remove anyone else.
	cancel()
	b.Publish(Event{Kind: StateChanged})
	assert.Equal(t, 3, second)
}

func TestPublish_NoSubscribers(t *testing.T) {
	b := New(nil)
	assert.NotPanics(t, func() { b.Publish(Event{Kind: OptionsChanged}) })
}

func TestPublish_SetsTimestamp(t *testing.T) {
	b := New(nil)

	var got Event
	b.Subscribe(func(e Event) { got = e })
	b.Publish(Event{Kind: StateChanged})
	assert.False(t, got.At.IsZero())
}
