package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_EmitReachesAllSubscribers(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe()
	c := b.Subscribe()
	defer b.Unsubscribe(a)
	defer b.Unsubscribe(c)

	b.Emit("incident_created", map[string]int64{"id": 3})

	for _, ch := range []chan Event{a, c} {
		ev := <-ch
		assert.Equal(t, "incident_created", ev.Name)
		assert.JSONEq(t, `{"id":3}`, string(ev.Data))
	}
}

func TestBroker_NilPayloadEncodesEmptyObject(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Emit("history_deleted", nil)

	ev := <-ch
	assert.Equal(t, "{}", string(ev.Data))
}

func TestBroker_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroker()
	slow := b.Subscribe() // never drained
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	// Overflow the slow subscriber's buffer; Emit must not block.
	for i := 0; i < subscriberBuffer+5; i++ {
		b.Emit("incident_updated", map[string]int{"id": i})
		<-fast
	}

	assert.Len(t, slow, subscriberBuffer, "excess events are dropped, not queued")
}

func TestBroker_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	require.Equal(t, 1, b.Listeners())

	b.Unsubscribe(ch)
	assert.Equal(t, 0, b.Listeners())

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is a no-op.
	b.Unsubscribe(ch)
}
