package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestHub_PublishReachesTopicSubscribers(t *testing.T) {
	h := NewHub()
	a, cleanupA := h.Subscribe("agent")
	defer cleanupA()
	b, cleanupB := h.Subscribe("other")
	defer cleanupB()

	h.Publish(Event{Topic: "agent", Event: "tick", Data: 1.25})

	ev := receive(t, a)
	assert.Equal(t, "tick", ev.Event)
	assert.Equal(t, 1.25, ev.Data)

	select {
	case <-b:
		t.Fatal("other topic must not receive the event")
	default:
	}
}

func TestHub_ReplaysRetainedEvents(t *testing.T) {
	h := NewHub()
	h.Publish(Event{Topic: "agent", Event: "state", Data: "first"})
	h.Publish(Event{Topic: "agent", Event: "state", Data: "second"})

	ch, cleanup := h.Subscribe("agent")
	defer cleanup()

	ev := receive(t, ch)
	assert.Equal(t, "second", ev.Data)

	h.Forget("agent")
	ch2, cleanup2 := h.Subscribe("agent")
	defer cleanup2()
	select {
	case <-ch2:
		t.Fatal("forgotten topic must not replay")
	default:
	}
}

func TestHub_SubscribeSkipsNamedRetainedEvents(t *testing.T) {
	h := NewHub()
	h.Publish(Event{Topic: "agent", Event: "state", Data: "old"})
	h.Publish(Event{Topic: "agent", Event: "notice", Data: "Checked in"})
	h.Publish(Event{Topic: "agent", Event: "signed_out", Data: "bye"})

	ch, cleanup := h.Subscribe("agent", "state", "notice")
	defer cleanup()

	ev := receive(t, ch)
	assert.Equal(t, "signed_out", ev.Event)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected replay of %q", ev.Event)
	default:
	}
}

func TestHub_CleanupIsIdempotent(t *testing.T) {
	h := NewHub()
	ch, cleanup := h.Subscribe("agent")
	assert.Equal(t, 1, h.SubscriberCount("agent"))

	cleanup()
	cleanup()
	assert.Equal(t, 0, h.SubscriberCount("agent"))

	_, ok := <-ch
	assert.False(t, ok)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, cleanup := h.Subscribe("agent")
	defer cleanup()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Event{Topic: "agent", Event: "tick", Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}
