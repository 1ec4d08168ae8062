package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	b := New()
	ch := b.Subscribe(EventPacket)

	b.Publish(EventPacket, "payload-1")

	select {
	case got := <-ch:
		assert.Equal(t, "payload-1", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestReadyLateJoinReplay(t *testing.T) {
	b := New()
	b.Publish(EventReady, "catalogs-loaded")

	ch := b.Subscribe(EventReady)
	select {
	case got := <-ch:
		assert.Equal(t, "catalogs-loaded", got)
	case <-time.After(time.Second):
		t.Fatal("late subscriber did not receive replayed ready event")
	}
}

func TestNonReadyEventsDoNotReplay(t *testing.T) {
	b := New()
	b.Publish(EventPacket, "missed-it")

	ch := b.Subscribe(EventPacket)
	select {
	case got := <-ch:
		t.Fatalf("unexpected replay of non-ready event: %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFullSubscriberBufferDropsWithoutBlocking(t *testing.T) {
	b := New()
	ch := b.Subscribe(EventDiagnostics)

	for i := 0; i < defaultSubscriberBuffer+10; i++ {
		b.Publish(EventDiagnostics, i)
	}

	require.Len(t, ch, defaultSubscriberBuffer)
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.SubscriberCount(EventMessage))
	b.Subscribe(EventMessage)
	b.Subscribe(EventMessage)
	assert.Equal(t, 2, b.SubscriberCount(EventMessage))
}
