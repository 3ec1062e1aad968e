package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesNamedAndWildcard(t *testing.T) {
	hub := NewHub()

	bobCh, bobCancel := hub.Subscribe("bob")
	defer bobCancel()
	feedCh, feedCancel := hub.Subscribe(Feed)
	defer feedCancel()
	carolCh, carolCancel := hub.Subscribe("carol")
	defer carolCancel()

	hub.Broadcast([]string{"bob"}, []byte("payload"))

	require.Len(t, bobCh, 1)
	assert.Equal(t, "payload", string(<-bobCh))
	require.Len(t, feedCh, 1)
	assert.Empty(t, carolCh)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("bob")
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Broadcasting to a name with no subscribers is a no-op.
	hub.Broadcast([]string{"bob"}, []byte("payload"))
}

func TestSlowSubscriberSkipped(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe("bob")
	defer cancel()

	for i := 0; i < 20; i++ {
		hub.Broadcast([]string{"bob"}, []byte("payload"))
	}
	// Channel capacity is 8; the rest were dropped, not blocked on.
	assert.Len(t, ch, 8)
}
