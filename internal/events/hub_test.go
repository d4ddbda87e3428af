package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for _, m := range []string{"a", "b", "c", "d"} {
		h.Publish(Activity{Kind: "notify", Method: m})
	}

	snap := h.SnapshotSince(0)
	require.Len(t, snap, 3)
	assert.Equal(t, "b", snap[0].Method)
	assert.Equal(t, "d", snap[2].Method)
	assert.Equal(t, int64(4), snap[2].ID)
	assert.False(t, snap[0].At.IsZero())

	since := h.SnapshotSince(3)
	require.Len(t, since, 1)
	assert.Equal(t, "d", since[0].Method)
}

func TestSubscribe(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe()

	h.Publish(Activity{Kind: "request", Method: "runCommand", Outcome: OutcomeHandled})

	select {
	case a := <-ch:
		assert.Equal(t, "runCommand", a.Method)
	case <-time.After(time.Second):
		t.Fatal("no activity delivered")
	}

	cancel()
	_, open := <-ch
	assert.False(t, open)
	cancel()
}

func TestNilHubDiscards(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(Activity{Method: "x"}) })
}
