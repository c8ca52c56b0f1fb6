package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubDeliversToSubscriber(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	cl := &client{send: make(chan Event, 16)}
	h.register <- cl

	h.Publish(Event{Type: "settlement:win"})

	select {
	case ev := <-cl.send:
		require.Equal(t, "settlement:win", ev.Type)
		require.NotZero(t, ev.Timestamp)
	case <-time.After(time.Second):
		t.Fatal("event never reached the subscriber")
	}
}

func TestDropReturnsAfterShutdown(t *testing.T) {
	h := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	cl := &client{send: make(chan Event, 16)}
	h.register <- cl

	cancel()

	// Both the reader and writer goroutines hand the client back through
	// drop; once Run has exited this must not block.
	released := make(chan struct{})
	go func() {
		h.drop(cl)
		h.drop(cl)
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("drop blocked after the hub shut down")
	}

	// Run closes the send channel of every client it still tracked.
	select {
	case _, open := <-cl.send:
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
