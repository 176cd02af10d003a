package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHub_NotifyDeliversToChannelListeners(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()

	songs := hub.Listen("ABC123_songs")
	defer songs.Close()
	other := hub.Listen("XYZ789_songs")
	defer other.Close()

	hub.Notify("ABC123_songs", "song_added")

	n, err := songs.Recv(ctx)
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ABC123_songs", n.Channel)
	assert.Equal(t, "song_added", n.Payload)

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = other.Recv(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHub_MultipleListenersSameChannel(t *testing.T) {
	hub := newTestHub()
	a := hub.Listen("jam_songs")
	b := hub.Listen("jam_songs")
	defer a.Close()
	defer b.Close()

	assert.Equal(t, 2, hub.ListenerCount("jam_songs"))
	hub.Notify("jam_songs", "vote_added")

	for _, l := range []*Listener{a, b} {
		n, err := l.Recv(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "vote_added", n.Payload)
	}
}

func TestListener_OverflowReportsLost(t *testing.T) {
	hub := newTestHub()
	l := hub.Listen("jam_songs")
	defer l.Close()

	for i := 0; i < defaultBuffer+5; i++ {
		hub.Notify("jam_songs", "vote_added")
	}

	n, err := l.Recv(context.Background())
	require.NoError(t, err)
	assert.Nil(t, n, "first receive after overflow signals lost notifications")

	n, err = l.Recv(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, n, "buffered notifications are still delivered")
}

func TestListener_Close(t *testing.T) {
	hub := newTestHub()
	l := hub.Listen("jam_songs")

	var wg sync.WaitGroup
	wg.Add(1)
	var recvErr error
	go func() {
		defer wg.Done()
		_, recvErr = l.Recv(context.Background())
	}()

	l.Close()
	l.Close()
	wg.Wait()

	assert.ErrorIs(t, recvErr, ErrListenerClosed)
	assert.Equal(t, 0, hub.ListenerCount("jam_songs"))

	// Notifying a channel without listeners is a no-op.
	hub.Notify("jam_songs", "song_removed")
}

func TestListener_Drain(t *testing.T) {
	hub := newTestHub()
	l := hub.Listen("ABC123_songs")
	defer l.Close()

	for i := 0; i < 3; i++ {
		hub.Notify("ABC123_songs", "vote_added")
	}

	n, err := l.Recv(context.Background())
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.Equal(t, 2, l.Drain())
	assert.Zero(t, l.Drain())
}
