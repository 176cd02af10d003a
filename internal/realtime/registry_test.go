package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/notify"
	"github.com/jamsync/jam-server/internal/store"
)

type fakeSubscriber struct {
	who    domain.Identity
	frames chan []byte
	final  atomic.Pointer[[]byte]
	closed atomic.Bool
}

func newFakeSubscriber(who domain.Identity) *fakeSubscriber {
	return &fakeSubscriber{who: who, frames: make(chan []byte, 32)}
}

func (s *fakeSubscriber) Identity() domain.Identity { return s.who }

func (s *fakeSubscriber) Send(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

func (s *fakeSubscriber) CloseWith(frame []byte) {
	s.final.Store(&frame)
	s.Close()
}

func (s *fakeSubscriber) Close() { s.closed.Store(true) }

func (s *fakeSubscriber) next(t *testing.T) *Message {
	t.Helper()
	select {
	case frame := <-s.frames:
		msg, err := DecodeMessage(frame)
		require.NoError(t, err)
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func (s *fakeSubscriber) none(t *testing.T) {
	t.Helper()
	select {
	case frame := <-s.frames:
		msg, _ := DecodeMessage(frame)
		t.Fatalf("unexpected frame: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeSnapshots serves a mutable ranking and marks songs voted for every user viewer.
type fakeSnapshots struct {
	mu      sync.Mutex
	ranked  []domain.RankedSong
	err     error
	queries atomic.Int32
}

func (f *fakeSnapshots) set(ranked []domain.RankedSong, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranked, f.err = ranked, err
}

func (f *fakeSnapshots) Ranked(context.Context, string) ([]domain.RankedSong, error) {
	f.queries.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ranked, f.err
}

func (f *fakeSnapshots) Shape(_ context.Context, viewer domain.Identity, ranked []domain.RankedSong) ([]domain.SongView, error) {
	views := make([]domain.SongView, len(ranked))
	for i, r := range ranked {
		views[i] = domain.SongView{ID: r.ID, Votes: r.Votes}
		if _, ok := viewer.(domain.UserIdentity); ok {
			voted := true
			views[i].HaveYouVoted = &voted
		}
	}
	return views, nil
}

func ranked(ids ...string) []domain.RankedSong {
	out := make([]domain.RankedSong, len(ids))
	for i, id := range ids {
		out[i].ID = id
	}
	return out
}

func newTestRegistry(t *testing.T) (*Registry, *notify.Hub, *fakeSnapshots) {
	t.Helper()
	hub := notify.NewHub(testLogger())
	snaps := &fakeSnapshots{}
	r := NewRegistry(hub, snaps, nil, testLogger())
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, hub, snaps
}

func TestRegistry_InitialSnapshotAndFanOut(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	ctx := context.Background()
	snaps.set(ranked("s1"), nil)

	host := newFakeSubscriber(testHost)
	user := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(ctx, host))
	require.NoError(t, r.Subscribe(ctx, user))

	msg := host.next(t)
	assert.Equal(t, MessageSongs, msg.Type)
	require.Len(t, msg.Songs, 1)
	assert.Nil(t, msg.Songs[0].HaveYouVoted)

	msg = user.next(t)
	require.Len(t, msg.Songs, 1)
	assert.NotNil(t, msg.Songs[0].HaveYouVoted)

	snaps.set(ranked("s1", "s2"), nil)
	hub.Notify(store.SongsChannel("ABC123"), store.PayloadSongAdded)

	assert.Len(t, host.next(t).Songs, 2)
	assert.Len(t, user.next(t).Songs, 2)
}

func TestRegistry_OtherJamNotNotified(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	snaps.set(ranked(), nil)

	sub := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(context.Background(), sub))
	sub.next(t)

	hub.Notify(store.SongsChannel("XYZ789"), store.PayloadSongAdded)
	sub.none(t)
}

func TestRegistry_EmptyQueueIsEmptyList(t *testing.T) {
	r, _, snaps := newTestRegistry(t)
	snaps.set(nil, nil)

	sub := newFakeSubscriber(testHost)
	require.NoError(t, r.Subscribe(context.Background(), sub))

	msg := sub.next(t)
	assert.Equal(t, MessageSongs, msg.Type)
	assert.Empty(t, msg.Songs)
}

func TestRegistry_QueryFailureIsNonFatal(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	snaps.set(ranked("s1"), nil)

	sub := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(context.Background(), sub))
	sub.next(t)

	snaps.set(nil, errors.New("database is locked"))
	hub.Notify(store.SongsChannel("ABC123"), store.PayloadVoteAdded)

	msg := sub.next(t)
	require.Equal(t, MessageError, msg.Type)
	assert.Equal(t, KindDatabase, msg.Error.Kind)
	assert.False(t, msg.Error.Fatal)

	snaps.set(ranked("s1", "s2"), nil)
	hub.Notify(store.SongsChannel("ABC123"), store.PayloadVoteAdded)
	assert.Len(t, sub.next(t).Songs, 2, "feed keeps running after a failed query")
}

func TestRegistry_LostNotificationsResync(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	snaps.set(ranked("s1"), nil)

	sub := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(context.Background(), sub))
	sub.next(t)

	// Stop the feed from consuming so that the listener buffer overflows.
	snaps.mu.Lock()
	for range 64 {
		hub.Notify(store.SongsChannel("ABC123"), store.PayloadVoteAdded)
	}
	snaps.ranked = ranked("s1", "s2", "s3")
	snaps.mu.Unlock()

	sawError := false
	deadline := time.After(2 * time.Second)
	for {
		var msg *Message
		select {
		case frame := <-sub.frames:
			var err error
			msg, err = DecodeMessage(frame)
			require.NoError(t, err)
		case <-deadline:
			t.Fatal("timed out waiting for resync")
		}

		if msg.Type == MessageError {
			assert.Equal(t, KindDatabase, msg.Error.Kind)
			assert.False(t, msg.Error.Fatal)
			sawError = true
			continue
		}
		if len(msg.Songs) == 3 && sawError {
			break
		}
	}
}

func TestRegistry_FeedRefcount(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	ctx := context.Background()
	snaps.set(ranked(), nil)
	channel := store.SongsChannel("ABC123")

	a := newFakeSubscriber(testHost)
	b := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(ctx, a))
	require.NoError(t, r.Subscribe(ctx, b))

	assert.Equal(t, 1, r.Feeds())
	assert.Equal(t, 1, hub.ListenerCount(channel), "one feed per jam regardless of subscribers")
	assert.Equal(t, 2, r.Subscribers("ABC123"))

	r.Unsubscribe(a)
	assert.Equal(t, 1, r.Feeds())

	r.Unsubscribe(b)
	assert.Zero(t, r.Feeds())
	assert.Zero(t, hub.ListenerCount(channel), "last unsubscribe stops the feed")

	r.Unsubscribe(b)
	assert.Zero(t, r.Feeds())

	c := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(ctx, c))
	assert.Equal(t, 1, hub.ListenerCount(channel), "feed restarts for a new subscriber")
}

func TestRegistry_Shutdown(t *testing.T) {
	r, hub, snaps := newTestRegistry(t)
	snaps.set(ranked(), nil)

	sub := newFakeSubscriber(testUser)
	require.NoError(t, r.Subscribe(context.Background(), sub))

	require.NoError(t, r.Shutdown())
	assert.True(t, sub.closed.Load())
	assert.Zero(t, hub.ListenerCount(store.SongsChannel("ABC123")))

	err := r.Subscribe(context.Background(), newFakeSubscriber(testUser))
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_EvictClosesRemovedUser(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()

	host := newFakeSubscriber(testHost)
	kicked := newFakeSubscriber(domain.UserIdentity{ID: "user-2", Jam: "ABC123"})
	kickedTab := newFakeSubscriber(domain.UserIdentity{ID: "user-2", Jam: "ABC123"})
	other := newFakeSubscriber(testUser)
	for _, sub := range []*fakeSubscriber{host, kicked, kickedTab, other} {
		require.NoError(t, r.Subscribe(ctx, sub))
		sub.next(t)
	}

	assert.Equal(t, 2, r.Evict("ABC123", "user-2"))

	for _, sub := range []*fakeSubscriber{kicked, kickedTab} {
		assert.True(t, sub.closed.Load())
		final := sub.final.Load()
		require.NotNil(t, final)
		msg, err := DecodeMessage(*final)
		require.NoError(t, err)
		require.Equal(t, MessageError, msg.Type)
		assert.Equal(t, KindForbidden, msg.Error.Kind)
		assert.True(t, msg.Error.Fatal)
	}
	assert.False(t, host.closed.Load())
	assert.False(t, other.closed.Load())

	assert.Zero(t, r.Evict("ABC123", "user-9"))
	assert.Zero(t, r.Evict("ZZZ999", "user-2"))
}
