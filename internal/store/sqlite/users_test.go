package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store"
)

func TestUser_CreateAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3, "user-1", "user-2")

	u, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", u.JamID)

	users, err := s.ListUsers(ctx, "ABC123")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUser_CreateUnknownJam(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateUser(context.Background(), &domain.User{
		ID: "user-1", JamID: "NOPE00", Name: "x", CreatedAt: time.Now(),
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestUser_DeleteCascadesSongsAndVotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3, "user-1", "user-2")
	require.NoError(t, s.InsertSong(ctx, "ABC123", testSong("song-1", "user-1")))
	require.NoError(t, s.InsertSong(ctx, "ABC123", testSong("song-2", "user-2")))
	require.NoError(t, s.InsertVote(ctx, "ABC123", "vote-1", "user-1", "song-2", time.Now()))

	n := &recordingNotifier{}
	s.SetNotifier(n)

	require.NoError(t, s.DeleteUser(ctx, "ABC123", "user-1"))

	ranked, err := s.RankSongs(ctx, "ABC123")
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "song-2", ranked[0].ID)
	assert.Equal(t, 0, ranked[0].Votes, "vote by removed user cascades")

	assert.Equal(t, []string{"ABC123_songs:" + store.PayloadUserRemoved}, n.Events())
}

func TestUser_DeleteScopedToJam(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3, "user-1")
	seedJam(t, s, "XYZ789", 3)

	err := s.DeleteUser(ctx, "XYZ789", "user-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, err = s.GetUser(ctx, "user-1")
	assert.NoError(t, err)
}

func TestUser_CountSongs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3, "user-1")

	n, err := s.CountSongsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.InsertSong(ctx, "ABC123", testSong("song-1", "user-1")))
	n, err = s.CountSongsByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
