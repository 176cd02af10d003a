package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsync/jam-server/internal/domain"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(channel, payload string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, channel+":"+payload)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedJam creates a host, its jam and the named users.
func seedJam(t *testing.T, s *Store, jamID string, maxSongs int, users ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateHost(ctx, &domain.Host{ID: "host-" + jamID, CreatedAt: now}))
	require.NoError(t, s.CreateJam(ctx, &domain.Jam{
		ID: jamID, HostID: "host-" + jamID, Name: "Jam " + jamID, MaxSongCount: maxSongs, CreatedAt: now,
	}))
	for _, u := range users {
		require.NoError(t, s.CreateUser(ctx, &domain.User{ID: u, JamID: jamID, Name: u, CreatedAt: now}))
	}
}

func testSong(id, userID string) *domain.Song {
	return &domain.Song{
		Track: domain.Track{
			ID:       id,
			Name:     "Track " + id,
			Album:    "Album",
			Artists:  []string{"Artist A", "Artist B"},
			Duration: 215 * time.Second,
			ImageURL: "https://img.test/" + id,
		},
		UserID:    userID,
		CreatedAt: time.Now(),
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	// Every pooled connection must enforce foreign keys.
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		conn, err := s.db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var fk int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		assert.Equal(t, 1, fk)
	}

	for _, table := range []string{"hosts", "jams", "users", "songs", "votes"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jam.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateHost(context.Background(), &domain.Host{ID: "host-1", CreatedAt: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetHost(context.Background(), "host-1")
	assert.NoError(t, err)
}
