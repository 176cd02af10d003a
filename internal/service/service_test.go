package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// seedJam creates host "host-<jamID>" with a valid credential, the jam and its users.
func seedJam(t *testing.T, s *sqlite.Store, jamID string, maxSongs int, users ...string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateHost(ctx, &domain.Host{
		ID:        "host-" + jamID,
		CreatedAt: now,
		Credential: &domain.Credential{
			AccessToken:  "access-" + jamID,
			RefreshToken: "refresh-" + jamID,
			ExpiresAt:    now.Add(time.Hour),
		},
	}))
	require.NoError(t, s.CreateJam(ctx, &domain.Jam{
		ID: jamID, HostID: "host-" + jamID, Name: "Jam", MaxSongCount: maxSongs, CreatedAt: now,
	}))
	for _, u := range users {
		require.NoError(t, s.CreateUser(ctx, &domain.User{ID: u, JamID: jamID, Name: u, CreatedAt: now}))
	}
}

type staticTokens struct{ err error }

func (f staticTokens) AccessToken(_ context.Context, jamID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "access-" + jamID, nil
}

type fakeTracks struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTracks) GetTrack(_ context.Context, _ string, trackID string) (*domain.Track, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Track{
		ID:       trackID,
		Name:     "Track " + trackID,
		Album:    "Album",
		Artists:  []string{"Artist"},
		Duration: 3 * time.Minute,
	}, nil
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	delay time.Duration
	err   error

	// When gate is set the refresh signals entered and blocks until gate is closed or ctx ends.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	time.Sleep(f.delay)
	if f.gate != nil {
		close(f.entered)
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Credential{
		AccessToken:  fmt.Sprintf("fresh-%d", n),
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
