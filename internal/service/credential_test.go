package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/spotify"
)

func TestCredential_ValidTokenIsReused(t *testing.T) {
	s := newTestStore(t)
	seedJam(t, s, "ABC123", 3)
	refresher := &fakeRefresher{}
	creds := NewCredentialService(s, refresher, time.Minute, testLogger())

	token, err := creds.AccessToken(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "access-ABC123", token)
	assert.Zero(t, refresher.Calls())
}

func TestCredential_RefreshesInsideSkew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3)
	require.NoError(t, s.UpdateCredential(ctx, "host-ABC123", &domain.Credential{
		AccessToken:  "stale",
		RefreshToken: "refresh-ABC123",
		ExpiresAt:    time.Now().Add(30 * time.Second),
	}))

	refresher := &fakeRefresher{}
	creds := NewCredentialService(s, refresher, time.Minute, testLogger())

	token, err := creds.AccessToken(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", token)

	h, err := s.GetHost(ctx, "host-ABC123")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", h.Credential.AccessToken, "refreshed token is persisted")

	token, err = creds.AccessToken(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "fresh-1", token)
	assert.Equal(t, 1, refresher.Calls())
}

func TestCredential_ConcurrentRefreshSharesCall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3)
	require.NoError(t, s.UpdateCredential(ctx, "host-ABC123", &domain.Credential{
		AccessToken:  "expired",
		RefreshToken: "refresh-ABC123",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	refresher := &fakeRefresher{delay: 100 * time.Millisecond}
	creds := NewCredentialService(s, refresher, time.Minute, testLogger())

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := creds.AccessToken(ctx, "ABC123")
			assert.NoError(t, err)
			tokens[i] = tok
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, refresher.Calls())
	for _, tok := range tokens {
		assert.Equal(t, "fresh-1", tok)
	}
}

func TestCredential_NotConnected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateHost(ctx, &domain.Host{ID: "host-1", CreatedAt: time.Now()}))
	require.NoError(t, s.CreateJam(ctx, &domain.Jam{ID: "ABC123", HostID: "host-1", Name: "x", MaxSongCount: 3, CreatedAt: time.Now()}))

	creds := NewCredentialService(s, &fakeRefresher{}, 0, testLogger())

	_, err := creds.AccessToken(ctx, "ABC123")
	assert.True(t, errors.Is(err, domainerrors.ErrProvider))
}

func TestCredential_RefreshFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3)
	require.NoError(t, s.UpdateCredential(ctx, "host-ABC123", &domain.Credential{
		AccessToken:  "expired",
		RefreshToken: "revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	refresher := &fakeRefresher{err: &spotify.Error{Op: "refreshToken", Err: spotify.ErrBadRequest}}
	creds := NewCredentialService(s, refresher, time.Minute, testLogger())

	_, err := creds.AccessToken(ctx, "ABC123")
	assert.True(t, errors.Is(err, domainerrors.ErrProvider))
	assert.True(t, errors.Is(err, spotify.ErrBadRequest))
}

func TestCredential_UnknownJam(t *testing.T) {
	creds := NewCredentialService(newTestStore(t), &fakeRefresher{}, time.Minute, testLogger())

	_, err := creds.AccessToken(context.Background(), "NOPE00")
	assert.True(t, errors.Is(err, domainerrors.ErrNotFound))
}

func TestCredential_CancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3)
	require.NoError(t, s.UpdateCredential(ctx, "host-ABC123", &domain.Credential{
		AccessToken:  "expired",
		RefreshToken: "refresh-ABC123",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	refresher := &fakeRefresher{gate: make(chan struct{}), entered: make(chan struct{})}
	creds := NewCredentialService(s, refresher, time.Minute, testLogger())

	firstCtx, cancel := context.WithCancel(ctx)
	firstErr := make(chan error, 1)
	go func() {
		_, err := creds.AccessToken(firstCtx, "ABC123")
		firstErr <- err
	}()
	<-refresher.entered

	second := make(chan string, 1)
	go func() {
		tok, err := creds.AccessToken(ctx, "ABC123")
		assert.NoError(t, err)
		second <- tok
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(refresher.gate)
	select {
	case tok := <-second:
		assert.Equal(t, "fresh-1", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not get a token")
	}
	assert.Equal(t, 1, refresher.Calls())
}

func TestCredential_HostToken(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3, "user-1")
	creds := NewCredentialService(s, &fakeRefresher{}, time.Minute, testLogger())

	cred, err := creds.HostToken(ctx, "host-ABC123")
	require.NoError(t, err)
	assert.Equal(t, "access-ABC123", cred.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cred.ExpiresAt, time.Minute)

	require.NoError(t, s.CreateHost(ctx, &domain.Host{ID: "host-idle", CreatedAt: time.Now()}))
	for _, id := range []string{"user-1", "nobody", "host-idle"} {
		_, err := creds.HostToken(ctx, id)
		assert.True(t, errors.Is(err, domainerrors.ErrUnauthorized), id)
	}
}
