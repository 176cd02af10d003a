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

func TestHost_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateHost(ctx, &domain.Host{ID: "host-1", CreatedAt: time.Now()}))

	h, err := s.GetHost(ctx, "host-1")
	require.NoError(t, err)
	assert.Equal(t, "host-1", h.ID)
	assert.Nil(t, h.Credential, "no token material stored yet")

	err = s.CreateHost(ctx, &domain.Host{ID: "host-1", CreatedAt: time.Now()})
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))
}

func TestHost_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetHost(context.Background(), "nope")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestHost_UpdateCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJam(t, s, "ABC123", 3)

	expires := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, s.UpdateCredential(ctx, "host-ABC123", &domain.Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    expires,
		Scope:        "user-modify-playback-state",
	}))

	h, err := s.GetHostByJam(ctx, "ABC123")
	require.NoError(t, err)
	require.NotNil(t, h.Credential)
	assert.Equal(t, "access", h.Credential.AccessToken)
	assert.Equal(t, "refresh", h.Credential.RefreshToken)
	assert.True(t, expires.Equal(h.Credential.ExpiresAt))
	assert.Equal(t, "user-modify-playback-state", h.Credential.Scope)

	err = s.UpdateCredential(ctx, "missing", &domain.Credential{AccessToken: "x"})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestHost_GetByJamNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetHostByJam(context.Background(), "ZZZ999")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
