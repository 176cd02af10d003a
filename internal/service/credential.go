package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/store"
	"github.com/jamsync/jam-server/internal/store/sqlite"
)

// DefaultRefreshSkew is how long before expiry an access token is refreshed.
const DefaultRefreshSkew = 60 * time.Second

const refreshTimeout = 15 * time.Second

// TokenRefresher exchanges a refresh token for fresh credential material.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*domain.Credential, error)
}

// CredentialService hands out a valid Spotify access token for a jam's host, refreshing
// it shortly before expiry. Concurrent refreshes for the same jam share one provider call.
type CredentialService struct {
	store     *sqlite.Store
	refresher TokenRefresher
	skew      time.Duration
	logger    *slog.Logger
	group     singleflight.Group
	now       func() time.Time
}

// NewCredentialService creates a new credential service. A non-positive skew uses
// DefaultRefreshSkew.
func NewCredentialService(store *sqlite.Store, refresher TokenRefresher, skew time.Duration, logger *slog.Logger) *CredentialService {
	if skew <= 0 {
		skew = DefaultRefreshSkew
	}
	return &CredentialService{
		store:     store,
		refresher: refresher,
		skew:      skew,
		logger:    logger,
		now:       time.Now,
	}
}

// AccessToken returns an access token for the host of jamID.
func (s *CredentialService) AccessToken(ctx context.Context, jamID string) (string, error) {
	cred, err := s.current(ctx, jamID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// HostToken returns the current credential for the player of hostID's jam. An id that is
// not a host with an open jam is unauthorized.
func (s *CredentialService) HostToken(ctx context.Context, hostID string) (*domain.Credential, error) {
	jam, err := s.store.GetJamByHost(ctx, hostID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.Unauthorized("unknown host")
	}
	if err != nil {
		return nil, fromStore(err, "get jam")
	}
	return s.current(ctx, jam.ID)
}

func (s *CredentialService) current(ctx context.Context, jamID string) (*domain.Credential, error) {
	host, err := s.store.GetHostByJam(ctx, jamID)
	if err != nil {
		return nil, fromStore(err, "get host")
	}

	cred := host.Credential
	if cred == nil || (cred.AccessToken == "" && cred.RefreshToken == "") {
		return nil, domainerrors.Provider("host has not connected a Spotify account")
	}
	if cred.AccessToken != "" && !cred.ExpiresWithin(s.now(), s.skew) {
		return cred, nil
	}
	if cred.RefreshToken == "" {
		return nil, domainerrors.Provider("host credential expired and cannot be refreshed")
	}

	// The refresh is shared by every waiter, so it must not end with the first caller's ctx.
	ch := s.group.DoChan(jamID, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return s.refresh(rctx, host.ID, cred.RefreshToken)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug("shared credential refresh", logger.Jam(jamID))
		}
		return res.Val.(*domain.Credential), nil
	}
}

func (s *CredentialService) refresh(ctx context.Context, hostID, refreshToken string) (*domain.Credential, error) {
	fresh, err := s.refresher.RefreshToken(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("credential refresh failed",
			slog.String("host_id", hostID),
			slog.String("error", err.Error()),
		)
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return nil, err
		}
		return nil, fromProvider(err)
	}

	if err := s.store.UpdateCredential(ctx, hostID, fresh); err != nil {
		return nil, fromStore(err, "store refreshed credential")
	}

	s.logger.Info("credential refreshed",
		slog.String("host_id", hostID),
		slog.Time("expires_at", fresh.ExpiresAt),
	)
	return fresh, nil
}
