package service

import (
	"errors"
	"fmt"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/spotify"
	"github.com/jamsync/jam-server/internal/store"
)

// fromStore converts store sentinels to domain errors. Anything else is a storage failure
// and is wrapped with op for context.
func fromStore(err error, op string) error {
	var se *store.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(se.Message).WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return domainerrors.AlreadyExists(se.Message).WithCause(err)
	case errors.Is(err, store.ErrLimitReached):
		return domainerrors.ErrQuotaExceeded.WithCause(err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// fromProvider converts Spotify client failures to provider domain errors.
func fromProvider(err error) error {
	switch {
	case errors.Is(err, spotify.ErrInvalidTrackID):
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "invalid track id")
	case errors.Is(err, spotify.ErrNotFound):
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "track not found")
	case errors.Is(err, spotify.ErrUnauthorized):
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "spotify rejected the host credential")
	case errors.Is(err, spotify.ErrRateLimited):
		return domainerrors.Wrap(err, domainerrors.CodeProvider, "spotify is rate limiting requests")
	default:
		return domainerrors.ErrProvider.WithCause(err)
	}
}
