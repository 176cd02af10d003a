package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/store"
)

// ErrUnknownIdentity is returned when the presented identifier is neither a host with a jam
// nor a user.
var ErrUnknownIdentity = domainerrors.Unauthorized("unknown identity")

// IdentityStore is the subset of the store the resolver reads.
type IdentityStore interface {
	GetJamByHost(ctx context.Context, hostID string) (*domain.Jam, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Resolver maps a presented identifier to the identity of a connection.
type Resolver struct {
	store IdentityStore
}

// NewResolver creates a new resolver.
func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve looks id up as a host first, then as a user. A host without a jam does not
// resolve. Store failures are returned as-is.
func (r *Resolver) Resolve(ctx context.Context, id string) (domain.Identity, error) {
	if id == "" {
		return nil, ErrUnknownIdentity
	}

	jam, err := r.store.GetJamByHost(ctx, id)
	switch {
	case err == nil:
		return domain.HostIdentity{ID: id, Jam: jam.ID}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("resolve host: %w", err)
	}

	user, err := r.store.GetUser(ctx, id)
	switch {
	case err == nil:
		return domain.UserIdentity{ID: user.ID, Jam: user.JamID}, nil
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUnknownIdentity
	default:
		return nil, fmt.Errorf("resolve user: %w", err)
	}
}
