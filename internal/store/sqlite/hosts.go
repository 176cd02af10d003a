package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store"
)

const hostColumns = `id, access_token, refresh_token, expires_at, scope, created_at`

func scanHost(row interface{ Scan(...any) error }) (*domain.Host, error) {
	var (
		h            domain.Host
		accessToken  sql.NullString
		refreshToken sql.NullString
		expiresAt    sql.NullString
		scope        sql.NullString
		createdAt    string
	)
	if err := row.Scan(&h.ID, &accessToken, &refreshToken, &expiresAt, &scope, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if h.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	if accessToken.Valid || refreshToken.Valid {
		cred := &domain.Credential{
			AccessToken:  accessToken.String,
			RefreshToken: refreshToken.String,
			Scope:        scope.String,
		}
		if expiresAt.Valid && expiresAt.String != "" {
			if cred.ExpiresAt, err = parseTime(expiresAt.String); err != nil {
				return nil, fmt.Errorf("parse expires_at: %w", err)
			}
		}
		h.Credential = cred
	}
	return &h, nil
}

// CreateHost inserts a new host. The credential, if any, is stored with it.
func (s *Store) CreateHost(ctx context.Context, h *domain.Host) error {
	var access, refresh, expires, scope sql.NullString
	if c := h.Credential; c != nil {
		access, refresh, scope = nullString(c.AccessToken), nullString(c.RefreshToken), nullString(c.Scope)
		if !c.ExpiresAt.IsZero() {
			expires = nullString(formatTime(c.ExpiresAt))
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hosts (`+hostColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID, access, refresh, expires, scope, formatTime(h.CreatedAt))
	if err != nil {
		return mapWriteError(err, "host")
	}
	return nil
}

// GetHost retrieves a host by ID.
// Returns store.ErrNotFound if the host does not exist.
func (s *Store) GetHost(ctx context.Context, id string) (*domain.Host, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = ?`, id)

	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("host not found")
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// GetHostByJam retrieves the host that owns a jam.
func (s *Store) GetHostByJam(ctx context.Context, jamID string) (*domain.Host, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT h.id, h.access_token, h.refresh_token, h.expires_at, h.scope, h.created_at
		FROM hosts h
		JOIN jams j ON j.host_id = h.id
		WHERE j.id = ?`, jamID)

	h, err := scanHost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("jam not found")
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// UpdateCredential replaces the token material stored on a host.
func (s *Store) UpdateCredential(ctx context.Context, hostID string, c *domain.Credential) error {
	var expires sql.NullString
	if !c.ExpiresAt.IsZero() {
		expires = nullString(formatTime(c.ExpiresAt))
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE hosts SET access_token = ?, refresh_token = ?, expires_at = ?, scope = ?
		WHERE id = ?`,
		nullString(c.AccessToken), nullString(c.RefreshToken), expires, nullString(c.Scope), hostID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("host not found")
	}
	return nil
}
