package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store"
)

const userColumns = `id, jam_id, name, created_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.JamID, &u.Name, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user into a jam.
// Returns store.ErrNotFound if the jam does not exist.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?)`,
		u.ID, u.JamID, u.Name, formatTime(u.CreatedAt))
	if err != nil {
		return mapWriteError(err, "user")
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("user not found")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns the users of a jam, oldest first.
func (s *Store) ListUsers(ctx context.Context, jamID string) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE jam_id = ? ORDER BY created_at, id`, jamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user from a jam. Their songs and votes cascade.
// Returns store.ErrNotFound if the user is not a member of jamID.
func (s *Store) DeleteUser(ctx context.Context, jamID, userID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = ? AND jam_id = ?`, userID, jamID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("user not found in jam")
	}

	s.notify(jamID, store.PayloadUserRemoved)
	return nil
}

// CountSongsByUser returns how many songs a user currently has queued.
func (s *Store) CountSongsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM songs WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
