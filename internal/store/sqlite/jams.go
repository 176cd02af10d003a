package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store"
)

const jamColumns = `id, host_id, name, max_song_count, created_at`

func scanJam(row interface{ Scan(...any) error }) (*domain.Jam, error) {
	var (
		j         domain.Jam
		createdAt string
	)
	if err := row.Scan(&j.ID, &j.HostID, &j.Name, &j.MaxSongCount, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &j, nil
}

// CreateJam inserts a new jam.
// Returns store.ErrAlreadyExists if the join code is taken or the host already has a jam,
// and store.ErrNotFound if the host does not exist.
func (s *Store) CreateJam(ctx context.Context, j *domain.Jam) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jams (`+jamColumns+`) VALUES (?, ?, ?, ?, ?)`,
		j.ID, j.HostID, j.Name, j.MaxSongCount, formatTime(j.CreatedAt))
	if err != nil {
		return mapWriteError(err, "jam")
	}
	return nil
}

// GetJam retrieves a jam by its join code.
func (s *Store) GetJam(ctx context.Context, id string) (*domain.Jam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jamColumns+` FROM jams WHERE id = ?`, id)

	j, err := scanJam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("jam not found")
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// GetJamByHost retrieves the jam hosted by hostID.
func (s *Store) GetJamByHost(ctx context.Context, hostID string) (*domain.Jam, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jamColumns+` FROM jams WHERE host_id = ?`, hostID)

	j, err := scanJam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("jam not found")
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

// DeleteJam removes a jam. Users, songs and votes cascade.
func (s *Store) DeleteJam(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM jams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("jam not found")
	}
	s.notify(id, store.PayloadUserRemoved)
	return nil
}
