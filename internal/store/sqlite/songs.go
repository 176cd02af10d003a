package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/store"
)

const songColumns = `s.id, s.user_id, s.name, s.album, s.duration_ms, s.image_url, s.artists, s.created_at`

func scanSong(row interface{ Scan(...any) error }, extra ...any) (*domain.Song, error) {
	var (
		song       domain.Song
		durationMS int64
		artists    string
		createdAt  string
	)
	dest := []any{&song.ID, &song.UserID, &song.Name, &song.Album, &durationMS, &song.ImageURL, &artists, &createdAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	song.Duration = time.Duration(durationMS) * time.Millisecond
	if err := json.Unmarshal([]byte(artists), &song.Artists); err != nil {
		return nil, fmt.Errorf("decode artists: %w", err)
	}

	var err error
	if song.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &song, nil
}

// InsertSong queues a song for its owner in jamID, provided the owner is a member of the
// jam and still has fewer songs than the jam's max_song_count. The count and the insert
// run as one statement, so concurrent adds by the same user cannot overshoot the quota.
//
// Returns store.ErrLimitReached when the quota is already met, store.ErrAlreadyExists if
// the track is already queued, and store.ErrNotFound if the user is not in the jam.
func (s *Store) InsertSong(ctx context.Context, jamID string, song *domain.Song) error {
	artists, err := json.Marshal(nonNilStrings(song.Artists))
	if err != nil {
		return fmt.Errorf("encode artists: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, user_id, name, album, duration_ms, image_url, artists, created_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM songs WHERE user_id = ?) < (
			SELECT j.max_song_count FROM jams j
			JOIN users u ON u.jam_id = j.id
			WHERE u.id = ? AND j.id = ?
		)`,
		song.ID, song.UserID, song.Name, song.Album, song.Duration.Milliseconds(), song.ImageURL,
		string(artists), formatTime(song.CreatedAt),
		song.UserID, song.UserID, jamID)
	if err != nil {
		return mapWriteError(err, "song")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the quota is met or the user is not in this jam.
		var member int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users WHERE id = ? AND jam_id = ?`, song.UserID, jamID).Scan(&member)
		if err != nil {
			return err
		}
		if member == 0 {
			return store.ErrNotFound.WithMessage("user not found in jam")
		}
		return store.ErrLimitReached.WithMessage("user already has the max amount of songs")
	}

	s.notify(jamID, store.PayloadSongAdded)
	return nil
}

// GetSongInJam retrieves a queued song, scoped to jamID.
// Returns store.ErrNotFound if the song does not exist or belongs to another jam.
func (s *Store) GetSongInJam(ctx context.Context, jamID, songID string) (*domain.Song, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+songColumns+`
		FROM songs s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = ? AND u.jam_id = ?`, songID, jamID)

	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound.WithMessage("song not found in jam")
	}
	if err != nil {
		return nil, err
	}
	return song, nil
}

// DeleteSong removes a song from jamID. Votes on it cascade.
func (s *Store) DeleteSong(ctx context.Context, jamID, songID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM songs
		WHERE id = ? AND user_id IN (SELECT id FROM users WHERE jam_id = ?)`, songID, jamID)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("song not found in jam")
	}

	s.notify(jamID, store.PayloadSongRemoved)
	return nil
}

// RankSongs returns every song of a jam with its vote count, ordered by votes descending
// and then by song id descending. The order is total, so repeated calls over the same state
// yield the same sequence.
func (s *Store) RankSongs(ctx context.Context, jamID string) ([]domain.RankedSong, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+`, COUNT(v.id) AS votes
		FROM songs s
		JOIN users u ON u.id = s.user_id
		LEFT JOIN votes v ON v.song_id = s.id
		WHERE u.jam_id = ?
		GROUP BY s.id
		ORDER BY votes DESC, s.id DESC`, jamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ranked := []domain.RankedSong{}
	for rows.Next() {
		var votes int
		song, err := scanSong(rows, &votes)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, domain.RankedSong{Song: *song, Votes: votes})
	}
	return ranked, rows.Err()
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
