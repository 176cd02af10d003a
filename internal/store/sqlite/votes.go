package sqlite

import (
	"context"
	"time"

	"github.com/jamsync/jam-server/internal/store"
)

// InsertVote records userID's vote on songID. Both must belong to jamID.
// Returns store.ErrAlreadyExists for a repeated vote and store.ErrNotFound if the song is
// not queued in the voter's jam.
func (s *Store) InsertVote(ctx context.Context, jamID, voteID, userID, songID string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (id, user_id, song_id, created_at)
		SELECT ?, ?, ?, ?
		WHERE EXISTS (
			SELECT 1 FROM songs s
			JOIN users owner ON owner.id = s.user_id
			JOIN users voter ON voter.jam_id = owner.jam_id
			WHERE s.id = ? AND voter.id = ? AND owner.jam_id = ?
		)`,
		voteID, userID, songID, formatTime(at), songID, userID, jamID)
	if err != nil {
		return mapWriteError(err, "vote")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound.WithMessage("song not found in jam")
	}

	s.notify(jamID, store.PayloadVoteAdded)
	return nil
}

// DeleteVotesForSong removes every vote on a song of jamID and returns how many were
// removed. Removing zero votes from an existing song is not an error.
func (s *Store) DeleteVotesForSong(ctx context.Context, jamID, songID string) (int64, error) {
	if _, err := s.GetSongInJam(ctx, jamID, songID); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM votes
		WHERE song_id = ?
		AND user_id IN (SELECT id FROM users WHERE jam_id = ?)`, songID, jamID)
	if err != nil {
		return 0, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notify(jamID, store.PayloadVoteRemoved)
	}
	return n, nil
}

// VotedSongIDs returns the set of song ids userID has voted for.
func (s *Store) VotedSongIDs(ctx context.Context, userID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT song_id FROM votes WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voted := make(map[string]struct{})
	for rows.Next() {
		var songID string
		if err := rows.Scan(&songID); err != nil {
			return nil, err
		}
		voted[songID] = struct{}{}
	}
	return voted, rows.Err()
}
