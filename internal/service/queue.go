package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/id"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/store/sqlite"
)

// TrackLookup resolves provider track metadata.
type TrackLookup interface {
	GetTrack(ctx context.Context, accessToken, trackID string) (*domain.Track, error)
}

// TokenSource returns a provider access token usable on behalf of a jam's host.
type TokenSource interface {
	AccessToken(ctx context.Context, jamID string) (string, error)
}

// QueueService applies song and vote mutations for a jam and shapes the ranked queue for
// each viewer. Every successful mutation is announced by the store after commit.
type QueueService struct {
	store  *sqlite.Store
	tokens TokenSource
	tracks TrackLookup
	logger *slog.Logger
	now    func() time.Time
}

// NewQueueService creates a new queue service.
func NewQueueService(store *sqlite.Store, tokens TokenSource, tracks TrackLookup, logger *slog.Logger) *QueueService {
	return &QueueService{
		store:  store,
		tokens: tokens,
		tracks: tracks,
		logger: logger,
		now:    time.Now,
	}
}

// AddSong queues songID for user u, provided the user is below the jam's song quota.
// The quota is checked before the provider is contacted and enforced again by the insert.
func (s *QueueService) AddSong(ctx context.Context, u domain.UserIdentity, songID string) error {
	jam, err := s.store.GetJam(ctx, u.Jam)
	if err != nil {
		return fromStore(err, "get jam")
	}

	count, err := s.store.CountSongsByUser(ctx, u.ID)
	if err != nil {
		return fromStore(err, "count songs")
	}
	if count >= jam.MaxSongCount {
		return domainerrors.ErrQuotaExceeded
	}

	token, err := s.tokens.AccessToken(ctx, u.Jam)
	if err != nil {
		return err
	}

	track, err := s.tracks.GetTrack(ctx, token, songID)
	if err != nil {
		return fromProvider(err)
	}

	song := &domain.Song{Track: *track, UserID: u.ID, CreatedAt: s.now()}
	song.ID = songID

	if err := s.store.InsertSong(ctx, u.Jam, song); err != nil {
		return fromStore(err, "insert song")
	}

	s.logger.Info("song added",
		logger.Jam(u.Jam),
		slog.String("user_id", u.ID),
		slog.String("song_id", songID),
	)
	return nil
}

// RemoveSong deletes a song from the caller's jam. A user may only remove their own songs;
// the host may remove any song in its jam.
func (s *QueueService) RemoveSong(ctx context.Context, caller domain.Identity, songID string) error {
	switch c := caller.(type) {
	case domain.HostIdentity:
	case domain.UserIdentity:
		song, err := s.store.GetSongInJam(ctx, c.Jam, songID)
		if err != nil {
			return fromStore(err, "get song")
		}
		if song.UserID != c.ID {
			return domainerrors.Forbidden("song belongs to another user")
		}
	default:
		panic(fmt.Sprintf("service: unexpected identity %T", caller))
	}

	if err := s.store.DeleteSong(ctx, caller.JamID(), songID); err != nil {
		return fromStore(err, "delete song")
	}
	return nil
}

// AddVote records u's vote for songID. A second vote on the same song is rejected.
func (s *QueueService) AddVote(ctx context.Context, u domain.UserIdentity, songID string) error {
	voteID, err := id.Generate("vote")
	if err != nil {
		return fmt.Errorf("generate vote id: %w", err)
	}

	if err := s.store.InsertVote(ctx, u.Jam, voteID, u.ID, songID, s.now()); err != nil {
		return fromStore(err, "insert vote")
	}
	return nil
}

// RemoveVote clears every vote on songID in the host's jam. The host casts no votes of
// its own, so this is a reset of the song's tally.
func (s *QueueService) RemoveVote(ctx context.Context, h domain.HostIdentity, songID string) error {
	removed, err := s.store.DeleteVotesForSong(ctx, h.Jam, songID)
	if err != nil {
		return fromStore(err, "delete votes")
	}

	s.logger.Info("votes reset",
		logger.Jam(h.Jam),
		slog.String("song_id", songID),
		slog.Int64("removed", removed),
	)
	return nil
}

// RemoveUser removes userID from the host's jam. Their songs and votes go with them.
func (s *QueueService) RemoveUser(ctx context.Context, h domain.HostIdentity, userID string) error {
	if err := s.store.DeleteUser(ctx, h.Jam, userID); err != nil {
		return fromStore(err, "delete user")
	}

	s.logger.Info("user removed",
		logger.Jam(h.Jam),
		slog.String("user_id", userID),
	)
	return nil
}

// Ranked returns the jam's songs in queue order with vote counts.
func (s *QueueService) Ranked(ctx context.Context, jamID string) ([]domain.RankedSong, error) {
	ranked, err := s.store.RankSongs(ctx, jamID)
	if err != nil {
		return nil, fromStore(err, "rank songs")
	}
	return ranked, nil
}

// Songs returns the queue as viewer sees it.
func (s *QueueService) Songs(ctx context.Context, viewer domain.Identity) ([]domain.SongView, error) {
	ranked, err := s.Ranked(ctx, viewer.JamID())
	if err != nil {
		return nil, err
	}
	return s.Shape(ctx, viewer, ranked)
}

// Shape renders ranked songs for one viewer. Hosts get vote totals only. Users also learn
// which songs they voted for and see the owner id on their own songs.
func (s *QueueService) Shape(ctx context.Context, viewer domain.Identity, ranked []domain.RankedSong) ([]domain.SongView, error) {
	views := make([]domain.SongView, len(ranked))
	for i := range ranked {
		views[i] = baseView(&ranked[i])
	}

	switch v := viewer.(type) {
	case domain.HostIdentity:
		return views, nil
	case domain.UserIdentity:
		voted, err := s.store.VotedSongIDs(ctx, v.ID)
		if err != nil {
			return nil, fromStore(err, "get votes")
		}
		for i := range views {
			_, ok := voted[views[i].ID]
			views[i].HaveYouVoted = &ok
			if ranked[i].UserID == v.ID {
				views[i].UserID = v.ID
			}
		}
		return views, nil
	default:
		panic(fmt.Sprintf("service: unexpected identity %T", viewer))
	}
}

func baseView(r *domain.RankedSong) domain.SongView {
	return domain.SongView{
		ID:       r.ID,
		Name:     r.Name,
		Album:    r.Album,
		Artists:  r.Artists,
		Duration: r.Duration,
		ImageURL: r.ImageURL,
		Votes:    r.Votes,
	}
}
