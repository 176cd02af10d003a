package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/id"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/store"
	"github.com/jamsync/jam-server/internal/store/sqlite"
	"github.com/jamsync/jam-server/internal/validation"
)

// joinCodeAttempts bounds retries when a generated join code collides with a live jam.
const joinCodeAttempts = 5

// JamService bootstraps sessions: hosts, their credential, jams and joining users.
type JamService struct {
	store           *sqlite.Store
	validator       *validation.Validator
	logger          *slog.Logger
	defaultMaxSongs int
}

// NewJamService creates a new jam service.
func NewJamService(store *sqlite.Store, validator *validation.Validator, defaultMaxSongs int, logger *slog.Logger) *JamService {
	if defaultMaxSongs <= 0 {
		defaultMaxSongs = domain.DefaultMaxSongCount
	}
	return &JamService{
		store:           store,
		validator:       validator,
		logger:          logger,
		defaultMaxSongs: defaultMaxSongs,
	}
}

// UpdateCredentialRequest carries token material from the OAuth callback.
type UpdateCredentialRequest struct {
	AccessToken  string `json:"access_token" validate:"required"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in" validate:"gte=0"`
	Scope        string `json:"scope"`
}

// CreateJamRequest contains the data needed to open a jam.
type CreateJamRequest struct {
	HostID       string `json:"host_id" validate:"required"`
	Name         string `json:"name" validate:"required,displayname,max=64"`
	MaxSongCount int    `json:"max_song_count,omitempty" validate:"omitempty,gte=1,lte=50"`
}

// JoinJamRequest contains the data needed to join a jam.
type JoinJamRequest struct {
	Name string `json:"name" validate:"required,displayname,max=32"`
}

// JamSummary is the public view of a jam.
type JamSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MaxSongCount int       `json:"max_song_count"`
	UserCount    int       `json:"user_count"`
	SongCount    int       `json:"song_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateHost registers a host. Its credential is attached later by UpdateCredential.
func (s *JamService) CreateHost(ctx context.Context) (*domain.Host, error) {
	hostID, err := id.Generate("host")
	if err != nil {
		return nil, fmt.Errorf("generate host id: %w", err)
	}

	host := &domain.Host{ID: hostID, CreatedAt: time.Now()}
	if err := s.store.CreateHost(ctx, host); err != nil {
		return nil, fromStore(err, "create host")
	}

	s.logger.Info("host created", slog.String("host_id", host.ID))
	return host, nil
}

// UpdateCredential stores the host's Spotify token material.
func (s *JamService) UpdateCredential(ctx context.Context, hostID string, req UpdateCredentialRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	cred := &domain.Credential{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Scope:        req.Scope,
	}
	if req.ExpiresIn > 0 {
		cred.ExpiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}

	if err := s.store.UpdateCredential(ctx, hostID, cred); err != nil {
		return fromStore(err, "update credential")
	}
	return nil
}

// CreateJam opens a jam for a host. A host may run only one jam.
func (s *JamService) CreateJam(ctx context.Context, req CreateJamRequest) (*domain.Jam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetHost(ctx, req.HostID); err != nil {
		return nil, fromStore(err, "get host")
	}
	if _, err := s.store.GetJamByHost(ctx, req.HostID); err == nil {
		return nil, domainerrors.AlreadyExists("host already has a jam")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fromStore(err, "get jam")
	}

	maxSongs := req.MaxSongCount
	if maxSongs == 0 {
		maxSongs = s.defaultMaxSongs
	}

	for attempt := 0; attempt < joinCodeAttempts; attempt++ {
		code, err := id.JoinCode()
		if err != nil {
			return nil, fmt.Errorf("generate join code: %w", err)
		}

		jam := &domain.Jam{
			ID:           code,
			HostID:       req.HostID,
			Name:         req.Name,
			MaxSongCount: maxSongs,
			CreatedAt:    time.Now(),
		}
		err = s.store.CreateJam(ctx, jam)
		if err == nil {
			s.logger.Info("jam created",
				logger.Jam(jam.ID),
				slog.String("host_id", jam.HostID),
				slog.Int("max_song_count", jam.MaxSongCount),
			)
			return jam, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return nil, fromStore(err, "create jam")
		}
		// Either the code collided or the host raced us to a second jam.
		if _, err := s.store.GetJamByHost(ctx, req.HostID); err == nil {
			return nil, domainerrors.AlreadyExists("host already has a jam")
		}
	}
	return nil, domainerrors.Internal("could not allocate a join code")
}

// JoinJam adds a user to the jam identified by its join code.
func (s *JamService) JoinJam(ctx context.Context, jamID string, req JoinJamRequest) (*domain.User, error) {
	if err := s.validator.Var("jam_id", jamID, "jamcode"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user id: %w", err)
	}

	user := &domain.User{ID: userID, JamID: jamID, Name: req.Name, CreatedAt: time.Now()}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("jam not found")
		}
		return nil, fromStore(err, "create user")
	}

	s.logger.Info("user joined",
		logger.Jam(jamID),
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// GetJam returns a summary of a jam.
func (s *JamService) GetJam(ctx context.Context, jamID string) (*JamSummary, error) {
	if err := s.validator.Var("jam_id", jamID, "jamcode"); err != nil {
		return nil, err
	}
	jam, err := s.store.GetJam(ctx, jamID)
	if err != nil {
		return nil, fromStore(err, "get jam")
	}

	users, err := s.store.ListUsers(ctx, jamID)
	if err != nil {
		return nil, fromStore(err, "list users")
	}
	songs, err := s.store.RankSongs(ctx, jamID)
	if err != nil {
		return nil, fromStore(err, "rank songs")
	}

	return &JamSummary{
		ID:           jam.ID,
		Name:         jam.Name,
		MaxSongCount: jam.MaxSongCount,
		UserCount:    len(users),
		SongCount:    len(songs),
		CreatedAt:    jam.CreatedAt,
	}, nil
}
