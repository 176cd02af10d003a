package providers

import (
	"github.com/samber/do/v2"

	"github.com/jamsync/jam-server/internal/config"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/service"
	"github.com/jamsync/jam-server/internal/spotify"
	"github.com/jamsync/jam-server/internal/validation"
)

// SpotifyClientHandle wraps the Spotify client with shutdown capability.
type SpotifyClientHandle struct {
	*spotify.Client
}

// Shutdown implements do.Shutdownable.
func (h *SpotifyClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideSpotifyClient provides the music provider client.
func ProvideSpotifyClient(i do.Injector) (*SpotifyClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Spotify.ClientID == "" {
		log.Warn("Spotify client id not set, token refresh will fail")
	}

	client := spotify.New(spotify.Config{
		APIBaseURL:   cfg.Spotify.APIBaseURL,
		AccountsURL:  cfg.Spotify.AccountsURL,
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
	}, log.Logger)

	return &SpotifyClientHandle{Client: client}, nil
}

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCredentialService provides host access tokens with refresh before expiry.
func ProvideCredentialService(i do.Injector) (*service.CredentialService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	spotifyHandle := do.MustInvoke[*SpotifyClientHandle](i)

	return service.NewCredentialService(storeHandle.Store, spotifyHandle.Client, cfg.Spotify.RefreshSkew, log.Logger), nil
}

// ProvideQueueService provides song and vote mutations.
func ProvideQueueService(i do.Injector) (*service.QueueService, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	credentials := do.MustInvoke[*service.CredentialService](i)
	spotifyHandle := do.MustInvoke[*SpotifyClientHandle](i)

	return service.NewQueueService(storeHandle.Store, credentials, spotifyHandle.Client, log.Logger), nil
}

// ProvideJamService provides host, jam and user bootstrap.
func ProvideJamService(i do.Injector) (*service.JamService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)

	return service.NewJamService(storeHandle.Store, validator, cfg.Jam.DefaultMaxSongs, log.Logger), nil
}
