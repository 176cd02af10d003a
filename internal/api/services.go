package api

import (
	"context"
	"net/http"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/service"
)

// JamBootstrapper is the session bootstrap surface the handlers call.
type JamBootstrapper interface {
	CreateHost(ctx context.Context) (*domain.Host, error)
	UpdateCredential(ctx context.Context, hostID string, req service.UpdateCredentialRequest) error
	CreateJam(ctx context.Context, req service.CreateJamRequest) (*domain.Jam, error)
	JoinJam(ctx context.Context, jamID string, req service.JoinJamRequest) (*domain.User, error)
	GetJam(ctx context.Context, jamID string) (*service.JamSummary, error)
}

// HostTokenSource gives the host's player a current provider access token.
type HostTokenSource interface {
	HostToken(ctx context.Context, hostID string) (*domain.Credential, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping() error
}

// FeedCounter reports the number of jams with a running change feed.
type FeedCounter interface {
	Feeds() int
}

// Services contains everything the HTTP layer dispatches to. Optional members may be nil.
type Services struct {
	Jams     JamBootstrapper
	Tokens   HostTokenSource
	Database Pinger
	Feeds    FeedCounter
	Realtime http.Handler
	Metrics  http.Handler
}
