package providers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/jamsync/jam-server/internal/api"
	"github.com/jamsync/jam-server/internal/config"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/service"
)

// shutdownTimeout is the maximum time to wait for in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	router *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	return errors.Join(err, h.router.Shutdown())
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	jamService := do.MustInvoke[*service.JamService](i)
	credentialService := do.MustInvoke[*service.CredentialService](i)
	registryHandle := do.MustInvoke[*RegistryHandle](i)
	realtimeHandle := do.MustInvoke[*RealtimeHandle](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)

	router := api.NewServer(&api.Services{
		Jams:     jamService,
		Tokens:   credentialService,
		Database: storeHandle.Store,
		Feeds:    registryHandle.Registry,
		Realtime: realtimeHandle.Handler,
		Metrics:  metricsHandle.Handler,
	}, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		BootstrapRate:  cfg.Server.RateLimit,
		BootstrapBurst: cfg.Server.RateBurst,
	}, log.Logger)

	srv := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// WebSocket writes carry their own deadlines; WriteTimeout would cut them off.
		WriteTimeout: 0,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	if cfg.Server.WriteTimeout > 0 {
		log.Debug("HTTP write timeout is not applied to the listener", "write_timeout", cfg.Server.WriteTimeout)
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, router: router}, nil
}
