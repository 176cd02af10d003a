// Package di provides dependency injection configuration for the jam server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/jamsync/jam-server/internal/config"
	"github.com/jamsync/jam-server/internal/di/providers"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/service"
	"github.com/jamsync/jam-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Database layer
	do.Provide(injector, providers.ProvideNotifyHub)
	do.Provide(injector, providers.ProvideStore)

	// Music provider
	do.Provide(injector, providers.ProvideSpotifyClient)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideCredentialService)
	do.Provide(injector, providers.ProvideQueueService)
	do.Provide(injector, providers.ProvideJamService)

	// Realtime
	do.Provide(injector, providers.ProvideCommandLimiter)
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideRealtimeHandler)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services. Providers are lazy, so this is what opens the
// database and starts listening.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.MetricsHandle](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.SpotifyClientHandle](injector)

	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*service.CredentialService](injector)
	_ = do.MustInvoke[*service.QueueService](injector)
	_ = do.MustInvoke[*service.JamService](injector)

	_ = do.MustInvoke[*providers.CommandLimiterHandle](injector)
	_ = do.MustInvoke[*providers.RegistryHandle](injector)
	_ = do.MustInvoke[*providers.RealtimeHandle](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
