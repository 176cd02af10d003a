package providers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/do/v2"

	"github.com/jamsync/jam-server/internal/config"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/metrics"
	"github.com/jamsync/jam-server/internal/notify"
	"github.com/jamsync/jam-server/internal/ratelimit"
	"github.com/jamsync/jam-server/internal/realtime"
	"github.com/jamsync/jam-server/internal/service"
)

// MetricsHandle holds the collectors and the registry they are exposed from.
type MetricsHandle struct {
	*metrics.Metrics
	Handler http.Handler
}

// ProvideMetrics provides the Prometheus collectors on a dedicated registry.
func ProvideMetrics(i do.Injector) (*MetricsHandle, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsHandle{
		Metrics: metrics.New(reg),
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// CommandLimiterHandle wraps the per-connection command limiter.
type CommandLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *CommandLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideCommandLimiter provides the token buckets for inbound socket commands.
func ProvideCommandLimiter(i do.Injector) (*CommandLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &CommandLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Realtime.CommandRate, cfg.Realtime.CommandBurst),
	}, nil
}

// RegistryHandle wraps the subscriber registry with shutdown capability.
type RegistryHandle struct {
	*realtime.Registry
}

// Shutdown implements do.Shutdownable.
func (h *RegistryHandle) Shutdown() error {
	return h.Registry.Shutdown()
}

// ProvideRegistry provides the per-jam change feeds.
func ProvideRegistry(i do.Injector) (*RegistryHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	hub := do.MustInvoke[*notify.Hub](i)
	queue := do.MustInvoke[*service.QueueService](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)

	return &RegistryHandle{
		Registry: realtime.NewRegistry(hub, queue, metricsHandle.Metrics, log.Logger),
	}, nil
}

// RealtimeHandle wraps the WebSocket handler with shutdown capability.
type RealtimeHandle struct {
	*realtime.Handler
}

// Shutdown implements do.Shutdownable.
func (h *RealtimeHandle) Shutdown() error {
	return h.Handler.Shutdown()
}

// ProvideRealtimeHandler provides the WebSocket endpoint.
func ProvideRealtimeHandler(i do.Injector) (*RealtimeHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	queue := do.MustInvoke[*service.QueueService](i)
	registryHandle := do.MustInvoke[*RegistryHandle](i)
	limiterHandle := do.MustInvoke[*CommandLimiterHandle](i)
	metricsHandle := do.MustInvoke[*MetricsHandle](i)

	dispatcher := realtime.NewDispatcher(queue, registryHandle.Registry, limiterHandle.KeyedRateLimiter, metricsHandle.Metrics, log.Logger)
	handler := realtime.NewHandler(
		realtime.NewResolver(storeHandle.Store),
		dispatcher,
		registryHandle.Registry,
		limiterHandle.KeyedRateLimiter,
		realtime.HandlerConfig{
			Conn: realtime.Config{
				SendQueueSize:  cfg.Realtime.SendQueueSize,
				MaxMessageSize: cfg.Realtime.MaxMessageSize,
				PingInterval:   cfg.Realtime.PingInterval,
				PongWait:       cfg.Realtime.PongWait,
				WriteWait:      cfg.Realtime.WriteWait,
			},
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
		metricsHandle.Metrics,
		log.Logger,
	)

	return &RealtimeHandle{Handler: handler}, nil
}
