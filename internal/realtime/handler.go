package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/http/response"
	"github.com/jamsync/jam-server/internal/id"
	"github.com/jamsync/jam-server/internal/metrics"
	"github.com/jamsync/jam-server/internal/ratelimit"
)

// HandlerConfig configures the WebSocket endpoint.
type HandlerConfig struct {
	Conn Config
	// AllowedOrigins restricts the Origin header on upgrade. Empty allows any origin.
	AllowedOrigins []string
}

// Handler serves GET /api/v1/jams/ws. The identifier is taken from the "id" query parameter
// or the {id} route parameter and resolved before the upgrade.
type Handler struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	registry   *Registry
	limiter    *ratelimit.KeyedRateLimiter
	upgrader   websocket.Upgrader
	cfg        Config
	metrics    *metrics.Metrics
	logger     *slog.Logger

	// ctx is cancelled on Shutdown and ends every connection's Run.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandler creates the WebSocket handler. limiter is the same limiter the dispatcher uses;
// the handler releases a connection's bucket when it closes.
func NewHandler(
	resolver *Resolver,
	dispatcher *Dispatcher,
	registry *Registry,
	limiter *ratelimit.KeyedRateLimiter,
	cfg HandlerConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		resolver:   resolver,
		dispatcher: dispatcher,
		registry:   registry,
		limiter:    limiter,
		cfg:        cfg.Conn.withDefaults(),
		metrics:    m,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin(cfg.AllowedOrigins),
	}
	return h
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeHTTP resolves the caller, upgrades, subscribes it to its jam and serves it until it
// disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("id")
	if identifier == "" {
		identifier = chi.URLParam(r, "id")
	}

	who, err := h.resolver.Resolve(r.Context(), identifier)
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnauthorized) {
			h.logger.Info("connection rejected", slog.String("reason", "unknown identity"))
		} else {
			h.logger.Error("identity resolution failed", slog.String("error", err.Error()))
		}
		response.HandleError(w, err, h.logger)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn := NewConn(id.MustGenerate("conn"), who, ws, h.cfg, h.metrics, h.logger)
	h.serve(conn)
}

func (h *Handler) serve(conn *Conn) {
	who := conn.Identity()
	role := string(who.Role())

	h.metrics.ConnOpened(role)
	conn.logger.Info("connection opened")
	defer func() {
		h.metrics.ConnClosed(role)
		conn.logger.Info("connection closed")
	}()

	if err := h.registry.Subscribe(h.ctx, conn); err != nil {
		conn.logger.Warn("subscribe failed", slog.String("error", err.Error()))
		conn.closeTransport(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer h.registry.Unsubscribe(conn)
	if h.limiter != nil {
		defer h.limiter.Forget(conn.ID())
	}

	conn.Run(h.ctx, func(ctx context.Context, msgType int, data []byte) Reply {
		return h.dispatcher.Handle(ctx, conn.ID(), who, msgType, data)
	})
}

// Shutdown ends every open connection.
func (h *Handler) Shutdown() error {
	h.cancel()
	return nil
}
