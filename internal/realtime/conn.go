package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/metrics"
)

// Subscriber is an outbound endpoint the change feed pushes frames to.
type Subscriber interface {
	Identity() domain.Identity
	// Send enqueues a frame without blocking. It reports false if the frame was dropped.
	Send(frame []byte) bool
	// CloseWith sends frame as the last frame and then closes.
	CloseWith(frame []byte)
	Close()
}

// HandleFunc processes one inbound frame and returns the reply for the same connection.
type HandleFunc func(ctx context.Context, msgType int, data []byte) Reply

type outbound struct {
	data  []byte
	final bool
}

// Conn is one client connection. The read loop runs on the caller's goroutine, the write
// loop on its own; the write loop is the only writer of the socket.
type Conn struct {
	id       string
	identity domain.Identity
	ws       *websocket.Conn
	cfg      Config
	send     chan outbound
	done     chan struct{}

	closeOnce sync.Once
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewConn wraps an upgraded socket.
func NewConn(id string, identity domain.Identity, ws *websocket.Conn, cfg Config, m *metrics.Metrics, log *slog.Logger) *Conn {
	cfg = cfg.withDefaults()
	return &Conn{
		id:       id,
		identity: identity,
		ws:       ws,
		cfg:      cfg,
		send:     make(chan outbound, cfg.SendQueueSize),
		done:     make(chan struct{}),
		metrics:  m,
		logger:   log.With(append(logger.Conn(id, string(identity.Role())), logger.Jam(identity.JamID()))...),
	}
}

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// Identity returns the identity the connection resolved to at accept time.
func (c *Conn) Identity() domain.Identity { return c.identity }

// Send enqueues frame. If the queue is full the frame is dropped; the next snapshot
// carries the full state again.
func (c *Conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- outbound{data: frame}:
		return true
	default:
		c.metrics.FrameDropped()
		c.logger.Warn("send queue full, frame dropped", slog.Int("queue_size", cap(c.send)))
		return false
	}
}

// CloseWith enqueues the last frame of the connection. The write loop closes the transport
// after writing it. If it cannot be queued the connection is closed without it.
func (c *Conn) CloseWith(frame []byte) {
	select {
	case c.send <- outbound{data: frame, final: true}:
	default:
		c.logger.Warn("send queue full, closing without final frame")
		c.Close()
	}
}

// Close asks the write loop to flush and close the transport. Safe to call more than once
// and from any goroutine.
func (c *Conn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Done is closed once the connection starts shutting down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Run serves the connection until the client goes away, a fatal frame is sent, ctx is
// cancelled, or Close is called. It returns after both loops have stopped.
func (c *Conn) Run(ctx context.Context, handle HandleFunc) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	c.readLoop(ctx, handle)
	c.Close()
	<-writerDone
	_ = c.ws.Close()
}

func (c *Conn) readLoop(ctx context.Context, handle HandleFunc) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		reply := handle(ctx, msgType, data)
		if reply.Fatal {
			if reply.Frame != nil {
				c.CloseWith(reply.Frame)
			} else {
				c.Close()
			}
			return
		}
		if reply.Frame != nil {
			c.Send(reply.Frame)
		}
	}
}

func (c *Conn) logReadError(err error) {
	select {
	case <-c.done:
		// Closed from our side; the read error is the socket going away.
		return
	default:
	}

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		c.logger.Warn("connection read failed", slog.String("error", err.Error()))
		return
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		c.logger.Warn("inbound frame exceeds read limit", slog.Int64("limit", c.cfg.MaxMessageSize))
		return
	}
	c.logger.Debug("connection closed by client", slog.String("error", err.Error()))
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-c.send:
			if err := c.write(out.data); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				c.Close()
				_ = c.ws.Close()
				return
			}
			if out.final {
				c.Close()
				c.closeTransport(websocket.ClosePolicyViolation, "fatal error")
				return
			}

		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Debug("ping failed", slog.String("error", err.Error()))
				c.Close()
				_ = c.ws.Close()
				return
			}

		case <-c.done:
			if c.flush() {
				c.closeTransport(websocket.ClosePolicyViolation, "fatal error")
			} else {
				c.closeTransport(websocket.CloseNormalClosure, "")
			}
			return
		}
	}
}

// flush writes whatever is still queued. It reports whether a final frame was written.
func (c *Conn) flush() bool {
	for {
		select {
		case out := <-c.send:
			if err := c.write(out.data); err != nil {
				return false
			}
			if out.final {
				return true
			}
		default:
			return false
		}
	}
}

func (c *Conn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Conn) closeTransport(code int, reason string) {
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(c.cfg.WriteWait),
	)
	_ = c.ws.Close()
}
