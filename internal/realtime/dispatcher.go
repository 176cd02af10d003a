package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jamsync/jam-server/internal/domain"
	domainerrors "github.com/jamsync/jam-server/internal/errors"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/metrics"
	"github.com/jamsync/jam-server/internal/ratelimit"
)

// Queue is the mutation and read surface the dispatcher drives.
type Queue interface {
	AddSong(ctx context.Context, u domain.UserIdentity, songID string) error
	RemoveSong(ctx context.Context, caller domain.Identity, songID string) error
	AddVote(ctx context.Context, u domain.UserIdentity, songID string) error
	RemoveVote(ctx context.Context, h domain.HostIdentity, songID string) error
	RemoveUser(ctx context.Context, h domain.HostIdentity, userID string) error
	Songs(ctx context.Context, viewer domain.Identity) ([]domain.SongView, error)
}

// Evictor closes the live connections of a user who was removed from a jam.
type Evictor interface {
	Evict(jamID, userID string) int
}

// Reply is what the dispatcher wants sent back on the originating connection.
// Frame may be nil. Fatal means the connection closes once Frame is flushed.
type Reply struct {
	Frame []byte
	Fatal bool
}

// Dispatcher decodes inbound frames, authorizes them against the connection's identity and
// executes them. It holds no per-connection state besides the rate limiter bucket.
type Dispatcher struct {
	queue   Queue
	evictor Evictor
	limiter *ratelimit.KeyedRateLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. evictor, limiter and m may be nil.
func NewDispatcher(queue Queue, evictor Evictor, limiter *ratelimit.KeyedRateLimiter, m *metrics.Metrics, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		evictor: evictor,
		limiter: limiter,
		metrics: m,
		logger:  log,
	}
}

// Handle processes one inbound frame from connection connID.
func (d *Dispatcher) Handle(ctx context.Context, connID string, who domain.Identity, msgType int, data []byte) Reply {
	if msgType != websocket.BinaryMessage {
		return d.fatal(connID, KindDecode, "expected a binary MessagePack frame")
	}

	req, err := DecodeRequest(data)
	if err != nil {
		d.logger.Warn("malformed frame", append(connAttrs(connID, who), slog.String("error", err.Error()))...)
		return d.fatal(connID, KindDecode, err.Error())
	}

	if d.limiter != nil && !d.limiter.Allow(connID) {
		d.metrics.Command(string(req.Type), "rate_limited", 0)
		return d.nonFatal(KindRateLimited, domainerrors.ErrRateLimited.Message)
	}

	start := time.Now()
	frame, err := d.execute(ctx, who, req)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		kind, msg := classify(err)
		d.metrics.Command(string(req.Type), string(kind), elapsed)

		level := slog.LevelInfo
		if kind == KindDatabase {
			level = slog.LevelWarn
		}
		d.logger.Log(ctx, level, "command failed", append(connAttrs(connID, who),
			slog.String("command", string(req.Type)),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)...)
		return d.nonFatal(kind, msg)
	}

	d.metrics.Command(string(req.Type), "ok", elapsed)
	return Reply{Frame: frame}
}

// execute runs an authorized request. Only Update produces a direct reply; mutations reach
// every subscriber, this one included, through the change feed.
func (d *Dispatcher) execute(ctx context.Context, who domain.Identity, req *Request) ([]byte, error) {
	switch req.Type {
	case CmdRemoveUser:
		h, err := onlyHost(who)
		if err != nil {
			return nil, err
		}
		if err := d.queue.RemoveUser(ctx, h, req.UserID); err != nil {
			return nil, err
		}
		// The removed user's open sockets still carry the identity resolved at accept time.
		if d.evictor != nil {
			d.evictor.Evict(h.Jam, req.UserID)
		}
		return nil, nil

	case CmdAddSong:
		u, err := onlyUser(who)
		if err != nil {
			return nil, err
		}
		return nil, d.queue.AddSong(ctx, u, req.SongID)

	case CmdRemoveSong:
		// Users may remove their own songs; the queue enforces ownership.
		return nil, d.queue.RemoveSong(ctx, who, req.SongID)

	case CmdAddVote:
		u, err := onlyUser(who)
		if err != nil {
			return nil, err
		}
		return nil, d.queue.AddVote(ctx, u, req.SongID)

	case CmdRemoveVote:
		h, err := onlyHost(who)
		if err != nil {
			return nil, err
		}
		return nil, d.queue.RemoveVote(ctx, h, req.SongID)

	case CmdUpdate:
		views, err := d.queue.Songs(ctx, who)
		if err != nil {
			return nil, err
		}
		frame, err := EncodeSongs(views)
		if err != nil {
			return nil, fmt.Errorf("encode songs: %w", err)
		}
		return frame, nil

	default:
		return nil, errors.New("unhandled command " + string(req.Type))
	}
}

func connAttrs(connID string, who domain.Identity) []any {
	return append(logger.Conn(connID, string(who.Role())), logger.Jam(who.JamID()))
}

func onlyHost(who domain.Identity) (domain.HostIdentity, error) {
	switch v := who.(type) {
	case domain.HostIdentity:
		return v, nil
	case domain.UserIdentity:
		return domain.HostIdentity{}, domainerrors.ErrHostOnly
	default:
		panic(fmt.Sprintf("realtime: unexpected identity %T", who))
	}
}

func onlyUser(who domain.Identity) (domain.UserIdentity, error) {
	switch v := who.(type) {
	case domain.UserIdentity:
		return v, nil
	case domain.HostIdentity:
		return domain.UserIdentity{}, domainerrors.ErrUserOnly
	default:
		panic(fmt.Sprintf("realtime: unexpected identity %T", who))
	}
}

func (d *Dispatcher) nonFatal(kind ErrorKind, msg string) Reply {
	frame, err := EncodeError(kind, msg, false)
	if err != nil {
		d.logger.Error("encode error frame", slog.String("error", err.Error()))
		return Reply{}
	}
	return Reply{Frame: frame}
}

func (d *Dispatcher) fatal(connID string, kind ErrorKind, msg string) Reply {
	d.metrics.Command("invalid", string(kind), 0)
	frame, err := EncodeError(kind, msg, true)
	if err != nil {
		d.logger.Error("encode error frame", slog.String(logger.KeyConn, connID), slog.String("error", err.Error()))
	}
	return Reply{Frame: frame, Fatal: true}
}
