package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/metrics"
	"github.com/jamsync/jam-server/internal/notify"
)

// Snapshotter produces the ranked queue of a jam and shapes it per viewer.
type Snapshotter interface {
	Ranked(ctx context.Context, jamID string) ([]domain.RankedSong, error)
	Shape(ctx context.Context, viewer domain.Identity, ranked []domain.RankedSong) ([]domain.SongView, error)
}

const msgFeedInterrupted = "change feed interrupted, resynchronising"

// feed pushes a fresh queue snapshot to every subscriber of one jam whenever the store
// announces a change on the jam's songs channel.
type feed struct {
	jamID    string
	listener *notify.Listener
	queue    Snapshotter
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu   sync.Mutex
	subs map[Subscriber]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func newFeed(jamID string, listener *notify.Listener, queue Snapshotter, m *metrics.Metrics, log *slog.Logger) *feed {
	return &feed{
		jamID:    jamID,
		listener: listener,
		queue:    queue,
		logger:   log.With(logger.Jam(jamID)),
		metrics:  m,
		subs:     make(map[Subscriber]struct{}),
		done:     make(chan struct{}),
	}
}

func (f *feed) start() {
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.metrics.FeedStarted()
	go func() {
		defer close(f.done)
		defer f.metrics.FeedStopped()
		f.run(ctx)
	}()
}

// stop cancels the loop and waits for it to exit.
func (f *feed) stop() {
	f.cancel()
	f.listener.Close()
	<-f.done
}

func (f *feed) add(sub Subscriber) {
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
}

// remove drops sub and returns the number of subscribers left.
func (f *feed) remove(sub Subscriber) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
	return len(f.subs)
}

func (f *feed) subscribers() []Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Subscriber, 0, len(f.subs))
	for s := range f.subs {
		out = append(out, s)
	}
	return out
}

func (f *feed) run(ctx context.Context) {
	f.logger.Debug("change feed started")
	defer f.logger.Debug("change feed stopped")

	for {
		n, err := f.listener.Recv(ctx)
		switch {
		case err != nil:
			if !errors.Is(err, notify.ErrListenerClosed) && !errors.Is(err, context.Canceled) {
				f.logger.Warn("change feed receive failed", slog.String("error", err.Error()))
			}
			return

		case n == nil:
			f.logger.Warn("change feed lost notifications")
			f.broadcastError(KindDatabase, msgFeedInterrupted)
			f.refresh(ctx, "resync")

		default:
			// Any notifications already queued are covered by the snapshot we are about to take.
			f.listener.Drain()
			f.refresh(ctx, "notification")
		}
	}
}

// refresh re-runs the ranking once and sends every subscriber its own view of it.
func (f *feed) refresh(ctx context.Context, trigger string) {
	ranked, err := f.queue.Ranked(ctx, f.jamID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		f.logger.Warn("change feed query failed", slog.String("error", err.Error()))
		f.broadcastError(classify(err))
		return
	}
	f.metrics.FeedRefreshed(trigger)

	var hostFrame []byte
	for _, sub := range f.subscribers() {
		who := sub.Identity()
		if _, ok := who.(domain.HostIdentity); ok && hostFrame != nil {
			sub.Send(hostFrame)
			continue
		}

		frame, err := f.render(ctx, who, ranked)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("shape snapshot failed",
				slog.String(logger.KeyRole, string(who.Role())),
				slog.String("error", err.Error()),
			)
			f.sendError(sub, err)
			continue
		}
		if _, ok := who.(domain.HostIdentity); ok {
			hostFrame = frame
		}
		sub.Send(frame)
	}
}

// snapshot sends sub the current queue. Used for the initial frame after subscribing.
func (f *feed) snapshot(ctx context.Context, sub Subscriber) {
	ranked, err := f.queue.Ranked(ctx, f.jamID)
	if err != nil {
		f.logger.Warn("initial snapshot failed", slog.String("error", err.Error()))
		f.sendError(sub, err)
		return
	}
	frame, err := f.render(ctx, sub.Identity(), ranked)
	if err != nil {
		f.logger.Warn("initial snapshot failed", slog.String("error", err.Error()))
		f.sendError(sub, err)
		return
	}
	sub.Send(frame)
}

func (f *feed) render(ctx context.Context, who domain.Identity, ranked []domain.RankedSong) ([]byte, error) {
	views, err := f.queue.Shape(ctx, who, ranked)
	if err != nil {
		return nil, err
	}
	return EncodeSongs(views)
}

func (f *feed) sendError(sub Subscriber, err error) {
	kind, msg := classify(err)
	frame, encErr := EncodeError(kind, msg, false)
	if encErr != nil {
		return
	}
	sub.Send(frame)
}

func (f *feed) broadcastError(kind ErrorKind, msg string) {
	frame, err := EncodeError(kind, msg, false)
	if err != nil {
		f.logger.Error("encode error frame", slog.String("error", err.Error()))
		return
	}
	for _, sub := range f.subscribers() {
		sub.Send(frame)
	}
}
