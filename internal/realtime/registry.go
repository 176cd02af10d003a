package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jamsync/jam-server/internal/domain"
	"github.com/jamsync/jam-server/internal/metrics"
	"github.com/jamsync/jam-server/internal/notify"
	"github.com/jamsync/jam-server/internal/store"
)

// ErrRegistryClosed is returned by Subscribe after Shutdown.
var ErrRegistryClosed = errors.New("realtime: registry closed")

const msgRemovedFromJam = "you have been removed from the jam"

// Registry tracks the subscribers of every jam and runs one change feed per jam with at
// least one subscriber.
type Registry struct {
	hub     *notify.Hub
	queue   Snapshotter
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	feeds  map[string]*feed
	closed bool
}

// NewRegistry creates a registry listening on hub.
func NewRegistry(hub *notify.Hub, queue Snapshotter, m *metrics.Metrics, logger *slog.Logger) *Registry {
	return &Registry{
		hub:     hub,
		queue:   queue,
		logger:  logger,
		metrics: m,
		feeds:   make(map[string]*feed),
	}
}

// Subscribe adds sub to its jam's feed, starting the feed if sub is the first subscriber,
// and queues the current snapshot on sub.
func (r *Registry) Subscribe(ctx context.Context, sub Subscriber) error {
	jamID := sub.Identity().JamID()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	f, ok := r.feeds[jamID]
	if !ok {
		// Listen before the snapshot so no committed change falls between the two.
		f = newFeed(jamID, r.hub.Listen(store.SongsChannel(jamID)), r.queue, r.metrics, r.logger)
		f.start()
		r.feeds[jamID] = f
	}
	f.add(sub)
	r.mu.Unlock()

	f.snapshot(ctx, sub)
	return nil
}

// Unsubscribe removes sub. The jam's feed is stopped once its last subscriber leaves.
func (r *Registry) Unsubscribe(sub Subscriber) {
	jamID := sub.Identity().JamID()

	r.mu.Lock()
	f, ok := r.feeds[jamID]
	if !ok {
		r.mu.Unlock()
		return
	}
	remaining := f.remove(sub)
	if remaining == 0 {
		delete(r.feeds, jamID)
	}
	r.mu.Unlock()

	if remaining == 0 {
		f.stop()
	}
}

// Evict closes every subscriber of jamID connected as userID, sending a fatal forbidden
// frame first. It returns the number of connections closed.
func (r *Registry) Evict(jamID, userID string) int {
	r.mu.Lock()
	f, ok := r.feeds[jamID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	frame, err := EncodeError(KindForbidden, msgRemovedFromJam, true)
	if err != nil {
		r.logger.Error("encode eviction frame", slog.String("error", err.Error()))
		return 0
	}

	evicted := 0
	for _, sub := range f.subscribers() {
		u, ok := sub.Identity().(domain.UserIdentity)
		if !ok || u.ID != userID {
			continue
		}
		sub.CloseWith(frame)
		evicted++
	}

	if evicted > 0 {
		f.logger.Info("removed user disconnected",
			slog.String("user_id", userID),
			slog.Int("connections", evicted),
		)
	}
	return evicted
}

// Subscribers returns the number of subscribers of jamID.
func (r *Registry) Subscribers(jamID string) int {
	r.mu.Lock()
	f, ok := r.feeds[jamID]
	r.mu.Unlock()
	if !ok {
		return 0
	}
	return len(f.subscribers())
}

// Feeds returns the number of running feeds.
func (r *Registry) Feeds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

// Shutdown closes every subscriber and stops every feed.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	r.closed = true
	feeds := r.feeds
	r.feeds = make(map[string]*feed)
	r.mu.Unlock()

	for _, f := range feeds {
		for _, sub := range f.subscribers() {
			sub.Close()
		}
		f.stop()
	}

	r.logger.Info("realtime registry shut down", slog.Int("feeds", len(feeds)))
	return nil
}
