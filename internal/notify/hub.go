// Package notify implements channel-keyed change notifications in the style of Postgres
// LISTEN/NOTIFY. The SQLite store notifies after committing a change; listeners are woken
// and re-query for the current state.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrListenerClosed is returned by Recv after Close.
var ErrListenerClosed = errors.New("notify: listener closed")

// defaultBuffer is the number of pending notifications held per listener.
const defaultBuffer = 16

// Notification is a single change signal on a channel.
type Notification struct {
	Channel string
	Payload string
}

// Hub fans notifications out to every listener of a channel.
type Hub struct {
	listeners map[string]map[*Listener]struct{}
	logger    *slog.Logger
	buffer    int
	mu        sync.RWMutex
}

// NewHub creates a notification hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		listeners: make(map[string]map[*Listener]struct{}),
		logger:    logger,
		buffer:    defaultBuffer,
	}
}

// Listen subscribes to channel. The caller must Close the listener.
func (h *Hub) Listen(channel string) *Listener {
	l := &Listener{
		hub:     h,
		channel: channel,
		ch:      make(chan Notification, h.buffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	set, ok := h.listeners[channel]
	if !ok {
		set = make(map[*Listener]struct{})
		h.listeners[channel] = set
	}
	set[l] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("listening", slog.String("channel", channel))
	return l
}

// Notify delivers a notification to every listener of channel without blocking.
// A listener whose buffer is full is marked as having lost notifications.
func (h *Hub) Notify(channel, payload string) {
	n := Notification{Channel: channel, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for l := range h.listeners[channel] {
		select {
		case l.ch <- n:
		default:
			l.lost.Store(true)
			h.logger.Warn("notification dropped for slow listener",
				slog.String("channel", channel),
				slog.String("payload", payload))
		}
	}
}

// ListenerCount returns the number of listeners on channel.
func (h *Hub) ListenerCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[channel])
}

func (h *Hub) remove(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.listeners[l.channel]
	delete(set, l)
	if len(set) == 0 {
		delete(h.listeners, l.channel)
	}
}

// Listener receives notifications for one channel.
type Listener struct {
	hub       *Hub
	ch        chan Notification
	done      chan struct{}
	channel   string
	lost      atomic.Bool
	closeOnce sync.Once
}

// Channel returns the channel name this listener is subscribed to.
func (l *Listener) Channel() string {
	return l.channel
}

// Recv blocks until a notification arrives, ctx is done, or the listener is closed.
//
// A nil notification with a nil error means notifications were dropped since the last call;
// the caller should treat its state as stale and resynchronise.
func (l *Listener) Recv(ctx context.Context) (*Notification, error) {
	if l.lost.Swap(false) {
		return nil, nil
	}

	select {
	case n := <-l.ch:
		return &n, nil
	case <-l.done:
		return nil, ErrListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drain discards notifications already buffered and returns how many were discarded.
// A caller that re-queries full state after Recv uses it to coalesce bursts.
func (l *Listener) Drain() int {
	n := 0
	for {
		select {
		case <-l.ch:
			n++
		default:
			return n
		}
	}
}

// Close unsubscribes the listener. It is safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		l.hub.remove(l)
		close(l.done)
	})
}
