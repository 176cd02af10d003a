// Package store defines the persistence contracts shared by the SQLite implementation and
// its consumers: error sentinels and committed-change notifications.
package store

// Notifier is the interface the store uses to announce committed changes.
// Store uses this to trigger the change feed without depending on its implementation.
type Notifier interface {
	Notify(channel, payload string)
}

// NoopNotifier is a no-op implementation of Notifier for tests and tools.
type NoopNotifier struct{}

// Notify implements Notifier as a no-op.
func (NoopNotifier) Notify(_, _ string) {}

// Change payloads sent on a jam's songs channel.
const (
	PayloadSongAdded   = "song_added"
	PayloadSongRemoved = "song_removed"
	PayloadVoteAdded   = "vote_added"
	PayloadVoteRemoved = "vote_removed"
	PayloadUserRemoved = "user_removed"
)

// SongsChannel returns the notification channel carrying queue changes for a jam.
func SongsChannel(jamID string) string {
	return jamID + "_songs"
}
