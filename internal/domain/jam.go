// Package domain contains the core jam entities shared by the store, the services and the
// real-time channel.
package domain

import "time"

// DefaultMaxSongCount is used when a jam is created without an explicit per-user quota.
const DefaultMaxSongCount = 3

// Jam is one hosted listening and voting session. Its ID is the join code.
type Jam struct {
	ID           string    `json:"id"`
	HostID       string    `json:"host_id"`
	Name         string    `json:"name"`
	MaxSongCount int       `json:"max_song_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Host owns exactly one jam and the Spotify credential used on its behalf.
type Host struct {
	ID         string      `json:"id"`
	Credential *Credential `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// User is a participant that joined a jam with its code.
type User struct {
	ID        string    `json:"id"`
	JamID     string    `json:"jam_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
