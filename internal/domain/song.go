package domain

import "time"

// Track is the metadata the music provider returns for a track id.
type Track struct {
	ID       string
	Name     string
	Album    string
	Artists  []string
	Duration time.Duration
	ImageURL string
}

// Song is a queued track proposal. ID is the provider track id.
type Song struct {
	Track
	UserID    string
	CreatedAt time.Time
}

// RankedSong is a song with its derived vote count, as returned by the ranking query.
type RankedSong struct {
	Song
	Votes int
}

// SongView is a ranked song shaped for one viewer.
//
// UserID is only set when the viewer owns the song. HaveYouVoted is nil for host viewers,
// who see totals without per-voter identity.
type SongView struct {
	ID           string
	UserID       string
	Name         string
	Album        string
	Artists      []string
	Duration     time.Duration
	ImageURL     string
	Votes        int
	HaveYouVoted *bool
}
