package spotify

import (
	"errors"
	"fmt"
)

// Sentinel errors for Spotify API operations.
var (
	ErrNotFound       = errors.New("spotify: not found")
	ErrUnauthorized   = errors.New("spotify: unauthorized")
	ErrRateLimited    = errors.New("spotify: rate limited by server")
	ErrBadRequest     = errors.New("spotify: bad request")
	ErrServer         = errors.New("spotify: server error")
	ErrInvalidTrackID = errors.New("spotify: invalid track id")
	ErrNoCredentials  = errors.New("spotify: client credentials not configured")
)

// Error wraps an underlying error with operation context.
type Error struct {
	Op      string // Operation: "getTrack", "refreshToken"
	TrackID string // If applicable
	Err     error
}

func (e *Error) Error() string {
	if e.TrackID != "" {
		return fmt.Sprintf("spotify %s [%s]: %v", e.Op, e.TrackID, e.Err)
	}
	return fmt.Sprintf("spotify %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, trackID string, err error) error {
	return &Error{Op: op, TrackID: trackID, Err: err}
}
