package domain

import "time"

// Credential is the Spotify OAuth token material stored on a host.
type Credential struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Scope        string
}

// ExpiresWithin reports whether the access token is expired or will expire within skew of now.
// A zero ExpiresAt is treated as expired.
func (c *Credential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}
