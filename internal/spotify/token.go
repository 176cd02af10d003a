package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamsync/jam-server/internal/domain"
)

// RefreshToken exchanges a refresh token for a new access token.
// Spotify may omit the refresh token from the response, in which case the old one is kept.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.Credential, error) {
	if c.clientID == "" || c.secret == "" {
		return nil, wrapError("refreshToken", "", ErrNoCredentials)
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.accountsURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, wrapError("refreshToken", "", fmt.Errorf("create request: %w", err))
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	requestedAt := time.Now()
	body, err := c.do(req)
	if err != nil {
		return nil, wrapError("refreshToken", "", err)
	}

	var raw rawToken
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, wrapError("refreshToken", "", fmt.Errorf("parse response: %w", err))
	}
	if raw.AccessToken == "" {
		return nil, wrapError("refreshToken", "", fmt.Errorf("response has no access token"))
	}

	cred := &domain.Credential{
		AccessToken:  raw.AccessToken,
		RefreshToken: raw.RefreshToken,
		ExpiresAt:    requestedAt.Add(time.Duration(raw.ExpiresIn) * time.Second),
		Scope:        raw.Scope,
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = refreshToken
	}
	return cred, nil
}
