// Package spotify is a small rate-limited client for the parts of the Spotify Web API the
// jam server needs: track metadata lookup and OAuth token refresh.
package spotify

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIBaseURL  = "https://api.spotify.com"
	DefaultAccountsURL = "https://accounts.spotify.com"

	defaultTimeout = 10 * time.Second

	// Spotify does not publish a fixed quota; stay well below its rolling window.
	defaultRPS   = 10
	defaultBurst = 10
)

// Config holds the endpoints and application credentials.
type Config struct {
	APIBaseURL   string
	AccountsURL  string
	ClientID     string
	ClientSecret string
}

// Client is a rate-limited Spotify Web API client.
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	apiBaseURL  string
	accountsURL string
	clientID    string
	secret      string
}

// New creates a new Spotify client. Empty URLs fall back to the public endpoints.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	return &Client{
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:     rate.NewLimiter(defaultRPS, defaultBurst),
		logger:      logger,
		apiBaseURL:  strings.TrimRight(cfg.APIBaseURL, "/"),
		accountsURL: strings.TrimRight(cfg.AccountsURL, "/"),
		clientID:    cfg.ClientID,
		secret:      cfg.ClientSecret,
	}
}

// Close drops idle keep-alive connections to the API.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// do executes req under the rate limiter and maps error statuses to sentinels.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	c.logger.Debug("spotify request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
}
