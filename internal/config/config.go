// Package config provides application configuration management with support for environment
// variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Server   ServerConfig
	Realtime RealtimeConfig
	Spotify  SpotifyConfig
	Jam      JamConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DatabaseConfig holds the SQLite store location.
type DatabaseConfig struct {
	Path string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 3000)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS and WebSocket origins; empty allows all
	RateLimit      float64       // Bootstrap requests per second per IP (default: 5, 0 disables)
	RateBurst      int           // Bootstrap burst per IP (default: 10)
}

// RealtimeConfig tunes the per-connection WebSocket channel.
type RealtimeConfig struct {
	SendQueueSize  int           // Outbound frames buffered per connection (default: 64)
	MaxMessageSize int64         // Largest inbound frame in bytes (default: 4096)
	PingInterval   time.Duration // Keepalive ping period (default: 25s)
	PongWait       time.Duration // Read deadline after a ping (default: 60s)
	WriteWait      time.Duration // Per-frame write deadline (default: 10s)
	CommandRate    float64       // Commands per second per connection (default: 10)
	CommandBurst   int           // Command burst per connection (default: 20)
}

// SpotifyConfig holds credentials and endpoints for the music provider.
type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	APIBaseURL   string        // default: https://api.spotify.com
	AccountsURL  string        // default: https://accounts.spotify.com
	RefreshSkew  time.Duration // refresh tokens this long before expiry (default: 60s)
}

// JamConfig holds defaults applied when creating jams.
type JamConfig struct {
	DefaultMaxSongs int
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return load(flag.CommandLine, os.Args[1:])
}

func load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dbPath := fs.String("db-path", "", "Path to the SQLite database file")

	serverPort := fs.String("port", "", "Server port (default: 3000)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	allowedOrigins := fs.String("allowed-origins", "", "Comma separated allowed origins")

	sendQueue := fs.String("send-queue-size", "", "Outbound frames buffered per connection (default: 64)")
	commandRate := fs.String("command-rate", "", "Commands per second per connection (default: 10)")

	spotifyID := fs.String("spotify-client-id", "", "Spotify client id")
	spotifySecret := fs.String("spotify-client-secret", "", "Spotify client secret")

	defaultMaxSongs := fs.String("default-max-songs", "", "Default songs per user for new jams (default: 3)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Path: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "3000"),
			AllowedOrigins: splitList(getConfigValue(*allowedOrigins, "ALLOWED_ORIGINS", "")),
			RateLimit:      getFloatConfigValue("", "SERVER_RATE_LIMIT", 5),
			RateBurst:      getIntConfigValue("", "SERVER_RATE_BURST", 10),
		},
		Realtime: RealtimeConfig{
			SendQueueSize:  getIntConfigValue(*sendQueue, "REALTIME_SEND_QUEUE_SIZE", 64),
			MaxMessageSize: int64(getIntConfigValue("", "REALTIME_MAX_MESSAGE_SIZE", 4096)),
			CommandRate:    getFloatConfigValue(*commandRate, "REALTIME_COMMAND_RATE", 10),
			CommandBurst:   getIntConfigValue("", "REALTIME_COMMAND_BURST", 20),
		},
		Spotify: SpotifyConfig{
			ClientID:     getConfigValue(*spotifyID, "SPOTIFY_CLIENT_ID", ""),
			ClientSecret: getConfigValue(*spotifySecret, "SPOTIFY_CLIENT_SECRET", ""),
			APIBaseURL:   getConfigValue("", "SPOTIFY_API_URL", "https://api.spotify.com"),
			AccountsURL:  getConfigValue("", "SPOTIFY_ACCOUNTS_URL", "https://accounts.spotify.com"),
		},
		Jam: JamConfig{
			DefaultMaxSongs: getIntConfigValue(*defaultMaxSongs, "JAM_DEFAULT_MAX_SONGS", 3),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Realtime.PingInterval, "", "REALTIME_PING_INTERVAL", "25s"},
		{&cfg.Realtime.PongWait, "", "REALTIME_PONG_WAIT", "60s"},
		{&cfg.Realtime.WriteWait, "", "REALTIME_WRITE_WAIT", "10s"},
		{&cfg.Spotify.RefreshSkew, "", "SPOTIFY_REFRESH_SKEW", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDatabasePath(); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	if c.Realtime.SendQueueSize < 1 {
		return fmt.Errorf("send queue size must be positive, got %d", c.Realtime.SendQueueSize)
	}
	if c.Realtime.PingInterval >= c.Realtime.PongWait {
		return fmt.Errorf("ping interval %s must be shorter than pong wait %s", c.Realtime.PingInterval, c.Realtime.PongWait)
	}
	if c.Realtime.CommandRate <= 0 || c.Realtime.CommandBurst < 1 {
		return errors.New("command rate and burst must be positive")
	}

	if c.Jam.DefaultMaxSongs < 1 {
		return fmt.Errorf("default max songs must be at least 1, got %d", c.Jam.DefaultMaxSongs)
	}

	// Spotify credentials can be empty in development; token refresh fails until they are set.
	if c.App.Environment == "production" && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		return errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET are required in production")
	}

	return nil
}

// expandDatabasePath expands ~ and makes the path absolute.
// Defaults to ~/.jam/jam.db.
func (c *Config) expandDatabasePath() error {
	path := c.Database.Path
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Database.Path = filepath.Join(homeDir, ".jam", "jam.db")
		return nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	c.Database.Path = filepath.Clean(path)
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
