// Package sqlite implements the jam store on SQLite. It is the single source of truth for
// hosts, jams, users, songs and votes, and announces committed queue changes through a
// store.Notifier.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jamsync/jam-server/internal/logger"
	"github.com/jamsync/jam-server/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Pragmas are passed in the DSN so that every pooled connection gets them, not only the
// first one.
const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// Store provides SQLite-backed persistence for jams.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	notifier store.Notifier
}

// Open creates a new SQLite store at the given path and applies the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	return &Store{
		db:       db,
		logger:   logger,
		notifier: store.NoopNotifier{},
	}, nil
}

// SetNotifier sets the notifier that receives committed queue changes.
func (s *Store) SetNotifier(n store.Notifier) {
	s.notifier = n
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// notify announces a committed change on the jam's songs channel.
func (s *Store) notify(jamID, payload string) {
	s.notifier.Notify(store.SongsChannel(jamID), payload)
	if s.logger != nil {
		s.logger.Debug("change notified",
			logger.Jam(jamID),
			slog.String("payload", payload),
		)
	}
}

// formatTime formats a time.Time to RFC3339Nano for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a RFC3339Nano string back to time.Time.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// mapWriteError converts constraint failures to store sentinels.
func mapWriteError(err error, what string) error {
	switch {
	case isUniqueViolation(err):
		return store.ErrAlreadyExists.WithMessage(what + " already exists").WithCause(err)
	case isForeignKeyViolation(err):
		return store.ErrNotFound.WithMessage(what + " references a missing record").WithCause(err)
	default:
		return err
	}
}
