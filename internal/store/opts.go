// Package store provides storage backends for QuitPrep.
//
// This file holds shared configuration options and backend selection.
package store

import (
	"log/slog"
	"strconv"
	"strings"
)

// Opts holds configuration options for storage backends.
type Opts struct {
	DSN string // database connection string (file path for SQLite)
}

// Option defines a configuration option for storage backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths and
// anything that does not look like a Postgres URL or key/value DSN are
// treated as SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore creates the Store backend matching the configured DSN. An empty
// DSN yields an in-memory store.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Debug("NewStore: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	switch DetectDSNType(cfg.DSN) {
	case "postgres":
		slog.Debug("NewStore: detected PostgreSQL DSN")
		return NewPostgresStore(opts...)
	default:
		slog.Debug("NewStore: detected SQLite DSN", "db_path", cfg.DSN)
		return NewSQLiteStore(opts...)
	}
}

// parseIndexValue parses an integer response value. Empty and malformed
// values are skipped by history and count scans, matching the tolerant
// handling of legacy rows.
func parseIndexValue(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		slog.Warn("store: skipping non-numeric index value", "value", s)
		return 0, false
	}
	return n, true
}
