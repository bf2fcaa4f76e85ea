// Package store provides storage backends for QuitPrep.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveParticipant(p models.Participant) error {
	_, err := s.db.Exec(`INSERT INTO users (prolific_id, name, time) VALUES (?, ?, ?)`,
		p.ProlificID, p.Name, p.RegisteredAt)
	if err != nil {
		if isSQLiteConstraintError(err) {
			slog.Warn("SQLiteStore SaveParticipant duplicate", "prolificID", p.ProlificID)
			return models.ErrParticipantExists
		}
		slog.Error("SQLiteStore SaveParticipant failed", "error", err, "prolificID", p.ProlificID)
		return fmt.Errorf("failed to insert participant %s: %w", p.ProlificID, err)
	}
	slog.Debug("SQLiteStore SaveParticipant succeeded", "prolificID", p.ProlificID)
	return nil
}

func (s *SQLiteStore) GetParticipant(prolificID string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.QueryRow(`SELECT prolific_id, name, time FROM users WHERE prolific_id = ?`, prolificID).
		Scan(&p.ProlificID, &p.Name, &p.RegisteredAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetParticipant not found", "prolificID", prolificID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetParticipant failed", "error", err, "prolificID", prolificID)
		return nil, fmt.Errorf("failed to query participant %s: %w", prolificID, err)
	}
	return &p, nil
}

func (s *SQLiteStore) AddSessionResponse(r models.SessionResponse) error {
	_, err := s.db.Exec(`INSERT INTO sessiondata (prolific_id, session_num, response_type, response_value, time) VALUES (?, ?, ?, ?, ?)`,
		r.ProlificID, r.SessionNum, r.ResponseType, r.ResponseValue, r.Time)
	if err != nil {
		slog.Error("SQLiteStore AddSessionResponse failed", "error", err, "prolificID", r.ProlificID, "type", r.ResponseType)
		return fmt.Errorf("failed to insert session response for %s: %w", r.ProlificID, err)
	}
	slog.Debug("SQLiteStore AddSessionResponse succeeded", "prolificID", r.ProlificID, "session", r.SessionNum, "type", r.ResponseType)
	return nil
}

func (s *SQLiteStore) GetSessionResponse(prolificID string, sessionNum int, responseType string) (*models.SessionResponse, error) {
	row := s.db.QueryRow(`SELECT prolific_id, session_num, response_type, response_value, time
		FROM sessiondata WHERE prolific_id = ? AND session_num = ? AND response_type = ?
		ORDER BY time DESC LIMIT 1`,
		prolificID, sessionNum, responseType)
	return scanSessionResponse(row, prolificID, responseType)
}

func (s *SQLiteStore) HasSessionData(prolificID string, sessionNum int) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM sessiondata WHERE prolific_id = ? AND session_num = ? LIMIT 1`,
		prolificID, sessionNum).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore HasSessionData failed", "error", err, "prolificID", prolificID, "session", sessionNum)
		return false, fmt.Errorf("failed to check session data for %s: %w", prolificID, err)
	}
	return true, nil
}

func (s *SQLiteStore) ActivityHistory(prolificID string) ([]int, error) {
	rows, err := s.db.Query(`SELECT response_value FROM sessiondata WHERE prolific_id = ? AND response_type = ? ORDER BY time`,
		prolificID, models.ResponseTypeActivityNewIndex)
	if err != nil {
		slog.Error("SQLiteStore ActivityHistory query failed", "error", err, "prolificID", prolificID)
		return nil, fmt.Errorf("failed to query activity history for %s: %w", prolificID, err)
	}
	defer rows.Close()
	return collectIndexValues(rows)
}

func (s *SQLiteStore) ResponseValueCounts(responseType string) (map[int]int, error) {
	rows, err := s.db.Query(`SELECT response_value FROM sessiondata WHERE response_type = ? AND response_value IS NOT NULL`,
		responseType)
	if err != nil {
		slog.Error("SQLiteStore ResponseValueCounts query failed", "error", err, "type", responseType)
		return nil, fmt.Errorf("failed to query %s counts: %w", responseType, err)
	}
	defer rows.Close()
	return countIndexValues(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// isSQLiteConstraintError reports whether err is a uniqueness violation.
func isSQLiteConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
