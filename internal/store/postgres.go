// Package store provides storage backends for QuitPrep.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/QuitPrep/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute

	// pqUniqueViolation is the PostgreSQL error code for unique constraint violations.
	pqUniqueViolation = "23505"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveParticipant(p models.Participant) error {
	_, err := s.db.Exec(`INSERT INTO users (prolific_id, name, time) VALUES ($1, $2, $3)`,
		p.ProlificID, p.Name, p.RegisteredAt)
	if err != nil {
		if isPostgresUniqueViolation(err) {
			slog.Warn("PostgresStore SaveParticipant duplicate", "prolificID", p.ProlificID)
			return models.ErrParticipantExists
		}
		slog.Error("PostgresStore SaveParticipant failed", "error", err, "prolificID", p.ProlificID)
		return fmt.Errorf("failed to insert participant %s: %w", p.ProlificID, err)
	}
	slog.Debug("PostgresStore SaveParticipant succeeded", "prolificID", p.ProlificID)
	return nil
}

func (s *PostgresStore) GetParticipant(prolificID string) (*models.Participant, error) {
	var p models.Participant
	err := s.db.QueryRow(`SELECT prolific_id, name, time FROM users WHERE prolific_id = $1`, prolificID).
		Scan(&p.ProlificID, &p.Name, &p.RegisteredAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetParticipant not found", "prolificID", prolificID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetParticipant failed", "error", err, "prolificID", prolificID)
		return nil, fmt.Errorf("failed to query participant %s: %w", prolificID, err)
	}
	return &p, nil
}

func (s *PostgresStore) AddSessionResponse(r models.SessionResponse) error {
	_, err := s.db.Exec(`INSERT INTO sessiondata (prolific_id, session_num, response_type, response_value, time) VALUES ($1, $2, $3, $4, $5)`,
		r.ProlificID, r.SessionNum, r.ResponseType, r.ResponseValue, r.Time)
	if err != nil {
		slog.Error("PostgresStore AddSessionResponse failed", "error", err, "prolificID", r.ProlificID, "type", r.ResponseType)
		return fmt.Errorf("failed to insert session response for %s: %w", r.ProlificID, err)
	}
	slog.Debug("PostgresStore AddSessionResponse succeeded", "prolificID", r.ProlificID, "session", r.SessionNum, "type", r.ResponseType)
	return nil
}

func (s *PostgresStore) GetSessionResponse(prolificID string, sessionNum int, responseType string) (*models.SessionResponse, error) {
	row := s.db.QueryRow(`SELECT prolific_id, session_num, response_type, response_value, time
		FROM sessiondata WHERE prolific_id = $1 AND session_num = $2 AND response_type = $3
		ORDER BY time DESC LIMIT 1`,
		prolificID, sessionNum, responseType)
	return scanSessionResponse(row, prolificID, responseType)
}

func (s *PostgresStore) HasSessionData(prolificID string, sessionNum int) (bool, error) {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM sessiondata WHERE prolific_id = $1 AND session_num = $2 LIMIT 1`,
		prolificID, sessionNum).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("PostgresStore HasSessionData failed", "error", err, "prolificID", prolificID, "session", sessionNum)
		return false, fmt.Errorf("failed to check session data for %s: %w", prolificID, err)
	}
	return true, nil
}

func (s *PostgresStore) ActivityHistory(prolificID string) ([]int, error) {
	rows, err := s.db.Query(`SELECT response_value FROM sessiondata WHERE prolific_id = $1 AND response_type = $2 ORDER BY time`,
		prolificID, models.ResponseTypeActivityNewIndex)
	if err != nil {
		slog.Error("PostgresStore ActivityHistory query failed", "error", err, "prolificID", prolificID)
		return nil, fmt.Errorf("failed to query activity history for %s: %w", prolificID, err)
	}
	defer rows.Close()
	return collectIndexValues(rows)
}

func (s *PostgresStore) ResponseValueCounts(responseType string) (map[int]int, error) {
	rows, err := s.db.Query(`SELECT response_value FROM sessiondata WHERE response_type = $1 AND response_value IS NOT NULL`,
		responseType)
	if err != nil {
		slog.Error("PostgresStore ResponseValueCounts query failed", "error", err, "type", responseType)
		return nil, fmt.Errorf("failed to query %s counts: %w", responseType, err)
	}
	defer rows.Close()
	return countIndexValues(rows)
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// isPostgresUniqueViolation reports whether err is a uniqueness violation.
func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	return false
}
