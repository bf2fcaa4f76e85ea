package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/QuitPrep/internal/models"
)

// scanSessionResponse scans a single session response row. A missing row is
// reported as (nil, nil), matching GetParticipant.
func scanSessionResponse(row *sql.Row, prolificID, responseType string) (*models.SessionResponse, error) {
	var r models.SessionResponse
	var value sql.NullString
	err := row.Scan(&r.ProlificID, &r.SessionNum, &r.ResponseType, &value, &r.Time)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s response for %s: %w", responseType, prolificID, err)
	}
	r.ResponseValue = value.String
	return &r, nil
}

// collectIndexValues reads integer response values from rows, skipping empty
// and malformed entries.
func collectIndexValues(rows *sql.Rows) ([]int, error) {
	var values []int
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			slog.Error("store: index value scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan index value row: %w", err)
		}
		if n, ok := parseIndexValue(value.String); ok {
			values = append(values, n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate index value rows: %w", err)
	}
	return values, nil
}

// countIndexValues tallies integer response values from rows.
func countIndexValues(rows *sql.Rows) (map[int]int, error) {
	counts := make(map[int]int)
	for rows.Next() {
		var value sql.NullString
		if err := rows.Scan(&value); err != nil {
			slog.Error("store: count value scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan count value row: %w", err)
		}
		if n, ok := parseIndexValue(value.String); ok {
			counts[n]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate count value rows: %w", err)
	}
	return counts, nil
}
