package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/graylogic-ha/internal/hass"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// errEntityIDRequired is returned by history queries without an entity.
var errEntityIDRequired = errors.New("device: entity id is required")

// HistoryEntry is one stored state value.
type HistoryEntry struct {
	ID         int64       `json:"id"`
	DeviceID   string      `json:"device_id"`
	EntityID   string      `json:"entity_id"`
	Domain     hass.Domain `json:"domain"`
	Unit       string      `json:"unit,omitempty"`
	Value      float64     `json:"value"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// SQLiteStateRecorder implements StateRecorder using SQLite.
//
// It writes one row per published state into the state_history table
// created by the migrations package.
type SQLiteStateRecorder struct {
	db *sql.DB
}

// NewSQLiteStateRecorder creates a new SQLite state recorder.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteStateRecorder: Recorder instance ready for use
func NewSQLiteStateRecorder(db *sql.DB) *SQLiteStateRecorder {
	return &SQLiteStateRecorder{db: db}
}

// RecordState inserts a state history row.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - rec: The published state
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStateRecorder) RecordState(ctx context.Context, rec StateRecord) error {
	if rec.EntityID == "" {
		return errEntityIDRequired
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO state_history (device_id, entity_id, domain, unit, value, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.DeviceID,
		rec.EntityID,
		string(rec.Domain),
		rec.Unit,
		float64(rec.Value),
		at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}

	return nil
}

// History returns recent state history entries for an entity, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entityID: Entity identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []HistoryEntry: History entries ordered by recorded_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteStateRecorder) History(ctx context.Context, entityID string, limit int) ([]HistoryEntry, error) {
	if entityID == "" {
		return nil, errEntityIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, entity_id, domain, unit, value, recorded_at
		 FROM state_history
		 WHERE entity_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var domain string
		var recordedAt int64

		if err := rows.Scan(&entry.ID, &entry.DeviceID, &entry.EntityID, &domain, &entry.Unit, &entry.Value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		entry.Domain = hass.Domain(domain)
		entry.RecordedAt = time.UnixMilli(recordedAt).UTC()

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// Prune deletes history entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteStateRecorder) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().Add(-olderThan).UnixMilli()
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM state_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}
