// Package storage provides the persisted store for special events, station
// status and status backups, backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. It is safe for concurrent use; SQLite
// serializes writers and the store assumes single-writer access per station
// at a time.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. An empty path or ":memory:"
// opens an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertEvent persists a new special event and returns its id.
func (s *Store) InsertEvent(ctx context.Context, ev SpecialEvent) (int64, error) {
	stations, err := json.Marshal(ev.Stations)
	if err != nil {
		return 0, fmt.Errorf("encode affected stations: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO metro_events (name, description, start_at, end_at, affected_stations, extended_closing, active, processed)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0)`,
		ev.Name, ev.Description, ev.Start.UTC().Format(time.RFC3339), ev.End.UTC().Format(time.RFC3339),
		string(stations), ev.ExtendedClosing,
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// Events returns every event row.
func (s *Store) Events(ctx context.Context) ([]SpecialEvent, error) {
	return s.queryEvents(ctx, `SELECT id, name, description, start_at, end_at, affected_stations, extended_closing, active, processed FROM metro_events ORDER BY start_at`)
}

// UnprocessedEvents returns events whose jobs have not been scheduled yet.
func (s *Store) UnprocessedEvents(ctx context.Context) ([]SpecialEvent, error) {
	return s.queryEvents(ctx, `SELECT id, name, description, start_at, end_at, affected_stations, extended_closing, active, processed FROM metro_events WHERE processed = 0 ORDER BY start_at`)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]SpecialEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SpecialEvent
	for rows.Next() {
		var ev SpecialEvent
		var desc, stations, extended sql.NullString
		var startAt, endAt string
		var active, processed int
		if err := rows.Scan(&ev.ID, &ev.Name, &desc, &startAt, &endAt, &stations, &extended, &active, &processed); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Description = desc.String
		ev.ExtendedClosing = extended.String
		ev.Active = active != 0
		ev.Processed = processed != 0
		if ev.Start, err = time.Parse(time.RFC3339, startAt); err != nil {
			return nil, fmt.Errorf("event %d has malformed start %q: %w", ev.ID, startAt, err)
		}
		if ev.End, err = time.Parse(time.RFC3339, endAt); err != nil {
			return nil, fmt.Errorf("event %d has malformed end %q: %w", ev.ID, endAt, err)
		}
		if stations.String != "" {
			if err := json.Unmarshal([]byte(stations.String), &ev.Stations); err != nil {
				return nil, fmt.Errorf("event %d has malformed station partition: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ClaimEvent flips processed on an unprocessed event. It returns false when
// the event was already claimed, which makes repeated scans idempotent.
func (s *Store) ClaimEvent(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE metro_events SET processed = 1 WHERE id = ? AND processed = 0`, id)
	if err != nil {
		return false, fmt.Errorf("claim event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetEventActive marks an event active or inactive.
func (s *Store) SetEventActive(ctx context.Context, id int64, active bool) error {
	v := 0
	if active {
		v = 1
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE metro_events SET active = ? WHERE id = ?`, v, id); err != nil {
		return fmt.Errorf("set event %d active=%v: %w", id, active, err)
	}
	return nil
}

// DeleteEvent removes an event row.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM metro_events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %d: %w", id, err)
	}
	return nil
}

// StationStatus returns a station's live status. The second return is false
// when no row exists.
func (s *Store) StationStatus(ctx context.Context, stationID string) (StationStatus, bool, error) {
	var st StationStatus
	var desc, msg sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT station_id, status_type_id, description, message FROM station_status WHERE station_id = ?`,
		stationID,
	).Scan(&st.StationID, &st.StatusTypeID, &desc, &msg)
	if err == sql.ErrNoRows {
		return StationStatus{}, false, nil
	}
	if err != nil {
		return StationStatus{}, false, fmt.Errorf("read status of %s: %w", stationID, err)
	}
	st.Description = desc.String
	st.Message = msg.String
	return st, true, nil
}

// AllStationStatuses returns every station's live status, ordered by id.
func (s *Store) AllStationStatuses(ctx context.Context) ([]StationStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT station_id, status_type_id, description, message FROM station_status ORDER BY station_id`)
	if err != nil {
		return nil, fmt.Errorf("query station statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StationStatus
	for rows.Next() {
		var st StationStatus
		var desc, msg sql.NullString
		if err := rows.Scan(&st.StationID, &st.StatusTypeID, &desc, &msg); err != nil {
			return nil, fmt.Errorf("scan station status: %w", err)
		}
		st.Description = desc.String
		st.Message = msg.String
		out = append(out, st)
	}
	return out, rows.Err()
}

// SetStationStatus upserts a station's live status and appends a
// status-history row in the same transaction.
func (s *Store) SetStationStatus(ctx context.Context, st StationStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO station_status (station_id, status_type_id, description, message, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(station_id) DO UPDATE SET
			status_type_id = excluded.status_type_id,
			description = excluded.description,
			message = excluded.message,
			updated_at = excluded.updated_at`,
		st.StationID, st.StatusTypeID, st.Description, st.Message, now,
	); err != nil {
		return fmt.Errorf("write status of %s: %w", st.StationID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO status_history (station_id, status_type_id, description, message, changed_at, processed)
		VALUES (?, ?, ?, ?, ?, 0)`,
		st.StationID, st.StatusTypeID, st.Description, st.Message, now,
	); err != nil {
		return fmt.Errorf("append status history for %s: %w", st.StationID, err)
	}
	return tx.Commit()
}

// BackupStatus records a station's pre-override status for an event. The
// (event, station) primary key plus INSERT OR IGNORE keeps re-applied
// overrides from clobbering the original backup.
func (s *Store) BackupStatus(ctx context.Context, eventID int64, st StationStatus) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO station_status_backup (event_id, station_id, prev_status_type_id, prev_description, prev_message)
		VALUES (?, ?, ?, ?, ?)`,
		eventID, st.StationID, st.StatusTypeID, st.Description, st.Message,
	); err != nil {
		return fmt.Errorf("backup status of %s for event %d: %w", st.StationID, eventID, err)
	}
	return nil
}

// BackupsForEvent returns every backup row tied to an event.
func (s *Store) BackupsForEvent(ctx context.Context, eventID int64) ([]StatusBackup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, station_id, prev_status_type_id, prev_description, prev_message
		FROM station_status_backup WHERE event_id = ? ORDER BY station_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query backups for event %d: %w", eventID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []StatusBackup
	for rows.Next() {
		var b StatusBackup
		var desc, msg sql.NullString
		if err := rows.Scan(&b.EventID, &b.StationID, &b.PrevStatusTypeID, &desc, &msg); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		b.PrevDescription = desc.String
		b.PrevMessage = msg.String
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBackup removes one (event, station) backup row.
func (s *Store) DeleteBackup(ctx context.Context, eventID int64, stationID string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM station_status_backup WHERE event_id = ? AND station_id = ?`,
		eventID, stationID,
	); err != nil {
		return fmt.Errorf("delete backup of %s for event %d: %w", stationID, eventID, err)
	}
	return nil
}

// UnprocessedChanges returns appended status-history rows not yet propagated
// downstream, oldest first.
func (s *Store) UnprocessedChanges(ctx context.Context) ([]StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, station_id, status_type_id, description, message, changed_at
		FROM status_history WHERE processed = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query unprocessed changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		var desc, msg sql.NullString
		var changedAt string
		if err := rows.Scan(&c.ID, &c.StationID, &c.StatusTypeID, &desc, &msg, &changedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		c.Description = desc.String
		c.Message = msg.String
		if c.ChangedAt, err = time.Parse(time.RFC3339, changedAt); err != nil {
			return nil, fmt.Errorf("change %d has malformed timestamp %q: %w", c.ID, changedAt, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkChangesProcessed flags history rows as propagated.
func (s *Store) MarkChangesProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark processed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE status_history SET processed = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark change %d processed: %w", id, err)
		}
	}
	return tx.Commit()
}
