package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite history database
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the SQLite database at the specified path
func Open(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets `acp history` read while the daemon writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close checkpoints the WAL and closes the connection
func (db *DB) Close() error {
	if db.conn != nil {
		db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return db.conn.Close()
	}
	return nil
}

func (db *DB) initSchema() error {
	schema := `
	-- One row per check cycle
	CREATE TABLE IF NOT EXISTS check_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		trigger TEXT NOT NULL,
		outcome TEXT NOT NULL,
		regime TEXT NOT NULL,
		interval_seconds INTEGER NOT NULL,
		portal_url TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		login_attempts INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daemon lifecycle events
	CREATE TABLE IF NOT EXISTS daemon_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		details TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_check_events_timestamp ON check_events(timestamp);
	CREATE INDEX IF NOT EXISTS idx_daemon_events_timestamp ON daemon_events(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// CheckEvent is the record of one check cycle
type CheckEvent struct {
	ID            int64
	CycleID       string
	Trigger       string
	Outcome       string
	Regime        string
	Interval      time.Duration
	PortalURL     string
	Error         string
	LoginAttempts int
	Duration      time.Duration
	Timestamp     time.Time
}

// LogCheck records a completed check cycle. SQLITE_BUSY is retried
// briefly; history is best-effort and must not stall the loop.
func (db *DB) LogCheck(e CheckEvent) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		_, err := db.conn.Exec(
			`INSERT INTO check_events (cycle_id, trigger, outcome, regime, interval_seconds,
			   portal_url, error, login_attempts, duration_ms, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.CycleID, e.Trigger, e.Outcome, e.Regime, int64(e.Interval/time.Second),
			e.PortalURL, e.Error, e.LoginAttempts, e.Duration.Milliseconds(), e.Timestamp,
		)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "SQLITE_BUSY") {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return err
	}
	return fmt.Errorf("failed to log check after %d retries: database locked", maxRetries)
}

// GetRecentChecks returns the newest check events first
func (db *DB) GetRecentChecks(limit int) ([]CheckEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, cycle_id, trigger, outcome, regime, interval_seconds,
		        portal_url, error, login_attempts, duration_ms, timestamp
		 FROM check_events
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CheckEvent
	for rows.Next() {
		var e CheckEvent
		var intervalSeconds, durationMs int64
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Trigger, &e.Outcome, &e.Regime, &intervalSeconds,
			&e.PortalURL, &e.Error, &e.LoginAttempts, &durationMs, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Interval = time.Duration(intervalSeconds) * time.Second
		e.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// PruneChecks deletes check events older than before and returns the count
func (db *DB) PruneChecks(before time.Time) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM check_events WHERE timestamp < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DaemonEvent represents a daemon lifecycle event
type DaemonEvent struct {
	ID        int64
	EventType string
	Details   string
	Timestamp time.Time
}

// LogDaemonEvent logs a daemon lifecycle event to the database
func (db *DB) LogDaemonEvent(eventType, details string) error {
	_, err := db.conn.Exec(
		`INSERT INTO daemon_events (event_type, details, timestamp)
		 VALUES (?, ?, ?)`,
		eventType, details, time.Now(),
	)
	return err
}

// GetRecentDaemonEvents retrieves recent daemon events
func (db *DB) GetRecentDaemonEvents(limit int) ([]DaemonEvent, error) {
	rows, err := db.conn.Query(
		`SELECT id, event_type, details, timestamp
		 FROM daemon_events
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []DaemonEvent
	for rows.Next() {
		var e DaemonEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
