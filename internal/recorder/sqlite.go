package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"TakaneWatch/internal/model"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			universe    INTEGER,
			updated     INTEGER,
			skipped     INTEGER,
			failed      INTEGER,
			breaks      INTEGER,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS high_events (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id       TEXT NOT NULL,
			timestamp     INTEGER NOT NULL,
			code          TEXT NOT NULL,
			name          TEXT,
			market        TEXT,
			status        TEXT NOT NULL,
			price         REAL,
			high          REAL,
			deviation_pct REAL,
			days_since    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_ts ON high_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_event_code ON high_events(code)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordScan(rep *model.ScanReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO scan_runs
		(id, timestamp, universe, updated, skipped, failed, breaks, duration_ms)
		VALUES (?,?,?,?,?,?,?,?)`,
		rep.ID, rep.StartedAt.Unix(), rep.Universe, rep.Updated, rep.Skipped,
		len(rep.Failures), rep.Breaks, rep.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecordHighEvent(scanID string, res *model.ScanResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO high_events
		(scan_id, timestamp, code, name, market, status, price, high, deviation_pct, days_since)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		scanID, time.Now().Unix(), res.State.Code, res.State.Name, res.State.Market,
		string(res.Status), res.CurrentPrice, res.RelevantHigh, res.DeviationPct, res.DaysSince,
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
