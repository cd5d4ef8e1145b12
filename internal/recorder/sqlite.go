package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"CryptoIngest/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode
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
		`CREATE TABLE IF NOT EXISTS ingest_runs (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at        INTEGER NOT NULL,
			finished_at       INTEGER NOT NULL,
			status            TEXT NOT NULL,
			window_days       INTEGER,
			attempted         INTEGER,
			succeeded         INTEGER,
			failed            INTEGER,
			warnings          INTEGER,
			raw_records       INTEGER,
			processed_records INTEGER,
			error             TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS symbol_results (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      INTEGER NOT NULL REFERENCES ingest_runs(id),
			coin        TEXT NOT NULL,
			market_pair TEXT NOT NULL,
			ok          INTEGER NOT NULL,
			attempts    INTEGER,
			candles     INTEGER,
			records     INTEGER,
			dropped     INTEGER,
			reordered   INTEGER,
			err_kind    TEXT,
			reason      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_run ON symbol_results(run_id)`,

		`CREATE TABLE IF NOT EXISTS candle_warnings (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       INTEGER NOT NULL REFERENCES ingest_runs(id),
			coin         TEXT NOT NULL,
			open_time_ms INTEGER,
			reason       TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the summary and its per-symbol results in one transaction.
func (r *SQLiteRecorder) RecordRun(s *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO ingest_runs
		(started_at, finished_at, status, window_days, attempted, succeeded, failed,
		 warnings, raw_records, processed_records, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		s.StartedAt.UnixMilli(), s.FinishedAt.UnixMilli(), string(s.Status), s.Window,
		s.Attempted, s.Succeeded, s.Failed, len(s.Warnings),
		s.RawRecords, s.ProcessedRecords, s.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	for _, sr := range s.Symbols {
		if _, err := tx.Exec(`INSERT INTO symbol_results
			(run_id, coin, market_pair, ok, attempts, candles, records, dropped, reordered, err_kind, reason)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			runID, sr.Coin, sr.MarketPair, boolInt(sr.OK), sr.Attempts,
			sr.Candles, sr.Records, sr.Dropped, boolInt(sr.Reordered), sr.ErrKind, sr.Reason,
		); err != nil {
			return fmt.Errorf("insert symbol result %s: %w", sr.Coin, err)
		}
	}
	for _, w := range s.Warnings {
		if _, err := tx.Exec(`INSERT INTO candle_warnings (run_id, coin, open_time_ms, reason) VALUES (?,?,?,?)`,
			runID, w.Coin, w.OpenTimeMs, w.Reason,
		); err != nil {
			return fmt.Errorf("insert warning %s: %w", w.Coin, err)
		}
	}
	return tx.Commit()
}

// LastRuns returns up to n most recent runs, newest first.
func (r *SQLiteRecorder) LastRuns(n int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, started_at, finished_at, status, window_days, attempted,
		succeeded, failed, warnings, raw_records, processed_records, error
		FROM ingest_runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished int64
		var status string
		if err := rows.Scan(&rec.ID, &started, &finished, &status, &rec.Window, &rec.Attempted,
			&rec.Succeeded, &rec.Failed, &rec.Warnings, &rec.RawRecords, &rec.ProcessedRecords, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.FinishedAt = time.UnixMilli(finished)
		rec.Status = model.RunStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
