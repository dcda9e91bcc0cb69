// Package store keeps a per-run journal of download outcomes in DuckDB.
// The journal is diagnostics for the status command and the web API; a
// failure to record never aborts the pipeline.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/mapfeed/tilewalk/internal/model"
)

// Store manages journal persistence via DuckDB.
type Store struct {
	DB      *sql.DB
	DataDir string
}

// New opens (or creates) the journal database in the given data directory.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "tilewalk.duckdb")
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}

	s := &Store{DB: db, DataDir: dataDir}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate() error {
	seqs := []string{
		"CREATE SEQUENCE IF NOT EXISTS runs_seq",
	}
	for _, seq := range seqs {
		if _, err := s.DB.Exec(seq); err != nil {
			return fmt.Errorf("creating sequence: %w", err)
		}
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY DEFAULT nextval('runs_seq'),
			started_at TEXT NOT NULL,
			finished_at TEXT,
			features INTEGER NOT NULL,
			tiles_wanted INTEGER NOT NULL,
			downloaded INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			absent INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS tile_outcomes (
			run_id INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT,
			PRIMARY KEY (run_id, x, y)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration %q: %w", stmt[:40], err)
		}
	}

	return nil
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(features, tilesWanted int) (int, error) {
	var id int
	err := s.DB.QueryRow(
		"INSERT INTO runs (started_at, features, tiles_wanted) VALUES (?, ?, ?) RETURNING id",
		time.Now().UTC().Format(time.RFC3339), features, tilesWanted,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return id, nil
}

// RecordOutcome stores one tile outcome for a run. Re-recording the
// same tile within a run replaces the previous row.
func (s *Store) RecordOutcome(o model.TileOutcome) error {
	_, err := s.DB.Exec(
		"INSERT OR REPLACE INTO tile_outcomes (run_id, x, y, outcome, detail) VALUES (?, ?, ?, ?, ?)",
		o.RunID, int64(o.X), int64(o.Y), string(o.Outcome), o.Detail,
	)
	return err
}

// FinishRun stamps the run as finished and stores its tally.
func (s *Store) FinishRun(id int, tally model.Tally) error {
	_, err := s.DB.Exec(
		"UPDATE runs SET finished_at = ?, downloaded = ?, skipped = ?, absent = ?, failed = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339),
		tally.Downloaded, tally.Skipped, tally.Absent, tally.Failed, id,
	)
	return err
}

// LastRun returns the most recent run, or nil when the journal is empty.
func (s *Store) LastRun() (*model.Run, error) {
	row := s.DB.QueryRow(
		"SELECT id, started_at, finished_at, features, tiles_wanted, downloaded, skipped, absent, failed FROM runs ORDER BY id DESC LIMIT 1",
	)

	var r model.Run
	var finished sql.NullString
	err := row.Scan(&r.ID, &r.StartedAt, &finished, &r.Features, &r.TilesWanted,
		&r.Tally.Downloaded, &r.Tally.Skipped, &r.Tally.Absent, &r.Tally.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.FinishedAt = finished.String
	return &r, nil
}

// Runs returns up to limit recent runs, newest first.
func (s *Store) Runs(limit int) ([]model.Run, error) {
	rows, err := s.DB.Query(
		"SELECT id, started_at, finished_at, features, tiles_wanted, downloaded, skipped, absent, failed FROM runs ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Features, &r.TilesWanted,
			&r.Tally.Downloaded, &r.Tally.Skipped, &r.Tally.Absent, &r.Tally.Failed); err != nil {
			return nil, err
		}
		r.FinishedAt = finished.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunCount returns the total number of journaled runs.
func (s *Store) RunCount() int {
	var n int
	s.DB.QueryRow("SELECT COUNT(*) FROM runs").Scan(&n)
	return n
}

// OutcomeCounts returns outcome totals for one run.
func (s *Store) OutcomeCounts(runID int) map[model.Outcome]int {
	m := make(map[model.Outcome]int)
	rows, err := s.DB.Query(
		"SELECT outcome, COUNT(*) FROM tile_outcomes WHERE run_id = ? GROUP BY outcome",
		runID,
	)
	if err != nil {
		return m
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var cnt int
		rows.Scan(&outcome, &cnt)
		m[model.Outcome(outcome)] = cnt
	}
	return m
}

// Outcomes returns all journaled outcomes for one run.
func (s *Store) Outcomes(runID int) ([]model.TileOutcome, error) {
	rows, err := s.DB.Query(
		"SELECT run_id, x, y, outcome, detail FROM tile_outcomes WHERE run_id = ? ORDER BY x, y",
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []model.TileOutcome
	for rows.Next() {
		var o model.TileOutcome
		var detail sql.NullString
		var x, y int64
		if err := rows.Scan(&o.RunID, &x, &y, (*string)(&o.Outcome), &detail); err != nil {
			return nil, err
		}
		o.X = uint32(x)
		o.Y = uint32(y)
		o.Detail = detail.String
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
