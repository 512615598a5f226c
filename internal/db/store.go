// Package db persists K-function runs in SQLite: the run parameters, the raw
// OD cost matrix of every iteration, and the raw and summary K rows.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/crash-analysis/internal/kfunction"
	"github.com/banshee-data/crash-analysis/internal/monitoring"
	"github.com/banshee-data/crash-analysis/internal/netk"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store implements kfunction.ResultWriter on a SQLite database.
type Store struct {
	db *sql.DB
}

var _ kfunction.ResultWriter = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	monitoring.Logf("[db] opened %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// WriteRun inserts a new run.
func (s *Store) WriteRun(ctx context.Context, run kfunction.Run) error {
	levels, err := json.Marshal(run.ConfidenceLevels)
	if err != nil {
		return fmt.Errorf("encode confidence levels: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO netk_runs (
			run_id, analysis_type, network, network_length,
			begin_distance, distance_increment, snap_distance,
			num_bands, num_points, num_permutations, confidence_levels,
			started_at, iterations, elapsed_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.AnalysisType), run.Network, run.NetworkLength,
		run.BeginDistance, run.DistanceIncrement, run.SnapDistance,
		run.NumBands, run.NumPoints, run.NumPermutations, string(levels),
		run.StartedAt.UnixNano(), run.Iterations, int64(run.Elapsed),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// CompleteRun records the values resolved while the run executed.
func (s *Store) CompleteRun(ctx context.Context, run kfunction.Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE netk_runs
		SET num_bands = ?, num_points = ?, iterations = ?, elapsed_ns = ?, completed = 1
		WHERE run_id = ?`,
		run.NumBands, run.NumPoints, run.Iterations, int64(run.Elapsed), run.ID,
	)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// WriteODCM stores the OD distances of one iteration.
func (s *Store) WriteODCM(ctx context.Context, runID string, iteration int, records []netk.DistanceRecord) error {
	return s.inTx(ctx, `
		INSERT INTO netk_odcm (run_id, iteration, origin_id, destination_id, total_length)
		VALUES (?, ?, ?, ?, ?)`, len(records), func(stmt *sql.Stmt, i int) error {
		r := records[i]
		_, err := stmt.ExecContext(ctx, runID, iteration, r.OriginID, r.DestinationID, r.Distance)
		return err
	})
}

// WriteRaw stores the per-iteration K rows.
func (s *Store) WriteRaw(ctx context.Context, runID string, rows []kfunction.RawRow) error {
	return s.inTx(ctx, `
		INSERT INTO netk_raw (run_id, iteration, distance_band, count, k_function)
		VALUES (?, ?, ?, ?, ?)`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, runID, r.Iteration, r.DistanceBand, r.Count, r.KFunction)
		return err
	})
}

// WriteSummary stores the observed and envelope rows, keeping their order.
func (s *Store) WriteSummary(ctx context.Context, runID string, rows []kfunction.SummaryRow) error {
	return s.inTx(ctx, `
		INSERT INTO netk_summary (run_id, seq, description, distance_band, count, k_function)
		VALUES (?, ?, ?, ?, ?, ?)`, len(rows), func(stmt *sql.Stmt, i int) error {
		r := rows[i]
		_, err := stmt.ExecContext(ctx, runID, i, r.Description, r.DistanceBand, r.Count, r.KFunction)
		return err
	})
}

// inTx prepares query once and executes it n times in one transaction.
func (s *Store) inTx(ctx context.Context, query string, n int, exec func(stmt *sql.Stmt, i int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*kfunction.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, analysis_type, network, network_length,
		       begin_distance, distance_increment, snap_distance,
		       num_bands, num_points, num_permutations, confidence_levels,
		       started_at, iterations, elapsed_ns
		FROM netk_runs
		WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*kfunction.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, analysis_type, network, network_length,
		       begin_distance, distance_increment, snap_distance,
		       num_bands, num_points, num_permutations, confidence_levels,
		       started_at, iterations, elapsed_ns
		FROM netk_runs
		ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*kfunction.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*kfunction.Run, error) {
	var (
		r         kfunction.Run
		atype     string
		levels    string
		startedAt int64
		elapsed   int64
	)
	err := row.Scan(
		&r.ID, &atype, &r.Network, &r.NetworkLength,
		&r.BeginDistance, &r.DistanceIncrement, &r.SnapDistance,
		&r.NumBands, &r.NumPoints, &r.NumPermutations, &levels,
		&startedAt, &r.Iterations, &elapsed,
	)
	if err != nil {
		return nil, err
	}
	r.AnalysisType = netk.AnalysisType(atype)
	if err := json.Unmarshal([]byte(levels), &r.ConfidenceLevels); err != nil {
		return nil, fmt.Errorf("decode confidence levels of run %s: %w", r.ID, err)
	}
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.Elapsed = time.Duration(elapsed)
	return &r, nil
}

// ODCMIterations returns the iterations with stored OD distances, ascending.
func (s *Store) ODCMIterations(ctx context.Context, runID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT iteration FROM netk_odcm WHERE run_id = ? ORDER BY iteration`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var it int
		if err := rows.Scan(&it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// ODCM returns the OD distances of one iteration in insertion order.
func (s *Store) ODCM(ctx context.Context, runID string, iteration int) ([]netk.DistanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT origin_id, destination_id, total_length
		FROM netk_odcm
		WHERE run_id = ? AND iteration = ?
		ORDER BY rowid`, runID, iteration)
	if err != nil {
		return nil, fmt.Errorf("query OD cost matrix: %w", err)
	}
	defer rows.Close()

	var out []netk.DistanceRecord
	for rows.Next() {
		var r netk.DistanceRecord
		if err := rows.Scan(&r.OriginID, &r.DestinationID, &r.Distance); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RawRows returns the raw K rows of a run ordered by iteration and band.
func (s *Store) RawRows(ctx context.Context, runID string) ([]kfunction.RawRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT iteration, distance_band, count, k_function
		FROM netk_raw
		WHERE run_id = ?
		ORDER BY iteration, distance_band`, runID)
	if err != nil {
		return nil, fmt.Errorf("query raw rows: %w", err)
	}
	defer rows.Close()

	var out []kfunction.RawRow
	for rows.Next() {
		var r kfunction.RawRow
		if err := rows.Scan(&r.Iteration, &r.DistanceBand, &r.Count, &r.KFunction); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SummaryRows returns the summary rows of a run in the order written.
func (s *Store) SummaryRows(ctx context.Context, runID string) ([]kfunction.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT description, distance_band, count, k_function
		FROM netk_summary
		WHERE run_id = ?
		ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query summary rows: %w", err)
	}
	defer rows.Close()

	var out []kfunction.SummaryRow
	for rows.Next() {
		var r kfunction.SummaryRow
		if err := rows.Scan(&r.Description, &r.DistanceBand, &r.Count, &r.KFunction); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and all of its rows.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM netk_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
