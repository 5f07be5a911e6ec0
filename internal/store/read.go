package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("run not found")

// ReadRun returns the run registered under token.
func (s *Store) ReadRun(ctx context.Context, token string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, scenario, network, started_at, outcome, error
		FROM runs WHERE token = ?
	`, token)
	return scanRun(row)
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, scenario, network, started_at, outcome, error
		FROM runs ORDER BY started_at DESC, token DESC LIMIT 1
	`)
	return scanRun(row)
}

// ReadTrace returns the call records of a run in sequence order.
func (s *Store) ReadTrace(ctx context.Context, token string) ([]CallRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, seq, step, identity, kind, method, args, ok, result
		FROM calls WHERE run_token = ? ORDER BY seq
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	defer rows.Close()

	var trace []CallRecord
	for rows.Next() {
		var rec CallRecord
		if err := rows.Scan(
			&rec.RunToken, &rec.Seq, &rec.Step, &rec.Identity,
			&rec.Kind, &rec.Method, &rec.Args, &rec.OK, &rec.Result,
		); err != nil {
			return nil, fmt.Errorf("read trace: %w", err)
		}
		trace = append(trace, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return trace, nil
}

func scanRun(row *sql.Row) (Run, error) {
	var run Run
	var startedAt string
	err := row.Scan(&run.Token, &run.Scenario, &run.Network, &startedAt, &run.Outcome, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Run{}, fmt.Errorf("read run: malformed started_at: %w", err)
	}
	return run, nil
}
