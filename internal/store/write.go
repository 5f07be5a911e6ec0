package store

import (
	"context"
	"fmt"
	"time"
)

// Run outcomes.
const (
	OutcomeRunning = "running"
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
)

// Run is one scenario execution.
type Run struct {
	Token     string
	Scenario  string
	Network   string
	StartedAt time.Time
	Outcome   string
	Error     string
}

// CallRecord is one remote call made during a run.
type CallRecord struct {
	RunToken string
	Seq      int64
	Step     string
	Identity string
	Kind     string
	Method   string
	Args     string
	OK       bool
	Result   string
}

// BeginRun registers a run in the running state.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (token, scenario, network, started_at, outcome)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.Token,
		run.Scenario,
		run.Network,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		OutcomeRunning,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// WriteCall appends a call record. Sequence numbers must be unique within
// a run; the caller owns their assignment.
func (s *Store) WriteCall(ctx context.Context, rec CallRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (run_token, seq, step, identity, kind, method, args, ok, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RunToken,
		rec.Seq,
		rec.Step,
		rec.Identity,
		rec.Kind,
		rec.Method,
		rec.Args,
		rec.OK,
		rec.Result,
	)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// FinishRun records the terminal outcome of a run. Terminal states are
// final; a finished run is never moved back to running.
func (s *Store) FinishRun(ctx context.Context, token, outcome, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, error = ? WHERE token = ? AND outcome = ?
	`, outcome, errMsg, token, OutcomeRunning)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: run %q not found or already finished", token)
	}
	return nil
}
