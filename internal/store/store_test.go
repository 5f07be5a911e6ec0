package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlabs/dipprobe/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database is fine.
	s, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginRun(ctx, Run{
		Token:     "run-1",
		Scenario:  "smoke",
		Network:   "local",
		StartedAt: started,
	}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRunning, run.Outcome)
	assert.Equal(t, "smoke", run.Scenario)
	assert.True(t, run.StartedAt.Equal(started))

	require.NoError(t, s.FinishRun(ctx, "run-1", OutcomePassed, ""))

	run, err = s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomePassed, run.Outcome)

	// Terminal states are final.
	err = s.FinishRun(ctx, "run-1", OutcomeFailed, "late failure")
	assert.Error(t, err)
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWriteAndReadTrace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, Run{
		Token: "run-1", Scenario: "smoke", Network: "local", StartedAt: time.Now(),
	}))

	records := []CallRecord{
		{RunToken: "run-1", Seq: 1, Step: "metadata", Identity: "dipprobe-owner", Kind: "query", Method: "name", Args: "()", OK: true, Result: `("Token")`},
		{RunToken: "run-1", Seq: 2, Step: "approve", Identity: "dipprobe-owner", Kind: "update", Method: "approve", Args: `(principal "aaaaa-aa", 10000 : nat)`, OK: true, Result: "(variant { Ok = 1 : nat })"},
		{RunToken: "run-1", Seq: 3, Step: "transfer", Identity: "bob", Kind: "update", Method: "transfer", Args: `(principal "aaaaa-aa", 500 : nat)`, OK: false, Result: ""},
	}
	for _, rec := range records {
		require.NoError(t, s.WriteCall(ctx, rec))
	}

	trace, err := s.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trace, 3)
	assert.Equal(t, records, trace)

	// Duplicate sequence numbers within a run are rejected.
	err = s.WriteCall(ctx, CallRecord{RunToken: "run-1", Seq: 2, Step: "dup", Kind: "query", Method: "name", Args: "()"})
	assert.Error(t, err)
}

func TestWriteCall_MonotonicSequence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, Run{
		Token: "run-seq", Scenario: "smoke", Network: "local", StartedAt: time.Now(),
	}))

	clk := testutil.NewClock()
	for _, method := range []string{"name", "symbol", "decimals", "totalSupply"} {
		require.NoError(t, s.WriteCall(ctx, CallRecord{
			RunToken: "run-seq",
			Seq:      clk.Next(),
			Step:     "metadata",
			Identity: "dipprobe-owner",
			Kind:     "query",
			Method:   method,
			Args:     "()",
			OK:       true,
		}))
	}

	trace, err := s.ReadTrace(ctx, "run-seq")
	require.NoError(t, err)
	require.Len(t, trace, int(clk.Current()))
	for i, rec := range trace {
		assert.Equal(t, int64(i+1), rec.Seq)
	}
}

func TestLatestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginRun(ctx, Run{Token: "run-1", Scenario: "smoke", Network: "local", StartedAt: base}))
	require.NoError(t, s.BeginRun(ctx, Run{Token: "run-2", Scenario: "smoke", Network: "local", StartedAt: base.Add(time.Minute)}))

	run, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", run.Token)
}

func TestLatestRun_Empty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestRun(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}
