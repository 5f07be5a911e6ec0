package scenario

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

// The trace of a fixed-token run is fully deterministic: identities map
// to fixed principals on the simulated ledger and results come back in
// canonical Candid text, so the whole run can be pinned as a golden file.
func TestCanonicalTrace_Golden(t *testing.T) {
	_, r := newRunner(t, tokenspec.Default())

	sc := &Scenario{
		Name:     "golden",
		RunToken: "golden-run",
		Steps: []Step{
			{Name: "token name", Call: &CallStep{
				As: identity.Owner, Kind: "query", Method: "name",
			}},
			{Name: "owner holds the supply", Assert: &AssertStep{
				Type: AssertBalance, Of: "@" + identity.Owner,
				Value: 100_000_000_000,
			}},
			{Name: "owner approves alice", Call: &CallStep{
				As: identity.Owner, Kind: "update", Method: "approve",
				Args:   []Arg{{Principal: "@" + identity.Alice}, {Nat: nat(10_000)}},
				Expect: &Expect{Ok: true},
			}},
			{Name: "allowance recorded", Assert: &AssertStep{
				Type: AssertAllowance,
				Owner: "@" + identity.Owner, Spender: "@" + identity.Alice,
				Value: 10_000,
			}},
		},
	}

	result, err := r.Run(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	out, err := CanonicalTrace(result)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "trace", out)
}

// Equivalent Unicode compositions of the same text canonicalize to the
// same trace bytes.
func TestCanonicalTrace_NormalizesUnicode(t *testing.T) {
	nfd := &Result{State: Completed, Pass: true, Trace: []TraceEvent{
		{Seq: 1, Step: "café", Kind: "query", Method: "name", OK: true},
	}}
	nfc := &Result{State: Completed, Pass: true, Trace: []TraceEvent{
		{Seq: 1, Step: "café", Kind: "query", Method: "name", OK: true},
	}}

	a, err := CanonicalTrace(nfd)
	require.NoError(t, err)
	b, err := CanonicalTrace(nfc)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
