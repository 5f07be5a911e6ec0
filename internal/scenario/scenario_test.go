package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

func TestLoad_TransferScenario(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "transfer.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "transfer-basics", sc.Name)
	require.Len(t, sc.Steps, 5)

	first := sc.Steps[0]
	require.NotNil(t, first.Call)
	assert.Equal(t, "dipprobe-owner", first.Call.As)
	assert.Equal(t, "update", first.Call.Kind)
	assert.Equal(t, "transfer", first.Call.Method)
	require.Len(t, first.Call.Args, 2)
	assert.Equal(t, "@alice", first.Call.Args[0].Principal)
	require.NotNil(t, first.Call.Args[1].Nat)
	assert.Equal(t, uint64(2000), *first.Call.Args[1].Nat)
	require.NotNil(t, first.Call.Expect)
	assert.True(t, first.Call.Expect.Ok)

	last := sc.Steps[4]
	require.NotNil(t, last.Assert)
	assert.Equal(t, AssertSupply, last.Assert.Type)
	assert.Equal(t, uint64(100_000_000_000), last.Assert.Value)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	src := `name: typo
steps:
  - name: x
    call:
      as: alice
      kind: query
      method: name
      exepct:
        ok: true
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse YAML")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	q := func(v uint64) *uint64 { return &v }

	tests := []struct {
		name    string
		sc      *Scenario
		wantErr string
	}{
		{
			name:    "missing name",
			sc:      &Scenario{Steps: []Step{{Name: "s", Assert: &AssertStep{Type: AssertSupply}}}},
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			sc:      &Scenario{Name: "empty"},
			wantErr: "steps list is required",
		},
		{
			name: "step without body",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "hollow"},
			}},
			wantErr: "exactly one of call, assert, or action",
		},
		{
			name: "call and assert together",
			sc: &Scenario{Name: "s", Steps: []Step{
				{
					Name:   "both",
					Call:   &CallStep{As: "alice", Kind: "query", Method: "name"},
					Assert: &AssertStep{Type: AssertSupply},
				},
			}},
			wantErr: "exactly one of call, assert, or action",
		},
		{
			name: "bad call kind",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "c", Call: &CallStep{As: "alice", Kind: "mutate", Method: "transfer"}},
			}},
			wantErr: "call.kind",
		},
		{
			name: "argument with two types",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "c", Call: &CallStep{
					As: "alice", Kind: "update", Method: "transfer",
					Args: []Arg{{Principal: "@bob", Nat: q(1)}},
				}},
			}},
			wantErr: "exactly one of principal",
		},
		{
			name: "expect with two checks",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "c", Call: &CallStep{
					As: "alice", Kind: "query", Method: "totalSupply",
					Expect: &Expect{Ok: true, Nat: q(1)},
				}},
			}},
			wantErr: "expect must set exactly one",
		},
		{
			name: "balance assert without subject",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "a", Assert: &AssertStep{Type: AssertBalance, Value: 1}},
			}},
			wantErr: "assert.of is required",
		},
		{
			name: "unknown assert type",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "a", Assert: &AssertStep{Type: "holdings_eq"}},
			}},
			wantErr: "unknown assertion type",
		},
		{
			name: "valid",
			sc: &Scenario{Name: "s", Steps: []Step{
				{Name: "c", Call: &CallStep{
					As: "alice", Kind: "update", Method: "transfer",
					Args:   []Arg{{Principal: "@bob"}, {Nat: q(5)}},
					Expect: &Expect{Ok: true},
				}},
				{Name: "a", Assert: &AssertStep{Type: AssertSupply, Value: 10}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.sc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRunner_YAMLScenarios(t *testing.T) {
	for _, file := range []string{"transfer.yaml", "rejected.yaml"} {
		t.Run(file, func(t *testing.T) {
			sc, err := Load(filepath.Join("testdata", file))
			require.NoError(t, err)

			_, r := newRunner(t, tokenspec.Default())
			result, err := r.Run(context.Background(), sc)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
