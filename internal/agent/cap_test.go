package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
	"github.com/tokenlabs/dipprobe/internal/testutil"
)

func TestStaticCap(t *testing.T) {
	p, err := StaticCap("e22n6-waaaa-aaaah-qcd2q-cai").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, candid.Principal("e22n6-waaaa-aaaah-qcd2q-cai"), p)

	_, err = StaticCap("not a principal!").Resolve(context.Background())
	assert.Error(t, err)
}

func TestDiscoverCap(t *testing.T) {
	ledger := testutil.NewLedger()
	d := DiscoverCap{Runner: ledger, Canister: "cap_router", Network: "local"}

	p, err := d.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testutil.PrincipalFor("canister:cap_router"), p)
}

func TestPromptCap(t *testing.T) {
	var out strings.Builder
	p := PromptCap{In: strings.NewReader("e22n6-waaaa-aaaah-qcd2q-cai\n"), Out: &out}

	got, err := p.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, candid.Principal("e22n6-waaaa-aaaah-qcd2q-cai"), got)
	assert.Contains(t, out.String(), "history-log canister principal")
}

func TestCapChain_FirstSuccessWins(t *testing.T) {
	failing := dfx.RunnerFunc(func(ctx context.Context, req dfx.Request) (dfx.Output, error) {
		return dfx.Output{}, &dfx.ExecError{Args: req.Args, Err: assert.AnError}
	})

	chain := CapChain{
		DiscoverCap{Runner: failing, Canister: "cap_router", Network: "local"},
		StaticCap("e22n6-waaaa-aaaah-qcd2q-cai"),
	}

	p, err := chain.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, candid.Principal("e22n6-waaaa-aaaah-qcd2q-cai"), p)
}

func TestCapChain_AllFail(t *testing.T) {
	chain := CapChain{
		StaticCap(""),
		StaticCap("bad principal!"),
	}

	_, err := chain.Resolve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be resolved")
}

func TestCapChain_Empty(t *testing.T) {
	_, err := CapChain{}.Resolve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history-log resolution strategy")
}
