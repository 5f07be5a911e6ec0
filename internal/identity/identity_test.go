package identity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlabs/dipprobe/internal/dfx"
	"github.com/tokenlabs/dipprobe/internal/testutil"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	ledger := testutil.NewLedger()
	prov := NewProvisioner(ledger, t.TempDir(), discard())
	ctx := context.Background()

	first, err := prov.GetOrCreate(ctx, Alice)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, Alice, first.Name)
	assert.NotEmpty(t, first.Principal)
	assert.NotEmpty(t, first.Home)

	// Same name twice in one run returns the identical identity.
	second, err := prov.GetOrCreate(ctx, Alice)
	require.NoError(t, err)
	assert.Same(t, first, second)

	// And no additional toolchain calls were made for the cache hit.
	calls := len(ledger.Requests)
	_, err = prov.GetOrCreate(ctx, Alice)
	require.NoError(t, err)
	assert.Len(t, ledger.Requests, calls)
}

func TestGetOrCreate_IsolatedScopes(t *testing.T) {
	ledger := testutil.NewLedger()
	prov := NewProvisioner(ledger, t.TempDir(), discard())
	ctx := context.Background()

	alice, err := prov.GetOrCreate(ctx, Alice)
	require.NoError(t, err)
	bob, err := prov.GetOrCreate(ctx, Bob)
	require.NoError(t, err)

	// Distinct credential scopes, never shared key material.
	assert.NotEqual(t, alice.Home, bob.Home)
	assert.NotEqual(t, alice.Principal, bob.Principal)
	assert.Contains(t, alice.Env(), "HOME="+alice.Home)
	assert.Contains(t, alice.Env(), "DFX_CONFIG_ROOT="+alice.Home)
}

func TestGetOrCreate_ReusesExistingIdentity(t *testing.T) {
	ledger := testutil.NewLedger()
	root := t.TempDir()
	ctx := context.Background()

	// dfx rejects a duplicate `identity new` outright.
	_, err := ledger.Run(ctx, dfx.Request{Args: []string{"identity", "new", Owner, "--storage-mode=plaintext"}})
	require.NoError(t, err)
	_, err = ledger.Run(ctx, dfx.Request{Args: []string{"identity", "new", Owner, "--storage-mode=plaintext"}})
	require.Error(t, err)

	// A second provisioner over the same credential root - a later CLI
	// invocation - must pick the identity up instead of re-creating it.
	first := NewProvisioner(ledger, root, discard())
	alice, err := first.GetOrCreate(ctx, Alice)
	require.NoError(t, err)

	second := NewProvisioner(ledger, root, discard())
	again, err := second.GetOrCreate(ctx, Alice)
	require.NoError(t, err)
	assert.Equal(t, alice.Principal, again.Principal)
	assert.Equal(t, alice.Home, again.Home)
}

func TestGetOrCreate_ProvisioningFailureIsFatal(t *testing.T) {
	ledger := testutil.NewLedger()
	prov := NewProvisioner(ledger, t.TempDir(), discard())
	ctx := context.Background()

	ledger.FailNext(assert.AnError)
	_, err := prov.GetOrCreate(ctx, Alice)
	require.Error(t, err)

	var provErr *ProvisionError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, Alice, provErr.Name)
}

func TestGetOrCreate_EmptyName(t *testing.T) {
	prov := NewProvisioner(testutil.NewLedger(), t.TempDir(), discard())

	_, err := prov.GetOrCreate(context.Background(), "")
	var provErr *ProvisionError
	require.ErrorAs(t, err, &provErr)
}

func TestPrincipalOf(t *testing.T) {
	ledger := testutil.NewLedger()
	prov := NewProvisioner(ledger, t.TempDir(), discard())
	ctx := context.Background()

	p, err := prov.PrincipalOf(ctx, Bob)
	require.NoError(t, err)
	assert.Equal(t, testutil.PrincipalFor(Bob), p)

	again, err := prov.PrincipalOf(ctx, Bob)
	require.NoError(t, err)
	assert.Equal(t, p, again)
}
