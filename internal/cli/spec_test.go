package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSpecFile(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.cue")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestSpecCommand_Valid(t *testing.T) {
	opts := NewRootOptions()
	path := writeSpecFile(t, `token: {
	name: "Probe Coin"
	symbol: "PRB"
	decimals: 8
	initialSupply: 1000000
}
`)

	out, err := execute(t, NewSpecCommand(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Probe Coin (PRB)")
	assert.Contains(t, out, "supply 1000000")
}

func TestSpecCommand_InvalidSymbol(t *testing.T) {
	opts := NewRootOptions()
	path := writeSpecFile(t, `token: {
	name: "Probe Coin"
	symbol: "prb"
	decimals: 8
	initialSupply: 1000000
}
`)

	out, err := execute(t, NewSpecCommand(opts), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E_SPEC_INVALID")
}

func TestSpecCommand_MissingFile(t *testing.T) {
	opts := NewRootOptions()

	_, err := execute(t, NewSpecCommand(opts), filepath.Join(t.TempDir(), "none.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSpecCommand_JSON(t *testing.T) {
	opts := NewRootOptions()
	opts.Format = "json"
	path := writeSpecFile(t, `token: {
	name: "Probe Coin"
	symbol: "PRB"
	decimals: 8
	initialSupply: 1000000
	fee: 5
}
`)

	out, err := execute(t, NewSpecCommand(opts), path)
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "ok"`)
	assert.Contains(t, out, `"fee": 5`)
}
