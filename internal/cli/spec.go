package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

// SpecResult is the JSON payload of a validated token spec.
type SpecResult struct {
	Logo          string `json:"logo,omitempty"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	InitialSupply uint64 `json:"initial_supply"`
	Fee           uint64 `json:"fee"`
	FeeTo         string `json:"fee_to,omitempty"`
}

// NewSpecCommand creates the spec command.
func NewSpecCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec <token-spec.cue>",
		Short: "Validate a token spec file",
		Long: `Compile and validate a CUE token spec, printing the resolved
constructor arguments without touching any canister.

Examples:
  dipprobe spec token.cue
  dipprobe spec token.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpec(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runSpec(opts *RootOptions, path string, cmd *cobra.Command) error {
	spec, err := tokenspec.Load(path)
	if err != nil {
		var cerr *tokenspec.CompileError
		if errors.As(err, &cerr) {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if ferr := f.Error("E_SPEC_INVALID", cerr.Error(), map[string]string{
				"field": cerr.Field,
			}); ferr != nil {
				return ferr
			}
			return NewExitError(ExitFailure, "token spec is invalid")
		}
		return WrapExitError(ExitCommandError, "load token spec", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(SpecResult{
			Logo:          spec.Logo,
			Name:          spec.Name,
			Symbol:        spec.Symbol,
			Decimals:      spec.Decimals,
			InitialSupply: spec.InitialSupply,
			Fee:           spec.Fee,
			FeeTo:         spec.FeeTo,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (%s): decimals %d, supply %d, fee %d\n",
		spec.Name, spec.Symbol, spec.Decimals, spec.InitialSupply, spec.Fee)
	if spec.FeeTo != "" {
		fmt.Fprintf(w, "fees accrue to %s\n", spec.FeeTo)
	}
	return nil
}
