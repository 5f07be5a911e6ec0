package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/scenario"
	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

// SmokeOptions holds flags for the smoke command.
type SmokeOptions struct {
	*RootOptions
	Mode        string // deploy mode: install | reinstall
	SkipDeploy  bool
	Interactive bool
}

// SmokeResult is the JSON payload of a smoke run.
type SmokeResult struct {
	RunToken string   `json:"run_token"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Failed   string   `json:"failed_step,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// NewSmokeCommand creates the smoke command.
func NewSmokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SmokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "smoke [token-spec.cue]",
		Short: "Deploy a fresh token and run the built-in end-to-end scenario",
		Long: `Deploy the token canister with a fresh state and drive it through the
built-in smoke scenario: metadata checks, transfer, approve and
transferFrom across three throwaway identities.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (bad configuration, deploy failure, toolchain missing)

Examples:
  dipprobe smoke
  dipprobe smoke token.cue --network local
  dipprobe smoke --skip-deploy --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath := ""
			if len(args) == 1 {
				specPath = args[0]
			}
			return runSmoke(opts, specPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(agent.ModeReinstall), "deploy mode (install|reinstall)")
	cmd.Flags().BoolVar(&opts.SkipDeploy, "skip-deploy", false, "run against an already deployed token")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "prompt for the history-log principal when discovery fails")

	return cmd
}

func runSmoke(opts *SmokeOptions, specPath string, cmd *cobra.Command) error {
	mode := agent.DeployMode(opts.Mode)
	if mode != agent.ModeInstall && mode != agent.ModeReinstall {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mode %q: must be install or reinstall", opts.Mode))
	}

	spec, err := loadTokenSpec(specPath)
	if err != nil {
		return err
	}

	h, err := newHarness(opts.RootOptions)
	if err != nil {
		return err
	}

	var deploy func(context.Context, *scenario.Runner) error
	if !opts.SkipDeploy {
		deploy = func(ctx context.Context, r *scenario.Runner) error {
			return deployToken(ctx, h, spec, mode, opts.Interactive, cmd)
		}
	}

	sc, err := scenario.Smoke(spec, deploy)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot build smoke scenario", err)
	}

	db, err := h.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runner := scenario.NewRunner(h.ids, h.client)
	runner.Log = db
	runner.Network = h.cfg.Network
	runner.Out = cmd.OutOrStdout()

	result, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return WrapExitError(ExitCommandError, "smoke run aborted", err)
	}

	return reportScenario(opts.Format, cmd, sc, result)
}

// deployToken resolves the history-log principal and installs the token
// as the owner identity.
func deployToken(ctx context.Context, h *harness, spec *tokenspec.Spec, mode agent.DeployMode, interactive bool, cmd *cobra.Command) error {
	owner, err := h.ids.GetOrCreate(ctx, identity.Owner)
	if err != nil {
		return err
	}

	resolver, err := h.capResolver(interactive, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	capID, err := resolver.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("resolve history-log canister: %w", err)
	}

	canisterID, err := h.deployer.Deploy(ctx, owner, spec, capID, mode)
	if err != nil {
		return fmt.Errorf("deploy token: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  deployed %s as %s\n", h.cfg.Canister, canisterID)
	return nil
}

// loadTokenSpec reads a CUE token spec, or falls back to the built-in
// defaults when no path is given.
func loadTokenSpec(path string) (*tokenspec.Spec, error) {
	if path == "" {
		return tokenspec.Default(), nil
	}
	spec, err := tokenspec.Load(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid token spec", err)
	}
	return spec, nil
}

// reportScenario prints the outcome of one scenario run and maps a
// failure to the scenario-failure exit code.
func reportScenario(format string, cmd *cobra.Command, sc *scenario.Scenario, result *scenario.Result) error {
	payload := SmokeResult{
		RunToken: result.RunToken,
		Pass:     result.Pass,
		Steps:    len(sc.Steps),
		Failed:   result.FailedStep,
		Errors:   result.Errors,
	}

	f := &OutputFormatter{Format: format, Writer: cmd.OutOrStdout()}
	if format == "json" {
		if result.Pass {
			if err := f.Success(payload); err != nil {
				return err
			}
		} else {
			if err := f.Error("E_SCENARIO_FAILED", summarizeErrors(result.Errors), payload); err != nil {
				return err
			}
		}
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed at step %q", sc.Name, result.FailedStep))
	}
	return nil
}
