package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/identity"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	Mode        string
	Interactive bool
}

// DeployResult is the JSON payload of a deploy.
type DeployResult struct {
	Canister  string `json:"canister"`
	Principal string `json:"principal"`
	Owner     string `json:"owner"`
	Network   string `json:"network"`
	Mode      string `json:"mode"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy [token-spec.cue]",
		Short: "Deploy the token canister with its constructor arguments",
		Long: `Deploy the token canister as the harness owner identity, passing the
token spec as constructor arguments. The history-log canister principal
comes from --cap-canister or is discovered from the project.

Examples:
  dipprobe deploy
  dipprobe deploy token.cue --mode reinstall
  dipprobe deploy --cap-canister aaaaa-aa`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			specPath := ""
			if len(args) == 1 {
				specPath = args[0]
			}
			return runDeploy(opts, specPath, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", string(agent.ModeInstall), "deploy mode (install|reinstall)")
	cmd.Flags().BoolVar(&opts.Interactive, "interactive", false, "prompt for the history-log principal when discovery fails")

	return cmd
}

func runDeploy(opts *DeployOptions, specPath string, cmd *cobra.Command) error {
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

	ctx := cmd.Context()
	owner, err := h.ids.GetOrCreate(ctx, identity.Owner)
	if err != nil {
		return WrapExitError(ExitCommandError, "provision owner identity", err)
	}

	resolver, err := h.capResolver(opts.Interactive, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	capID, err := resolver.Resolve(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "resolve history-log canister", err)
	}

	canisterID, err := h.deployer.Deploy(ctx, owner, spec, capID, mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "deploy failed", err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(DeployResult{
			Canister:  h.cfg.Canister,
			Principal: string(canisterID),
			Owner:     string(owner.Principal),
			Network:   h.cfg.Network,
			Mode:      string(mode),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "deployed %s as %s (owner %s, network %s)\n",
		h.cfg.Canister, canisterID, owner.Principal, h.cfg.Network)
	return nil
}
