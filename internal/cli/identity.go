package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/identity"
)

// IdentityResult is the JSON payload listing provisioned identities.
type IdentityResult struct {
	Identities []IdentityInfo `json:"identities"`
}

// IdentityInfo describes one provisioned identity.
type IdentityInfo struct {
	Name      string `json:"name"`
	Principal string `json:"principal"`
}

// NewIdentityCommand creates the identity command.
func NewIdentityCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity [name...]",
		Short: "Provision harness identities and print their principals",
		Long: `Provision the named harness identities (idempotent) and print each
identity's principal. Without arguments the three built-in identities
are provisioned: the owner and two counterparties.

Examples:
  dipprobe identity
  dipprobe identity auditor`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentity(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runIdentity(opts *RootOptions, names []string, cmd *cobra.Command) error {
	if len(names) == 0 {
		names = []string{identity.Owner, identity.Alice, identity.Bob}
	}

	h, err := newHarness(opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result := IdentityResult{Identities: make([]IdentityInfo, 0, len(names))}
	for _, name := range names {
		id, err := h.ids.GetOrCreate(ctx, name)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("provision identity %q", name), err)
		}
		result.Identities = append(result.Identities, IdentityInfo{
			Name:      id.Name,
			Principal: string(id.Principal),
		})
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(result)
	}
	for _, info := range result.Identities {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.Name, info.Principal)
	}
	return nil
}
