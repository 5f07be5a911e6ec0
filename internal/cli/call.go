package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/identity"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	As     string
	Update bool
}

// CallResultPayload is the JSON payload of a single call.
type CallResultPayload struct {
	Method   string `json:"method"`
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
	Result   string `json:"result"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <method> [args...]",
		Short: "Invoke a single canister method",
		Long: `Invoke one method on the deployed token canister as a named harness
identity. Arguments are Candid textual values; "@name" resolves to the
principal of the named harness identity.

Examples:
  dipprobe call name
  dipprobe call balanceOf @alice
  dipprobe call transfer @bob '1000 : nat' --update --as alice`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.As, "as", identity.Owner, "identity to call as")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "issue an update call instead of a query")

	return cmd
}

func runCall(opts *CallOptions, method string, rawArgs []string, cmd *cobra.Command) error {
	h, err := newHarness(opts.RootOptions)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	id, err := h.ids.GetOrCreate(ctx, opts.As)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("provision identity %q", opts.As), err)
	}

	args, err := parseCallArgs(ctx, h, rawArgs)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	kind := "query"
	var res agent.CallResult
	if opts.Update {
		kind = "update"
		res = h.client.Update(ctx, id, method, args...)
	} else {
		res = h.client.Query(ctx, id, method, args...)
	}
	if res.Err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("call %s failed", method), res.Err)
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return f.Success(CallResultPayload{
			Method:   method,
			Kind:     kind,
			Identity: opts.As,
			Result:   res.Raw,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Raw)
	return nil
}

// parseCallArgs turns command-line argument strings into Candid values.
// An argument starting with "@" names a harness identity and resolves to
// its principal; anything else is parsed as a Candid textual value.
func parseCallArgs(ctx context.Context, h *harness, raw []string) ([]candid.Value, error) {
	args := make([]candid.Value, 0, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "@") {
			p, err := h.ids.PrincipalOf(ctx, s[1:])
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			args = append(args, p)
			continue
		}

		vals, err := candid.Parse("(" + s + ")")
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		if len(vals) != 1 {
			return nil, fmt.Errorf("argument %d: expected one value, got %d", i, len(vals))
		}
		args = append(args, vals[0])
	}
	return args, nil
}
