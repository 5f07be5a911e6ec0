package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/config"
	"github.com/tokenlabs/dipprobe/internal/dfx"
	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/store"
)

// capRouterCanister is the dfx.json name the discovery resolver asks
// for when no history-log principal was configured.
const capRouterCanister = "cap_router"

// harness bundles the wired components a command needs to talk to the
// token canister.
type harness struct {
	cfg      *config.Config
	runner   dfx.Runner
	ids      *identity.Provisioner
	client   *agent.Client
	deployer *agent.Deployer
}

// newHarness resolves configuration and wires the toolchain components.
// Configuration problems map to the command-error exit code; nothing
// here touches the network yet.
func newHarness(opts *RootOptions) (*harness, error) {
	cfg, err := config.Resolve(opts.Viper())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	runner := opts.Runner
	if runner == nil {
		exec := dfx.NewExecRunner(cfg.DfxBinary, cfg.CallTimeout, slog.Default())
		if err := exec.Available(); err != nil {
			return nil, WrapExitError(ExitCommandError, "dfx toolchain not available", err)
		}
		runner = exec
	}

	// Identities live under the project so principals stay stable across
	// commands but never leak into the user's global dfx state.
	// --fresh-identities trades that stability for a throwaway scope.
	root := filepath.Join(cfg.ProjectDir, ".dipprobe", "identities")
	if cfg.FreshIdentities {
		root, err = identity.TempRoot()
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "create identity scope", err)
		}
	}
	ids := identity.NewProvisioner(runner, root, slog.Default())

	return &harness{
		cfg:      cfg,
		runner:   runner,
		ids:      ids,
		client:   agent.NewClient(runner, cfg.Canister, cfg.Network, cfg.ProjectDir, slog.Default()),
		deployer: agent.NewDeployer(runner, cfg.Canister, cfg.Network, cfg.ProjectDir, slog.Default()),
	}, nil
}

// openStore opens the run log at the configured path.
func (h *harness) openStore() (*store.Store, error) {
	db, err := store.Open(h.cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open run log", err)
	}
	return db, nil
}

// capResolver builds the history-log resolution chain: an explicitly
// configured principal wins, otherwise the principal is discovered from
// the project's own canisters. With --interactive the operator is
// prompted as a last resort; automated runs never block on input.
func (h *harness) capResolver(interactive bool, in io.Reader, out io.Writer) (agent.CapResolver, error) {
	if h.cfg.CapCanister != "" {
		p, err := candid.ParsePrincipal(h.cfg.CapCanister)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid cap-canister principal", err)
		}
		return agent.StaticCap(p), nil
	}
	chain := agent.CapChain{
		agent.DiscoverCap{
			Runner:     h.runner,
			Canister:   capRouterCanister,
			Network:    h.cfg.Network,
			ProjectDir: h.cfg.ProjectDir,
		},
	}
	if interactive {
		chain = append(chain, agent.PromptCap{In: in, Out: out})
	}
	return chain, nil
}

func summarizeErrors(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return fmt.Sprintf("%d error(s), first: %s", len(errs), errs[0])
}
