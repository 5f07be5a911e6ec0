package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

// DeployMode selects how the canister is provisioned.
type DeployMode string

const (
	// ModeInstall deploys the canister, upgrading in place if it exists.
	ModeInstall DeployMode = "install"

	// ModeReinstall wipes existing canister state and installs fresh.
	ModeReinstall DeployMode = "reinstall"
)

// Deployer provisions the token canister with its constructor arguments.
type Deployer struct {
	runner     dfx.Runner
	canister   string
	network    string
	projectDir string
	logger     *slog.Logger
}

// NewDeployer creates a deployer for the named canister.
func NewDeployer(runner dfx.Runner, canister, network, projectDir string, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		runner:     runner,
		canister:   canister,
		network:    network,
		projectDir: projectDir,
		logger:     logger,
	}
}

// Deploy installs the token canister as the owner identity and returns the
// canister's principal. The constructor arguments follow the canister's
// init schema: logo, name, symbol, decimals, initial supply, owner, fee,
// fee collector, history-log canister.
//
// Deployment failure is fatal to a run; there is no retry.
func (d *Deployer) Deploy(ctx context.Context, owner *identity.Identity, spec *tokenspec.Spec, capID candid.Principal, mode DeployMode) (candid.Principal, error) {
	feeTo := owner.Principal
	if spec.FeeTo != "" {
		p, err := candid.ParsePrincipal(spec.FeeTo)
		if err != nil {
			return "", fmt.Errorf("deploy: invalid feeTo: %w", err)
		}
		feeTo = p
	}

	initArgs := candid.EncodeArgs(
		candid.Text(spec.Logo),
		candid.Text(spec.Name),
		candid.Text(spec.Symbol),
		candid.Nat8(spec.Decimals),
		candid.Nat(spec.InitialSupply),
		owner.Principal,
		candid.Nat(spec.Fee),
		feeTo,
		capID,
	)

	args := []string{
		"--identity", owner.Name,
		"deploy", d.canister,
		"--network", d.network,
		"--argument", initArgs,
	}
	if mode == ModeReinstall {
		args = append(args, "--mode=reinstall", "--yes")
	}

	d.logger.Info("deploying token canister",
		"canister", d.canister, "network", d.network, "symbol", spec.Symbol, "mode", mode)

	if _, err := d.runner.Run(ctx, dfx.Request{Args: args, Dir: d.projectDir, Env: owner.Env()}); err != nil {
		return "", fmt.Errorf("deploy %s: %w", d.canister, err)
	}

	out, err := d.runner.Run(ctx, dfx.Request{
		Args: []string{"canister", "id", d.canister, "--network", d.network},
		Dir:  d.projectDir,
		Env:  owner.Env(),
	})
	if err != nil {
		return "", fmt.Errorf("resolve canister id: %w", err)
	}

	id, err := candid.ParsePrincipal(strings.TrimSpace(out.Stdout))
	if err != nil {
		return "", fmt.Errorf("resolve canister id: %w", err)
	}

	d.logger.Info("token canister deployed", "canister", d.canister, "id", id)
	return id, nil
}
