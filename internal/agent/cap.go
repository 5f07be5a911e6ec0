package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
)

// CapResolver yields the principal of the auxiliary history-log canister
// the token reports transactions to. Resolution strategies are explicit
// and selected by the caller: automated runs exclude the interactive
// prompt entirely so a missing value fails fast instead of hanging on
// operator input.
type CapResolver interface {
	Resolve(ctx context.Context) (candid.Principal, error)
}

// StaticCap resolves to an explicitly supplied principal.
type StaticCap candid.Principal

// Resolve implements CapResolver.
func (s StaticCap) Resolve(context.Context) (candid.Principal, error) {
	return candid.ParsePrincipal(string(s))
}

// DiscoverCap asks the toolchain for a locally deployed history-log
// canister by its dfx.json name.
type DiscoverCap struct {
	Runner     dfx.Runner
	Canister   string // dfx.json name, e.g. "cap_router"
	Network    string
	ProjectDir string
}

// Resolve implements CapResolver.
func (d DiscoverCap) Resolve(ctx context.Context) (candid.Principal, error) {
	out, err := d.Runner.Run(ctx, dfx.Request{
		Args: []string{"canister", "id", d.Canister, "--network", d.Network},
		Dir:  d.ProjectDir,
	})
	if err != nil {
		return "", fmt.Errorf("discover history-log canister: %w", err)
	}
	return candid.ParsePrincipal(strings.TrimSpace(out.Stdout))
}

// PromptCap asks the operator to paste a principal. Only wired in when the
// caller explicitly opts in to interactive resolution.
type PromptCap struct {
	In  io.Reader
	Out io.Writer
}

// Resolve implements CapResolver.
func (p PromptCap) Resolve(context.Context) (candid.Principal, error) {
	fmt.Fprint(p.Out, "history-log canister principal: ")
	line, err := bufio.NewReader(p.In).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read history-log principal: %w", err)
	}
	return candid.ParsePrincipal(strings.TrimSpace(line))
}

// CapChain tries each resolver in order and returns the first success.
// An empty chain, or a chain in which every strategy fails, is a
// provisioning failure that aborts the run.
type CapChain []CapResolver

// Resolve implements CapResolver.
func (c CapChain) Resolve(ctx context.Context) (candid.Principal, error) {
	var errs []string
	for _, r := range c {
		p, err := r.Resolve(ctx)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err.Error())
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no history-log resolution strategy configured")
	}
	return "", fmt.Errorf("history-log canister could not be resolved: %s", strings.Join(errs, "; "))
}
