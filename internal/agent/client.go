// Package agent issues query and update calls to the token canister and
// drives its deployment, all through the dfx toolchain.
package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
	"github.com/tokenlabs/dipprobe/internal/identity"
)

// CallKind distinguishes read-only queries from state-mutating updates.
type CallKind string

const (
	// KindQuery is a read-only call; it never mutates canister state.
	KindQuery CallKind = "query"

	// KindUpdate goes through the replica's consensus path and mutates
	// state. Updates are never retried automatically: a retry after a
	// transient failure could double-apply a transfer.
	KindUpdate CallKind = "update"
)

// CallResult is the decoded outcome of a single canister call.
// A fresh value is produced per call and not retained beyond logging and
// assertions.
type CallResult struct {
	OK     bool
	Values []candid.Value
	Raw    string
	Err    error
}

// First returns the first decoded value of a successful call.
func (r CallResult) First() candid.Value {
	if len(r.Values) == 0 {
		return nil
	}
	return r.Values[0]
}

// Client issues calls against one canister on one network. The identity
// making each call is passed per call, not held by the client.
type Client struct {
	runner     dfx.Runner
	canister   string
	network    string
	projectDir string
	logger     *slog.Logger
}

// NewClient creates a client for the named canister.
func NewClient(runner dfx.Runner, canister, network, projectDir string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		runner:     runner,
		canister:   canister,
		network:    network,
		projectDir: projectDir,
		logger:     logger,
	}
}

// Query performs a read-only call as the given identity.
func (c *Client) Query(ctx context.Context, id *identity.Identity, method string, args ...candid.Value) CallResult {
	return c.call(ctx, id, KindQuery, method, args)
}

// Update performs a state-mutating call as the given identity.
// At-most-once: a failed update is surfaced to the caller, who decides
// whether to resubmit.
func (c *Client) Update(ctx context.Context, id *identity.Identity, method string, args ...candid.Value) CallResult {
	return c.call(ctx, id, KindUpdate, method, args)
}

func (c *Client) call(ctx context.Context, id *identity.Identity, kind CallKind, method string, args []candid.Value) CallResult {
	encoded := candid.EncodeArgs(args...)
	req := dfx.Request{
		Args: []string{
			"--identity", id.Name,
			"canister", "call", c.canister, method, encoded,
			"--network", c.network,
			"--" + string(kind),
		},
		Dir: c.projectDir,
		Env: id.Env(),
	}

	out, err := c.runner.Run(ctx, req)
	if err != nil {
		c.logger.Error("canister call failed",
			"method", method, "kind", kind, "identity", id.Name, "err", err)
		return CallResult{Raw: out.Stdout, Err: err}
	}

	raw := strings.TrimSpace(out.Stdout)
	vals, err := candid.Parse(raw)
	if err != nil {
		c.logger.Error("canister response undecodable",
			"method", method, "identity", id.Name, "raw", raw, "err", err)
		return CallResult{Raw: raw, Err: err}
	}

	c.logger.Debug("canister call ok",
		"method", method, "kind", kind, "identity", id.Name, "result", raw)
	return CallResult{OK: true, Values: vals, Raw: raw}
}
