// Package identity provisions the ephemeral principals a scenario runs as.
//
// Each identity gets its own credential scope - a private directory that
// HOME and DFX_CONFIG_ROOT point at while dfx runs - so identities never
// share key material and parallel harness runs (e.g. in CI) cannot
// interfere with each other or with the operator's real dfx identities.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/dfx"
)

// Well-known identity names used by the built-in smoke scenario.
const (
	Owner = "dipprobe-owner"
	Alice = "alice"
	Bob   = "bob"
)

// Identity is a named principal with an isolated credential scope.
type Identity struct {
	Name      string
	Principal candid.Principal

	// Home is the credential directory holding this identity's key
	// material. Calls made as this identity run with HOME and
	// DFX_CONFIG_ROOT set to it.
	Home string
}

// Env returns the environment entries that scope a dfx invocation to this
// identity's credentials.
func (id *Identity) Env() []string {
	return []string{
		"HOME=" + id.Home,
		"DFX_CONFIG_ROOT=" + id.Home,
	}
}

// ProvisionError is fatal: identity setup is a precondition of a run, not
// a recoverable runtime operation, so there is no retry.
type ProvisionError struct {
	Name string
	Err  error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision identity %q: %v", e.Name, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// Provisioner creates and caches identities under a credential root.
//
// GetOrCreate is idempotent within a run: repeated calls for the same name
// return the identical Identity. The root may outlive the provisioner - a
// persistent root keeps principals stable across invocations, a TempRoot
// gives a run fully ephemeral identities. Either way an identity that
// already exists in the scope is reused, not re-created.
type Provisioner struct {
	runner dfx.Runner
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Identity
}

// NewProvisioner creates a provisioner whose credential scopes live under
// root. Root should be a fresh directory per run (see TempRoot).
func NewProvisioner(runner dfx.Runner, root string, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		runner: runner,
		root:   root,
		logger: logger,
		cache:  make(map[string]*Identity),
	}
}

// TempRoot creates a fresh per-run directory for credential scopes.
func TempRoot() (string, error) {
	dir, err := os.MkdirTemp("", "dipprobe-identities-*")
	if err != nil {
		return "", fmt.Errorf("create identity root: %w", err)
	}
	return dir, nil
}

// GetOrCreate returns the identity registered under name, provisioning it
// on first use. Provisioning failure is returned as a *ProvisionError and
// must abort the run.
func (p *Provisioner) GetOrCreate(ctx context.Context, name string) (*Identity, error) {
	if name == "" {
		return nil, &ProvisionError{Name: name, Err: fmt.Errorf("empty identity name")}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.cache[name]; ok {
		return id, nil
	}

	home := filepath.Join(p.root, name)
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, &ProvisionError{Name: name, Err: err}
	}

	id := &Identity{Name: name, Home: home}

	// A persistent root already holds the identity on the second and
	// later invocations; dfx rejects a duplicate `identity new`, so
	// only create what the scope does not list yet.
	exists, err := p.exists(ctx, id)
	if err != nil {
		return nil, &ProvisionError{Name: name, Err: err}
	}
	if !exists {
		_, err := p.runner.Run(ctx, dfx.Request{
			Args: []string{"identity", "new", name, "--storage-mode=plaintext"},
			Env:  id.Env(),
		})
		if err != nil {
			return nil, &ProvisionError{Name: name, Err: err}
		}
	}

	if _, err := p.runner.Run(ctx, dfx.Request{
		Args: []string{"identity", "use", name},
		Env:  id.Env(),
	}); err != nil {
		return nil, &ProvisionError{Name: name, Err: err}
	}

	out, err := p.runner.Run(ctx, dfx.Request{
		Args: []string{"--identity", name, "identity", "get-principal"},
		Env:  id.Env(),
	})
	if err != nil {
		return nil, &ProvisionError{Name: name, Err: err}
	}

	principal, err := candid.ParsePrincipal(strings.TrimSpace(out.Stdout))
	if err != nil {
		return nil, &ProvisionError{Name: name, Err: err}
	}
	id.Principal = principal

	p.logger.Info("identity provisioned", "name", name, "principal", principal)
	p.cache[name] = id
	return id, nil
}

// exists reports whether the identity is already registered in its
// credential scope.
func (p *Provisioner) exists(ctx context.Context, id *Identity) (bool, error) {
	out, err := p.runner.Run(ctx, dfx.Request{
		Args: []string{"identity", "list"},
		Env:  id.Env(),
	})
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out.Stdout, "\n") {
		if strings.TrimSpace(line) == id.Name {
			return true, nil
		}
	}
	return false, nil
}

// PrincipalOf returns the principal of a named identity, provisioning the
// identity if needed.
func (p *Provisioner) PrincipalOf(ctx context.Context, name string) (candid.Principal, error) {
	id, err := p.GetOrCreate(ctx, name)
	if err != nil {
		return "", err
	}
	return id.Principal, nil
}
