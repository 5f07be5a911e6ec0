// Package dfx wraps invocations of the external dfx toolchain binary.
//
// Every remote interaction in this harness - identity provisioning,
// canister deployment, query and update calls - is a blocking round-trip
// through a dfx subprocess. The Runner interface is the seam tests use to
// substitute a simulated ledger for the real toolchain.
package dfx

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single toolchain invocation. Update calls go
// through the replica's consensus path and can take several seconds;
// deployments longer still.
const DefaultTimeout = 2 * time.Minute

// Request describes a single dfx invocation.
type Request struct {
	// Args are the arguments passed to the dfx binary.
	Args []string

	// Dir is the working directory, normally the project root holding
	// dfx.json. Empty means the current directory.
	Dir string

	// Env holds extra environment entries in KEY=VALUE form. Used to point
	// HOME and DFX_CONFIG_ROOT at an identity's isolated credential scope.
	Env []string
}

// Output carries the captured streams of a finished invocation.
type Output struct {
	Stdout string
	Stderr string
}

// Runner executes dfx requests. Implementations must be safe for
// sequential reuse; the harness never issues concurrent calls within a run.
type Runner interface {
	Run(ctx context.Context, req Request) (Output, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) (Output, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, req Request) (Output, error) {
	return f(ctx, req)
}

// ExecError reports a failed toolchain invocation with enough context to
// show the operator what was attempted.
type ExecError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("dfx %s: %v", strings.Join(e.Args, " "), e.Err)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += "\n" + s
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// ExecRunner runs the real dfx binary.
type ExecRunner struct {
	// Binary is the dfx executable; resolved via PATH when not absolute.
	Binary string

	// Timeout bounds each invocation. Zero means DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// NewExecRunner returns a runner for the given binary path.
// An empty path defaults to "dfx".
func NewExecRunner(binary string, timeout time.Duration, logger *slog.Logger) *ExecRunner {
	if binary == "" {
		binary = "dfx"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{Binary: binary, Timeout: timeout, Logger: logger}
}

// Run executes dfx with the request's arguments and captures both streams.
// A non-zero exit or a deadline expiry is returned as an *ExecError; the
// caller decides whether the failure is fatal. Nothing is retried here.
func (r *ExecRunner) Run(ctx context.Context, req Request) (Output, error) {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary, req.Args...)
	cmd.Dir = req.Dir
	if len(req.Env) > 0 {
		cmd.Env = append(os.Environ(), req.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	r.Logger.Debug("dfx invocation finished",
		"args", strings.Join(req.Args, " "),
		"duration", time.Since(start),
		"err", err,
	)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("timed out after %s: %w", timeout, ctxErr)
		}
		return out, &ExecError{Args: req.Args, Stderr: out.Stderr, Err: err}
	}
	return out, nil
}

// Available reports whether the toolchain binary can be resolved.
// Used to fail a run up front when dfx is not installed.
func (r *ExecRunner) Available() error {
	if _, err := exec.LookPath(r.Binary); err != nil {
		return fmt.Errorf("dfx toolchain not found: %w", err)
	}
	return nil
}
