package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/store"
)

// TokenGenerator produces run tokens.
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run tokens, so runs in
// the log sort by creation time.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Runner executes one scenario against a deployed token canister.
//
// A Runner is single-use: Run drives the state machine NotStarted ->
// Running -> Completed/Failed exactly once. Steps execute strictly
// sequentially and the first failure halts the run; later steps are
// never entered because they assume earlier mutations succeeded.
type Runner struct {
	Identities *identity.Provisioner
	Client     *agent.Client

	// Log is the optional run store; nil disables recording.
	Log *store.Store

	// Network labels the run in the log.
	Network string

	// Tokens generates the run token when the scenario has no fixed one.
	Tokens TokenGenerator

	// Out receives human-readable per-step progress.
	Out io.Writer

	Logger *slog.Logger

	state State
	seq   int64
	token string
}

// NewRunner creates a runner with defaults filled in.
func NewRunner(ids *identity.Provisioner, client *agent.Client) *Runner {
	return &Runner{
		Identities: ids,
		Client:     client,
		Tokens:     UUIDv7Generator{},
		Out:        os.Stdout,
		Logger:     slog.Default(),
	}
}

// State reports the runner's lifecycle position.
func (r *Runner) State() State { return r.state }

// Run executes the scenario. Scenario-level failures (a failing call,
// an assertion mismatch, a provisioning error) are reported in the
// Result; the error return is reserved for the harness itself being
// unable to operate, e.g. an unwritable run log.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	if r.state != NotStarted {
		return nil, fmt.Errorf("runner is single-use: state %s", r.state)
	}
	if err := Validate(sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	r.token = sc.RunToken
	if r.token == "" {
		r.token = r.Tokens.Generate()
	}

	if r.Log != nil {
		err := r.Log.BeginRun(ctx, store.Run{
			Token:     r.token,
			Scenario:  sc.Name,
			Network:   r.Network,
			StartedAt: time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}

	result := &Result{Pass: true, RunToken: r.token}
	r.state = Running
	fmt.Fprintf(r.Out, "scenario %s (run %s)\n", sc.Name, r.token)

	for i, step := range sc.Steps {
		result.StepIndex = i
		fmt.Fprintf(r.Out, "[%d/%d] %s", i+1, len(sc.Steps), step.Name)

		var err error
		switch {
		case step.Action != nil:
			fmt.Fprintln(r.Out)
			err = step.Action(ctx, r)
		case step.Call != nil:
			err = r.runCall(ctx, step.Name, step.Call, result)
		case step.Assert != nil:
			err = r.runAssert(ctx, step.Name, step.Assert, result)
		}

		if err != nil {
			fmt.Fprintf(r.Out, "  FAIL: %v\n", err)
			r.Logger.Error("step failed", "scenario", sc.Name, "step", step.Name, "err", err)
			result.Pass = false
			result.FailedStep = step.Name
			result.Errors = append(result.Errors, fmt.Sprintf("step %q: %v", step.Name, err))
			r.state = Failed
			result.State = Failed
			r.finish(ctx, store.OutcomeFailed, result.Errors[0])
			return result, nil
		}
	}

	fmt.Fprintf(r.Out, "scenario %s passed (%d steps)\n", sc.Name, len(sc.Steps))
	r.state = Completed
	result.State = Completed
	r.finish(ctx, store.OutcomePassed, "")
	return result, nil
}

func (r *Runner) finish(ctx context.Context, outcome, errMsg string) {
	if r.Log == nil {
		return
	}
	if err := r.Log.FinishRun(ctx, r.token, outcome, errMsg); err != nil {
		r.Logger.Error("failed to record run outcome", "run", r.token, "err", err)
	}
}

func (r *Runner) runCall(ctx context.Context, stepName string, c *CallStep, result *Result) error {
	id, err := r.Identities.GetOrCreate(ctx, c.As)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Out, " [as %s]", c.As)

	args, err := r.resolveArgs(ctx, c.Args)
	if err != nil {
		return err
	}

	var res agent.CallResult
	if c.Kind == "update" {
		res = r.Client.Update(ctx, id, c.Method, args...)
	} else {
		res = r.Client.Query(ctx, id, c.Method, args...)
	}
	r.record(ctx, result, TraceEvent{
		Step:     stepName,
		Identity: c.As,
		Kind:     c.Kind,
		Method:   c.Method,
		Args:     candid.EncodeArgs(args...),
		OK:       res.OK,
		Result:   res.Raw,
	})

	if res.Err != nil {
		return fmt.Errorf("%s call %s failed: %w", c.Kind, c.Method, res.Err)
	}
	fmt.Fprintf(r.Out, " -> %s\n", res.Raw)

	return checkExpect(stepName, c, res)
}

// record appends a trace event, stamping it with the next sequence
// number, and mirrors it into the run log when one is configured.
func (r *Runner) record(ctx context.Context, result *Result, ev TraceEvent) {
	r.seq++
	ev.Seq = r.seq
	result.Trace = append(result.Trace, ev)

	if r.Log == nil {
		return
	}
	err := r.Log.WriteCall(ctx, store.CallRecord{
		RunToken: r.token,
		Seq:      ev.Seq,
		Step:     ev.Step,
		Identity: ev.Identity,
		Kind:     ev.Kind,
		Method:   ev.Method,
		Args:     ev.Args,
		OK:       ev.OK,
		Result:   ev.Result,
	})
	if err != nil {
		r.Logger.Error("failed to record call", "run", r.token, "seq", ev.Seq, "err", err)
	}
}

func (r *Runner) resolveArgs(ctx context.Context, specs []Arg) ([]candid.Value, error) {
	args := make([]candid.Value, 0, len(specs))
	for i, a := range specs {
		v, err := r.resolveArg(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func (r *Runner) resolveArg(ctx context.Context, a Arg) (candid.Value, error) {
	switch {
	case a.Principal != "":
		if a.Principal[0] == '@' {
			return r.Identities.PrincipalOf(ctx, a.Principal[1:])
		}
		return candid.ParsePrincipal(a.Principal)
	case a.Nat != nil:
		return candid.Nat(*a.Nat), nil
	case a.Nat8 != nil:
		return candid.Nat8(*a.Nat8), nil
	case a.Text != nil:
		return candid.Text(*a.Text), nil
	case a.Bool != nil:
		return candid.Bool(*a.Bool), nil
	default:
		return nil, fmt.Errorf("empty argument")
	}
}
