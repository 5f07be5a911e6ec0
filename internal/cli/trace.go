package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tokenlabs/dipprobe/internal/store"
)

// TraceRun is the JSON payload describing a recorded run.
type TraceRun struct {
	Token     string      `json:"token"`
	Scenario  string      `json:"scenario"`
	Network   string      `json:"network"`
	StartedAt time.Time   `json:"started_at"`
	Outcome   string      `json:"outcome"`
	Error     string      `json:"error,omitempty"`
	Calls     []TraceCall `json:"calls"`
}

// TraceCall is one recorded remote call.
type TraceCall struct {
	Seq      int64  `json:"seq"`
	Step     string `json:"step"`
	Identity string `json:"identity"`
	Kind     string `json:"kind"`
	Method   string `json:"method"`
	Args     string `json:"args"`
	OK       bool   `json:"ok"`
	Result   string `json:"result"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace [run-token]",
		Short: "Show the recorded call trace of a run",
		Long: `Show a run from the run log: its outcome and every recorded call in
sequence order. Without a token the most recent run is shown.

Examples:
  dipprobe trace
  dipprobe trace 0190a5e2-...-c3
  dipprobe trace --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			return runTrace(rootOpts, token, cmd)
		},
	}

	return cmd
}

func runTrace(opts *RootOptions, token string, cmd *cobra.Command) error {
	h, err := newHarness(opts)
	if err != nil {
		return err
	}
	db, err := h.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	var run store.Run
	if token == "" {
		run, err = db.LatestRun(ctx)
	} else {
		run, err = db.ReadRun(ctx, token)
	}
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, "no such run in the log")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "read run log", err)
	}

	calls, err := db.ReadTrace(ctx, run.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "read run trace", err)
	}

	payload := TraceRun{
		Token:     run.Token,
		Scenario:  run.Scenario,
		Network:   run.Network,
		StartedAt: run.StartedAt,
		Outcome:   run.Outcome,
		Error:     run.Error,
		Calls:     make([]TraceCall, 0, len(calls)),
	}
	for _, c := range calls {
		payload.Calls = append(payload.Calls, TraceCall{
			Seq:      c.Seq,
			Step:     c.Step,
			Identity: c.Identity,
			Kind:     c.Kind,
			Method:   c.Method,
			Args:     c.Args,
			OK:       c.OK,
			Result:   c.Result,
		})
	}

	if opts.Format == "json" {
		f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return f.Success(payload)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run %s: scenario %s on %s, %s\n", run.Token, run.Scenario, run.Network, run.Outcome)
	if run.Error != "" {
		fmt.Fprintf(w, "error: %s\n", run.Error)
	}
	for _, c := range payload.Calls {
		status := "ok"
		if !c.OK {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%3d  [%s] %s %s as %s %s -> %s\n",
			c.Seq, status, c.Kind, c.Method, c.Identity, c.Args, c.Result)
	}
	return nil
}
