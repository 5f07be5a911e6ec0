package scenario

import "fmt"

// State is the runner's position in its lifecycle. Transitions are
// strictly forward: NotStarted -> Running -> Completed or Failed.
// Completed and Failed are terminal; there are no retries and no
// backward transitions.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TraceEvent is one remote call as recorded in the run trace.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Step     string `json:"step"`
	Identity string `json:"identity,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Method   string `json:"method,omitempty"`
	Args     string `json:"args,omitempty"`
	OK       bool   `json:"ok"`
	Result   string `json:"result,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step completed and every expectation held.
	Pass bool `json:"pass"`

	// RunToken tags this run in the run log.
	RunToken string `json:"run_token"`

	// State is the terminal runner state, Completed or Failed.
	State State `json:"-"`

	// StepIndex is the index of the last step entered. For a failed run
	// no step with a greater index was executed.
	StepIndex int `json:"step_index"`

	// FailedStep names the step that halted the run, if any.
	FailedStep string `json:"failed_step,omitempty"`

	// Errors holds the failure messages, empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Trace contains every remote call in execution order.
	Trace []TraceEvent `json:"trace"`
}
