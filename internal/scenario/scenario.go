// Package scenario sequences scripted interactions against a deployed
// token canister and verifies the resulting state transitions.
//
// A scenario is an ordered list of steps. Steps execute strictly in
// declared order because later steps depend on ledger state mutated by
// earlier ones; the first failure halts the run. Scenarios are either
// built in code (the smoke script) or declared in YAML files.
package scenario

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is an ordered script of steps run against one token canister.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// RunToken is an optional fixed run token for deterministic traces.
	// Production runs leave it empty and get a fresh UUIDv7.
	RunToken string `yaml:"run_token,omitempty"`

	// Steps execute strictly in order; the first failure halts the run.
	Steps []Step `yaml:"steps"`
}

// Step is one unit of a scenario: exactly one of Call, Assert, or Action
// is set. Action steps exist only for scenarios built in code (the smoke
// script uses one to deploy the canister).
type Step struct {
	// Name labels the step in progress output and the trace.
	Name string `yaml:"name"`

	Call   *CallStep   `yaml:"call,omitempty"`
	Assert *AssertStep `yaml:"assert,omitempty"`

	Action func(ctx context.Context, r *Runner) error `yaml:"-"`
}

// CallStep invokes one canister method as a named identity.
type CallStep struct {
	// As names the identity the call runs as.
	As string `yaml:"as"`

	// Kind is "query" or "update".
	Kind string `yaml:"kind"`

	// Method is the canister method name.
	Method string `yaml:"method"`

	// Args are the typed call arguments.
	Args []Arg `yaml:"args,omitempty"`

	// Expect validates the decoded result. Nil means the call only has
	// to succeed at the transport level.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Arg is a typed call argument: exactly one field is set. Principal
// values of the form "@name" resolve to the principal of the named
// identity at run time.
type Arg struct {
	Principal string  `yaml:"principal,omitempty"`
	Nat       *uint64 `yaml:"nat,omitempty"`
	Nat8      *uint8  `yaml:"nat8,omitempty"`
	Text      *string `yaml:"text,omitempty"`
	Bool      *bool   `yaml:"bool,omitempty"`
}

// Expect validates a call result. At most one field is set.
type Expect struct {
	// Ok requires a receipt of variant { Ok = _ }.
	Ok bool `yaml:"ok,omitempty"`

	// Err requires a receipt rejection with this code,
	// e.g. "InsufficientAllowance".
	Err string `yaml:"err,omitempty"`

	// Nat requires the result to equal this natural number.
	Nat *uint64 `yaml:"nat,omitempty"`

	// Text requires the result to equal this string.
	Text *string `yaml:"text,omitempty"`
}

// Assertion types.
const (
	AssertBalance   = "balance_eq"
	AssertAllowance = "allowance_eq"
	AssertSupply    = "supply_eq"
)

// AssertStep reads ledger state and compares it to an expected value.
// The read is issued as the owner-by-convention identity of the step.
type AssertStep struct {
	// Type is one of balance_eq, allowance_eq, supply_eq.
	Type string `yaml:"type"`

	// Of names the identity whose balance is read (balance_eq).
	Of string `yaml:"of,omitempty"`

	// Owner and Spender name the allowance pair (allowance_eq).
	Owner   string `yaml:"owner,omitempty"`
	Spender string `yaml:"spender,omitempty"`

	// Value is the expected amount.
	Value uint64 `yaml:"value"`
}

// Load reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo fails loudly instead of silently skipping a check.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// Validate checks structural requirements before a scenario runs.
func Validate(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Name == "" {
			return fmt.Errorf("steps[%d]: name is required", i)
		}
		set := 0
		if step.Call != nil {
			set++
		}
		if step.Assert != nil {
			set++
		}
		if step.Action != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d] %q: exactly one of call, assert, or action is required", i, step.Name)
		}

		if step.Call != nil {
			if err := validateCall(i, step.Call); err != nil {
				return err
			}
		}
		if step.Assert != nil {
			if err := validateAssert(i, step.Assert); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateCall(index int, c *CallStep) error {
	if c.As == "" {
		return fmt.Errorf("steps[%d]: call.as is required", index)
	}
	if c.Kind != "query" && c.Kind != "update" {
		return fmt.Errorf("steps[%d]: call.kind must be \"query\" or \"update\", got %q", index, c.Kind)
	}
	if c.Method == "" {
		return fmt.Errorf("steps[%d]: call.method is required", index)
	}
	for j, arg := range c.Args {
		if err := validateArg(arg); err != nil {
			return fmt.Errorf("steps[%d].args[%d]: %w", index, j, err)
		}
	}
	if c.Expect != nil {
		set := 0
		if c.Expect.Ok {
			set++
		}
		if c.Expect.Err != "" {
			set++
		}
		if c.Expect.Nat != nil {
			set++
		}
		if c.Expect.Text != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: expect must set exactly one of ok, err, nat, text", index)
		}
	}
	return nil
}

func validateArg(a Arg) error {
	set := 0
	if a.Principal != "" {
		set++
	}
	if a.Nat != nil {
		set++
	}
	if a.Nat8 != nil {
		set++
	}
	if a.Text != nil {
		set++
	}
	if a.Bool != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of principal, nat, nat8, text, bool is required")
	}
	return nil
}

func validateAssert(index int, a *AssertStep) error {
	switch a.Type {
	case AssertBalance:
		if a.Of == "" {
			return fmt.Errorf("steps[%d]: assert.of is required for balance_eq", index)
		}
	case AssertAllowance:
		if a.Owner == "" || a.Spender == "" {
			return fmt.Errorf("steps[%d]: assert.owner and assert.spender are required for allowance_eq", index)
		}
	case AssertSupply:
		// Value alone suffices.
	default:
		return fmt.Errorf("steps[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
