package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokenlabs/dipprobe/internal/agent"
	"github.com/tokenlabs/dipprobe/internal/candid"
	"github.com/tokenlabs/dipprobe/internal/identity"
)

// AssertionError reports a mismatch between the value a step expected
// and the value the canister returned.
type AssertionError struct {
	Step     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: expected %s, got %s", e.Expected, e.Actual)
}

// checkExpect evaluates a call step's expectation against the result of
// a call that already succeeded at the transport level.
func checkExpect(stepName string, c *CallStep, res agent.CallResult) error {
	e := c.Expect
	if e == nil {
		return nil
	}

	switch {
	case e.Ok:
		if _, err := agent.Receipt(res); err != nil {
			return &AssertionError{Step: stepName, Expected: "Ok receipt", Actual: err.Error()}
		}
	case e.Err != "":
		_, err := agent.Receipt(res)
		if err == nil {
			return &AssertionError{Step: stepName, Expected: "Err " + e.Err, Actual: "Ok receipt"}
		}
		var tx *agent.TxError
		if !errors.As(err, &tx) {
			return fmt.Errorf("expected Err %s: %w", e.Err, err)
		}
		if tx.Code != e.Err {
			return &AssertionError{Step: stepName, Expected: "Err " + e.Err, Actual: "Err " + tx.Code}
		}
	case e.Nat != nil:
		got, err := asUint(res.First())
		if err != nil {
			return err
		}
		if got != *e.Nat {
			return &AssertionError{
				Step:     stepName,
				Expected: fmt.Sprintf("%d", *e.Nat),
				Actual:   fmt.Sprintf("%d", got),
			}
		}
	case e.Text != nil:
		got, err := candid.AsText(res.First())
		if err != nil {
			return err
		}
		if string(got) != *e.Text {
			return &AssertionError{
				Step:     stepName,
				Expected: fmt.Sprintf("%q", *e.Text),
				Actual:   fmt.Sprintf("%q", got),
			}
		}
	}
	return nil
}

// runAssert issues the query behind a state assertion and compares. The
// query is made as the identity the assertion is about, or as the
// default owner identity for global state like the total supply.
func (r *Runner) runAssert(ctx context.Context, stepName string, a *AssertStep, result *Result) error {
	var (
		caller string
		method string
		args   []Arg
	)
	switch a.Type {
	case AssertBalance:
		caller = callerName(a.Of)
		method = "balanceOf"
		args = []Arg{{Principal: a.Of}}
	case AssertAllowance:
		caller = callerName(a.Owner)
		method = "allowance"
		args = []Arg{{Principal: a.Owner}, {Principal: a.Spender}}
	case AssertSupply:
		caller = identity.Owner
		method = "totalSupply"
	}

	id, err := r.Identities.GetOrCreate(ctx, caller)
	if err != nil {
		return err
	}

	resolved, err := r.resolveArgs(ctx, args)
	if err != nil {
		return err
	}

	res := r.Client.Query(ctx, id, method, resolved...)
	r.record(ctx, result, TraceEvent{
		Step:     stepName,
		Identity: caller,
		Kind:     "query",
		Method:   method,
		Args:     candid.EncodeArgs(resolved...),
		OK:       res.OK,
		Result:   res.Raw,
	})
	if res.Err != nil {
		return fmt.Errorf("query %s failed: %w", method, res.Err)
	}
	fmt.Fprintf(r.Out, " -> %s\n", res.Raw)

	got, err := candid.AsNat(res.First())
	if err != nil {
		return err
	}
	if uint64(got) != a.Value {
		return &AssertionError{
			Step:     stepName,
			Expected: fmt.Sprintf("%s = %d", method, a.Value),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// asUint widens the unsigned candid types, so `nat` expectations also
// cover nat8 results like decimals.
func asUint(v candid.Value) (uint64, error) {
	switch n := v.(type) {
	case candid.Nat:
		return uint64(n), nil
	case candid.Nat8:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected nat or nat8, got %T", v)
	}
}

// callerName maps an assertion subject to the identity that issues the
// query. Subjects are either "@name" identity references or literal
// principals; literal principals are queried as the owner identity.
func callerName(subject string) string {
	if subject != "" && subject[0] == '@' {
		return subject[1:]
	}
	return identity.Owner
}
