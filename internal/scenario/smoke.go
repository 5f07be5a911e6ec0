package scenario

import (
	"context"
	"fmt"

	"github.com/tokenlabs/dipprobe/internal/identity"
	"github.com/tokenlabs/dipprobe/internal/tokenspec"
)

// Smoke builds the built-in end-to-end scenario: verify the deployed
// token's metadata, then exercise transfer, approve and transferFrom
// across three identities and check every balance the moves touched.
//
// The balance arithmetic below assumes a zero transfer fee; a token
// spec with a fee is rejected rather than producing assertions that
// can never hold.
func Smoke(spec *tokenspec.Spec, deploy func(context.Context, *Runner) error) (*Scenario, error) {
	if spec.Fee != 0 {
		return nil, fmt.Errorf("smoke scenario requires a zero-fee token, got fee %d", spec.Fee)
	}

	supply := spec.InitialSupply
	if supply < 20_000 {
		return nil, fmt.Errorf("smoke scenario needs an initial supply of at least 20000, got %d", supply)
	}

	owner := "@" + identity.Owner
	alice := "@" + identity.Alice
	bob := "@" + identity.Bob

	steps := []Step{}
	if deploy != nil {
		steps = append(steps, Step{Name: "deploy token", Action: deploy})
	}

	steps = append(steps,
		Step{Name: "token name", Call: &CallStep{
			As: identity.Owner, Kind: "query", Method: "name",
			Expect: &Expect{Text: &spec.Name},
		}},
		Step{Name: "token symbol", Call: &CallStep{
			As: identity.Owner, Kind: "query", Method: "symbol",
			Expect: &Expect{Text: &spec.Symbol},
		}},
		Step{Name: "token decimals", Call: &CallStep{
			As: identity.Owner, Kind: "query", Method: "decimals",
			Expect: &Expect{Nat: nat(uint64(spec.Decimals))},
		}},
		Step{Name: "initial supply", Call: &CallStep{
			As: identity.Owner, Kind: "query", Method: "totalSupply",
			Expect: &Expect{Nat: nat(supply)},
		}},
		Step{Name: "history holds the initial mint", Call: &CallStep{
			As: identity.Owner, Kind: "query", Method: "historySize",
			Expect: &Expect{Nat: nat(1)},
		}},

		Step{Name: "owner holds the supply", Assert: &AssertStep{
			Type: AssertBalance, Of: owner, Value: supply,
		}},
		Step{Name: "alice starts empty", Assert: &AssertStep{
			Type: AssertBalance, Of: alice, Value: 0,
		}},
		Step{Name: "bob starts empty", Assert: &AssertStep{
			Type: AssertBalance, Of: bob, Value: 0,
		}},

		Step{Name: "owner approves alice", Call: &CallStep{
			As: identity.Owner, Kind: "update", Method: "approve",
			Args:   []Arg{{Principal: alice}, {Nat: nat(10_000)}},
			Expect: &Expect{Ok: true},
		}},
		Step{Name: "allowance recorded", Assert: &AssertStep{
			Type: AssertAllowance, Owner: owner, Spender: alice, Value: 10_000,
		}},

		Step{Name: "alice spends the allowance", Call: &CallStep{
			As: identity.Alice, Kind: "update", Method: "transferFrom",
			Args:   []Arg{{Principal: owner}, {Principal: bob}, {Nat: nat(1_000)}},
			Expect: &Expect{Ok: true},
		}},
		Step{Name: "overspending the allowance is rejected", Call: &CallStep{
			As: identity.Alice, Kind: "update", Method: "transferFrom",
			Args:   []Arg{{Principal: owner}, {Principal: bob}, {Nat: nat(20_000)}},
			Expect: &Expect{Err: "InsufficientAllowance"},
		}},
		Step{Name: "bob transfers to alice", Call: &CallStep{
			As: identity.Bob, Kind: "update", Method: "transfer",
			Args:   []Arg{{Principal: alice}, {Nat: nat(500)}},
			Expect: &Expect{Ok: true},
		}},

		Step{Name: "owner balance settled", Assert: &AssertStep{
			Type: AssertBalance, Of: owner, Value: supply - 1_000,
		}},
		Step{Name: "alice balance settled", Assert: &AssertStep{
			Type: AssertBalance, Of: alice, Value: 500,
		}},
		Step{Name: "bob balance settled", Assert: &AssertStep{
			Type: AssertBalance, Of: bob, Value: 500,
		}},
		Step{Name: "allowance drawn down", Assert: &AssertStep{
			Type: AssertAllowance, Owner: owner, Spender: alice, Value: 9_000,
		}},
		Step{Name: "supply conserved", Assert: &AssertStep{
			Type: AssertSupply, Value: supply,
		}},
	)

	return &Scenario{
		Name:        "smoke",
		Description: "metadata, transfer, approve and transferFrom across three identities",
		Steps:       steps,
	}, nil
}

func nat(v uint64) *uint64 { return &v }
