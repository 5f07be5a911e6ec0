package agent

import (
	"fmt"

	"github.com/tokenlabs/dipprobe/internal/candid"
)

// TxError is a rejection returned by the canister inside a receipt
// variant, e.g. InsufficientBalance or InsufficientAllowance. The call
// itself succeeded at the transport level; the token refused it.
type TxError struct {
	Code string
}

func (e *TxError) Error() string {
	return fmt.Sprintf("token rejected call: %s", e.Code)
}

// Receipt decodes the result of a state-mutating token call.
// Token updates return `variant { Ok = txid : nat }` on success and
// `variant { Err = variant { Code } }` on rejection.
func Receipt(res CallResult) (candid.Nat, error) {
	if res.Err != nil {
		return 0, res.Err
	}
	v, err := candid.AsVariant(res.First())
	if err != nil {
		return 0, fmt.Errorf("decode receipt: %w", err)
	}

	switch v.Tag {
	case "Ok":
		tx, err := candid.AsNat(v.Value)
		if err != nil {
			return 0, fmt.Errorf("decode receipt: %w", err)
		}
		return tx, nil
	case "Err":
		inner, err := candid.AsVariant(v.Value)
		if err != nil {
			return 0, fmt.Errorf("decode receipt error: %w", err)
		}
		return 0, &TxError{Code: inner.Tag}
	default:
		return 0, fmt.Errorf("decode receipt: unexpected variant %q", v.Tag)
	}
}
