// Package tokenspec loads the token deployment descriptor.
//
// Deployment parameters are declared in a CUE file so a descriptor with a
// missing field or an out-of-range value is rejected before anything is
// deployed, with a position-annotated error instead of a failed canister
// install half way through a run.
package tokenspec

import (
	"fmt"
	"os"
	"regexp"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
)

// Spec holds the constructor arguments for a token canister deployment.
// FeeTo is optional; an empty value means fees accrue to the owner.
type Spec struct {
	Logo          string
	Name          string
	Symbol        string
	Decimals      uint8
	InitialSupply uint64
	Fee           uint64
	FeeTo         string
}

// CompileError reports a descriptor field that failed validation.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: token.%s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("token.%s: %s", e.Field, e.Message)
}

var symbolShape = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,7}$`)

// Default returns the descriptor used when no file is given: a small
// test token with no transfer fee.
func Default() *Spec {
	return &Spec{
		Name:          "Dipprobe Test Token",
		Symbol:        "DPT",
		Decimals:      8,
		InitialSupply: 100_000_000_000,
		Fee:           0,
	}
}

// Load reads and compiles a CUE descriptor file. The descriptor is the
// struct under the top-level "token" field:
//
//	token: {
//		name:          "My Token"
//		symbol:        "MYT"
//		decimals:      8
//		initialSupply: 1_000_000
//		fee:           0
//	}
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token spec: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile token spec: %w", err)
	}

	tok := v.LookupPath(cue.ParsePath("token"))
	if !tok.Exists() {
		return nil, &CompileError{Field: "token", Message: "top-level token struct is required", Pos: v.Pos()}
	}
	return Compile(tok)
}

// Compile extracts and validates a Spec from a CUE value.
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("invalid token spec: %w", err)
	}

	spec := &Spec{}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	spec.Name = name

	symbol, err := requiredString(v, "symbol")
	if err != nil {
		return nil, err
	}
	if !symbolShape.MatchString(symbol) {
		return nil, &CompileError{
			Field:   "symbol",
			Message: fmt.Sprintf("%q must be 1-8 uppercase letters or digits", symbol),
			Pos:     v.LookupPath(cue.ParsePath("symbol")).Pos(),
		}
	}
	spec.Symbol = symbol

	decimalsVal := v.LookupPath(cue.ParsePath("decimals"))
	if !decimalsVal.Exists() {
		return nil, &CompileError{Field: "decimals", Message: "decimals is required", Pos: v.Pos()}
	}
	decimals, err := decimalsVal.Uint64()
	if err != nil {
		return nil, &CompileError{Field: "decimals", Message: err.Error(), Pos: decimalsVal.Pos()}
	}
	if decimals > 18 {
		return nil, &CompileError{
			Field:   "decimals",
			Message: fmt.Sprintf("%d exceeds the supported maximum of 18", decimals),
			Pos:     decimalsVal.Pos(),
		}
	}
	spec.Decimals = uint8(decimals)

	supplyVal := v.LookupPath(cue.ParsePath("initialSupply"))
	if !supplyVal.Exists() {
		return nil, &CompileError{Field: "initialSupply", Message: "initialSupply is required", Pos: v.Pos()}
	}
	supply, err := supplyVal.Uint64()
	if err != nil {
		return nil, &CompileError{Field: "initialSupply", Message: err.Error(), Pos: supplyVal.Pos()}
	}
	spec.InitialSupply = supply

	// Optional fields.
	if feeVal := v.LookupPath(cue.ParsePath("fee")); feeVal.Exists() {
		fee, err := feeVal.Uint64()
		if err != nil {
			return nil, &CompileError{Field: "fee", Message: err.Error(), Pos: feeVal.Pos()}
		}
		spec.Fee = fee
	}
	if logoVal := v.LookupPath(cue.ParsePath("logo")); logoVal.Exists() {
		logo, err := logoVal.String()
		if err != nil {
			return nil, &CompileError{Field: "logo", Message: err.Error(), Pos: logoVal.Pos()}
		}
		spec.Logo = logo
	}
	if feeToVal := v.LookupPath(cue.ParsePath("feeTo")); feeToVal.Exists() {
		feeTo, err := feeToVal.String()
		if err != nil {
			return nil, &CompileError{Field: "feeTo", Message: err.Error(), Pos: feeToVal.Pos()}
		}
		spec.FeeTo = feeTo
	}

	return spec, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: err.Error(), Pos: fv.Pos()}
	}
	if s == "" && field != "logo" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: fv.Pos()}
	}
	return s, nil
}
