// Package candid models the textual argument encoding spoken by the dfx
// toolchain. Arguments and results are represented as a small tagged union
// of value types instead of hand-assembled strings, so quoting and escaping
// live in exactly one place.
package candid

import (
	"fmt"
	"regexp"
	"strings"
)

// Value is a sealed interface over the Candid textual forms the harness
// exchanges with a canister. Only the types in this package implement it.
type Value interface {
	candidValue() // Sealed - only these types implement it
}

// Principal is an opaque textual principal identifier.
// It is treated as a value type and never parsed beyond a shape check.
type Principal string

func (Principal) candidValue() {}

// Nat is an unsigned natural number.
// Amounts in this harness fit in uint64; Parse rejects anything larger.
type Nat uint64

func (Nat) candidValue() {}

// Nat8 is an 8-bit natural, used for the token's decimals field.
type Nat8 uint8

func (Nat8) candidValue() {}

// Int is a signed integer (e.g. timestamps in token metadata).
type Int int64

func (Int) candidValue() {}

// Text is a string value.
type Text string

func (Text) candidValue() {}

// Blob is an arbitrary byte string (e.g. the token logo).
type Blob []byte

func (Blob) candidValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) candidValue() {}

// Opt is an optional value. A nil Elem renders as null.
type Opt struct {
	Elem Value
}

func (Opt) candidValue() {}

// Vec is a sequence of values.
type Vec []Value

func (Vec) candidValue() {}

// Field is a single record field. Name may be empty for tuple-style
// records, in which case the positional index is the implicit label.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered list of fields. Order is preserved as written so
// round-trips through Parse and Encode stay stable.
type Record []Field

func (Record) candidValue() {}

// Variant is a tagged alternative. Value is nil for bare tags such as
// variant { InsufficientBalance }.
type Variant struct {
	Tag   string
	Value Value
}

func (Variant) candidValue() {}

// principalShape is a superficial check only: groups of base32 characters
// separated by dashes. The harness never derives anything from a principal.
var principalShape = regexp.MustCompile(`^[a-z0-9]{1,7}(-[a-z0-9]{1,7})*$`)

// ParsePrincipal validates the textual shape of a principal.
func ParsePrincipal(s string) (Principal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty principal")
	}
	if !principalShape.MatchString(s) {
		return "", fmt.Errorf("malformed principal %q", s)
	}
	return Principal(s), nil
}

// String implements fmt.Stringer for log output.
func (p Principal) String() string { return string(p) }

// Lookup returns the value of the named record field.
func (r Record) Lookup(name string) (Value, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// AsNat extracts a Nat from a value, unwrapping nothing.
func AsNat(v Value) (Nat, error) {
	n, ok := v.(Nat)
	if !ok {
		return 0, fmt.Errorf("expected nat, got %T", v)
	}
	return n, nil
}

// AsText extracts a Text from a value.
func AsText(v Value) (Text, error) {
	t, ok := v.(Text)
	if !ok {
		return "", fmt.Errorf("expected text, got %T", v)
	}
	return t, nil
}

// AsPrincipal extracts a Principal from a value.
func AsPrincipal(v Value) (Principal, error) {
	p, ok := v.(Principal)
	if !ok {
		return "", fmt.Errorf("expected principal, got %T", v)
	}
	return p, nil
}

// AsNat8 extracts a Nat8 from a value.
func AsNat8(v Value) (Nat8, error) {
	n, ok := v.(Nat8)
	if !ok {
		return 0, fmt.Errorf("expected nat8, got %T", v)
	}
	return n, nil
}

// AsVariant extracts a Variant from a value.
func AsVariant(v Value) (Variant, error) {
	va, ok := v.(Variant)
	if !ok {
		return Variant{}, fmt.Errorf("expected variant, got %T", v)
	}
	return va, nil
}
