package candid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeArgs(t *testing.T) {
	tests := []struct {
		name string
		vals []Value
		want string
	}{
		{
			name: "empty",
			vals: nil,
			want: "()",
		},
		{
			name: "principal and nat",
			vals: []Value{Principal("aaaaa-aa"), Nat(1000)},
			want: `(principal "aaaaa-aa", 1000 : nat)`,
		},
		{
			name: "nat8",
			vals: []Value{Nat8(8)},
			want: "(8 : nat8)",
		},
		{
			name: "int",
			vals: []Value{Int(-5)},
			want: "(-5 : int)",
		},
		{
			name: "text",
			vals: []Value{Text("Dfinance Token")},
			want: `("Dfinance Token")`,
		},
		{
			name: "text escapes",
			vals: []Value{Text("a\"b\\c\nd")},
			want: `("a\"b\\c\nd")`,
		},
		{
			name: "blob",
			vals: []Value{Blob{0xde, 0xad}},
			want: `(blob "\de\ad")`,
		},
		{
			name: "bool",
			vals: []Value{Bool(true)},
			want: "(true)",
		},
		{
			name: "opt value",
			vals: []Value{Opt{Elem: Nat(3)}},
			want: "(opt 3 : nat)",
		},
		{
			name: "opt null",
			vals: []Value{Opt{}},
			want: "(null)",
		},
		{
			name: "vec",
			vals: []Value{Vec{Nat(1), Nat(2)}},
			want: "(vec { 1 : nat; 2 : nat })",
		},
		{
			name: "record",
			vals: []Value{Record{
				{Name: "name", Value: Text("Token")},
				{Name: "decimals", Value: Nat8(8)},
			}},
			want: `(record { name = "Token"; decimals = 8 : nat8 })`,
		},
		{
			name: "variant with payload",
			vals: []Value{Variant{Tag: "Ok", Value: Nat(3)}},
			want: "(variant { Ok = 3 : nat })",
		},
		{
			name: "bare variant",
			vals: []Value{Variant{Tag: "InsufficientBalance"}},
			want: "(variant { InsufficientBalance })",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeArgs(tt.vals...))
		})
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	// Encoded output must parse back to the same values.
	inputs := [][]Value{
		{Principal("rrkah-fqaaa-aaaaa-aaaaq-cai"), Nat(1_000_000)},
		{Record{
			{Name: "owner", Value: Principal("aaaaa-aa")},
			{Name: "fee", Value: Nat(0)},
			{Name: "decimals", Value: Nat8(18)},
		}},
		{Variant{Tag: "Err", Value: Variant{Tag: "InsufficientAllowance"}}},
		{Opt{Elem: Text("hi")}, Bool(false)},
		{Vec{Nat(1), Nat(2), Nat(3)}},
	}

	for _, vals := range inputs {
		encoded := EncodeArgs(vals...)
		parsed, err := Parse(encoded)
		require.NoError(t, err, "parse %s", encoded)
		assert.Equal(t, vals, parsed, "round trip %s", encoded)
	}
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	require.NoError(t, err)
	assert.Equal(t, Principal("rrkah-fqaaa-aaaaa-aaaaq-cai"), p)

	_, err = ParsePrincipal("")
	assert.Error(t, err)

	_, err = ParsePrincipal("not a principal!")
	assert.Error(t, err)
}
