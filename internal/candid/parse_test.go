package candid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DfxOutputs(t *testing.T) {
	// Shapes as printed by `dfx canister call`.
	tests := []struct {
		name  string
		input string
		want  []Value
	}{
		{
			name:  "nat with separators",
			input: "(1_000_000 : nat)",
			want:  []Value{Nat(1000000)},
		},
		{
			name:  "nat8",
			input: "(8 : nat8)",
			want:  []Value{Nat8(8)},
		},
		{
			name:  "text",
			input: `("Dfinance Token")`,
			want:  []Value{Text("Dfinance Token")},
		},
		{
			name:  "principal",
			input: `(principal "rrkah-fqaaa-aaaaa-aaaaq-cai")`,
			want:  []Value{Principal("rrkah-fqaaa-aaaaa-aaaaq-cai")},
		},
		{
			name:  "ok receipt",
			input: "(variant { Ok = 2 : nat })",
			want:  []Value{Variant{Tag: "Ok", Value: Nat(2)}},
		},
		{
			name:  "err receipt",
			input: "(variant { Err = variant { InsufficientAllowance } })",
			want:  []Value{Variant{Tag: "Err", Value: Variant{Tag: "InsufficientAllowance"}}},
		},
		{
			name: "metadata record",
			input: `(
  record {
    logo = "";
    name = "Dfinance Token";
    symbol = "DFT";
    decimals = 8 : nat8;
    totalSupply = 100_000_000_000 : nat;
    owner = principal "aaaaa-aa";
    fee = 0 : nat;
  },
)`,
			want: []Value{Record{
				{Name: "logo", Value: Text("")},
				{Name: "name", Value: Text("Dfinance Token")},
				{Name: "symbol", Value: Text("DFT")},
				{Name: "decimals", Value: Nat8(8)},
				{Name: "totalSupply", Value: Nat(100_000_000_000)},
				{Name: "owner", Value: Principal("aaaaa-aa")},
				{Name: "fee", Value: Nat(0)},
			}},
		},
		{
			name:  "holders tuple records",
			input: `(vec { record { principal "aaaaa-aa"; 500 : nat } })`,
			want: []Value{Vec{Record{
				{Value: Principal("aaaaa-aa")},
				{Value: Nat(500)},
			}}},
		},
		{
			name:  "multiple values",
			input: `("DFT", 8 : nat8)`,
			want:  []Value{Text("DFT"), Nat8(8)},
		},
		{
			name:  "bare value without parens",
			input: "42 : nat",
			want:  []Value{Nat(42)},
		},
		{
			name:  "empty tuple",
			input: "()",
			want:  nil,
		},
		{
			name:  "negative int",
			input: "(-3 : int)",
			want:  []Value{Int(-3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"unterminated tuple", "(1 : nat"},
		{"unterminated string", `("abc`},
		{"trailing garbage", "(1 : nat) extra"},
		{"unknown token", "(wibble)"},
		{"nat8 overflow", "(300 : nat8)"},
		{"nat overflow", "(99_999_999_999_999_999_999_999 : nat)"},
		{"unterminated record", "(record { a = 1 : nat )"},
		{"variant without tag", "(variant { })"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestRecordLookup(t *testing.T) {
	rec := Record{
		{Name: "name", Value: Text("Token")},
		{Name: "fee", Value: Nat(2)},
	}

	v, ok := rec.Lookup("fee")
	require.True(t, ok)
	n, err := AsNat(v)
	require.NoError(t, err)
	assert.Equal(t, Nat(2), n)

	_, ok = rec.Lookup("missing")
	assert.False(t, ok)
}
