package candid

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeArgs renders an argument list in Candid textual syntax, suitable
// for passing to `dfx canister call` as a single quoted argument.
//
// Example:
//
//	EncodeArgs(Principal("aaaaa-aa"), Nat(1000))
//	// (principal "aaaaa-aa", 1000 : nat)
func EncodeArgs(vals ...Value) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range vals {
		if i > 0 {
			b.WriteString(", ")
		}
		encodeValue(&b, v)
	}
	b.WriteByte(')')
	return b.String()
}

// Encode renders a single value in Candid textual syntax.
func Encode(v Value) string {
	var b strings.Builder
	encodeValue(&b, v)
	return b.String()
}

func encodeValue(b *strings.Builder, v Value) {
	switch x := v.(type) {
	case Principal:
		b.WriteString(`principal "`)
		b.WriteString(string(x))
		b.WriteByte('"')
	case Nat:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
		b.WriteString(" : nat")
	case Nat8:
		b.WriteString(strconv.FormatUint(uint64(x), 10))
		b.WriteString(" : nat8")
	case Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
		b.WriteString(" : int")
	case Text:
		encodeText(b, string(x))
	case Blob:
		b.WriteString(`blob "`)
		for _, c := range []byte(x) {
			fmt.Fprintf(b, `\%02x`, c)
		}
		b.WriteByte('"')
	case Bool:
		b.WriteString(strconv.FormatBool(bool(x)))
	case Opt:
		if x.Elem == nil {
			b.WriteString("null")
			return
		}
		b.WriteString("opt ")
		encodeValue(b, x.Elem)
	case Vec:
		b.WriteString("vec {")
		for i, elem := range x {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteByte(' ')
			encodeValue(b, elem)
		}
		b.WriteString(" }")
	case Record:
		b.WriteString("record {")
		for i, f := range x {
			if i > 0 {
				b.WriteByte(';')
			}
			b.WriteByte(' ')
			if f.Name != "" {
				b.WriteString(f.Name)
				b.WriteString(" = ")
			}
			encodeValue(b, f.Value)
		}
		b.WriteString(" }")
	case Variant:
		b.WriteString("variant { ")
		b.WriteString(x.Tag)
		if x.Value != nil {
			b.WriteString(" = ")
			encodeValue(b, x.Value)
		}
		b.WriteString(" }")
	default:
		// Sealed interface; a new Value type without an encoding arm is a
		// programming error.
		panic(fmt.Sprintf("candid: unencodable value %T", v))
	}
}

// encodeText writes a quoted Candid text literal. Only quote, backslash,
// and control characters need escaping; everything else passes through
// as UTF-8.
func encodeText(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u{%02x}`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
