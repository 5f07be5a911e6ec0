package candid

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse decodes the textual response printed by dfx for a canister call.
// The input is either a parenthesised argument sequence, e.g.
//
//	(1_000 : nat)
//	(record { name = "Token"; decimals = 8 : nat8 })
//	(variant { Err = variant { InsufficientBalance } })
//
// or a single bare value. Parse returns the decoded values in order.
func Parse(s string) ([]Value, error) {
	p := &parser{input: s}
	p.skipSpace()
	if p.done() {
		return nil, fmt.Errorf("empty candid response")
	}

	var vals []Value
	if p.peek() == '(' {
		p.next()
		p.skipSpace()
		if !p.done() && p.peek() == ')' {
			p.next()
		} else {
			for {
				v, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
				p.skipSpace()
				if p.done() {
					return nil, fmt.Errorf("unterminated argument sequence")
				}
				if p.peek() == ',' {
					// dfx prints a trailing comma in multi-line output.
					p.next()
					p.skipSpace()
					if !p.done() && p.peek() == ')' {
						p.next()
						break
					}
					continue
				}
				if p.peek() == ')' {
					p.next()
					break
				}
				return nil, p.errorf("expected ',' or ')'")
			}
		}
	} else {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}

	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("trailing input")
	}
	return vals, nil
}

// ParseOne decodes a response expected to carry exactly one value.
func ParseOne(s string) (Value, error) {
	vals, err := Parse(s)
	if err != nil {
		return nil, err
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("expected one value, got %d", len(vals))
	}
	return vals[0], nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.input) }

func (p *parser) peek() byte { return p.input[p.pos] }

func (p *parser) next() byte {
	c := p.input[p.pos]
	p.pos++
	return c
}

func (p *parser) skipSpace() {
	for !p.done() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("candid: %s at offset %d", msg, p.pos)
}

func (p *parser) parseValue() (Value, error) {
	p.skipSpace()
	if p.done() {
		return nil, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return Text(s), nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	}

	word := p.parseWord()
	switch word {
	case "principal":
		p.skipSpace()
		s, err := p.parseString()
		if err != nil {
			return nil, err
		}
		return ParsePrincipal(s)
	case "blob":
		p.skipSpace()
		return p.parseBlob()
	case "record":
		return p.parseRecord()
	case "variant":
		return p.parseVariant()
	case "vec":
		return p.parseVec()
	case "opt":
		elem, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return Opt{Elem: elem}, nil
	case "null":
		return Opt{}, nil
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	case "":
		return nil, p.errorf("unexpected character %q", c)
	default:
		return nil, p.errorf("unexpected token %q", word)
	}
}

// parseWord consumes an identifier-like token.
func (p *parser) parseWord() string {
	start := p.pos
	for !p.done() {
		c := p.peek()
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

// parseNumber consumes a number with optional `_` digit separators and an
// optional `: <type>` annotation. dfx annotates every numeric output.
func (p *parser) parseNumber() (Value, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for !p.done() {
		c := p.peek()
		if c == '_' || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	digits := strings.ReplaceAll(p.input[start:p.pos], "_", "")
	if digits == "" || digits == "-" {
		return nil, p.errorf("malformed number")
	}

	annot := p.parseAnnotation()
	negative := digits[0] == '-'

	if negative || strings.HasPrefix(annot, "int") {
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil, p.errorf("int out of range: %s", digits)
		}
		return Int(n), nil
	}

	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return nil, p.errorf("nat out of range: %s", digits)
	}
	if annot == "nat8" {
		if n > 255 {
			return nil, p.errorf("nat8 out of range: %s", digits)
		}
		return Nat8(uint8(n)), nil
	}
	return Nat(n), nil
}

// parseAnnotation consumes an optional `: type` suffix and returns the
// type name, or "" when absent.
func (p *parser) parseAnnotation() string {
	save := p.pos
	p.skipSpace()
	if p.done() || p.peek() != ':' {
		p.pos = save
		return ""
	}
	p.next()
	p.skipSpace()
	word := p.parseWord()
	if word == "" {
		p.pos = save
		return ""
	}
	return word
}

func (p *parser) parseString() (string, error) {
	if p.done() || p.peek() != '"' {
		return "", p.errorf("expected string")
	}
	p.next()
	var b strings.Builder
	for {
		if p.done() {
			return "", p.errorf("unterminated string")
		}
		c := p.next()
		if c == '"' {
			return b.String(), nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if p.done() {
			return "", p.errorf("unterminated escape")
		}
		e := p.next()
		switch e {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '"', '\\', '\'':
			b.WriteByte(e)
		case 'u':
			if p.done() || p.next() != '{' {
				return "", p.errorf("malformed unicode escape")
			}
			hexStart := p.pos
			for !p.done() && p.peek() != '}' {
				p.pos++
			}
			if p.done() {
				return "", p.errorf("unterminated unicode escape")
			}
			hex := p.input[hexStart:p.pos]
			p.next() // consume '}'
			n, err := strconv.ParseUint(hex, 16, 32)
			if err != nil {
				return "", p.errorf("malformed unicode escape %q", hex)
			}
			b.WriteRune(rune(n))
		default:
			// Two-digit hex escape, as printed inside blob literals.
			if p.done() {
				return "", p.errorf("unterminated escape")
			}
			n, err := strconv.ParseUint(string([]byte{e, p.next()}), 16, 8)
			if err != nil {
				return "", p.errorf("unknown escape \\%c", e)
			}
			b.WriteByte(byte(n))
		}
	}
}

func (p *parser) parseBlob() (Value, error) {
	s, err := p.parseString()
	if err != nil {
		return nil, err
	}
	return Blob([]byte(s)), nil
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.done() || p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.next()
	return nil
}

func (p *parser) parseRecord() (Value, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var rec Record
	for {
		p.skipSpace()
		if p.done() {
			return nil, p.errorf("unterminated record")
		}
		if p.peek() == '}' {
			p.next()
			return rec, nil
		}

		// A field is either `name = value` or a bare value (tuple record).
		save := p.pos
		name := p.parseWord()
		p.skipSpace()
		if name != "" && !p.done() && p.peek() == '=' {
			p.next()
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			rec = append(rec, Field{Name: name, Value: v})
		} else {
			p.pos = save
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			rec = append(rec, Field{Value: v})
		}

		p.skipSpace()
		if !p.done() && p.peek() == ';' {
			p.next()
		}
	}
}

func (p *parser) parseVariant() (Value, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	p.skipSpace()
	tag := p.parseWord()
	if tag == "" {
		return nil, p.errorf("expected variant tag")
	}
	p.skipSpace()
	if p.done() {
		return nil, p.errorf("unterminated variant")
	}
	va := Variant{Tag: tag}
	if p.peek() == '=' {
		p.next()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		va.Value = v
	}
	if err := p.expect('}'); err != nil {
		return nil, err
	}
	return va, nil
}

func (p *parser) parseVec() (Value, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	var vec Vec
	for {
		p.skipSpace()
		if p.done() {
			return nil, p.errorf("unterminated vec")
		}
		if p.peek() == '}' {
			p.next()
			return vec, nil
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		vec = append(vec, v)
		p.skipSpace()
		if !p.done() && p.peek() == ';' {
			p.next()
		}
	}
}
