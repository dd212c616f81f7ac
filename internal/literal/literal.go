// Package literal reads the dictionary-literal syntax that language models
// produce when asked for a record: dicts, lists, tuples, sets, quoted strings,
// numbers, True, False and None.
//
// Nothing is ever evaluated. Names, calls, attribute access, subscripts and
// operators other than a single leading sign on a number are syntax errors.
//
// Values are returned as:
//
//	dict            *Mapping (string keys only)
//	list/tuple/set  []any
//	str             string
//	int/float       json.Number
//	True/False      bool
//	None            nil
package literal

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"
)

const maxDepth = 64

var simpleEscapes = map[byte]string{
	'\\': "\\", '\'': "'", '"': "\"", 'n': "\n", 't': "\t", 'r': "\r",
	'a': "\a", 'b': "\b", 'f': "\f", 'v': "\v", '\n': "",
}

// ErrNotMapping is returned by ParseMapping when the input is a valid literal but not a dict.
var ErrNotMapping = errors.New("literal is not a dictionary")

// SyntaxError reports where the input stopped being an acceptable literal.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Msg)
}

// Parse parses a single literal spanning all of src, surrounding whitespace aside.
func Parse(src string) (any, error) {
	p := &parser{src: src}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected %s after literal", p.describe())
	}
	return v, nil
}

// ParseMapping parses src and requires the result to be a dictionary.
func ParseMapping(src string) (*Mapping, error) {
	v, err := Parse(src)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Mapping)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotMapping, TypeName(v))
	}
	return m, nil
}

// TypeName names the literal type of a parsed value, for error messages.
func TypeName(v any) string {
	switch v.(type) {
	case *Mapping:
		return "dict"
	case []any:
		return "list"
	case string:
		return "str"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	case nil:
		return "None"
	default:
		return fmt.Sprintf("%T", v)
	}
}

type parser struct {
	src   string
	pos   int
	depth int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) describe() string {
	if p.eof() {
		return "end of input"
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return fmt.Sprintf("%q", r)
}

func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			p.pos++
		case '\\':
			// explicit line joining
			if p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n' {
				p.pos += 2
				continue
			}
			return
		case '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		default:
			return
		}
	}
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf("nesting deeper than %d levels", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) value() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '{':
		return p.braces()
	case c == '[':
		return p.sequence(']')
	case c == '(':
		return p.parens()
	case c == '\'' || c == '"':
		return p.stringValue()
	case c == '+' || c == '-':
		return p.signed()
	case isDigit(c) || (c == '.' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])):
		return p.number("")
	case isIdentStart(c):
		return p.word()
	default:
		return nil, p.errorf("unexpected %s", p.describe())
	}
}

// braces parses a dict or a set.
func (p *parser) braces() (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++ // {
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return NewMapping(), nil
	}

	keyStart := p.pos
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ':' {
		return p.rest([]any{first}, '}')
	}

	m := NewMapping()
	key, ok := first.(string)
	if !ok {
		return nil, &SyntaxError{Offset: keyStart, Msg: fmt.Sprintf("dictionary key must be a string, got %s", TypeName(first))}
	}

	for {
		p.pos++ // :
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m.Set(key, v)

		p.skipSpace()
		switch p.peek() {
		case '}':
			p.pos++
			return m, nil
		case ',':
			p.pos++
		default:
			return nil, p.errorf("expected ',' or '}' in dictionary, found %s", p.describe())
		}

		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}

		keyStart = p.pos
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		if key, ok = k.(string); !ok {
			return nil, &SyntaxError{Offset: keyStart, Msg: fmt.Sprintf("dictionary key must be a string, got %s", TypeName(k))}
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after dictionary key, found %s", p.describe())
		}
	}
}

func (p *parser) sequence(closer byte) (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++ // [
	p.skipSpace()
	if p.peek() == closer {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	return p.rest([]any{first}, closer)
}

// rest continues a comma separated sequence whose first items are already parsed.
func (p *parser) rest(items []any, closer byte) (any, error) {
	for {
		p.skipSpace()
		switch p.peek() {
		case closer:
			p.pos++
			return items, nil
		case ',':
			p.pos++
		default:
			return nil, p.errorf("expected ',' or %q, found %s", closer, p.describe())
		}

		p.skipSpace()
		if p.peek() == closer {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
}

// parens parses a tuple or a parenthesized literal.
func (p *parser) parens() (any, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.pos++ // (
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return []any{}, nil
	}
	first, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return first, nil
	}
	return p.rest([]any{first}, ')')
}

func (p *parser) signed() (any, error) {
	sign := ""
	if p.src[p.pos] == '-' {
		sign = "-"
	}
	p.pos++
	p.skipSpace()
	c := p.peek()
	if !isDigit(c) && !(c == '.' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])) {
		return nil, p.errorf("sign must be followed by a number, found %s", p.describe())
	}
	return p.number(sign)
}

func (p *parser) word() (any, error) {
	start := p.pos
	for !p.eof() && isIdentPart(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]

	if q := p.peek(); q == '\'' || q == '"' {
		p.pos = start
		return p.stringValue()
	}

	switch word {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	return nil, &SyntaxError{Offset: start, Msg: fmt.Sprintf("name %q is not a literal", word)}
}

// stringValue parses one string literal and any literals implicitly concatenated to it.
func (p *parser) stringValue() (any, error) {
	var b strings.Builder
	for {
		if err := p.stringLiteral(&b); err != nil {
			return nil, err
		}
		save := p.pos
		p.skipSpace()
		if !p.atString() {
			p.pos = save
			return b.String(), nil
		}
	}
}

func (p *parser) atString() bool {
	i := p.pos
	for i < len(p.src) && i-p.pos < 2 && isIdentStart(p.src[i]) {
		i++
	}
	return i < len(p.src) && (p.src[i] == '\'' || p.src[i] == '"')
}

func (p *parser) stringLiteral(b *strings.Builder) error {
	start := p.pos
	raw := false
	for !p.eof() && isIdentStart(p.src[p.pos]) {
		switch p.src[p.pos] {
		case 'r', 'R':
			raw = true
		case 'u', 'U':
		case 'b', 'B':
			return &SyntaxError{Offset: start, Msg: "bytes literals are not supported"}
		case 'f', 'F':
			return &SyntaxError{Offset: start, Msg: "f-strings are not literals"}
		default:
			return &SyntaxError{Offset: start, Msg: "invalid string prefix"}
		}
		p.pos++
	}

	quote := p.src[p.pos]
	triple := strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3))
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	for {
		if p.eof() {
			return &SyntaxError{Offset: start, Msg: "unterminated string literal"}
		}
		c := p.src[p.pos]
		switch {
		case c == quote && !triple:
			p.pos++
			return nil
		case c == quote && strings.HasPrefix(p.src[p.pos:], strings.Repeat(string(quote), 3)):
			p.pos += 3
			return nil
		case c == '\n' && !triple:
			return &SyntaxError{Offset: start, Msg: "unterminated string literal"}
		case c == '\\':
			if err := p.escape(b, raw); err != nil {
				return err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
}

func (p *parser) escape(b *strings.Builder, raw bool) error {
	start := p.pos
	p.pos++ // backslash
	if p.eof() {
		return &SyntaxError{Offset: start, Msg: "unterminated string literal"}
	}
	c := p.src[p.pos]

	if raw {
		// The backslash stays; the next character cannot end the string.
		b.WriteByte('\\')
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		b.WriteRune(r)
		p.pos += size
		return nil
	}

	if s, ok := simpleEscapes[c]; ok {
		b.WriteString(s)
		p.pos++
		return nil
	}

	switch {
	case c >= '0' && c <= '7':
		end := p.pos
		for end < len(p.src) && end-p.pos < 3 && p.src[end] >= '0' && p.src[end] <= '7' {
			end++
		}
		n := new(big.Int)
		n.SetString(p.src[p.pos:end], 8)
		b.WriteRune(rune(n.Int64()))
		p.pos = end
		return nil
	case c == 'x':
		return p.hexEscape(b, start, 2)
	case c == 'u':
		return p.hexEscape(b, start, 4)
	case c == 'U':
		return p.hexEscape(b, start, 8)
	case c == 'N':
		return &SyntaxError{Offset: start, Msg: `\N{...} escapes are not supported`}
	default:
		// Unknown escapes keep their backslash.
		b.WriteByte('\\')
		return nil
	}
}

func (p *parser) hexEscape(b *strings.Builder, start, digits int) error {
	p.pos++ // x, u or U
	end := p.pos + digits
	if end > len(p.src) {
		return &SyntaxError{Offset: start, Msg: "truncated escape sequence"}
	}
	for i := p.pos; i < end; i++ {
		if !isBaseDigit(p.src[i], 16) {
			return &SyntaxError{Offset: start, Msg: "invalid escape sequence"}
		}
	}
	n, _ := new(big.Int).SetString(p.src[p.pos:end], 16)
	if !n.IsInt64() || n.Int64() > utf8.MaxRune {
		return &SyntaxError{Offset: start, Msg: "escape sequence out of range"}
	}
	b.WriteRune(rune(n.Int64()))
	p.pos = end
	return nil
}

// number scans an int or float and returns it as a JSON number.
func (p *parser) number(sign string) (any, error) {
	start := p.pos

	if p.peek() == '0' && p.pos+1 < len(p.src) {
		base := 0
		switch p.src[p.pos+1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			p.pos += 2
			digits, err := p.digits(func(c byte) bool { return isBaseDigit(c, base) })
			if err != nil {
				return nil, err
			}
			if digits == "" {
				return nil, &SyntaxError{Offset: start, Msg: "invalid number literal"}
			}
			n, _ := new(big.Int).SetString(digits, base)
			if err := p.numberEnd(start); err != nil {
				return nil, err
			}
			return json.Number(sign + n.String()), nil
		}
	}

	intPart, err := p.digits(isDigit)
	if err != nil {
		return nil, err
	}
	isFloat := false
	frac := ""
	if p.peek() == '.' {
		isFloat = true
		p.pos++
		if frac, err = p.digits(isDigit); err != nil {
			return nil, err
		}
	}
	exp := ""
	if c := p.peek(); c == 'e' || c == 'E' {
		save := p.pos
		p.pos++
		expSign := ""
		if c := p.peek(); c == '+' || c == '-' {
			expSign = string(c)
			p.pos++
		}
		digits, err := p.digits(isDigit)
		if err != nil {
			return nil, err
		}
		if digits == "" {
			p.pos = save
			return nil, p.errorf("invalid exponent")
		}
		isFloat = true
		exp = "e" + expSign + digits
	}
	if c := p.peek(); c == 'j' || c == 'J' {
		return nil, &SyntaxError{Offset: start, Msg: "complex numbers are not supported"}
	}
	if err := p.numberEnd(start); err != nil {
		return nil, err
	}

	if !isFloat && len(intPart) > 1 && intPart[0] == '0' && strings.Trim(intPart, "0") != "" {
		return nil, &SyntaxError{Offset: start, Msg: "leading zeros in integer literals are not permitted"}
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	if !isFloat {
		return json.Number(sign + intPart), nil
	}
	if frac == "" {
		frac = "0"
	}
	return json.Number(sign + intPart + "." + frac + exp), nil
}

// digits consumes a run of digits separated by single underscores and returns it without them.
func (p *parser) digits(ok func(byte) bool) (string, error) {
	var b strings.Builder
	prevUnderscore := false
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' {
			if prevUnderscore || b.Len() == 0 {
				return "", p.errorf("invalid underscore in number")
			}
			prevUnderscore = true
			p.pos++
			continue
		}
		if !ok(c) {
			break
		}
		b.WriteByte(c)
		prevUnderscore = false
		p.pos++
	}
	if prevUnderscore {
		return "", p.errorf("invalid underscore in number")
	}
	return b.String(), nil
}

func (p *parser) numberEnd(start int) error {
	if c := p.peek(); isIdentPart(c) || c == '.' {
		return &SyntaxError{Offset: start, Msg: "invalid number literal"}
	}
	return nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isBaseDigit(c byte, base int) bool {
	switch base {
	case 2:
		return c == '0' || c == '1'
	case 8:
		return c >= '0' && c <= '7'
	default:
		return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
