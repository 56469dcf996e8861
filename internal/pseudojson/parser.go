// Package pseudojson recovers structured data from the loosely formatted object
// literals found in balance-sync log lines. It understands strict JSON as well as
// the python-literal dialect the service sometimes emits: single-quoted strings,
// bare identifier keys and the None/True/False literals.
package pseudojson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SyntaxError describes where a fragment stopped being parseable.
type SyntaxError struct {
	Msg    string
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("pseudojson: %s at offset %d", e.Msg, e.Offset)
}

// Parse parses text in the pseudo-JSON dialect and returns the decoded value.
// Objects decode to map[string]any, arrays to []any, numbers to json.Number,
// None/null to nil and True/False to bool. Any error is a *SyntaxError.
func Parse(text string) (any, error) {
	p := &parser{src: text}
	p.skipSpace()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected trailing %q", p.src[p.pos])
	}
	return v, nil
}

// ParseObject is Parse restricted to a top-level object.
func ParseObject(text string) (map[string]any, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SyntaxError{Msg: fmt.Sprintf("top-level value is %T, not an object", v)}
	}
	return obj, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) *SyntaxError {
	return &SyntaxError{Msg: fmt.Sprintf(format, args...), Offset: p.pos}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) value() (any, error) {
	switch c := p.peek(); {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"' || c == '\'':
		return p.quoted()
	default:
		return p.scalar()
	}
}

func (p *parser) object() (map[string]any, error) {
	p.pos++ // {
	obj := make(map[string]any)
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipSpace()
		key, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		obj[key] = v
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			// tolerate a trailing comma
			if p.peek() == '}' {
				p.pos++
				return obj, nil
			}
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errorf("expected ',' or '}' in object")
		}
	}
}

func (p *parser) array() ([]any, error) {
	p.pos++ // [
	arr := []any{}
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return arr, nil
	}
	for {
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
			p.skipSpace()
			if p.peek() == ']' {
				p.pos++
				return arr, nil
			}
		case ']':
			p.pos++
			return arr, nil
		default:
			return nil, p.errorf("expected ',' or ']' in array")
		}
	}
}

func (p *parser) key() (string, error) {
	switch c := p.peek(); {
	case c == '"' || c == '\'':
		return p.quoted()
	case isBareKeyByte(c):
		start := p.pos
		for p.pos < len(p.src) && isBareKeyByte(p.src[p.pos]) {
			p.pos++
		}
		return p.src[start:p.pos], nil
	default:
		return "", p.errorf("expected object key")
	}
}

// quoted reads a single- or double-quoted string with backslash escapes.
func (p *parser) quoted() (string, error) {
	quote := p.src[p.pos]
	start := p.pos
	p.pos++
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return b.String(), nil
		case c == '\\':
			if p.pos+1 >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			esc := p.src[p.pos+1]
			if esc == 'u' && p.pos+6 <= len(p.src) {
				var r string
				if err := json.Unmarshal([]byte(`"`+p.src[p.pos:p.pos+6]+`"`), &r); err == nil {
					b.WriteString(r)
					p.pos += 6
					continue
				}
			}
			b.WriteByte(unescape(esc))
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	p.pos = start
	return "", p.errorf("unterminated string")
}

// scalar reads an unquoted literal. In value position a bare token runs until
// a structural delimiter, so unquoted timestamps keep their colons.
func (p *parser) scalar() (any, error) {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == ',' || c == '}' || c == ']' || c == '{' || c == '[' {
			break
		}
		p.pos++
	}
	tok := strings.TrimSpace(p.src[start:p.pos])
	if tok == "" {
		p.pos = start
		return nil, p.errorf("expected value")
	}
	switch tok {
	case "None", "null":
		return nil, nil
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}
	if isNumber(tok) {
		return json.Number(tok), nil
	}
	return tok, nil
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}

func isBareKeyByte(c byte) bool {
	return c == '_' || c == '$' || c == '-' || c == '.' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isNumber(tok string) bool {
	var n json.Number
	return json.Unmarshal([]byte(tok), &n) == nil
}
