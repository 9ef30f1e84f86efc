package morph

import (
	"fmt"
	"strconv"
	"strings"
)

// PathSyntaxError reports a malformed path string and where it went wrong.
type PathSyntaxError struct {
	Problem  string
	Position int
}

// Error implements error.
func (e PathSyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s at position %d", e.Problem, e.Position)
}

// ParseOptic parses the path syntax:
//
//	path     := segment*
//	segment  := field | index | elements | mapKey | mapKeys | mapValues | case | search
//	field    := "." identifier
//	index    := "[" integer ("," integer)* "]"
//	elements := "[*]"
//	mapKey   := "@" (string | integer | char | bool)
//	mapKeys  := "@keys" | "@values"
//	case     := "/" identifier
//	search   := "#" identifier
//
// Identifiers are [A-Za-z_][A-Za-z0-9_]*. Strings use double quotes with the
// standard escapes. A leading "$" is accepted and ignored, so rendered paths
// parse back. A search identifier naming a primitive kind becomes a
// SearchSchema over that kind; any other identifier becomes a TypeSearch.
func ParseOptic(s string) (Optic, error) {
	p := &pathScanner{src: s}
	if strings.HasPrefix(s, "$") {
		p.pos = 1
	}
	var nodes []Node
	for !p.done() {
		node, err := p.segment()
		if err != nil {
			return Optic{}, err
		}
		nodes = append(nodes, node)
	}
	return Optic{Nodes: nodes}, nil
}

// MustParseOptic is ParseOptic for compile-time-constant paths; it panics on
// malformed input.
func MustParseOptic(s string) Optic {
	o, err := ParseOptic(s)
	if err != nil {
		panic(err)
	}
	return o
}

type pathScanner struct {
	src string
	pos int
}

func (p *pathScanner) done() bool { return p.pos >= len(p.src) }

func (p *pathScanner) peek() byte { return p.src[p.pos] }

func (p *pathScanner) errorf(format string, args ...interface{}) error {
	return PathSyntaxError{Problem: fmt.Sprintf(format, args...), Position: p.pos}
}

func (p *pathScanner) segment() (Node, error) {
	switch p.peek() {
	case '.':
		p.pos++
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return Field{Name: name}, nil

	case '/':
		p.pos++
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		return Case{Name: name}, nil

	case '#':
		p.pos++
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if _, ok := ParsePrimitiveKind(name); ok {
			return SearchSchema{Pattern: PrimitivePattern{Name: name}}, nil
		}
		return TypeSearch{TypeID: name}, nil

	case '[':
		return p.bracket()

	case '@':
		return p.mapKey()
	}
	return nil, p.errorf("unexpected character %q", p.peek())
}

func (p *pathScanner) bracket() (Node, error) {
	p.pos++ // consume '['
	if !p.done() && p.peek() == '*' {
		p.pos++
		if p.done() || p.peek() != ']' {
			return nil, p.errorf("expected ']' after '*'")
		}
		p.pos++
		return Elements{}, nil
	}

	var indices []int
	for {
		i, err := p.integer()
		if err != nil {
			return nil, err
		}
		indices = append(indices, i)
		if p.done() {
			return nil, p.errorf("unterminated index segment")
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			if len(indices) == 1 {
				return AtIndex{Index: indices[0]}, nil
			}
			return AtIndices{Indices: indices}, nil
		default:
			return nil, p.errorf("unexpected character %q in index segment", p.peek())
		}
	}
}

func (p *pathScanner) mapKey() (Node, error) {
	p.pos++ // consume '@'
	if p.done() {
		return nil, p.errorf("dangling '@'")
	}
	switch c := p.peek(); {
	case c == '"':
		s, err := p.quotedString()
		if err != nil {
			return nil, err
		}
		return AtMapKey{Key: String(s)}, nil

	case c == '\'':
		p.pos++
		if p.done() {
			return nil, p.errorf("unterminated char key")
		}
		r := rune(p.src[p.pos])
		p.pos++
		if p.done() || p.peek() != '\'' {
			return nil, p.errorf("unterminated char key")
		}
		p.pos++
		return AtMapKey{Key: Char(r)}, nil

	case c == '-' || (c >= '0' && c <= '9'):
		i, err := p.integer()
		if err != nil {
			return nil, err
		}
		return AtMapKey{Key: Int32(int32(i))}, nil

	case isIdentStart(c):
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		switch name {
		case "keys":
			return MapKeys{}, nil
		case "values":
			return MapValues{}, nil
		case "true":
			return AtMapKey{Key: Bool(true)}, nil
		case "false":
			return AtMapKey{Key: Bool(false)}, nil
		}
		return nil, p.errorf("invalid map key '%s'", name)
	}
	return nil, p.errorf("invalid map key starting with %q", p.peek())
}

func (p *pathScanner) identifier() (string, error) {
	if p.done() || !isIdentStart(p.peek()) {
		return "", p.errorf("expected identifier")
	}
	start := p.pos
	p.pos++
	for !p.done() && isIdentPart(p.peek()) {
		p.pos++
	}
	return p.src[start:p.pos], nil
}

func (p *pathScanner) integer() (int, error) {
	start := p.pos
	if !p.done() && p.peek() == '-' {
		p.pos++
	}
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if p.pos == start || (p.pos == start+1 && p.src[start] == '-') {
		return 0, p.errorf("expected integer")
	}
	i, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return 0, p.errorf("invalid integer '%s'", p.src[start:p.pos])
	}
	return i, nil
}

func (p *pathScanner) quotedString() (string, error) {
	p.pos++ // consume opening quote
	var b strings.Builder
	for !p.done() {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.done() {
				return "", p.errorf("unterminated escape")
			}
			switch esc := p.src[p.pos]; esc {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				if p.pos+4 >= len(p.src) {
					return "", p.errorf("truncated \\u escape")
				}
				code, err := strconv.ParseUint(p.src[p.pos+1:p.pos+5], 16, 32)
				if err != nil {
					return "", p.errorf("invalid \\u escape")
				}
				b.WriteRune(rune(code))
				p.pos += 4
			default:
				return "", p.errorf("unknown escape \\%c", esc)
			}
			p.pos++
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errorf("unterminated string")
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
