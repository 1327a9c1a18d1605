// Package tableliteral parses a single-line Lua-style table literal
// cell ("{}", "{1,2}", "{a=1,b={2,3}}", "{_1=1,_2=2}") into an
// in-memory value.Value. It is depth-bounded and has no notion of
// declared element types — that belongs to the registry's per-kind
// parsers, which call this package for the generic shape and then
// re-interpret each leaf against the declared element type.
package tableliteral

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pieczasz/tabularium/internal/value"
)

// MaxDepth is the hard recursion limit shared with the value serializer
// and the type-spec parser (spec.md §5 "Depth bounds").
const MaxDepth = 10

// Parse parses src as a table literal. A non-table top-level value
// ("42", "\"abc\"", "true") is rejected, matching the teacher's
// disambiguation that this parser's only job is tables.
func Parse(src string) (value.Value, error) {
	toks, err := tokenize(src)
	if err != nil {
		return value.Nil(), err
	}
	p := &parser{toks: toks}
	if p.cur().kind != tLBrace {
		return value.Nil(), fmt.Errorf("not a table")
	}
	v, err := p.parseTable(1)
	if err != nil {
		return value.Nil(), err
	}
	if p.cur().kind != tEOF {
		return value.Nil(), fmt.Errorf("unexpected trailing input")
	}
	return v, nil
}

type tkind int

const (
	tLBrace tkind = iota
	tRBrace
	tComma
	tEq
	tNumber
	tString
	tIdent
	tEOF
)

type tok struct {
	kind tkind
	text string
}

func tokenize(src string) ([]tok, error) {
	runes := []rune(strings.TrimSpace(src))
	var toks []tok
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == '{':
			toks = append(toks, tok{kind: tLBrace})
			i++
		case c == '}':
			toks = append(toks, tok{kind: tRBrace})
			i++
		case c == ',':
			toks = append(toks, tok{kind: tComma})
			i++
		case c == '=':
			toks = append(toks, tok{kind: tEq})
			i++
		case c == ' ' || c == '\t':
			i++
		case c == '\'' || c == '"':
			s, n, err := scanQuoted(runes[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok{kind: tString, text: s})
			i += n
		case c == '-' || (c >= '0' && c <= '9'):
			s, n := scanNumber(runes[i:])
			toks = append(toks, tok{kind: tNumber, text: s})
			i += n
		case isIdentStart(c):
			start := i
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			toks = append(toks, tok{kind: tIdent, text: string(runes[start:i])})
		default:
			return nil, fmt.Errorf("unexpected character %q in table literal", c)
		}
	}
	toks = append(toks, tok{kind: tEOF})
	return toks, nil
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func scanNumber(runes []rune) (string, int) {
	i := 0
	if runes[i] == '-' {
		i++
	}
	for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
		i++
	}
	if i < len(runes) && runes[i] == '.' {
		i++
		for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
			i++
		}
	}
	return string(runes[:i]), i
}

func scanQuoted(runes []rune) (string, int, error) {
	quote := runes[0]
	var sb strings.Builder
	i := 1
	for i < len(runes) {
		c := runes[i]
		if c == quote {
			return sb.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case '\'':
				sb.WriteByte('\'')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteRune(runes[i+1])
			}
			i += 2
			continue
		}
		sb.WriteRune(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated quoted string")
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) cur() tok { return p.toks[p.pos] }

func (p *parser) advance() tok {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tkind) (tok, error) {
	if p.cur().kind != k {
		return tok{}, fmt.Errorf("unexpected token in table literal at position %d", p.pos)
	}
	return p.advance(), nil
}

func (p *parser) parseTable(depth int) (value.Value, error) {
	if depth > MaxDepth {
		return value.Nil(), fmt.Errorf("exceeds maximum depth")
	}
	if _, err := p.expect(tLBrace); err != nil {
		return value.Nil(), err
	}
	if p.cur().kind == tRBrace {
		p.advance()
		return value.Array(nil), nil
	}

	var items []value.Value
	var entries []value.Entry
	keyed := false

	for {
		if p.cur().kind == tIdent && p.peekIs(1, tEq) {
			name := p.advance().text
			p.advance() // '='
			v, err := p.parseValue(depth)
			if err != nil {
				return value.Nil(), err
			}
			entries = append(entries, value.Entry{Key: name, Val: v})
			keyed = true
		} else {
			v, err := p.parseValue(depth)
			if err != nil {
				return value.Nil(), err
			}
			items = append(items, v)
		}
		if p.cur().kind == tComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tRBrace); err != nil {
		return value.Nil(), err
	}
	if keyed {
		return value.Map(entries), nil
	}
	return value.Array(items), nil
}

func (p *parser) peekIs(offset int, k tkind) bool {
	i := p.pos + offset
	if i >= len(p.toks) {
		return false
	}
	return p.toks[i].kind == k
}

func (p *parser) parseValue(depth int) (value.Value, error) {
	switch p.cur().kind {
	case tLBrace:
		return p.parseTable(depth + 1)
	case tNumber:
		t := p.advance()
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return value.Nil(), fmt.Errorf("invalid number %q: %w", t.text, err)
		}
		return value.Number(n), nil
	case tString:
		t := p.advance()
		return value.String(t.text), nil
	case tIdent:
		t := p.advance()
		switch t.text {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		case "nil":
			return value.Nil(), nil
		default:
			return value.String(t.text), nil
		}
	default:
		return value.Nil(), fmt.Errorf("unexpected token in table literal value position")
	}
}
