package typespec

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokLBrace
	tokRBrace
	tokComma
	tokColon
	tokPipe
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

// lexer tokenizes a type-specification string. Canonical specs carry no
// whitespace; the lexer tolerates none either, matching §6's "the
// parser tolerates none."
type lexer struct {
	src []rune
	pos int
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

func (l *lexer) next() (token, error) {
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	c := l.src[l.pos]
	switch c {
	case '{':
		l.pos++
		return token{kind: tokLBrace}, nil
	case '}':
		l.pos++
		return token{kind: tokRBrace}, nil
	case ',':
		l.pos++
		return token{kind: tokComma}, nil
	case ':':
		l.pos++
		return token{kind: tokColon}, nil
	case '|':
		l.pos++
		return token{kind: tokPipe}, nil
	}
	if isIdentStart(c) {
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos])}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q", c)
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// tokenize eagerly produces the full token stream, which keeps the
// recursive-descent parser below free of lexer-state juggling.
func tokenize(src string) ([]token, error) {
	src = strings.TrimSpace(src)
	l := newLexer(src)
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}
