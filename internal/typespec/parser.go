package typespec

import (
	"fmt"
)

// ParseSpec parses a type-specification string into its AST per the
// grammar in spec.md §3/§6. It returns a syntax error wrapped so the
// caller (the registry) can translate it into the "Bad type ... (Cannot
// parse type specification)" diagnostic form.
func ParseSpec(src string) (Type, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	// Brace nesting is bounded at 10, like the serializer and the
	// table-literal parser.
	depth := 0
	for _, tk := range toks {
		switch tk.kind {
		case tokLBrace:
			depth++
			if depth > 10 {
				return nil, fmt.Errorf("exceeds maximum depth")
			}
		case tokRBrace:
			depth--
		}
	}
	p := &parser{toks: toks}
	t, err := p.parseUnion()
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokEOF {
		return nil, fmt.Errorf("unexpected trailing input at token %d", p.pos)
	}
	return t, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	if p.cur().kind != k {
		return token{}, fmt.Errorf("unexpected token %v at position %d", p.cur(), p.pos)
	}
	return p.advance(), nil
}

// parseUnion parses "atom (| atom)*", flattening and deduplicating by
// canonical form while preserving first-seen order.
func (p *parser) parseUnion() (Type, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	members := []Type{first}
	seen := map[string]bool{first.Canonical(): true}
	for p.cur().kind == tokPipe {
		p.advance()
		next, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		if !seen[next.Canonical()] {
			seen[next.Canonical()] = true
			members = append(members, next)
		}
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return Union{Members: members}, nil
}

func (p *parser) parseAtom() (Type, error) {
	switch p.cur().kind {
	case tokIdent:
		tok := p.advance()
		return Primitive{Name: tok.text}, nil
	case tokLBrace:
		return p.parseBraced()
	default:
		return nil, fmt.Errorf("expected identifier or '{', got token %v at position %d", p.cur(), p.pos)
	}
}

func (p *parser) parseBraced() (Type, error) {
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	// {enum:a|b|c}
	if p.cur().kind == tokIdent && p.cur().text == "enum" && p.peekIs(1, tokColon) {
		p.advance() // enum
		p.advance() // :
		labels, err := p.parseEnumLabels()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRBrace); err != nil {
			return nil, err
		}
		return Enum{Labels: labels}, nil
	}

	// {extends:Parent[,f1:T1,...]} or {extends,TagName}
	if p.cur().kind == tokIdent && p.cur().text == "extends" {
		if p.peekIs(1, tokComma) {
			p.advance() // extends
			p.advance() // ,
			name, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBrace); err != nil {
				return nil, err
			}
			return TypeTag{Name: name.text}, nil
		}
		if p.peekIs(1, tokColon) {
			p.advance() // extends
			p.advance() // :
			parent, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			if p.cur().kind == tokRBrace {
				p.advance()
				return AncestorConstraint{Ancestor: parent.text}, nil
			}
			if _, err := p.expect(tokComma); err != nil {
				return nil, err
			}
			fields, err := p.parseFieldList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBrace); err != nil {
				return nil, err
			}
			return Extends{Parent: parent.text, Extra: Record{Fields: fields}}, nil
		}
	}

	items, err := p.parseItemList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	return buildFromItems(items)
}

func (p *parser) peekIs(offset int, k tokenKind) bool {
	i := p.pos + offset
	if i >= len(p.toks) {
		return false
	}
	return p.toks[i].kind == k
}

func (p *parser) parseEnumLabels() ([]string, error) {
	var labels []string
	for {
		tok, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		labels = append(labels, tok.text)
		if p.cur().kind == tokPipe {
			p.advance()
			continue
		}
		break
	}
	return labels, nil
}

func (p *parser) parseFieldList() ([]Field, error) {
	var fields []Field
	for {
		name, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		ft, err := p.parseUnion()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: name.text, Type: ft})
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return fields, nil
}

// item is one comma-separated element inside a generic brace group,
// before it is known whether the group is an array, tuple, map, or
// record.
type item struct {
	keyed    bool
	simple   bool // lhs was a bare identifier, eligible to be a record field name
	name     string
	keyType  Type
	elemType Type // positional value, or the value half of a keyed pair
}

func (p *parser) parseItemList() ([]item, error) {
	var items []item
	if p.cur().kind == tokRBrace {
		return items, nil
	}
	for {
		it, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
		if p.cur().kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	return items, nil
}

func (p *parser) parseItem() (item, error) {
	lhs, err := p.parseUnion()
	if err != nil {
		return item{}, err
	}
	if p.cur().kind == tokColon {
		p.advance()
		rhs, err := p.parseUnion()
		if err != nil {
			return item{}, err
		}
		prim, simple := lhs.(Primitive)
		it := item{keyed: true, keyType: lhs, elemType: rhs}
		if simple {
			it.simple = true
			it.name = prim.Name
		}
		return it, nil
	}
	return item{elemType: lhs}, nil
}

func buildFromItems(items []item) (Type, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty type specification braces")
	}

	keyedCount := 0
	for _, it := range items {
		if it.keyed {
			keyedCount++
		}
	}
	if keyedCount != 0 && keyedCount != len(items) {
		return nil, fmt.Errorf("cannot mix positional and keyed items in one type specification")
	}

	if keyedCount == 0 {
		if len(items) == 1 {
			return Array{Elem: items[0].elemType}, nil
		}
		positions := make([]Type, len(items))
		for i, it := range items {
			positions[i] = it.elemType
		}
		return Tuple{Positions: positions}, nil
	}

	// All keyed. A single pair is always a Map (a one-field record is
	// disallowed by spec; it disambiguates to map instead).
	if len(items) == 1 {
		return Map{Key: items[0].keyType, Value: items[0].elemType}, nil
	}

	fields := make([]Field, len(items))
	for i, it := range items {
		if !it.simple {
			return nil, fmt.Errorf("record field %d must have an identifier name, not a composite key type", i)
		}
		fields[i] = Field{Name: it.name, Type: it.elemType}
	}
	return Record{Fields: fields}, nil
}
