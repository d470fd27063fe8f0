package rules

import (
	"fmt"
	"strconv"
)

// Expression nodes. Rules are small, so nodes are plain values walked by
// eval rather than an interface hierarchy.
type node any

type literalNode struct{ value any }

type listNode struct{ elems []node }

// eventNode is the bare event binding, usable on the right side of in.
type eventNode struct{}

// lookupNode is event[key]; the key is an expression, almost always a
// string literal naming a flattened path.
type lookupNode struct{ key node }

type callNode struct {
	name string
	args []node
}

type notNode struct{ operand node }

type logicalNode struct {
	op    tokenKind
	left  node
	right node
}

type compareNode struct {
	op    tokenKind
	left  node
	right node
}

type inNode struct {
	negate bool
	left   node
	right  node
}

// builtins maps callable names to their argument counts; max -1 means
// variadic.
var builtins = map[string]struct{ min, max int }{
	"get":        {1, 2},
	"startswith": {2, -1},
	"endswith":   {2, -1},
	"contains":   {2, 2},
	"lower":      {1, 1},
	"upper":      {1, 1},
}

type parser struct {
	tokens []token
	pos    int
}

// parse builds the expression tree for one rule. Precedence follows the
// usual boolean conventions: or is loosest, then and, then not, then a
// single comparison or membership test.
func parse(tokens []token) (node, error) {
	p := &parser{tokens: tokens}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %s at position %d", tok, tok.pos)
	}
	return n, nil
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind, what string) error {
	tok := p.next()
	if tok.kind != kind {
		return fmt.Errorf("expected %s, got %s at position %d", what, tok, tok.pos)
	}
	return nil
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: tokenOr, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = logicalNode{op: tokenAnd, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	if p.peek().kind == tokenNot {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	switch tok := p.peek(); tok.kind {
	case tokenEq, tokenNeq, tokenLt, tokenLte, tokenGt, tokenGte:
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return compareNode{op: tok.kind, left: left, right: right}, nil
	case tokenIn:
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return inNode{left: left, right: right}, nil
	case tokenNot:
		if p.tokens[p.pos+1].kind != tokenIn {
			return left, nil
		}
		p.next()
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return inNode{negate: true, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenString:
		return literalNode{value: tok.text}, nil
	case tokenNumber:
		f, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number %q at position %d", tok.text, tok.pos)
		}
		return literalNode{value: f}, nil
	case tokenIdent:
		return p.parseName(tok)
	case tokenLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen, `")"`); err != nil {
			return nil, err
		}
		return n, nil
	case tokenLBracket:
		return p.parseList()
	default:
		return nil, fmt.Errorf("unexpected %s at position %d", tok, tok.pos)
	}
}

// parseName resolves a bare identifier: the event binding, a literal, or a
// builtin call. Rules migrated from the Python predecessor may spell
// literals True, False, and None, so those are accepted too.
func (p *parser) parseName(tok token) (node, error) {
	switch tok.text {
	case "true", "True":
		return literalNode{value: true}, nil
	case "false", "False":
		return literalNode{value: false}, nil
	case "null", "None":
		return literalNode{value: nil}, nil
	case "event":
		if p.peek().kind != tokenLBracket {
			return eventNode{}, nil
		}
		p.next()
		key, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRBracket, `"]"`); err != nil {
			return nil, err
		}
		return lookupNode{key: key}, nil
	}
	if p.peek().kind == tokenLParen {
		return p.parseCall(tok)
	}
	return nil, fmt.Errorf("unknown name %q at position %d (only event, literals, and builtins are available)", tok.text, tok.pos)
}

func (p *parser) parseCall(nameTok token) (node, error) {
	arity, ok := builtins[nameTok.text]
	if !ok {
		return nil, fmt.Errorf("unknown function %q at position %d", nameTok.text, nameTok.pos)
	}
	p.next()
	var args []node
	if p.peek().kind != tokenRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tokenRParen, `")"`); err != nil {
		return nil, err
	}
	if len(args) < arity.min || (arity.max >= 0 && len(args) > arity.max) {
		return nil, fmt.Errorf("wrong number of arguments for %s() at position %d", nameTok.text, nameTok.pos)
	}
	return callNode{name: nameTok.text, args: args}, nil
}

func (p *parser) parseList() (node, error) {
	var elems []node
	if p.peek().kind != tokenRBracket {
		for {
			elem, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, elem)
			if p.peek().kind != tokenComma {
				break
			}
			p.next()
		}
	}
	if err := p.expect(tokenRBracket, `"]"`); err != nil {
		return nil, err
	}
	return listNode{elems: elems}, nil
}
