package rules

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenLParen
	tokenRParen
	tokenLBracket
	tokenRBracket
	tokenComma
	tokenEq
	tokenNeq
	tokenLt
	tokenLte
	tokenGt
	tokenGte
	tokenAnd
	tokenOr
	tokenNot
	tokenIn
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	switch t.kind {
	case tokenEOF:
		return "end of expression"
	case tokenString:
		return fmt.Sprintf("%q", t.text)
	default:
		return t.text
	}
}

var keywords = map[string]tokenKind{
	"and": tokenAnd,
	"or":  tokenOr,
	"not": tokenNot,
	"in":  tokenIn,
}

// lex splits a rule expression into tokens. It fails on characters and
// constructs outside the rule language, which keeps anything resembling
// general code from ever reaching the parser.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentPart(input[i]) {
				i++
			}
			text := input[start:i]
			if kind, ok := keywords[text]; ok {
				tokens = append(tokens, token{kind: kind, text: text, pos: start})
			} else {
				tokens = append(tokens, token{kind: tokenIdent, text: text, pos: start})
			}
		case c >= '0' && c <= '9':
			tok, n, err := lexNumber(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = n
		case c == '-':
			if i+1 >= len(input) || input[i+1] < '0' || input[i+1] > '9' {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
			tok, n, err := lexNumber(input, i+1)
			if err != nil {
				return nil, err
			}
			tok.text = "-" + tok.text
			tok.pos = i
			tokens = append(tokens, tok)
			i = n
		case c == '\'' || c == '"':
			tok, n, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = n
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case c == '[':
			tokens = append(tokens, token{kind: tokenLBracket, text: "[", pos: i})
			i++
		case c == ']':
			tokens = append(tokens, token{kind: tokenRBracket, text: "]", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokenComma, text: ",", pos: i})
			i++
		case c == '=':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenEq, text: "==", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at position %d (assignment is not allowed)", c, i)
			}
		case c == '!':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenNeq, text: "!=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenNot, text: "!", pos: i})
				i++
			}
		case c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenLte, text: "<=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenLt, text: "<", pos: i})
				i++
			}
		case c == '>':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokenGte, text: ">=", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenGt, text: ">", pos: i})
				i++
			}
		case c == '&':
			if i+1 < len(input) && input[i+1] == '&' {
				tokens = append(tokens, token{kind: tokenAnd, text: "&&", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
		case c == '|':
			if i+1 < len(input) && input[i+1] == '|' {
				tokens = append(tokens, token{kind: tokenOr, text: "||", pos: i})
				i += 2
			} else {
				return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
			}
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", c, i)
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

func lexNumber(input string, start int) (token, int, error) {
	i := start
	for i < len(input) && input[i] >= '0' && input[i] <= '9' {
		i++
	}
	if i < len(input) && input[i] == '.' {
		i++
		if i >= len(input) || input[i] < '0' || input[i] > '9' {
			return token{}, 0, fmt.Errorf("malformed number at position %d", start)
		}
		for i < len(input) && input[i] >= '0' && input[i] <= '9' {
			i++
		}
	}
	return token{kind: tokenNumber, text: input[start:i], pos: start}, i, nil
}

func lexString(input string, start int) (token, int, error) {
	quote := input[start]
	var sb strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		switch c {
		case quote:
			return token{kind: tokenString, text: sb.String(), pos: start}, i + 1, nil
		case '\\':
			if i+1 >= len(input) {
				return token{}, 0, fmt.Errorf("unterminated string at position %d", start)
			}
			switch esc := input[i+1]; esc {
			case '\\', '\'', '"':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, 0, fmt.Errorf("unsupported escape \\%c at position %d", esc, i)
			}
			i += 2
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return token{}, 0, fmt.Errorf("unterminated string at position %d", start)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
