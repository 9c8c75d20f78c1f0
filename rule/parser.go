package rule

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/arturpragacz/labelgraph/errors"
)

// Parse parses a rule expression in the configuration grammar:
//
//	expr    = orExpr
//	orExpr  = andExpr { "or" andExpr }
//	andExpr = notExpr { "and" notExpr }
//	notExpr = "not" notExpr | primary
//	primary = "label" "(" reference ")" | "(" expr ")"
//
// A reference is a bare identifier or a quoted string (single or double
// quotes); quoted references may be display names. Connective keywords
// are case-insensitive. Malformed input yields an ErrMalformedRule.
func Parse(input string) (Expr, error) {
	lexer := &lexer{input: input}
	tokens, err := lexer.run()
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, malformed("unexpected %q after expression", tok.text)
	}
	return expr, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, errors.ErrMalformedRule)...)
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) run() ([]token, error) {
	var tokens []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF}, nil
	}

	switch c := l.input[l.pos]; {
	case c == '(':
		l.pos++
		return token{kind: tokenLParen, text: "("}, nil
	case c == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")"}, nil
	case c == '"' || c == '\'':
		return l.lexString(c)
	case isIdentRune(rune(c)):
		start := l.pos
		for l.pos < len(l.input) && isIdentRune(rune(l.input[l.pos])) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.input[start:l.pos]}, nil
	default:
		return token{}, malformed("unexpected character %q at offset %d", c, l.pos)
	}
}

func (l *lexer) lexString(quote byte) (token, error) {
	l.pos++ // opening quote
	start := l.pos
	for l.pos < len(l.input) {
		if l.input[l.pos] == quote {
			text := l.input[start:l.pos]
			l.pos++
			return token{kind: tokenString, text: text}, nil
		}
		l.pos++
	}
	return token{}, malformed("unterminated string starting at offset %d", start-1)
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-'
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

// keyword reports whether the next token is the given connective and
// consumes it if so.
func (p *parser) keyword(word string) bool {
	tok := p.peek()
	if tok.kind == tokenIdent && strings.EqualFold(tok.text, word) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.keyword("not") {
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Not{Expr: expr}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.advance()
	switch {
	case tok.kind == tokenLParen:
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokenRParen {
			return nil, malformed("expected ')', got %q", closing.text)
		}
		return expr, nil

	case tok.kind == tokenIdent && strings.EqualFold(tok.text, "label"):
		if open := p.advance(); open.kind != tokenLParen {
			return nil, malformed("expected '(' after label, got %q", open.text)
		}
		ref := p.advance()
		if ref.kind != tokenIdent && ref.kind != tokenString {
			return nil, malformed("expected label reference, got %q", ref.text)
		}
		if closing := p.advance(); closing.kind != tokenRParen {
			return nil, malformed("expected ')' after label reference, got %q", closing.text)
		}
		return &Predicate{Ref: ref.text}, nil

	case tok.kind == tokenEOF:
		return nil, malformed("unexpected end of expression")

	default:
		return nil, malformed("unexpected token %q", tok.text)
	}
}
