package constraint

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParseError reports why a constraint text could not be parsed.
// The parameter keeps its previous constraint when parsing fails.
type ParseError struct {
	Text   string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse constraint %q: %s", e.Text, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	_, ok := target.(*ParseError)
	return ok
}

// Parse turns user-entered constraint text into a typed constraint.
// kind is the parameter kind being edited; every peak reference in a
// formula refers to the same kind on the referenced peak. self is the
// label of the peak being edited, used to reject self-references.
//
// Grammars are tried in order: bare number (fixed value), bound
// tokens "<NUM" / ">NUM" (bounded), arithmetic formula with at least
// one peak reference.
func Parse(text string, kind Kind, self string) (Constraint, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Constraint{}, &ParseError{Text: text, Reason: "empty constraint"}
	}

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Fixed(v), nil
	}

	if strings.ContainsAny(trimmed, "<>") {
		return parseBounds(trimmed)
	}

	expr, err := parseFormula(trimmed, kind, self)
	if err != nil {
		return Constraint{}, err
	}
	return Formula(expr), nil
}

// parseBounds reads one or two "<NUM" / ">NUM" tokens in any order.
func parseBounds(text string) (Constraint, error) {
	lo := math.Inf(-1)
	hi := math.Inf(1)
	haveLo, haveHi := false, false

	i := 0
	for i < len(text) {
		c := text[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if c != '<' && c != '>' {
			return Constraint{}, &ParseError{
				Text: text, Pos: i,
				Reason: fmt.Sprintf("unexpected %q in bound expression", c),
			}
		}
		i++
		num, n, err := scanNumber(text, i)
		if err != nil {
			return Constraint{}, &ParseError{
				Text: text, Pos: i,
				Reason: fmt.Sprintf("malformed number after %q", c),
			}
		}
		i = n
		if c == '>' {
			if haveLo {
				return Constraint{}, &ParseError{Text: text, Pos: i, Reason: "lower bound given twice"}
			}
			lo, haveLo = num, true
		} else {
			if haveHi {
				return Constraint{}, &ParseError{Text: text, Pos: i, Reason: "upper bound given twice"}
			}
			hi, haveHi = num, true
		}
	}

	if haveLo && haveHi && lo > hi {
		return Constraint{}, &ParseError{
			Text:   text,
			Reason: fmt.Sprintf("lower bound %g exceeds upper bound %g", lo, hi),
		}
	}
	return Bounded(lo, hi), nil
}

// scanNumber parses a float starting at or after position i, skipping
// leading spaces. Returns the value and the position after the number.
func scanNumber(text string, i int) (float64, int, error) {
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}
	start := i
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		i++
	}
	for i < len(text) && (isDigit(text[i]) || text[i] == '.' || text[i] == 'e' || text[i] == 'E') {
		if (text[i] == 'e' || text[i] == 'E') && i+1 < len(text) && (text[i+1] == '+' || text[i+1] == '-') {
			i++
		}
		i++
	}
	v, err := strconv.ParseFloat(text[start:i], 64)
	if err != nil {
		return 0, start, err
	}
	return v, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Formula lexer and recursive descent parser.

type tokenType int

const (
	tokNumber tokenType = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	typ tokenType
	pos int
	num float64
	str string
	op  byte
}

type formulaParser struct {
	text   string
	tokens []token
	idx    int
	kind   Kind
	self   string
}

func parseFormula(text string, kind Kind, self string) (Expr, error) {
	p := &formulaParser{text: text, kind: kind, self: self}
	if err := p.lex(); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, p.errorf(tok.pos, "unexpected %q", p.tokenText(tok))
	}
	refs := expr.Refs()
	if len(refs) == 0 {
		return nil, p.errorf(0, "formula contains no peak references")
	}
	for _, r := range refs {
		if r.Peak == self {
			return nil, p.errorf(0, "peak %s cannot reference itself", self)
		}
	}
	return expr, nil
}

func (p *formulaParser) lex() error {
	i := 0
	for i < len(p.text) {
		c := p.text[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case isDigit(c) || c == '.':
			num, n, err := scanNumber(p.text, i)
			if err != nil {
				return p.errorf(i, "malformed number")
			}
			p.tokens = append(p.tokens, token{typ: tokNumber, pos: i, num: num})
			i = n
		case c >= 'A' && c <= 'Z':
			start := i
			for i < len(p.text) && p.text[i] >= 'A' && p.text[i] <= 'Z' {
				i++
			}
			p.tokens = append(p.tokens, token{typ: tokIdent, pos: start, str: p.text[start:i]})
		case c == '+' || c == '-' || c == '*' || c == '/':
			p.tokens = append(p.tokens, token{typ: tokOp, pos: i, op: c})
			i++
		case c == '(':
			p.tokens = append(p.tokens, token{typ: tokLParen, pos: i})
			i++
		case c == ')':
			p.tokens = append(p.tokens, token{typ: tokRParen, pos: i})
			i++
		default:
			if unicode.IsLetter(rune(c)) {
				return p.errorf(i, "peak labels are uppercase letters, got %q", c)
			}
			return p.errorf(i, "unexpected character %q", c)
		}
	}
	p.tokens = append(p.tokens, token{typ: tokEOF, pos: len(p.text)})
	return nil
}

func (p *formulaParser) peek() token { return p.tokens[p.idx] }

func (p *formulaParser) next() token {
	tok := p.tokens[p.idx]
	if tok.typ != tokEOF {
		p.idx++
	}
	return tok
}

// parseExpr := term (('+'|'-') term)*
func (p *formulaParser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokOp || (tok.op != '+' && tok.op != '-') {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: tok.op, left: left, right: right}
	}
}

// parseTerm := factor (('*'|'/') factor)*
func (p *formulaParser) parseTerm() (Expr, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.typ != tokOp || (tok.op != '*' && tok.op != '/') {
			return left, nil
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if tok.op == '/' && isLiteralZero(right) {
			return nil, p.errorf(tok.pos, "division by literal zero")
		}
		left = binaryExpr{op: tok.op, left: left, right: right}
	}
}

// parseFactor := NUMBER | IDENT | '(' expr ')' | '-' factor
func (p *formulaParser) parseFactor() (Expr, error) {
	tok := p.next()
	switch tok.typ {
	case tokNumber:
		return numberExpr(tok.num), nil
	case tokIdent:
		return refExpr{Peak: tok.str, Kind: p.kind}, nil
	case tokLParen:
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.typ != tokRParen {
			return nil, p.errorf(closing.pos, "missing closing parenthesis")
		}
		return expr, nil
	case tokOp:
		if tok.op == '-' {
			operand, err := p.parseFactor()
			if err != nil {
				return nil, err
			}
			return negExpr{operand: operand}, nil
		}
	}
	return nil, p.errorf(tok.pos, "unexpected %q", p.tokenText(tok))
}

func isLiteralZero(e Expr) bool {
	switch v := e.(type) {
	case numberExpr:
		return float64(v) == 0
	case negExpr:
		return isLiteralZero(v.operand)
	}
	return false
}

func (p *formulaParser) tokenText(tok token) string {
	switch tok.typ {
	case tokEOF:
		return "end of input"
	case tokNumber:
		return strconv.FormatFloat(tok.num, 'g', -1, 64)
	case tokIdent:
		return tok.str
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	default:
		return string(tok.op)
	}
}

func (p *formulaParser) errorf(pos int, format string, args ...any) *ParseError {
	return &ParseError{Text: p.text, Pos: pos, Reason: fmt.Sprintf(format, args...)}
}
