package querylang

import (
	"fmt"
	"strings"

	"github.com/devmkr/Vislog/internal/model"
)

const maxDepth = 64

// coreFields maps lower-cased @field names to their entry column.
var coreFields = map[string]string{
	"level":           model.ColLevel,
	"exception":       model.ColException,
	"message":         model.ColMessage,
	"messagetemplate": model.ColMessageTemplate,
	"timestamp":       model.ColTimestamp,
}

var mirrored = map[string]string{
	"=":  "=",
	"!=": "!=",
	">":  "<",
	">=": "<=",
	"<":  ">",
	"<=": ">=",
}

// Parser parses filter expressions into an AST.
type Parser struct {
	input   string
	lexer   *Lexer
	current Token
	depth   int
}

// Parse parses the input string and returns the AST root node. Blank input
// yields a nil node.
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	p := &Parser{input: input, lexer: NewLexer(input)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, p.errorf(p.current.Pos, "unexpected %s", describe(p.current))
	}
	return node, nil
}

func (p *Parser) advance() error {
	p.current = p.lexer.NextToken()
	if p.current.Type == TokenIllegal {
		return p.errorf(p.current.Pos, "%s", p.current.Value)
	}
	return nil
}

func (p *Parser) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Query: p.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "OR", Left: left, Right: right}
	}

	return left, nil
}

// parseAnd handles AND expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "AND", Left: left, Right: right}
	}

	return left, nil
}

// parseNot handles NOT expressions.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		pos := p.current.Pos
		if err := p.enter(pos); err != nil {
			return nil, err
		}
		defer p.leave()

		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseNot() // NOT is right-associative
		if err != nil {
			return nil, err
		}
		return NotExpr{Expr: expr}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles a parenthesized expression or a comparison.
func (p *Parser) parsePrimary() (Node, error) {
	if p.current.Type == TokenLParen {
		open := p.current.Pos
		if err := p.enter(open); err != nil {
			return nil, err
		}
		defer p.leave()

		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, p.errorf(p.current.Pos, "expected ')' to close '(' at %d, got %s", open, describe(p.current))
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (Node, error) {
	start := p.current.Pos
	left, leftIsRef, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	opTok := p.current
	var op string
	switch opTok.Type {
	case TokenOp:
		op = opTok.Value
	case TokenLike:
		op = "LIKE"
	default:
		return nil, p.errorf(opTok.Pos, "expected comparison operator, got %s", describe(opTok))
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	right, rightIsRef, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch {
	case leftIsRef && !rightIsRef:
		return Comparison{Ref: left.(Ref), Op: op, Literal: right.(Literal), Pos: start}, nil
	case !leftIsRef && rightIsRef:
		if op == "LIKE" {
			return nil, p.errorf(opTok.Pos, "LIKE needs the field or property on its left")
		}
		return Comparison{Ref: right.(Ref), Op: mirrored[op], Literal: left.(Literal), Pos: start}, nil
	case leftIsRef:
		return nil, p.errorf(start, "cannot compare two fields; one side must be a literal")
	default:
		return nil, p.errorf(start, "comparison needs a field or property on one side")
	}
}

// parseOperand returns a Ref or a Literal; the bool reports which.
func (p *Parser) parseOperand() (any, bool, error) {
	tok := p.current
	var operand any
	isRef := false

	switch tok.Type {
	case TokenField:
		col, ok := coreFields[strings.ToLower(tok.Value)]
		if !ok {
			return nil, false, p.errorf(tok.Pos, "unknown field @%s", tok.Value)
		}
		operand, isRef = Ref{Name: col, Field: true, Pos: tok.Pos}, true
	case TokenIdent:
		operand, isRef = Ref{Name: tok.Value, Pos: tok.Pos}, true
	case TokenString:
		operand = Literal{Kind: LitString, Value: tok.Value, Pos: tok.Pos}
	case TokenNumber:
		operand = Literal{Kind: LitNumber, Value: tok.Value, Pos: tok.Pos}
	case TokenTrue, TokenFalse:
		operand = Literal{Kind: LitBool, Value: tok.Value, Pos: tok.Pos}
	case TokenNull:
		operand = Literal{Kind: LitNull, Value: tok.Value, Pos: tok.Pos}
	default:
		return nil, false, p.errorf(tok.Pos, "expected field, property or literal, got %s", describe(tok))
	}

	if err := p.advance(); err != nil {
		return nil, false, err
	}
	return operand, isRef, nil
}

func (p *Parser) enter(pos int) error {
	p.depth++
	if p.depth > maxDepth {
		return p.errorf(pos, "expression nested too deeply")
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("string %q", tok.Value)
	case TokenField:
		return "@" + tok.Value
	}
	return fmt.Sprintf("%q", tok.Value)
}
