package querylang

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIllegal
	TokenIdent  // property name
	TokenField  // @field
	TokenString // quoted literal, Value is unescaped
	TokenNumber
	TokenNull
	TokenTrue
	TokenFalse
	TokenLParen
	TokenRParen
	TokenAnd
	TokenOr
	TokenNot
	TokenLike
	TokenOp // = != <> > >= < <=
)

var tokenNames = map[TokenType]string{
	TokenEOF:     "end of input",
	TokenIllegal: "illegal token",
	TokenIdent:   "identifier",
	TokenField:   "field",
	TokenString:  "string",
	TokenNumber:  "number",
	TokenNull:    "null",
	TokenTrue:    "true",
	TokenFalse:   "false",
	TokenLParen:  "'('",
	TokenRParen:  "')'",
	TokenAnd:     "AND",
	TokenOr:      "OR",
	TokenNot:     "NOT",
	TokenLike:    "LIKE",
	TokenOp:      "operator",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token is a lexical token. Pos is the byte offset where it starts.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes filter expressions.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token. Malformed input yields a TokenIllegal
// whose Value describes the problem.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case '=':
		l.pos++
		if l.peek() == '=' {
			l.pos++
		}
		return Token{Type: TokenOp, Value: "=", Pos: start}
	case '!':
		if l.peekAt(1) == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Value: "!=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenIllegal, Value: "expected '=' after '!'", Pos: start}
	case '<':
		l.pos++
		switch l.peek() {
		case '=':
			l.pos++
			return Token{Type: TokenOp, Value: "<=", Pos: start}
		case '>':
			l.pos++
			return Token{Type: TokenOp, Value: "!=", Pos: start}
		}
		return Token{Type: TokenOp, Value: "<", Pos: start}
	case '>':
		l.pos++
		if l.peek() == '=' {
			l.pos++
			return Token{Type: TokenOp, Value: ">=", Pos: start}
		}
		return Token{Type: TokenOp, Value: ">", Pos: start}
	case '\'', '"':
		return l.readString(ch)
	case '@':
		l.pos++
		if l.pos >= len(l.input) || !isIdentStart(l.input[l.pos]) {
			return Token{Type: TokenIllegal, Value: "expected field name after '@'", Pos: start}
		}
		tok := l.readWord()
		return Token{Type: TokenField, Value: tok, Pos: start}
	}

	if isDigit(ch) || (ch == '-' && isDigit(l.peekAt(1))) || (ch == '.' && isDigit(l.peekAt(1))) {
		return l.readNumber()
	}

	if isIdentStart(ch) {
		word := l.readWord()
		switch strings.ToUpper(word) {
		case "AND":
			return Token{Type: TokenAnd, Value: "AND", Pos: start}
		case "OR":
			return Token{Type: TokenOr, Value: "OR", Pos: start}
		case "NOT":
			return Token{Type: TokenNot, Value: "NOT", Pos: start}
		case "LIKE":
			return Token{Type: TokenLike, Value: "LIKE", Pos: start}
		case "NULL":
			return Token{Type: TokenNull, Value: "null", Pos: start}
		case "TRUE":
			return Token{Type: TokenTrue, Value: "true", Pos: start}
		case "FALSE":
			return Token{Type: TokenFalse, Value: "false", Pos: start}
		}
		return Token{Type: TokenIdent, Value: word, Pos: start}
	}

	l.pos++
	return Token{Type: TokenIllegal, Value: "unexpected character " + string(rune(ch)), Pos: start}
}

func (l *Lexer) peek() byte { return l.peekAt(0) }

func (l *Lexer) peekAt(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// readString reads a literal delimited by quote. A doubled quote or a
// backslash escapes the next character.
func (l *Lexer) readString(quote byte) Token {
	start := l.pos
	l.pos++ // opening quote

	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\' && l.pos+1 < len(l.input):
			b.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case ch == quote && l.peekAt(1) == quote:
			b.WriteByte(quote)
			l.pos += 2
		case ch == quote:
			l.pos++
			return Token{Type: TokenString, Value: b.String(), Pos: start}
		default:
			b.WriteByte(ch)
			l.pos++
		}
	}
	return Token{Type: TokenIllegal, Value: "unterminated string literal", Pos: start}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.peek() == '.' {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if c := l.peek(); c == 'e' || c == 'E' {
		save := l.pos
		l.pos++
		if c := l.peek(); c == '+' || c == '-' {
			l.pos++
		}
		if !isDigit(l.peek()) {
			l.pos = save
		}
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.input) && isIdentStart(l.input[l.pos]) {
		for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
			l.pos++
		}
		return Token{Type: TokenIllegal, Value: "malformed number " + l.input[start:l.pos], Pos: start}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) readWord() string {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	return l.input[start:l.pos]
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.' || ch == '-'
}
