package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / class / method name
	INTEGER    // decimal integer literal
	STRING     // string literal "..."

	// Keywords
	LIST   // "list"
	IF     // "if"
	ELSE   // "else"
	WHILE  // "while"
	FOR    // "for"
	IN     // "in"
	RANGE  // "range"
	CLASS  // "class"
	METHOD // "method"
	PRINT  // "print"

	// Paired delimiters
	LBRACE   // {
	RBRACE   // }
	LPAREN   // (
	RPAREN   // )
	LBRACKET // [
	RBRACKET // ]

	// Punctuation
	DOT   // .
	COMMA // ,

	// Assignment / comparison  (order matters: ASSIGN before EQUALS)
	ASSIGN  // =
	EQUALS  // ==
	LESS    // <
	GREATER // >

	LESS_EQ    // <=
	GREATER_EQ // >=

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:        "EOF",
	IDENTIFIER: "IDENTIFIER",
	INTEGER:    "INTEGER",
	STRING:     "STRING",
	LIST:       "LIST",
	IF:         "IF",
	ELSE:       "ELSE",
	WHILE:      "WHILE",
	FOR:        "FOR",
	IN:         "IN",
	RANGE:      "RANGE",
	CLASS:      "CLASS",
	METHOD:     "METHOD",
	PRINT:      "PRINT",
	LBRACE:     "LBRACE",
	RBRACE:     "RBRACE",
	LPAREN:     "LPAREN",
	RPAREN:     "RPAREN",
	LBRACKET:   "LBRACKET",
	RBRACKET:   "RBRACKET",
	DOT:        "DOT",
	COMMA:      "COMMA",
	ASSIGN:     "ASSIGN",
	EQUALS:     "EQUALS",
	LESS:       "LESS",
	GREATER:    "GREATER",
	LESS_EQ:    "LESS_EQ",
	GREATER_EQ: "GREATER_EQ",
	PLUS:       "PLUS",
	MINUS:      "MINUS",
	STAR:       "STAR",
	SLASH:      "SLASH",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Col    int    // 1-based source column
}

// Pos returns the token's source position.
func (t Token) Pos() Position {
	return Position{Line: t.Line, Col: t.Col}
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d col %d", t.Type, t.Lexeme, t.Line, t.Col)
}
