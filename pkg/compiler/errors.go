package compiler

import "fmt"

// Position is a 1-based line/column location in the source text.
type Position struct {
	Line int
	Col  int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// CompileError is implemented by every error the pipeline can produce.
// Phase names the pipeline stage that failed: "lex", "parse" or "resolve".
type CompileError interface {
	error
	Pos() Position
	Phase() string
}

// LexError reports an unrecognized character in the source text.
type LexError struct {
	Position
	Char rune
}

func (e *LexError) Error() string {
	return fmt.Sprintf("line %d:%d: unexpected character %q", e.Line, e.Col, e.Char)
}
func (e *LexError) Pos() Position { return e.Position }
func (e *LexError) Phase() string { return "lex" }

// UnterminatedStringError reports a string literal with no closing quote.
type UnterminatedStringError struct {
	Position
}

func (e *UnterminatedStringError) Error() string {
	return fmt.Sprintf("line %d:%d: unterminated string literal", e.Line, e.Col)
}
func (e *UnterminatedStringError) Pos() Position { return e.Position }
func (e *UnterminatedStringError) Phase() string { return "lex" }

// ParseError reports a token that violates the grammar. Snippet holds the
// trimmed source line the token came from, for one-line diagnostics.
type ParseError struct {
	Position
	Expected string
	Found    Token
	Snippet  string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("line %d:%d: expected %s, got %s (%q)",
		e.Line, e.Col, e.Expected, e.Found.Type, e.Found.Lexeme)
	if e.Snippet != "" {
		msg += "\n  |> " + e.Snippet
	}
	return msg
}
func (e *ParseError) Pos() Position { return e.Position }
func (e *ParseError) Phase() string { return "parse" }

// UndeclaredIdentifierError reports a use of a name with no binding in any
// enclosing scope.
type UndeclaredIdentifierError struct {
	Position
	Name string
}

func (e *UndeclaredIdentifierError) Error() string {
	return fmt.Sprintf("line %d:%d: undeclared identifier %q", e.Line, e.Col, e.Name)
}
func (e *UndeclaredIdentifierError) Pos() Position { return e.Position }
func (e *UndeclaredIdentifierError) Phase() string { return "resolve" }

// DuplicateDeclarationError reports a second declaration of a name within
// the same scope.
type DuplicateDeclarationError struct {
	Position
	Name string
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("line %d:%d: duplicate declaration of %q", e.Line, e.Col, e.Name)
}
func (e *DuplicateDeclarationError) Pos() Position { return e.Position }
func (e *DuplicateDeclarationError) Phase() string { return "resolve" }

// UnknownClassError reports an instantiation naming a class that was never
// declared.
type UnknownClassError struct {
	Position
	Name string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("line %d:%d: unknown class %q", e.Line, e.Col, e.Name)
}
func (e *UnknownClassError) Pos() Position { return e.Position }
func (e *UnknownClassError) Phase() string { return "resolve" }

// UnknownMethodError reports a call to a method the receiver's class does
// not declare, or a call with the wrong number of arguments.
type UnknownMethodError struct {
	Position
	Class string
	Name  string
	Msg   string // optional detail, e.g. an arity mismatch
}

func (e *UnknownMethodError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("line %d:%d: method %s.%s: %s", e.Line, e.Col, e.Class, e.Name, e.Msg)
	}
	return fmt.Sprintf("line %d:%d: class %s has no method %q", e.Line, e.Col, e.Class, e.Name)
}
func (e *UnknownMethodError) Pos() Position { return e.Position }
func (e *UnknownMethodError) Phase() string { return "resolve" }
