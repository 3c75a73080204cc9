package compiler

import (
	"strconv"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an AST.
//
// Grammar:
//
//	program    = statement* EOF
//	statement  = listDecl | printStmt | ifStmt | whileStmt | forStmt
//	           | classDecl | block | instantiation | assignment
//	           | indexAssign | exprStmt
//	listDecl   = "list" IDENTIFIER "=" "[" (expression ("," expression)*)? "]"
//	printStmt  = "print" expression
//	ifStmt     = "if" expression block ("else" block)?
//	whileStmt  = "while" expression block
//	forStmt    = "for" IDENTIFIER "in" "range" "(" expression "," expression ")" block
//	classDecl  = "class" IDENTIFIER "{" methodDecl* "}"
//	methodDecl = "method" IDENTIFIER "(" (IDENTIFIER ("," IDENTIFIER)*)? ")" block
//	block      = "{" statement* "}"
//	expression = comparison
//	comparison = additive (("==" | "<" | ">" | "<=" | ">=") additive)*
//	additive   = multiplicative (("+" | "-") multiplicative)*
//	multiplicative = postfix (("*" | "/") postfix)*
//	postfix    = primary ("[" expression "]" | "." IDENTIFIER "(" args ")")*
//	primary    = INTEGER | "-" INTEGER | STRING | IDENTIFIER | "(" expression ")"
//
// Bodies are always brace-delimited, so a block attaches to the nearest
// enclosing opening brace and there is no dangling-else ambiguity.
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n")}
}

// errExpected builds a ParseError carrying the source line where tok appears.
func (p *Parser) errExpected(tok Token, expected string) error {
	snippet := ""
	if idx := tok.Line - 1; idx >= 0 && idx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[idx])
	}
	return &ParseError{Position: tok.Pos(), Expected: expected, Found: tok, Snippet: snippet}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos]
}

// peekAt returns the token at the given offset from the current position.
func (p *Parser) peekAt(offset int) Token {
	if p.pos+offset >= len(p.tokens) {
		return Token{Type: EOF}
	}
	return p.tokens[p.pos+offset]
}

// advance consumes and returns the current token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.errExpected(tok, tt.String())
	}
	return tok, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (Expr, error) {
	return p.parseComparison()
}

// parseComparison handles ==, <, >, <= and >=.
func (p *Parser) parseComparison() (Expr, error) {
	expr, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		if tt != EQUALS && tt != LESS && tt != GREATER && tt != LESS_EQ && tt != GREATER_EQ {
			break
		}
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Position: op.Pos(), Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseAdditive handles + and -.
func (p *Parser) parseAdditive() (Expr, error) {
	expr, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		if tt != PLUS && tt != MINUS {
			break
		}
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Position: op.Pos(), Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parseMultiplicative handles * and /.
func (p *Parser) parseMultiplicative() (Expr, error) {
	expr, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.peek().Type
		if tt != STAR && tt != SLASH {
			break
		}
		op := p.advance()
		right, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		expr = &BinaryExpr{Position: op.Pos(), Op: op.Type, Left: expr, Right: right}
	}
	return expr, nil
}

// parsePostfix handles list indexing [] and method calls ., both
// left-associative and binding tighter than any binary operator.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		if p.peek().Type == LBRACKET {
			open := p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET); err != nil {
				return nil, err
			}
			expr = &IndexExpr{Position: open.Pos(), Base: expr, Index: index}
		} else if p.peek().Type == DOT {
			dot := p.advance()
			recv, ok := expr.(*VarRef)
			if !ok {
				return nil, p.errExpected(dot, "method receiver identifier")
			}
			nameTok, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(LPAREN); err != nil {
				return nil, err
			}
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			expr = &MethodCallExpr{
				Position: recv.Position,
				Receiver: recv.Name,
				Method:   nameTok.Lexeme,
				Args:     args,
				Binding:  NoBinding,
			}
		} else {
			break
		}
	}
	return expr, nil
}

// parseCallArgs parses a comma-separated argument list up to and including
// the closing parenthesis.
func (p *Parser) parseCallArgs() ([]Expr, error) {
	var args []Expr
	if p.peek().Type != RPAREN {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePrimary handles literals, variables, and parenthesised expressions.
func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.Type {
	case INTEGER:
		p.advance()
		val, err := strconv.ParseInt(tok.Lexeme, 10, 16)
		if err != nil {
			return nil, p.errExpected(tok, "integer in 16-bit range")
		}
		return &IntLiteral{Position: tok.Pos(), Value: int16(val)}, nil

	case MINUS:
		// Negative integer literal.
		p.advance()
		numTok, err := p.expect(INTEGER)
		if err != nil {
			return nil, err
		}
		val, perr := strconv.ParseInt("-"+numTok.Lexeme, 10, 16)
		if perr != nil {
			return nil, p.errExpected(numTok, "integer in 16-bit range")
		}
		return &IntLiteral{Position: tok.Pos(), Value: int16(val)}, nil

	case STRING:
		p.advance()
		return &StringLiteral{Position: tok.Pos(), Value: tok.Lexeme}, nil

	case IDENTIFIER:
		p.advance()
		return &VarRef{Position: tok.Pos(), Name: tok.Lexeme, Binding: NoBinding}, nil

	case RANGE:
		return nil, p.errExpected(tok, "expression (range is only valid in a for loop)")

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil

	default:
		return nil, p.errExpected(tok, "expression")
	}
}

// parseBlock parses { stmt ... }.
func (p *Parser) parseBlock() (*BlockStmt, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return nil, err
	}
	var stmts []Stmt
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}
	return &BlockStmt{Position: open.Pos(), Stmts: stmts}, nil
}

// parseListDecl parses  list name = [e1, e2, ...].
// The leading LIST token has already been consumed.
func (p *Parser) parseListDecl(listTok Token) (Stmt, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(ASSIGN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACKET); err != nil {
		return nil, err
	}

	var elements []Expr
	if p.peek().Type != RBRACKET {
		for {
			elem, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, elem)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RBRACKET); err != nil {
		return nil, err
	}

	return &ListDecl{
		Position: listTok.Pos(),
		Name:     nameTok.Lexeme,
		Elements: elements,
		Binding:  NoBinding,
	}, nil
}

// parseIf parses  if cond { body } [else { elseBody }].
// The leading IF token has already been consumed.
func (p *Parser) parseIf(ifTok Token) (Stmt, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elseBody *BlockStmt
	if p.peek().Type == ELSE {
		p.advance()
		elseBody, err = p.parseBlock()
		if err != nil {
			return nil, err
		}
	}
	return &IfStmt{Position: ifTok.Pos(), Condition: cond, Body: body, ElseBody: elseBody}, nil
}

// parseWhile parses  while cond { body }.
// The leading WHILE token has already been consumed.
func (p *Parser) parseWhile(whileTok Token) (Stmt, error) {
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Position: whileTok.Pos(), Condition: cond, Body: body}, nil
}

// parseFor parses  for var in range(a, b) { body }.
// The leading FOR token has already been consumed. range is an intrinsic
// usable only here.
func (p *Parser) parseFor(forTok Token) (Stmt, error) {
	varTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN); err != nil {
		return nil, err
	}
	rangeTok, err := p.expect(RANGE)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	low, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COMMA); err != nil {
		return nil, err
	}
	high, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &ForStmt{
		Position: forTok.Pos(),
		Var:      varTok.Lexeme,
		Iter:     &RangeExpr{Position: rangeTok.Pos(), Low: low, High: high},
		Body:     body,
		Binding:  NoBinding,
	}, nil
}

// parseClass parses  class Name { method ... }.
// The leading CLASS token has already been consumed. A class body is a
// sequence of method declarations only.
func (p *Parser) parseClass(classTok Token) (Stmt, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	var methods []*MethodDecl
	for p.peek().Type != RBRACE && p.peek().Type != EOF {
		methodTok, err := p.expect(METHOD)
		if err != nil {
			return nil, err
		}
		m, err := p.parseMethod(methodTok)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	if _, err := p.expect(RBRACE); err != nil {
		return nil, err
	}

	return &ClassDecl{Position: classTok.Pos(), Name: nameTok.Lexeme, Methods: methods}, nil
}

// parseMethod parses  name(params) { body }.
// The leading METHOD token has already been consumed.
func (p *Parser) parseMethod(methodTok Token) (*MethodDecl, error) {
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var params []string
	if p.peek().Type != RPAREN {
		for {
			paramTok, err := p.expect(IDENTIFIER)
			if err != nil {
				return nil, err
			}
			params = append(params, paramTok.Lexeme)
			if p.peek().Type != COMMA {
				break
			}
			p.advance()
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &MethodDecl{Position: methodTok.Pos(), Name: nameTok.Lexeme, Params: params, Body: body}, nil
}

// parseIdentStmt disambiguates the statement forms that start with an
// identifier: instantiation (IDENT IDENT), plain assignment (IDENT =),
// index assignment, method call, or a bare expression statement.
func (p *Parser) parseIdentStmt() (Stmt, error) {
	tok := p.peek()

	if p.peekAt(1).Type == IDENTIFIER {
		classTok := p.advance()
		nameTok := p.advance()
		return &Instantiate{
			Position: classTok.Pos(),
			Class:    classTok.Lexeme,
			Name:     nameTok.Lexeme,
			Binding:  NoBinding,
		}, nil
	}

	if p.peekAt(1).Type == ASSIGN {
		nameTok := p.advance()
		p.advance() // =
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &VarAssign{Position: nameTok.Pos(), Name: nameTok.Lexeme, Value: val, Binding: NoBinding}, nil
	}

	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.peek().Type == ASSIGN {
		eqTok := p.advance()
		target, ok := expr.(*IndexExpr)
		if !ok {
			return nil, p.errExpected(eqTok, "index expression on the left of =")
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &IndexAssign{Position: target.Position, Target: target, Value: val}, nil
	}

	return &ExprStmt{Position: tok.Pos(), Expr: expr}, nil
}

// parseStatement dispatches to the correct sub-parser based on the leading token.
func (p *Parser) parseStatement() (Stmt, error) {
	tok := p.peek()
	switch tok.Type {

	case LIST:
		p.advance()
		return p.parseListDecl(tok)

	case PRINT:
		p.advance()
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &PrintStmt{Position: tok.Pos(), Arg: arg}, nil

	case IF:
		p.advance()
		return p.parseIf(tok)

	case WHILE:
		p.advance()
		return p.parseWhile(tok)

	case FOR:
		p.advance()
		return p.parseFor(tok)

	case CLASS:
		p.advance()
		return p.parseClass(tok)

	case LBRACE:
		return p.parseBlock()

	case IDENTIFIER:
		return p.parseIdentStmt()

	case INTEGER, STRING, LPAREN, MINUS:
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Position: tok.Pos(), Expr: expr}, nil

	default:
		p.advance()
		return nil, p.errExpected(tok, "statement")
	}
}

// Parse builds the AST for a whole program.
func Parse(tokens []Token, rawSource string) (*Program, error) {
	p := NewParser(tokens, rawSource)
	prog := &Program{}
	for p.peek().Type != EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Stmts = append(prog.Stmts, stmt)
	}
	return prog, nil
}
