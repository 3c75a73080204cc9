package compiler

import (
	"errors"
	"strings"
	"testing"
)

func parseSource(t *testing.T, src string) *Program {
	t.Helper()
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	prog, err := Parse(tokens, src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return prog
}

func TestParseListDecl(t *testing.T) {
	prog := parseSource(t, "list x = [1, 2, 3]")
	decl, ok := prog.Stmts[0].(*ListDecl)
	if !ok {
		t.Fatalf("expected ListDecl, got %T", prog.Stmts[0])
	}
	if decl.Name != "x" || len(decl.Elements) != 3 {
		t.Errorf("got %s", decl)
	}
}

func TestParseEmptyList(t *testing.T) {
	prog := parseSource(t, "list x = []")
	decl := prog.Stmts[0].(*ListDecl)
	if len(decl.Elements) != 0 {
		t.Errorf("expected empty list, got %d elements", len(decl.Elements))
	}
}

func TestParsePrecedence(t *testing.T) {
	prog := parseSource(t, "x = 1 + 2 * 3 < 10")
	assign := prog.Stmts[0].(*VarAssign)
	// < binds loosest, then +, then *.
	cmp, ok := assign.Value.(*BinaryExpr)
	if !ok || cmp.Op != LESS {
		t.Fatalf("expected < at root, got %s", assign.Value)
	}
	add, ok := cmp.Left.(*BinaryExpr)
	if !ok || add.Op != PLUS {
		t.Fatalf("expected + under <, got %s", cmp.Left)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != STAR {
		t.Fatalf("expected * under +, got %s", add.Right)
	}
}

func TestParseParenthesesOverridePrecedence(t *testing.T) {
	prog := parseSource(t, "x = (1 + 2) * 3")
	assign := prog.Stmts[0].(*VarAssign)
	mul, ok := assign.Value.(*BinaryExpr)
	if !ok || mul.Op != STAR {
		t.Fatalf("expected * at root, got %s", assign.Value)
	}
	if add, ok := mul.Left.(*BinaryExpr); !ok || add.Op != PLUS {
		t.Fatalf("expected + on the left, got %s", mul.Left)
	}
}

func TestParseNegativeLiteral(t *testing.T) {
	prog := parseSource(t, "x = -5")
	assign := prog.Stmts[0].(*VarAssign)
	lit, ok := assign.Value.(*IntLiteral)
	if !ok || lit.Value != -5 {
		t.Fatalf("expected -5 literal, got %s", assign.Value)
	}
}

func TestParseIndexing(t *testing.T) {
	prog := parseSource(t, "x = nums[i + 1]")
	assign := prog.Stmts[0].(*VarAssign)
	idx, ok := assign.Value.(*IndexExpr)
	if !ok {
		t.Fatalf("expected IndexExpr, got %T", assign.Value)
	}
	if base, ok := idx.Base.(*VarRef); !ok || base.Name != "nums" {
		t.Errorf("base: got %s", idx.Base)
	}
}

func TestParseIndexAssignment(t *testing.T) {
	prog := parseSource(t, "nums[0] = 9")
	ia, ok := prog.Stmts[0].(*IndexAssign)
	if !ok {
		t.Fatalf("expected IndexAssign, got %T", prog.Stmts[0])
	}
	if lit, ok := ia.Value.(*IntLiteral); !ok || lit.Value != 9 {
		t.Errorf("value: got %s", ia.Value)
	}
}

func TestParseIfElse(t *testing.T) {
	prog := parseSource(t, "if x < 2 { print 1 } else { print 2 }")
	ifStmt := prog.Stmts[0].(*IfStmt)
	if ifStmt.ElseBody == nil {
		t.Fatal("else body not attached")
	}
	if len(ifStmt.Body.Stmts) != 1 || len(ifStmt.ElseBody.Stmts) != 1 {
		t.Errorf("got %s", ifStmt)
	}
}

func TestParseForRange(t *testing.T) {
	prog := parseSource(t, "for i in range(0, 3) { print i }")
	forStmt := prog.Stmts[0].(*ForStmt)
	if forStmt.Var != "i" {
		t.Errorf("loop var: got %q", forStmt.Var)
	}
	if lo, ok := forStmt.Iter.Low.(*IntLiteral); !ok || lo.Value != 0 {
		t.Errorf("low bound: got %s", forStmt.Iter.Low)
	}
	if hi, ok := forStmt.Iter.High.(*IntLiteral); !ok || hi.Value != 3 {
		t.Errorf("high bound: got %s", forStmt.Iter.High)
	}
}

func TestParseClassAndInstantiation(t *testing.T) {
	src := `
class Greeter {
	method hi() {
		print "hi"
	}
	method add(a, b) {
		print a + b
	}
}
Greeter g
g.add(1, 2)
`
	prog := parseSource(t, src)
	if len(prog.Stmts) != 3 {
		t.Fatalf("statement count: got %d", len(prog.Stmts))
	}

	decl := prog.Stmts[0].(*ClassDecl)
	if decl.Name != "Greeter" || len(decl.Methods) != 2 {
		t.Errorf("class: got %s", decl)
	}
	if decl.Methods[1].Name != "add" || len(decl.Methods[1].Params) != 2 {
		t.Errorf("method: got %s", decl.Methods[1])
	}

	inst := prog.Stmts[1].(*Instantiate)
	if inst.Class != "Greeter" || inst.Name != "g" {
		t.Errorf("instantiation: got %s", inst)
	}

	call := prog.Stmts[2].(*ExprStmt).Expr.(*MethodCallExpr)
	if call.Receiver != "g" || call.Method != "add" || len(call.Args) != 2 {
		t.Errorf("call: got %s", call)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string // substring of the Expected field
	}{
		{"missing bracket", "list x = [1, 2", "RBRACKET"},
		{"missing block", "if x < 2 print 1", "LBRACE"},
		{"range outside for", "x = range(0, 3)", "range is only valid"},
		{"non-method in class", "class C { x = 1 }", "METHOD"},
		{"assignment to expression", "nums + 1 = 3", "index expression"},
		{"for without in", "for i range(0, 3) { }", "IN"},
		{"integer overflow", "x = 40000", "16-bit range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.src)
			if err != nil {
				t.Fatalf("Lex failed: %v", err)
			}
			_, err = Parse(tokens, tt.src)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if !strings.Contains(parseErr.Expected, tt.expected) {
				t.Errorf("expected %q in %q", tt.expected, parseErr.Expected)
			}
		})
	}
}

func TestParseErrorCarriesSnippet(t *testing.T) {
	src := "x = 1\nlist y = [1,"
	tokens, err := Lex(src)
	if err != nil {
		t.Fatalf("Lex failed: %v", err)
	}
	_, err = Parse(tokens, src)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Snippet != "list y = [1," {
		t.Errorf("snippet: got %q", parseErr.Snippet)
	}
	if !strings.Contains(parseErr.Error(), "|>") {
		t.Errorf("error text should carry the snippet: %q", parseErr.Error())
	}
}
