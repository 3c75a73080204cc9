package compiler

import (
	"errors"
	"testing"
)

func resolveSource(t *testing.T, src string) *ResolvedProgram {
	t.Helper()
	prog := parseSource(t, src)
	resolved, err := Resolve(prog)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return resolved
}

func resolveErr(t *testing.T, src string) error {
	t.Helper()
	prog := parseSource(t, src)
	_, err := Resolve(prog)
	if err == nil {
		t.Fatalf("expected resolution error for:\n%s", src)
	}
	return err
}

func TestResolveAssignmentDeclares(t *testing.T) {
	rp := resolveSource(t, "x = 1\nx = 2")
	first := rp.Prog.Stmts[0].(*VarAssign)
	second := rp.Prog.Stmts[1].(*VarAssign)
	if first.Binding == NoBinding {
		t.Fatal("first assignment left unbound")
	}
	if first.Binding != second.Binding {
		t.Errorf("reassignment created a new binding: %d vs %d", first.Binding, second.Binding)
	}
	b := rp.Syms.Binding(first.Binding)
	if b.Kind != BindScalar || !b.Global || b.Label == "" {
		t.Errorf("binding: %+v", b)
	}
}

func TestResolveInnerAssignmentTargetsOuter(t *testing.T) {
	rp := resolveSource(t, "x = 1\n{\n  x = 2\n}")
	outer := rp.Prog.Stmts[0].(*VarAssign)
	inner := rp.Prog.Stmts[1].(*BlockStmt).Stmts[0].(*VarAssign)
	if inner.Binding != outer.Binding {
		t.Errorf("inner assignment should bind the outer x: %d vs %d", inner.Binding, outer.Binding)
	}
}

func TestResolveBlockScopedNameExpires(t *testing.T) {
	err := resolveErr(t, "{\n  y = 1\n}\nprint y")
	var undErr *UndeclaredIdentifierError
	if !errors.As(err, &undErr) {
		t.Fatalf("expected UndeclaredIdentifierError, got %v", err)
	}
	if undErr.Name != "y" {
		t.Errorf("name: got %q", undErr.Name)
	}
}

func TestResolveListShadowing(t *testing.T) {
	rp := resolveSource(t, "list x = [1]\n{\n  list x = [2, 3]\n  print x[0]\n}\nprint x[0]")
	outer := rp.Prog.Stmts[0].(*ListDecl)
	inner := rp.Prog.Stmts[1].(*BlockStmt).Stmts[0].(*ListDecl)
	if outer.Binding == inner.Binding {
		t.Fatal("shadowing list should get its own binding")
	}
	ob, ib := rp.Syms.Binding(outer.Binding), rp.Syms.Binding(inner.Binding)
	if ob.Label == ib.Label {
		t.Errorf("shadowed globals share a data label: %q", ob.Label)
	}
	if ob.Len != 1 || ib.Len != 2 {
		t.Errorf("lengths: outer %d, inner %d", ob.Len, ib.Len)
	}
}

func TestResolveDuplicateListInSameScope(t *testing.T) {
	err := resolveErr(t, "list x = [1]\nlist x = [2]")
	var dupErr *DuplicateDeclarationError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateDeclarationError, got %v", err)
	}
}

func TestResolveForLoopVariableScope(t *testing.T) {
	err := resolveErr(t, "for i in range(0, 3) {\n  print i\n}\nprint i")
	var undErr *UndeclaredIdentifierError
	if !errors.As(err, &undErr) {
		t.Fatalf("loop variable should not escape the loop, got %v", err)
	}
}

func TestResolveClassHoisting(t *testing.T) {
	// The instantiation precedes the class declaration in source order.
	rp := resolveSource(t, "Greeter g\ng.hi()\nclass Greeter {\n  method hi() {\n    print \"hi\"\n  }\n}")
	call := rp.Prog.Stmts[1].(*ExprStmt).Expr.(*MethodCallExpr)
	method := rp.Syms.Binding(call.Binding)
	if method.Kind != BindMethod || method.Label != "Greeter_hi" {
		t.Errorf("method binding: %+v", method)
	}
}

func TestResolveUnknownClass(t *testing.T) {
	err := resolveErr(t, "Ghost g")
	var clsErr *UnknownClassError
	if !errors.As(err, &clsErr) {
		t.Fatalf("expected UnknownClassError, got %v", err)
	}
	if clsErr.Name != "Ghost" {
		t.Errorf("class name: got %q", clsErr.Name)
	}
}

func TestResolveUnknownMethod(t *testing.T) {
	err := resolveErr(t, "class C {\n  method a() {\n  }\n}\nC c\nc.b()")
	var methErr *UnknownMethodError
	if !errors.As(err, &methErr) {
		t.Fatalf("expected UnknownMethodError, got %v", err)
	}
	if methErr.Class != "C" || methErr.Name != "b" {
		t.Errorf("got %v", methErr)
	}
}

func TestResolveArityMismatch(t *testing.T) {
	err := resolveErr(t, "class C {\n  method a(x) {\n    print x\n  }\n}\nC c\nc.a(1, 2)")
	var methErr *UnknownMethodError
	if !errors.As(err, &methErr) {
		t.Fatalf("expected UnknownMethodError, got %v", err)
	}
	if methErr.Msg == "" {
		t.Error("arity mismatch should carry a detail message")
	}
}

func TestResolveReceiverMustBeInstance(t *testing.T) {
	err := resolveErr(t, "class C {\n  method a() {\n  }\n}\nx = 1\nx.a()")
	var methErr *UnknownMethodError
	if !errors.As(err, &methErr) {
		t.Fatalf("expected UnknownMethodError, got %v", err)
	}
}

func TestResolveMethodFrameLayout(t *testing.T) {
	src := `
class C {
	method m(a, b) {
		x = a
		list ys = [1, 2]
	}
}
`
	rp := resolveSource(t, src)
	info := rp.Syms.Classes["C"]
	method := rp.Syms.Binding(info.Methods["m"])
	if method.Arity != 2 {
		t.Errorf("arity: got %d", method.Arity)
	}
	// x takes one word, ys takes length word + 2 elements.
	if method.FrameSize != 2+6 {
		t.Errorf("frame size: got %d", method.FrameSize)
	}

	body := info.Decl.Methods[0].Body
	assign := body.Stmts[0].(*VarAssign)
	if off := rp.Syms.Binding(assign.Binding).Offset; off != -2 {
		t.Errorf("local x offset: got %d", off)
	}
	aRef := assign.Value.(*VarRef)
	if off := rp.Syms.Binding(aRef.Binding).Offset; off != 4 {
		t.Errorf("param a offset: got %d", off)
	}
}

func TestResolveSiblingScopesReuseFrameSlots(t *testing.T) {
	src := `
class C {
	method m() {
		if 1 < 2 {
			a = 1
		} else {
			b = 2
		}
	}
}
`
	rp := resolveSource(t, src)
	info := rp.Syms.Classes["C"]
	ifStmt := info.Decl.Methods[0].Body.Stmts[0].(*IfStmt)
	a := ifStmt.Body.Stmts[0].(*VarAssign)
	b := ifStmt.ElseBody.Stmts[0].(*VarAssign)
	if rp.Syms.Binding(a.Binding).Offset != rp.Syms.Binding(b.Binding).Offset {
		t.Errorf("sibling blocks should reuse the slot: %d vs %d",
			rp.Syms.Binding(a.Binding).Offset, rp.Syms.Binding(b.Binding).Offset)
	}
	method := rp.Syms.Binding(info.Methods["m"])
	if method.FrameSize != 2 {
		t.Errorf("frame size: got %d", method.FrameSize)
	}
}

func TestResolveDuplicateClass(t *testing.T) {
	err := resolveErr(t, "class C {\n}\nclass C {\n}")
	var dupErr *DuplicateDeclarationError
	if !errors.As(err, &dupErr) {
		t.Fatalf("expected DuplicateDeclarationError, got %v", err)
	}
}

func TestResolveUndeclaredInExpression(t *testing.T) {
	err := resolveErr(t, "x = y + 1")
	var undErr *UndeclaredIdentifierError
	if !errors.As(err, &undErr) {
		t.Fatalf("expected UndeclaredIdentifierError, got %v", err)
	}
	if undErr.Name != "y" {
		t.Errorf("name: got %q", undErr.Name)
	}
}
