package compiler

import (
	"fmt"
	"strings"
)

// BindingID indexes into the symbol table built by the Resolver. Nodes start
// out with NoBinding; Resolve fills the IDs in.
type BindingID int

// NoBinding marks a node the Resolver has not annotated (yet).
const NoBinding BindingID = -1

//  Expression nodes

// Expr is implemented by every node that produces a value.
// genExpr always leaves the result in R0.
type Expr interface {
	exprNode()
	ExprPos() Position
	String() string
}

// IntLiteral is a compile-time integer constant.
type IntLiteral struct {
	Position
	Value int16
}

func (*IntLiteral) exprNode()           {}
func (l *IntLiteral) ExprPos() Position { return l.Position }
func (l *IntLiteral) String() string    { return fmt.Sprintf("%d", l.Value) }

// StringLiteral is a string constant "..."
type StringLiteral struct {
	Position
	Value string
}

func (*StringLiteral) exprNode()           {}
func (s *StringLiteral) ExprPos() Position { return s.Position }
func (s *StringLiteral) String() string    { return fmt.Sprintf("%q", s.Value) }

// VarRef is a read of a named variable.
type VarRef struct {
	Position
	Name    string
	Binding BindingID
}

func (*VarRef) exprNode()           {}
func (v *VarRef) ExprPos() Position { return v.Position }
func (v *VarRef) String() string    { return v.Name }

// BinaryExpr represents Left Op Right.
type BinaryExpr struct {
	Position
	Op    TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode()           {}
func (b *BinaryExpr) ExprPos() Position { return b.Position }
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// IndexExpr represents Base[Index].
type IndexExpr struct {
	Position
	Base  Expr
	Index Expr
}

func (*IndexExpr) exprNode()           {}
func (e *IndexExpr) ExprPos() Position { return e.Position }
func (e *IndexExpr) String() string    { return fmt.Sprintf("%s[%s]", e.Base, e.Index) }

// RangeExpr represents range(Low, High). It is only legal as the iterable
// of a for statement; the parser rejects it anywhere else.
type RangeExpr struct {
	Position
	Low  Expr
	High Expr
}

func (*RangeExpr) exprNode()           {}
func (r *RangeExpr) ExprPos() Position { return r.Position }
func (r *RangeExpr) String() string    { return fmt.Sprintf("range(%s, %s)", r.Low, r.High) }

// MethodCallExpr represents receiver.Method(args). The Resolver fills in
// Binding with the method's symbol, which carries the subroutine label.
type MethodCallExpr struct {
	Position
	Receiver string
	Method   string
	Args     []Expr
	Binding  BindingID
}

func (*MethodCallExpr) exprNode()           {}
func (c *MethodCallExpr) ExprPos() Position { return c.Position }
func (c *MethodCallExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s.%s(%s)", c.Receiver, c.Method, strings.Join(args, ", "))
}

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	stmtNode()
	StmtPos() Position
	String() string
}

// ListDecl represents  list name = [e1, e2, ...]
type ListDecl struct {
	Position
	Name     string
	Elements []Expr
	Binding  BindingID
}

func (*ListDecl) stmtNode()           {}
func (d *ListDecl) StmtPos() Position { return d.Position }
func (d *ListDecl) String() string {
	return fmt.Sprintf("ListDecl(%s, len=%d)", d.Name, len(d.Elements))
}

// VarAssign represents  name = expr. When name has no binding in any
// enclosing scope the assignment declares it in the current scope.
type VarAssign struct {
	Position
	Name    string
	Value   Expr
	Binding BindingID
}

func (*VarAssign) stmtNode()           {}
func (a *VarAssign) StmtPos() Position { return a.Position }
func (a *VarAssign) String() string {
	return fmt.Sprintf("VarAssign(%s = %s)", a.Name, a.Value)
}

// IndexAssign represents  target[index] = expr.
type IndexAssign struct {
	Position
	Target *IndexExpr
	Value  Expr
}

func (*IndexAssign) stmtNode()           {}
func (a *IndexAssign) StmtPos() Position { return a.Position }
func (a *IndexAssign) String() string {
	return fmt.Sprintf("IndexAssign(%s = %s)", a.Target, a.Value)
}

// PrintStmt represents  print expr.
type PrintStmt struct {
	Position
	Arg Expr
}

func (*PrintStmt) stmtNode()           {}
func (p *PrintStmt) StmtPos() Position { return p.Position }
func (p *PrintStmt) String() string    { return fmt.Sprintf("Print(%s)", p.Arg) }

// BlockStmt represents { statement ... }
type BlockStmt struct {
	Position
	Stmts []Stmt
}

func (*BlockStmt) stmtNode()           {}
func (b *BlockStmt) StmtPos() Position { return b.Position }
func (b *BlockStmt) String() string    { return fmt.Sprintf("Block(len=%d)", len(b.Stmts)) }

// IfStmt represents  if cond { body } [else { elseBody }]
type IfStmt struct {
	Position
	Condition Expr
	Body      *BlockStmt
	ElseBody  *BlockStmt // may be nil
}

func (*IfStmt) stmtNode()           {}
func (i *IfStmt) StmtPos() Position { return i.Position }
func (i *IfStmt) String() string {
	if i.ElseBody != nil {
		return fmt.Sprintf("If(%s then %s else %s)", i.Condition, i.Body, i.ElseBody)
	}
	return fmt.Sprintf("If(%s then %s)", i.Condition, i.Body)
}

// WhileStmt represents  while cond { body }
type WhileStmt struct {
	Position
	Condition Expr
	Body      *BlockStmt
}

func (*WhileStmt) stmtNode()           {}
func (w *WhileStmt) StmtPos() Position { return w.Position }
func (w *WhileStmt) String() string {
	return fmt.Sprintf("While(%s do %s)", w.Condition, w.Body)
}

// ForStmt represents  for var in range(a, b) { body }
type ForStmt struct {
	Position
	Var     string
	Iter    *RangeExpr
	Body    *BlockStmt
	Binding BindingID // loop variable
}

func (*ForStmt) stmtNode()           {}
func (f *ForStmt) StmtPos() Position { return f.Position }
func (f *ForStmt) String() string {
	return fmt.Sprintf("For(%s in %s do %s)", f.Var, f.Iter, f.Body)
}

// MethodDecl represents  method name(params) { body }
type MethodDecl struct {
	Position
	Name   string
	Params []string
	Body   *BlockStmt
}

func (m *MethodDecl) String() string {
	return fmt.Sprintf("Method(%s, params=%v, body=%s)", m.Name, m.Params, m.Body)
}

// ClassDecl represents  class Name { method... }
type ClassDecl struct {
	Position
	Name    string
	Methods []*MethodDecl
}

func (*ClassDecl) stmtNode()           {}
func (c *ClassDecl) StmtPos() Position { return c.Position }
func (c *ClassDecl) String() string {
	return fmt.Sprintf("Class(%s, methods=%d)", c.Name, len(c.Methods))
}

// Instantiate represents  ClassName instance. It establishes, at resolution
// time, that instance is a handle for ClassName's method table; no code is
// emitted for it.
type Instantiate struct {
	Position
	Class   string
	Name    string
	Binding BindingID // the new instance binding
}

func (*Instantiate) stmtNode()           {}
func (s *Instantiate) StmtPos() Position { return s.Position }
func (s *Instantiate) String() string {
	return fmt.Sprintf("Instantiate(%s %s)", s.Class, s.Name)
}

// ExprStmt represents an expression evaluated for its side effects
// (in practice: a method call).
type ExprStmt struct {
	Position
	Expr Expr
}

func (*ExprStmt) stmtNode()           {}
func (e *ExprStmt) StmtPos() Position { return e.Position }
func (e *ExprStmt) String() string    { return fmt.Sprintf("ExprStmt(%s)", e.Expr) }

// Program is the root of the AST: top-level statements in source order.
type Program struct {
	Stmts []Stmt
}

func (p *Program) String() string {
	var sb strings.Builder
	for _, s := range p.Stmts {
		sb.WriteString(s.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
