package compiler

import (
	"fmt"
	"strings"
)

// BindingKind classifies what a resolved identifier refers to.
type BindingKind int

const (
	BindScalar   BindingKind = iota // word-sized variable
	BindList                        // length-prefixed block of words
	BindClass                       // class name
	BindMethod                      // method, callable subroutine
	BindInstance                    // handle created by `ClassName name`
)

var bindingKindNames = [...]string{
	BindScalar:   "scalar",
	BindList:     "list",
	BindClass:    "class",
	BindMethod:   "method",
	BindInstance: "instance",
}

func (k BindingKind) String() string {
	if int(k) >= 0 && int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return fmt.Sprintf("BindingKind(%d)", int(k))
}

// Binding describes the storage resolved for one declared name.
// Globals are addressed by data-section label; method locals and parameters
// by a frame-pointer offset (negative for locals, positive for parameters).
type Binding struct {
	Kind   BindingKind
	Name   string
	Global bool

	Offset int16  // FP-relative, methods only
	Label  string // data label (globals) or subroutine label (methods)

	Class     string // declaring class for methods, source class for instances
	Len       int    // element count for lists
	Arity     int    // parameter count for methods
	FrameSize int    // bytes of locals, methods only
}

// ClassInfo is the compile-time method table for one declared class.
type ClassInfo struct {
	Name    string
	Methods map[string]BindingID
	Order   []string // method names in declaration order
	Decl    *ClassDecl
}

// SymbolTable owns every binding produced by resolution. AST nodes refer to
// bindings by BindingID so later phases never hold live references into the
// resolver's internals.
type SymbolTable struct {
	Bindings []Binding
	Classes  map[string]*ClassInfo
}

// Binding returns the binding for id. It panics on NoBinding, which would
// mean a node escaped resolution.
func (st *SymbolTable) Binding(id BindingID) *Binding {
	return &st.Bindings[id]
}

// String returns a deterministically ordered dump of the table.
func (st *SymbolTable) String() string {
	var sb strings.Builder
	for id, b := range st.Bindings {
		fmt.Fprintf(&sb, "  #%-3d %-8s %-16s", id, b.Kind, b.Name)
		switch {
		case b.Kind == BindMethod:
			fmt.Fprintf(&sb, " label=%s arity=%d frame=%d", b.Label, b.Arity, b.FrameSize)
		case b.Kind == BindInstance:
			fmt.Fprintf(&sb, " class=%s", b.Class)
		case b.Global:
			fmt.Fprintf(&sb, " label=%s", b.Label)
		default:
			fmt.Fprintf(&sb, " offset=%d", b.Offset)
		}
		if b.Kind == BindList {
			fmt.Fprintf(&sb, " len=%d", b.Len)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ResolvedProgram is the AST annotated with binding IDs plus the symbol
// table they index.
type ResolvedProgram struct {
	Prog *Program
	Syms *SymbolTable
}

// Resolver walks the AST once, top-down, maintaining a stack of scopes.
// Inside a method the local-offset cursor resets on scope entry and is
// restored on exit, so sibling blocks reuse frame slots; the frame size is
// the high-water mark.
type Resolver struct {
	syms   *SymbolTable
	scopes []map[string]BindingID

	inMethod  bool
	nextLocal int16 // next free FP offset, grows downward
	minLocal  int16 // low-water mark for the current method frame
}

// Resolve binds every identifier in prog to a storage location, or fails
// with the first resolution error. Classes are hoisted into the global scope
// before anything else; method bodies are resolved last so they can see
// every global binding.
func Resolve(prog *Program) (*ResolvedProgram, error) {
	r := &Resolver{
		syms:   &SymbolTable{Classes: make(map[string]*ClassInfo)},
		scopes: []map[string]BindingID{make(map[string]BindingID)},
	}

	if err := r.hoistClasses(prog); err != nil {
		return nil, err
	}

	for _, s := range prog.Stmts {
		if err := r.resolveStmt(s); err != nil {
			return nil, err
		}
	}

	for _, s := range prog.Stmts {
		decl, ok := s.(*ClassDecl)
		if !ok {
			continue
		}
		for _, m := range decl.Methods {
			if err := r.resolveMethod(decl.Name, m); err != nil {
				return nil, err
			}
		}
	}

	return &ResolvedProgram{Prog: prog, Syms: r.syms}, nil
}

// define inserts a new binding into the symbol table and, unless it is a
// method, into the current scope.
func (r *Resolver) define(b Binding) BindingID {
	id := BindingID(len(r.syms.Bindings))
	r.syms.Bindings = append(r.syms.Bindings, b)
	if b.Kind != BindMethod {
		r.scopes[len(r.scopes)-1][b.Name] = id
	}
	return id
}

// lookup walks the scope stack innermost-first.
func (r *Resolver) lookup(name string) (BindingID, bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if id, ok := r.scopes[i][name]; ok {
			return id, true
		}
	}
	return NoBinding, false
}

// inCurrentScope reports whether name is already declared in the innermost
// scope. Shadowing an outer binding is permitted; redeclaring in the same
// scope is not.
func (r *Resolver) inCurrentScope(name string) bool {
	_, ok := r.scopes[len(r.scopes)-1][name]
	return ok
}

func (r *Resolver) enterScope() int16 {
	r.scopes = append(r.scopes, make(map[string]BindingID))
	return r.nextLocal
}

func (r *Resolver) exitScope(saved int16) {
	r.scopes = r.scopes[:len(r.scopes)-1]
	r.nextLocal = saved
}

// allocLocal reserves size bytes in the current method frame and returns the
// FP offset of the block's lowest address.
func (r *Resolver) allocLocal(size int16) int16 {
	r.nextLocal -= size
	if r.nextLocal < r.minLocal {
		r.minLocal = r.nextLocal
	}
	return r.nextLocal
}

// globalLabel builds a unique data-section label. The binding ID is folded
// in so that shadowed top-level names never collide.
func (r *Resolver) globalLabel(name string) string {
	return fmt.Sprintf("%s_%d", name, len(r.syms.Bindings))
}

// hoistClasses enters every class and method name into the global scope so
// instantiation never needs a forward declaration.
func (r *Resolver) hoistClasses(prog *Program) error {
	for _, s := range prog.Stmts {
		decl, ok := s.(*ClassDecl)
		if !ok {
			continue
		}
		if _, exists := r.syms.Classes[decl.Name]; exists || r.inCurrentScope(decl.Name) {
			return &DuplicateDeclarationError{decl.Position, decl.Name}
		}
		info := &ClassInfo{Name: decl.Name, Methods: make(map[string]BindingID), Decl: decl}
		r.syms.Classes[decl.Name] = info
		r.define(Binding{Kind: BindClass, Name: decl.Name, Global: true})

		for _, m := range decl.Methods {
			if _, exists := info.Methods[m.Name]; exists {
				return &DuplicateDeclarationError{m.Position, m.Name}
			}
			id := r.define(Binding{
				Kind:   BindMethod,
				Name:   m.Name,
				Global: true,
				Label:  decl.Name + "_" + m.Name,
				Class:  decl.Name,
				Arity:  len(m.Params),
			})
			info.Methods[m.Name] = id
			info.Order = append(info.Order, m.Name)
		}
	}
	return nil
}

// resolveMethod resolves one method body in a fresh frame. Parameters sit at
// positive FP offsets (pushed right-to-left by the caller: first parameter
// closest to the return address).
func (r *Resolver) resolveMethod(class string, m *MethodDecl) error {
	info := r.syms.Classes[class]
	methodID := info.Methods[m.Name]

	r.inMethod = true
	r.nextLocal = 0
	r.minLocal = 0
	saved := r.enterScope()

	for i, param := range m.Params {
		if r.inCurrentScope(param) {
			return &DuplicateDeclarationError{m.Position, param}
		}
		r.define(Binding{
			Kind:   BindScalar,
			Name:   param,
			Offset: int16(4 + 2*i),
		})
	}

	for _, s := range m.Body.Stmts {
		if err := r.resolveStmt(s); err != nil {
			return err
		}
	}

	r.exitScope(saved)
	r.inMethod = false
	r.syms.Bindings[methodID].FrameSize = int(-r.minLocal)
	return nil
}

func (r *Resolver) resolveStmt(s Stmt) error {
	switch n := s.(type) {

	case *ListDecl:
		for _, e := range n.Elements {
			if err := r.resolveExpr(e); err != nil {
				return err
			}
		}
		if r.inCurrentScope(n.Name) {
			return &DuplicateDeclarationError{n.Position, n.Name}
		}
		b := Binding{Kind: BindList, Name: n.Name, Len: len(n.Elements)}
		if r.inMethod {
			b.Offset = r.allocLocal(int16(2 * (len(n.Elements) + 1)))
		} else {
			b.Global = true
			b.Label = r.globalLabel(n.Name)
		}
		n.Binding = r.define(b)

	case *VarAssign:
		if err := r.resolveExpr(n.Value); err != nil {
			return err
		}
		if id, ok := r.lookup(n.Name); ok {
			if r.syms.Binding(id).Kind != BindScalar {
				return &DuplicateDeclarationError{n.Position, n.Name}
			}
			n.Binding = id
			return nil
		}
		b := Binding{Kind: BindScalar, Name: n.Name}
		if r.inMethod {
			b.Offset = r.allocLocal(2)
		} else {
			b.Global = true
			b.Label = r.globalLabel(n.Name)
		}
		n.Binding = r.define(b)

	case *IndexAssign:
		if err := r.resolveExpr(n.Target); err != nil {
			return err
		}
		return r.resolveExpr(n.Value)

	case *PrintStmt:
		return r.resolveExpr(n.Arg)

	case *BlockStmt:
		saved := r.enterScope()
		defer r.exitScope(saved)
		for _, child := range n.Stmts {
			if err := r.resolveStmt(child); err != nil {
				return err
			}
		}

	case *IfStmt:
		if err := r.resolveExpr(n.Condition); err != nil {
			return err
		}
		if err := r.resolveStmt(n.Body); err != nil {
			return err
		}
		if n.ElseBody != nil {
			return r.resolveStmt(n.ElseBody)
		}

	case *WhileStmt:
		if err := r.resolveExpr(n.Condition); err != nil {
			return err
		}
		return r.resolveStmt(n.Body)

	case *ForStmt:
		if err := r.resolveExpr(n.Iter.Low); err != nil {
			return err
		}
		if err := r.resolveExpr(n.Iter.High); err != nil {
			return err
		}
		// The loop variable lives in a scope wrapping the body, so it is
		// gone once the loop's closing brace is passed.
		saved := r.enterScope()
		defer r.exitScope(saved)
		b := Binding{Kind: BindScalar, Name: n.Var}
		if r.inMethod {
			b.Offset = r.allocLocal(2)
		} else {
			b.Global = true
			b.Label = r.globalLabel(n.Var)
		}
		n.Binding = r.define(b)
		return r.resolveStmt(n.Body)

	case *ClassDecl:
		// Hoisted already; the body is resolved after top-level statements.

	case *Instantiate:
		if _, ok := r.syms.Classes[n.Class]; !ok {
			return &UnknownClassError{n.Position, n.Class}
		}
		if r.inCurrentScope(n.Name) {
			return &DuplicateDeclarationError{n.Position, n.Name}
		}
		n.Binding = r.define(Binding{Kind: BindInstance, Name: n.Name, Class: n.Class, Global: !r.inMethod})

	case *ExprStmt:
		return r.resolveExpr(n.Expr)

	default:
		return fmt.Errorf("resolve: unknown statement node %T", s)
	}
	return nil
}

func (r *Resolver) resolveExpr(e Expr) error {
	switch n := e.(type) {

	case *IntLiteral, *StringLiteral:
		return nil

	case *VarRef:
		id, ok := r.lookup(n.Name)
		if !ok {
			return &UndeclaredIdentifierError{n.Position, n.Name}
		}
		kind := r.syms.Binding(id).Kind
		if kind != BindScalar && kind != BindList {
			return &UndeclaredIdentifierError{n.Position, n.Name}
		}
		n.Binding = id

	case *BinaryExpr:
		if err := r.resolveExpr(n.Left); err != nil {
			return err
		}
		return r.resolveExpr(n.Right)

	case *IndexExpr:
		if err := r.resolveExpr(n.Base); err != nil {
			return err
		}
		return r.resolveExpr(n.Index)

	case *RangeExpr:
		// The parser only produces RangeExpr as a for iterable, which is
		// resolved field by field in resolveStmt.
		return &UndeclaredIdentifierError{n.Position, "range"}

	case *MethodCallExpr:
		id, ok := r.lookup(n.Receiver)
		if !ok {
			return &UndeclaredIdentifierError{n.Position, n.Receiver}
		}
		recv := r.syms.Binding(id)
		if recv.Kind != BindInstance {
			return &UnknownMethodError{
				Position: n.Position,
				Class:    n.Receiver,
				Name:     n.Method,
				Msg:      "receiver is not a class instance",
			}
		}
		info := r.syms.Classes[recv.Class]
		methodID, ok := info.Methods[n.Method]
		if !ok {
			return &UnknownMethodError{Position: n.Position, Class: recv.Class, Name: n.Method}
		}
		method := r.syms.Binding(methodID)
		if len(n.Args) != method.Arity {
			return &UnknownMethodError{
				Position: n.Position,
				Class:    recv.Class,
				Name:     n.Method,
				Msg:      fmt.Sprintf("expects %d arguments, got %d", method.Arity, len(n.Args)),
			}
		}
		for _, a := range n.Args {
			if err := r.resolveExpr(a); err != nil {
				return err
			}
		}
		n.Binding = methodID

	default:
		return fmt.Errorf("resolve: unknown expression node %T", e)
	}
	return nil
}
