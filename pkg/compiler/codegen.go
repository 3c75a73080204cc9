package compiler

import (
	"fmt"
	"strings"
)

// CodeGen walks a resolved AST and emits KalaCPU assembly source text.
//
// Register conventions:
//
//	R0  expression results
//	R1  scratch / addresses
//	R2  frame pointer inside methods
//	R3  scratch
//
// Every expression leaves its value in R0. Binary operators evaluate the
// left operand, push it, evaluate the right operand, then pop the left
// into R1.
type CodeGen struct {
	syms      *SymbolTable
	out       strings.Builder
	nextLabel int

	stringPool  map[string]string
	stringOrder []string // pool keys in first-use order, so S0, S1... is stable

	needPrintInt bool
	needPrintStr bool
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{
		syms:       syms,
		stringPool: make(map[string]string),
	}
}

func (cg *CodeGen) newLabel() string {
	l := fmt.Sprintf("L%d", cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) stringLabel(val string) string {
	if l, ok := cg.stringPool[val]; ok {
		return l
	}
	l := fmt.Sprintf("S%d", len(cg.stringOrder))
	cg.stringPool[val] = l
	cg.stringOrder = append(cg.stringOrder, val)
	return l
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(&cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("; "+format, args...)
}

// genVarAddr emits the address of a scalar or list binding into R1.
// Globals are a bare label load; method locals and parameters are
// FP-relative, with two's complement handling negative offsets.
func (cg *CodeGen) genVarAddr(b *Binding) {
	if b.Global {
		cg.line("    LDI R1, %s    ; &%s", b.Label, b.Name)
		return
	}
	cg.line("    MOV R1, R2        ; FP")
	cg.line("    LDI R3, %d", uint16(b.Offset))
	cg.line("    ADD R1, R3        ; &%s", b.Name)
}

// genStore emits a store of R0 into the binding's storage.
func (cg *CodeGen) genStore(b *Binding) {
	cg.genVarAddr(b)
	cg.line("    ST  [R1], R0")
}

// genIndexAddr computes the address of base[index] into R1.
// Element j lives at base+2+2*j; word 0 of the block is the length.
// No bounds check is emitted.
func (cg *CodeGen) genIndexAddr(e *IndexExpr) error {
	if err := cg.genExpr(e.Base); err != nil {
		return err
	}
	cg.line("    PUSH R0")
	if err := cg.genExpr(e.Index); err != nil {
		return err
	}
	cg.line("    LDI R3, 1")
	cg.line("    SHL R0, R3        ; index * 2")
	cg.line("    LDI R3, 2")
	cg.line("    ADD R0, R3        ; skip length word")
	cg.line("    POP  R1")
	cg.line("    ADD R1, R0")
	return nil
}

// genExpr emits the instructions that evaluate e and leave the result in R0.
func (cg *CodeGen) genExpr(e Expr) error {
	switch n := e.(type) {

	case *IntLiteral:
		cg.line("    LDI R0, %d", uint16(n.Value))

	case *StringLiteral:
		cg.line("    LDI R0, %s", cg.stringLabel(n.Value))

	case *VarRef:
		b := cg.syms.Binding(n.Binding)
		if b.Kind == BindList {
			// Lists evaluate to their base address.
			if b.Global {
				cg.line("    LDI R0, %s    ; %s", b.Label, b.Name)
			} else {
				cg.line("    MOV R0, R2")
				cg.line("    LDI R3, %d", uint16(b.Offset))
				cg.line("    ADD R0, R3        ; %s", b.Name)
			}
			return nil
		}
		cg.genVarAddr(b)
		cg.line("    LD  R0, [R1]")

	case *IndexExpr:
		if err := cg.genIndexAddr(n); err != nil {
			return err
		}
		cg.line("    LD  R0, [R1]")

	case *BinaryExpr:
		if err := cg.genExpr(n.Left); err != nil {
			return err
		}
		cg.line("    PUSH R0")
		if err := cg.genExpr(n.Right); err != nil {
			return err
		}
		cg.line("    POP  R1")

		switch n.Op {
		case PLUS:
			cg.line("    ADD R1, R0")
			cg.line("    MOV R0, R1")
		case MINUS:
			cg.line("    SUB R1, R0")
			cg.line("    MOV R0, R1")
		case STAR:
			cg.line("    MUL R1, R0")
			cg.line("    MOV R0, R1")
		case SLASH:
			cg.line("    IDIV R1, R0")
			cg.line("    MOV R0, R1")
		case EQUALS:
			label := cg.newLabel()
			cg.line("    SUB R1, R0")
			cg.line("    LDI R0, 1")
			cg.line("    JZ  %s", label)
			cg.line("    LDI R0, 0")
			cg.line("%s:", label)
		case LESS:
			label := cg.newLabel()
			cg.line("    SUB R1, R0") // Left - Right
			cg.line("    LDI R0, 1")
			cg.line("    JN  %s", label)
			cg.line("    LDI R0, 0")
			cg.line("%s:", label)
		case GREATER:
			label := cg.newLabel()
			cg.line("    SUB R0, R1") // Right - Left
			cg.line("    LDI R0, 1")
			cg.line("    JN  %s", label)
			cg.line("    LDI R0, 0")
			cg.line("%s:", label)
		case LESS_EQ:
			labelFalse := cg.newLabel()
			labelEnd := cg.newLabel()
			cg.line("    SUB R0, R1") // Right - Left
			cg.line("    JN  %s", labelFalse)
			cg.line("    LDI R0, 1")
			cg.line("    JMP %s", labelEnd)
			cg.line("%s:", labelFalse)
			cg.line("    LDI R0, 0")
			cg.line("%s:", labelEnd)
		case GREATER_EQ:
			labelFalse := cg.newLabel()
			labelEnd := cg.newLabel()
			cg.line("    SUB R1, R0") // Left - Right
			cg.line("    JN  %s", labelFalse)
			cg.line("    LDI R0, 1")
			cg.line("    JMP %s", labelEnd)
			cg.line("%s:", labelFalse)
			cg.line("    LDI R0, 0")
			cg.line("%s:", labelEnd)
		default:
			return fmt.Errorf("codegen: unknown binary operator %s", n.Op)
		}

	case *MethodCallExpr:
		method := cg.syms.Binding(n.Binding)
		// Arguments pushed right-to-left so the first parameter sits
		// closest to the return address.
		for i := len(n.Args) - 1; i >= 0; i-- {
			if err := cg.genExpr(n.Args[i]); err != nil {
				return err
			}
			cg.line("    PUSH R0")
		}
		cg.line("    CALL %s", method.Label)
		if len(n.Args) > 0 {
			cg.line("    LDI R1, %d", len(n.Args)*2)
			cg.line("    LDSP R3")
			cg.line("    ADD R3, R1")
			cg.line("    STSP R3")
		}

	default:
		return fmt.Errorf("codegen: unknown expression node %T", e)
	}
	return nil
}

// genStmt emits the instructions that carry out s.
func (cg *CodeGen) genStmt(s Stmt) error {
	switch n := s.(type) {

	case *ListDecl:
		cg.comment("list %s = [...] (len %d)", n.Name, len(n.Elements))
		b := cg.syms.Binding(n.Binding)
		if !b.Global {
			// Locals are raw frame bytes, so the length word is
			// written at runtime; for globals the data section
			// carries it.
			cg.line("    LDI R0, %d", len(n.Elements))
			cg.genStore(b)
		}
		for j, elem := range n.Elements {
			if err := cg.genExpr(elem); err != nil {
				return err
			}
			cg.genVarAddr(b)
			cg.line("    LDI R3, %d", 2+2*j)
			cg.line("    ADD R1, R3        ; %s[%d]", n.Name, j)
			cg.line("    ST  [R1], R0")
		}

	case *VarAssign:
		cg.comment("%s = %s", n.Name, n.Value)
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.genStore(cg.syms.Binding(n.Binding))

	case *IndexAssign:
		cg.comment("%s = %s", n.Target, n.Value)
		if err := cg.genIndexAddr(n.Target); err != nil {
			return err
		}
		cg.line("    PUSH R1")
		if err := cg.genExpr(n.Value); err != nil {
			return err
		}
		cg.line("    POP  R1")
		cg.line("    ST  [R1], R0")

	case *PrintStmt:
		cg.comment("print %s", n.Arg)
		if err := cg.genExpr(n.Arg); err != nil {
			return err
		}
		if _, isStr := n.Arg.(*StringLiteral); isStr {
			cg.needPrintStr = true
			cg.line("    CALL __print_str")
		} else {
			cg.needPrintInt = true
			cg.line("    CALL __print_int")
		}

	case *BlockStmt:
		for _, child := range n.Stmts {
			if err := cg.genStmt(child); err != nil {
				return err
			}
		}

	case *IfStmt:
		cg.comment("if %s", n.Condition)
		if err := cg.genExpr(n.Condition); err != nil {
			return err
		}
		cg.line("    LDI R1, 0")
		cg.line("    SUB R0, R1")
		falseLabel := cg.newLabel()
		cg.line("    JZ  %s", falseLabel)
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		if n.ElseBody != nil {
			endLabel := cg.newLabel()
			cg.line("    JMP %s", endLabel)
			cg.line("%s:", falseLabel)
			if err := cg.genStmt(n.ElseBody); err != nil {
				return err
			}
			cg.line("%s:", endLabel)
		} else {
			cg.line("%s:", falseLabel)
		}

	case *WhileStmt:
		cg.comment("while %s", n.Condition)
		startLabel := cg.newLabel()
		endLabel := cg.newLabel()
		cg.line("%s:", startLabel)
		if err := cg.genExpr(n.Condition); err != nil {
			return err
		}
		cg.line("    LDI R1, 0")
		cg.line("    SUB R0, R1")
		cg.line("    JZ  %s", endLabel)
		if err := cg.genStmt(n.Body); err != nil {
			return err
		}
		cg.line("    JMP %s", startLabel)
		cg.line("%s:", endLabel)

	case *ForStmt:
		cg.comment("for %s in %s", n.Var, n.Iter)
		loopVar := cg.syms.Binding(n.Binding)

		if err := cg.genExpr(n.Iter.Low); err != nil {
			return err
		}
		cg.genStore(loopVar)

		startLabel := cg.newLabel()
		bodyLabel := cg.newLabel()
		endLabel := cg.newLabel()

		cg.line("%s:", startLabel)
		cg.genVarAddr(loopVar)
		cg.line("    LD  R0, [R1]")
		cg.line("    PUSH R0")
		if err := cg.genExpr(n.Iter.High); err != nil {
			return err
		}
		cg.line("    POP  R1")
		cg.line("    SUB R1, R0        ; %s - high", n.Var)
		cg.line("    JN  %s", bodyLabel)
		cg.line("    JMP %s", endLabel)
		cg.line("%s:", bodyLabel)

		if err := cg.genStmt(n.Body); err != nil {
			return err
		}

		cg.genVarAddr(loopVar)
		cg.line("    LD  R0, [R1]")
		cg.line("    LDI R3, 1")
		cg.line("    ADD R0, R3")
		cg.line("    ST  [R1], R0")
		cg.line("    JMP %s", startLabel)
		cg.line("%s:", endLabel)

	case *ClassDecl:
		// Method bodies are emitted before __start; nothing executes
		// at the declaration site.

	case *Instantiate:
		// Dispatch is static, so instantiation is a pure resolution
		// fact; no code.
		cg.comment("%s %s (no code)", n.Class, n.Name)

	case *ExprStmt:
		cg.comment("call: %s", n.Expr)
		if err := cg.genExpr(n.Expr); err != nil {
			return err
		}

	default:
		return fmt.Errorf("codegen: unknown statement node %T", s)
	}
	return nil
}

// genMethod emits one method subroutine. The prologue saves the caller's
// frame pointer and carves out the frame; methods have no return statement
// and always yield 0 in R0.
func (cg *CodeGen) genMethod(class string, m *MethodDecl) error {
	info := cg.syms.Classes[class]
	method := cg.syms.Binding(info.Methods[m.Name])

	cg.line("%s:", method.Label)
	cg.line("    PUSH R2")
	cg.line("    LDSP R2")
	if method.FrameSize > 0 {
		cg.line("    LDI R1, %d", method.FrameSize)
		cg.line("    LDSP R3")
		cg.line("    SUB R3, R1")
		cg.line("    STSP R3")
	}

	for _, s := range m.Body.Stmts {
		if err := cg.genStmt(s); err != nil {
			return err
		}
	}

	cg.line("    LDI R0, 0")
	cg.line("    STSP R2")
	cg.line("    POP R2")
	cg.line("    RET")
	return nil
}

// genPrintRoutines emits the output helpers behind the print statement.
// Both append a trailing newline. 0xFF01 renders a signed decimal; 0xFF00
// emits a single character.
func (cg *CodeGen) genPrintRoutines() {
	if cg.needPrintInt {
		cg.line("\n__print_int:")
		cg.line("    LDI R1, 0xFF01")
		cg.line("    ST  [R1], R0")
		cg.line("    LDI R0, 10")
		cg.line("    LDI R1, 0xFF00")
		cg.line("    ST  [R1], R0")
		cg.line("    RET")
	}
	if cg.needPrintStr {
		cg.line("\n__print_str:")
		cg.line("    MOV R1, R0        ; cursor")
		cg.line("__print_str_loop:")
		cg.line("    LDB R0, [R1]")
		cg.line("    LDI R3, 0")
		cg.line("    SUB R0, R3")
		cg.line("    JZ  __print_str_done")
		cg.line("    LDI R3, 0xFF00")
		cg.line("    ST  [R3], R0")
		cg.line("    LDI R3, 1")
		cg.line("    ADD R1, R3")
		cg.line("    JMP __print_str_loop")
		cg.line("__print_str_done:")
		cg.line("    LDI R0, 10")
		cg.line("    LDI R3, 0xFF00")
		cg.line("    ST  [R3], R0")
		cg.line("    RET")
	}
}

// genData emits the data section: one labelled block per global binding in
// binding-ID order (which is declaration order), then the string pool.
// List blocks carry their length in word 0; element words start zeroed and
// are filled by the declaration's stores.
func (cg *CodeGen) genData() {
	wroteHeader := false
	for _, b := range cg.syms.Bindings {
		if !b.Global || (b.Kind != BindScalar && b.Kind != BindList) {
			continue
		}
		if !wroteHeader {
			cg.line("\n; Global Data")
			wroteHeader = true
		}
		cg.line("%s:", b.Label)
		if b.Kind == BindList {
			cg.line(".WORD %d", b.Len)
			for k := 0; k < b.Len; k++ {
				cg.line(".WORD 0")
			}
		} else {
			cg.line(".WORD 0")
		}
	}

	if len(cg.stringOrder) > 0 {
		cg.line("\n; String Literals")
		for _, val := range cg.stringOrder {
			escaped := strings.ReplaceAll(val, "\\", "\\\\")
			escaped = strings.ReplaceAll(escaped, "\n", "\\n")
			escaped = strings.ReplaceAll(escaped, "\t", "\\t")
			escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
			cg.line("%s: .STRING \"%s\"", cg.stringPool[val], escaped)
		}
	}
}

// Generate lowers a resolved program to assembly text. Method subroutines
// come first (behind a jump to __start), then the top-level statements,
// then the runtime print helpers and the data section.
func Generate(rp *ResolvedProgram) (string, error) {
	cg := newCodeGen(rp.Syms)

	cg.line("    JMP __start")

	for _, s := range rp.Prog.Stmts {
		decl, ok := s.(*ClassDecl)
		if !ok {
			continue
		}
		cg.line("\n; class %s", decl.Name)
		for _, m := range decl.Methods {
			if err := cg.genMethod(decl.Name, m); err != nil {
				return "", err
			}
		}
	}

	cg.line("\n__start:")
	for _, s := range rp.Prog.Stmts {
		if _, ok := s.(*ClassDecl); ok {
			continue
		}
		if err := cg.genStmt(s); err != nil {
			return "", err
		}
	}
	cg.line("    HLT")

	cg.genPrintRoutines()
	cg.genData()

	return cg.out.String(), nil
}
