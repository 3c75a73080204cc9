// Package asm translates KalaCPU assembly text into machine code with a
// classic two-pass assembler: pass 1 sizes every line and collects label
// addresses, pass 2 encodes instructions and resolves label operands.
package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/KalaSecurityProgram/kalalang/pkg/cpu"
)

var zeroOperandOps = map[string]uint16{
	"HLT": cpu.OpHLT,
	"NOP": cpu.OpNOP,
	"RET": cpu.OpRET,
}

var oneRegisterOps = map[string]uint16{
	"NOT":  cpu.OpNOT,
	"PUSH": cpu.OpPUSH,
	"POP":  cpu.OpPOP,
	"LDSP": cpu.OpLDSP,
	"STSP": cpu.OpSTSP,
}

var twoRegisterOps = map[string]uint16{
	"MOV":  cpu.OpMOV,
	"LD":   cpu.OpLD,
	"ST":   cpu.OpST,
	"ADD":  cpu.OpADD,
	"SUB":  cpu.OpSUB,
	"AND":  cpu.OpAND,
	"OR":   cpu.OpOR,
	"XOR":  cpu.OpXOR,
	"MUL":  cpu.OpMUL,
	"DIV":  cpu.OpDIV,
	"IDIV": cpu.OpIDIV,
	"SHL":  cpu.OpSHL,
	"SHR":  cpu.OpSHR,
	"LDB":  cpu.OpLDB,
	"STB":  cpu.OpSTB,
}

var regAndImmediateOps = map[string]uint16{
	"LDI": cpu.OpLDI,
}

var immediateOnlyOps = map[string]uint16{
	"JMP":  cpu.OpJMP,
	"JZ":   cpu.OpJZ,
	"JNZ":  cpu.OpJNZ,
	"JN":   cpu.OpJN,
	"JC":   cpu.OpJC,
	"JNC":  cpu.OpJNC,
	"CALL": cpu.OpCALL,
}

// Assembler holds the label table built during pass 1. Labels are
// case-sensitive: Greeter_hi and greeter_hi are distinct.
type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble is a convenience wrapper over a one-shot Assembler.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

// Assemble translates code and returns the machine image plus a source map
// from emission address to 1-based assembly line number.
func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

func (a *Assembler) pass1(lines []string) error {
	var address uint32

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address > 0xFFFF {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			if _, exists := a.labels[lbl]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[lbl] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		if p.mnemonic == ".STRING" {
			if len(p.operands) != 1 {
				return fmt.Errorf(".STRING expects exactly one string operand on line %d", lineNo)
			}
			// 1 byte per character + 1 null byte
			length := uint32(utf8.RuneCountInString(p.operands[0]) + 1)
			if address+length > 65536 {
				return fmt.Errorf("program too large near line %d", lineNo)
			}
			address += length
			continue
		}

		if p.mnemonic == ".ORG" {
			if len(p.operands) != 1 {
				return fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
			}
			target, err := strconv.ParseUint(p.operands[0], 0, 32)
			if err != nil {
				return fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, p.operands[0])
			}
			if target > 0xFFFF {
				return fmt.Errorf(".ORG out of range on line %d: %s", lineNo, p.operands[0])
			}
			if uint32(target) < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = uint32(target)
			continue
		}

		if p.mnemonic == ".WORD" {
			if len(p.operands) != 1 {
				return fmt.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			if address+2 > 65536 {
				return fmt.Errorf("program too large near line %d", lineNo)
			}
			address += 2
			continue
		}

		length, ok := instructionLength(p.mnemonic)
		if !ok {
			return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
		}

		if address+uint32(length) > 65536 {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += uint32(length)
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		sourceMap[uint16(len(program))] = lineNo

		if p.mnemonic == ".STRING" {
			if len(p.operands) != 1 {
				return nil, nil, fmt.Errorf(".STRING expects exactly one string operand on line %d", lineNo)
			}
			// 1 byte per character + null terminator
			for _, r := range p.operands[0] {
				if r > 0xFF {
					return nil, nil, fmt.Errorf("string character %q does not fit in a byte on line %d", r, lineNo)
				}
				program = append(program, byte(r))
			}
			program = append(program, 0x00)
			continue
		}

		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == ".ORG" {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
			}
			target, err := strconv.ParseUint(ops[0], 0, 32)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
			}
			if target > 0xFFFF {
				return nil, nil, fmt.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
			}
			padding := int(target) - len(program)
			if padding < 0 {
				return nil, nil, fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			if padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue
		}

		if mnemonic == ".WORD" {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			val, err := a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(val&0xFF), byte(val>>8))
			continue
		}

		if opcode, ok := zeroOperandOps[mnemonic]; ok {
			if len(ops) != 0 {
				return nil, nil, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
			}
			instr := cpu.EncodeInstruction(opcode, 0, 0, 0)
			program = append(program, byte(instr&0xFF), byte(instr>>8))
			continue
		}

		if opcode, ok := oneRegisterOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			instr := cpu.EncodeInstruction(opcode, regA, 0, 0)
			program = append(program, byte(instr&0xFF), byte(instr>>8))
			continue
		}

		if opcode, ok := twoRegisterOps[mnemonic]; ok {
			if len(ops) != 2 {
				return nil, nil, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			regB, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			instr := cpu.EncodeInstruction(opcode, regA, regB, 0)
			program = append(program, byte(instr&0xFF), byte(instr>>8))
			continue
		}

		if opcode, ok := regAndImmediateOps[mnemonic]; ok {
			if len(ops) != 2 {
				return nil, nil, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
			}
			regA, err := parseRegister(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			imm, err := a.parseImmediate(ops[1], lineNo)
			if err != nil {
				return nil, nil, err
			}
			instr := cpu.EncodeInstruction(opcode, regA, 0, 0)
			program = append(program, byte(instr&0xFF), byte(instr>>8))
			program = append(program, byte(imm&0xFF), byte(imm>>8))
			continue
		}

		if opcode, ok := immediateOnlyOps[mnemonic]; ok {
			if len(ops) != 1 {
				return nil, nil, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
			}
			imm, err := a.parseImmediate(ops[0], lineNo)
			if err != nil {
				return nil, nil, err
			}
			instr := cpu.EncodeInstruction(opcode, 0, 0, 0)
			program = append(program, byte(instr&0xFF), byte(instr>>8))
			program = append(program, byte(imm&0xFF), byte(imm>>8))
			continue
		}

		return nil, nil, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
	}

	return program, sourceMap, nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "//") {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if beforeColon == "" {
			return p, fmt.Errorf("invalid label on line %d", lineNo)
		}

		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	// .STRING keeps its quoted content verbatim, so it is handled before
	// comment stripping. Only the leading word of the line counts; the
	// directive name inside a comment stays a comment.
	if isStringDirective(line) {
		opening := strings.Index(line, "\"")
		closing := strings.LastIndex(line, "\"")
		if opening == -1 || closing == opening {
			return p, fmt.Errorf("invalid string literal on line %d", lineNo)
		}
		p.mnemonic = ".STRING"
		content := line[opening+1 : closing]
		if unquoted, err := strconv.Unquote(`"` + content + `"`); err == nil {
			p.operands = []string{unquoted}
		} else {
			p.operands = []string{content}
		}
		return p, nil
	}

	line = stripComments(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return p, nil
	}

	line = normalizeInstructionText(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

// isStringDirective reports whether line begins with the .STRING directive
// as a whole word.
func isStringDirective(line string) bool {
	if len(line) < len(".STRING") || !strings.EqualFold(line[:len(".STRING")], ".STRING") {
		return false
	}
	rest := line[len(".STRING"):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '"'
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

func normalizeInstructionText(line string) string {
	replacer := strings.NewReplacer(",", " ", "[", " ", "]", " ")
	return replacer.Replace(line)
}

func parseRegister(token string, lineNo int) (uint16, error) {
	switch strings.ToUpper(token) {
	case "R0":
		return 0, nil
	case "R1":
		return 1, nil
	case "R2":
		return 2, nil
	case "R3":
		return 3, nil
	case "R4":
		return 4, nil
	case "R5":
		return 5, nil
	case "R6":
		return 6, nil
	case "R7":
		return 7, nil
	default:
		return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
	}
}

func (a *Assembler) parseImmediate(token string, lineNo int) (uint16, error) {
	if value, err := strconv.ParseUint(token, 0, 32); err == nil {
		if value > 0xFFFF {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	if addr, ok := a.labels[token]; ok {
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

// instructionLength returns the byte length of an instruction.
// All instructions are 2 bytes; instructions with an immediate are 4 bytes.
func instructionLength(mnemonic string) (uint16, bool) {
	mnemonic = strings.ToUpper(mnemonic)

	if _, ok := zeroOperandOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := oneRegisterOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := twoRegisterOps[mnemonic]; ok {
		return 2, true
	}
	if _, ok := regAndImmediateOps[mnemonic]; ok {
		return 4, true
	}
	if _, ok := immediateOnlyOps[mnemonic]; ok {
		return 4, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
