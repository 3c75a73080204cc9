package asm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/KalaSecurityProgram/kalalang/pkg/cpu"
)

// encodeWords converts a slice of uint16 to little-endian bytes.
func encodeWords(words ...uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		out[i*2] = byte(w & 0xFF)
		out[i*2+1] = byte(w >> 8)
	}
	return out
}

func TestHelperFunctions(t *testing.T) {
	// Test isIdentifier
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		if got := isIdentifier(tc.input); got != tc.want {
			t.Errorf("isIdentifier(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}

	// Test instructionLength (in bytes)
	lenTests := []struct {
		mnemonic string
		wantLen  uint16
		wantOk   bool
	}{
		{"HLT", 2, true},
		{"PUSH", 2, true},
		{"ADD", 2, true},
		{"LDI", 4, true},
		{"JMP", 4, true},
		{"CALL", 4, true},
		{"BOGUS", 0, false},
	}
	for _, tc := range lenTests {
		gotLen, gotOk := instructionLength(tc.mnemonic)
		if gotLen != tc.wantLen || gotOk != tc.wantOk {
			t.Errorf("instructionLength(%q) = (%d, %v); want (%d, %v)",
				tc.mnemonic, gotLen, gotOk, tc.wantLen, tc.wantOk)
		}
	}
}

func TestAssembleBasicInstructions(t *testing.T) {
	code := `
	LDI R0, 42
	ADD R0, R1
	HLT
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := encodeWords(
		cpu.EncodeInstruction(cpu.OpLDI, 0, 0, 0), 42,
		cpu.EncodeInstruction(cpu.OpADD, 0, 1, 0),
		cpu.EncodeInstruction(cpu.OpHLT, 0, 0, 0),
	)
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleBracketsAndComments(t *testing.T) {
	code := `
	LD  R0, [R1]   ; load
	ST  [R1], R0   // store
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := encodeWords(
		cpu.EncodeInstruction(cpu.OpLD, 0, 1, 0),
		cpu.EncodeInstruction(cpu.OpST, 1, 0, 0),
	)
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleLabelResolution(t *testing.T) {
	code := `
	JMP start
	NOP
start:
	HLT
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	// JMP is 4 bytes, NOP is 2: start sits at address 6.
	want := encodeWords(
		cpu.EncodeInstruction(cpu.OpJMP, 0, 0, 0), 6,
		cpu.EncodeInstruction(cpu.OpNOP, 0, 0, 0),
		cpu.EncodeInstruction(cpu.OpHLT, 0, 0, 0),
	)
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleLabelsAreCaseSensitive(t *testing.T) {
	// Greeter_hi and greeter_hi must be distinct symbols.
	code := `
	JMP Greeter_hi
Greeter_hi:
	NOP
greeter_hi:
	HLT
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("distinct-case labels rejected: %v", err)
	}
	// JMP target is the first label, at address 4.
	if program[2] != 4 {
		t.Errorf("JMP resolves to %d, want 4", program[2])
	}

	_, _, err = Assemble("JMP MISSING\nmissing:\nHLT")
	if err == nil || !strings.Contains(err.Error(), "undefined label") {
		t.Errorf("case-mismatched reference should be undefined, got %v", err)
	}
}

func TestAssembleWordDirective(t *testing.T) {
	code := `
data:
	.WORD 3
	.WORD 0xFFFF
	.WORD data
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := encodeWords(3, 0xFFFF, 0)
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleStringDirective(t *testing.T) {
	program, _, err := Assemble(`msg: .STRING "hi"`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := []byte{'h', 'i', 0}
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleStringMentionedInComment(t *testing.T) {
	// The directive name inside a comment must not turn the comment
	// into data.
	code := `
	JMP end       ; not a .STRING directive
; print ".string oops"
end:
	HLT
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := encodeWords(
		cpu.EncodeInstruction(cpu.OpJMP, 0, 0, 0), 4,
		cpu.EncodeInstruction(cpu.OpHLT, 0, 0, 0),
	)
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleAccentedString(t *testing.T) {
	// One byte per character, so the label after the string must not
	// shift for characters outside ASCII.
	code := `
msg: .STRING "hé"
after: .WORD after
`
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := []byte{'h', 0xE9, 0x00, 0x03, 0x00}
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}

	_, _, err = Assemble(`msg: .STRING "日"`)
	if err == nil || !strings.Contains(err.Error(), "fit in a byte") {
		t.Errorf("characters above 0xFF should be rejected, got %v", err)
	}
}

func TestAssembleStringEscapes(t *testing.T) {
	program, _, err := Assemble(`msg: .STRING "a\nb"`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	want := []byte{'a', '\n', 'b', 0}
	if !reflect.DeepEqual(program, want) {
		t.Errorf("got % X, want % X", program, want)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"unknown instruction", "FROB R0", "unknown instruction"},
		{"wrong operand count", "ADD R0", "expects 2 operands"},
		{"invalid register", "PUSH R9", "invalid register"},
		{"undefined label", "JMP nowhere", "undefined label"},
		{"duplicate label", "x:\nNOP\nx:\nHLT", "duplicate label"},
		{"immediate out of range", "LDI R0, 70000", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Assemble(tt.code)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestAssembleSourceMap(t *testing.T) {
	code := "NOP\nLDI R0, 1\nHLT"
	_, sourceMap, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	// NOP at 0 -> line 1, LDI at 2 -> line 2, HLT at 6 -> line 3.
	want := map[uint16]int{0: 1, 2: 2, 6: 3}
	if !reflect.DeepEqual(sourceMap, want) {
		t.Errorf("got %v, want %v", sourceMap, want)
	}
}
