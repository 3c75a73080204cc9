package compiler

import (
	"errors"
	"testing"

	"github.com/KalaSecurityProgram/kalalang/pkg/cache"
)

func TestCompileProducesAssemblyAndMachineCode(t *testing.T) {
	a, err := Compile("print 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if a.Assembly == "" || len(a.MachineCode) == 0 {
		t.Errorf("empty artifact: asm=%d bytes, code=%d bytes", len(a.Assembly), len(a.MachineCode))
	}
	if len(a.SourceMap) == 0 {
		t.Error("artifact missing the source map")
	}
	if line, ok := a.SourceMap[0]; !ok || line < 1 {
		t.Errorf("address 0 should map to a listing line, got %d", line)
	}
}

func TestCompileErrorPhases(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		phase string
	}{
		{"lex", "x = @", "lex"},
		{"parse", "list x = [1", "parse"},
		{"resolve", "print y", "resolve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.src)
			var cerr CompileError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected CompileError, got %v", err)
			}
			if cerr.Phase() != tt.phase {
				t.Errorf("phase: got %q, want %q", cerr.Phase(), tt.phase)
			}
		})
	}
}

func TestCompilerReusesCachedArtifact(t *testing.T) {
	artifacts, err := cache.New(4)
	if err != nil {
		t.Fatalf("cache.New failed: %v", err)
	}
	c := NewCompiler(artifacts)

	first, err := c.Compile("print 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	second, err := c.Compile("print 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if first != second {
		t.Error("expected the cached artifact on the second compile")
	}

	other, err := c.Compile("print 2")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if other == first {
		t.Error("different sources must not share an artifact")
	}
}

func TestCompilerWithoutCache(t *testing.T) {
	c := NewCompiler(nil)
	a, err := c.Compile("print 1")
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if a == nil || len(a.MachineCode) == 0 {
		t.Error("artifact missing machine code")
	}
}
