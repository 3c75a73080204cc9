package compiler

import (
	"fmt"

	"github.com/KalaSecurityProgram/kalalang/pkg/asm"
	"github.com/KalaSecurityProgram/kalalang/pkg/cache"
)

// Compile runs the full pipeline over src: lex, parse, resolve, generate,
// assemble. The artifact carries the assembly listing, the machine code and
// the assembler's address-to-listing-line map. On an assembler error the
// listing is still returned for diagnosis.
func Compile(src string) (*cache.Artifact, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, err
	}

	prog, err := Parse(tokens, src)
	if err != nil {
		return nil, err
	}

	resolved, err := Resolve(prog)
	if err != nil {
		return nil, err
	}

	assembly, err := Generate(resolved)
	if err != nil {
		return nil, err
	}

	machineCode, sourceMap, err := asm.Assemble(assembly)
	if err != nil {
		return &cache.Artifact{Assembly: assembly}, fmt.Errorf("assembly error: %v", err)
	}

	return &cache.Artifact{
		Assembly:    assembly,
		MachineCode: machineCode,
		SourceMap:   sourceMap,
	}, nil
}

// Compiler memoizes Compile results. A nil cache disables memoization.
type Compiler struct {
	artifacts *cache.Cache
}

func NewCompiler(artifacts *cache.Cache) *Compiler {
	return &Compiler{artifacts: artifacts}
}

// Compile returns the artifact for src, reusing a cached one when the same
// source text was compiled before.
func (c *Compiler) Compile(src string) (*cache.Artifact, error) {
	if c.artifacts != nil {
		if a, ok := c.artifacts.Get(src); ok {
			return a, nil
		}
	}

	a, err := Compile(src)
	if err != nil {
		return nil, err
	}
	if c.artifacts != nil {
		c.artifacts.Put(src, a)
	}
	return a, nil
}
