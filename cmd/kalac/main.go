// kalac is the Kala compiler driver. It compiles .kala sources to KalaCPU
// assembly, runs them on the bundled virtual machine, or dumps the
// intermediate stages of the pipeline.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/KalaSecurityProgram/kalalang/pkg/cache"
	"github.com/KalaSecurityProgram/kalalang/pkg/compiler"
	"github.com/KalaSecurityProgram/kalalang/pkg/config"
	"github.com/KalaSecurityProgram/kalalang/pkg/cpu"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	forceFlag = cli.BoolFlag{
		Name:  "force",
		Usage: "overwrite an existing output file",
	}
	emitFlag = cli.StringFlag{
		Name:  "emit",
		Usage: "pipeline stage to dump: tokens, ast, symbols, asm or all",
		Value: "all",
	}

	compileCommand = cli.Command{
		Action:    compileCmd,
		Name:      "compile",
		Usage:     "Compile a Kala source file to assembly",
		ArgsUsage: "<input.kala> [output.s]",
		Description: `Compiles the given .kala file and writes the assembly listing next to it
(or to the named output, which must end in .s). Existing output files are
not replaced unless --force is given or the config enables overwriting.`,
	}
	runCommand = cli.Command{
		Action:    runCmd,
		Name:      "run",
		Usage:     "Compile a Kala source file and execute it",
		ArgsUsage: "<input.kala>",
		Description: `Compiles the given .kala file and runs the machine code on the KalaCPU,
writing program output to stdout.`,
	}
	dumpCommand = cli.Command{
		Action:    dumpCmd,
		Name:      "dump",
		Usage:     "Show pipeline stages for a source file",
		ArgsUsage: "<input.kala>",
		Flags:     []cli.Flag{emitFlag},
		Description: `Prints the token stream, the AST, the symbol table and the generated
assembly for the given .kala file. --emit narrows the output to one stage.`,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "kalac"
	app.Usage = "the Kala language compiler"
	app.Flags = []cli.Flag{configFileFlag, forceFlag}
	app.Commands = []cli.Command{compileCommand, runCommand, dumpCommand}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := ctx.GlobalString(configFileFlag.Name); path != "" {
		if err := config.Load(path, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func newCompiler(cfg config.Config) (*compiler.Compiler, error) {
	artifacts, err := cache.New(cfg.Compiler.CacheSize)
	if err != nil {
		return nil, err
	}
	return compiler.NewCompiler(artifacts), nil
}

// readSource reads a Kala source file, enforcing the .kala extension.
func readSource(path string) (string, error) {
	if filepath.Ext(path) != ".kala" {
		return "", fmt.Errorf("input file %q must have a .kala extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func compileCmd(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("usage: kalac compile <input.kala> [output.s]")
	}
	input := ctx.Args().Get(0)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	src, err := readSource(input)
	if err != nil {
		return err
	}

	output := strings.TrimSuffix(input, ".kala") + ".s"
	if ctx.NArg() > 1 {
		output = ctx.Args().Get(1)
	}
	if filepath.Ext(output) != ".s" {
		return fmt.Errorf("output file %q must have a .s extension", output)
	}
	if !ctx.GlobalBool(forceFlag.Name) && !cfg.Compiler.Overwrite {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("output file %q already exists (use --force to overwrite)", output)
		}
	}

	c, err := newCompiler(cfg)
	if err != nil {
		return err
	}
	artifact, err := c.Compile(src)
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, []byte(artifact.Assembly), 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes of machine code)\n", output, len(artifact.MachineCode))
	return nil
}

func runCmd(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: kalac run <input.kala>")
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	src, err := readSource(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	c, err := newCompiler(cfg)
	if err != nil {
		return err
	}
	artifact, err := c.Compile(src)
	if err != nil {
		return err
	}

	machine := cpu.NewCPU()
	if err := machine.Load(artifact.MachineCode); err != nil {
		return err
	}
	machine.Run()
	return nil
}

func dumpCmd(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("usage: kalac dump <input.kala>")
	}
	stage := ctx.String(emitFlag.Name)
	switch stage {
	case "tokens", "ast", "symbols", "asm", "all":
	default:
		return fmt.Errorf("unknown --emit stage %q (want tokens, ast, symbols, asm or all)", stage)
	}

	src, err := readSource(ctx.Args().Get(0))
	if err != nil {
		return err
	}

	tokens, err := compiler.Lex(src)
	if err != nil {
		return err
	}
	if stage == "tokens" || stage == "all" {
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
		if stage == "tokens" {
			return nil
		}
	}

	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		return err
	}
	if stage == "ast" || stage == "all" {
		fmt.Println("AST")
		fmt.Print(prog)
		fmt.Println()
		if stage == "ast" {
			return nil
		}
	}

	resolved, err := compiler.Resolve(prog)
	if err != nil {
		return err
	}
	if stage == "symbols" || stage == "all" {
		fmt.Println("Symbols")
		fmt.Print(resolved.Syms)
		fmt.Println()
		if stage == "symbols" {
			return nil
		}
	}

	assembly, err := compiler.Generate(resolved)
	if err != nil {
		return err
	}
	fmt.Println("Generated Assembly")
	fmt.Print(assembly)
	return nil
}
