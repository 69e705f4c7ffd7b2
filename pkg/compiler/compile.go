// Package compiler runs the whole pipeline: preprocess, lex, parse, check,
// build IR, emit assembly, assemble.
package compiler

import (
	"fmt"
	"io"
	"os"

	"minicc/pkg/asm"
	"minicc/pkg/ast"
	"minicc/pkg/cfg"
	"minicc/pkg/cpu"
	"minicc/pkg/emit"
	"minicc/pkg/irgen"
	"minicc/pkg/sema"
	"minicc/pkg/syntax"
	"minicc/pkg/vfs"
)

type Options struct {
	// BaseDir resolves #include paths.
	BaseDir string
	// Headers, when set, is searched for included files before BaseDir.
	Headers *vfs.VirtualDisk
	// Diagnostics receives warnings and the failing stage's error. Nil
	// means os.Stderr.
	Diagnostics io.Writer
}

// Unit holds every product of a compilation. Fields are filled stage by
// stage, so a failed compilation still carries what came before the failure.
type Unit struct {
	Source   string
	Tokens   []syntax.Token
	Program  *ast.Program
	Result   *sema.Result
	CFGs     []*cfg.CFG
	Assembly string
	Binary   *asm.Program
	Warnings []*sema.Diagnostic
}

func Compile(src string, baseDir string) (*string, error) {
	u, err := CompileUnit(src, Options{BaseDir: baseDir})
	if err != nil {
		return nil, err
	}
	return &u.Assembly, nil
}

func CompileUnit(src string, opts Options) (*Unit, error) {
	diag := opts.Diagnostics
	if diag == nil {
		diag = os.Stderr
	}
	u := &Unit{}

	var err error
	if opts.Headers != nil {
		u.Source, err = syntax.PreprocessWith(src, opts.BaseDir, opts.Headers)
	} else {
		u.Source, err = syntax.Preprocess(src, opts.BaseDir)
	}
	if err != nil {
		fmt.Fprintln(diag, "preprocess error:", err)
		return u, err
	}

	u.Tokens, err = syntax.Lex(u.Source)
	if err != nil {
		fmt.Fprintln(diag, "lex error:", err)
		return u, err
	}

	u.Program, err = syntax.Parse(u.Tokens, u.Source)
	if err != nil {
		fmt.Fprintln(diag, "parse error:", err)
		return u, err
	}

	u.Result, err = sema.Check(u.Program, diag)
	if err != nil {
		fmt.Fprintln(diag, err)
		return u, err
	}
	u.Warnings = u.Result.Warnings

	u.CFGs, err = irgen.Build(u.Program, u.Result)
	if err != nil {
		fmt.Fprintln(diag, "ir error:", err)
		return u, err
	}

	u.Assembly = emit.Emit(u.CFGs, u.Result.Globals)

	if err := u.assemble(diag); err != nil {
		return u, err
	}
	return u, nil
}

func (u *Unit) assemble(diag io.Writer) error {
	bin, err := asm.Assemble(u.Assembly)
	if err != nil {
		fmt.Fprintln(diag, "assembly error:", err)
		return fmt.Errorf("assembly error: %w", err)
	}
	u.Binary = bin
	return nil
}

// Machine loads the assembled unit into a fresh interpreter.
func (u *Unit) Machine() (*cpu.CPU, error) {
	if u.Binary == nil {
		return nil, fmt.Errorf("unit was not assembled")
	}
	return cpu.New(u.Binary), nil
}
