// Package irgen lowers a checked program into per-function control-flow
// graphs. It walks the syntax tree a second time and re-enters the scopes
// the checker created, in the same order.
package irgen

import (
	"fmt"

	"minicc/pkg/ast"
	"minicc/pkg/cfg"
	"minicc/pkg/ir"
	"minicc/pkg/sema"
	"minicc/pkg/symtab"
	"minicc/pkg/types"
)

type loop struct {
	cont *cfg.BasicBlock
	brk  *cfg.BasicBlock
}

type builder struct {
	res   *sema.Result
	g     *cfg.CFG
	scope *symtab.Table
	loops []loop

	// live holds locals whose declaration the builder has passed, so a name
	// resolves to the same symbol it did during checking.
	live map[*symtab.Symbol]bool

	// sink, when set, collects instructions instead of the current block.
	sink *[]ir.Instruction
}

// Build fills the empty graphs in res with IR for every function body of
// prog. res must come from checking prog.
func Build(prog *ast.Program, res *sema.Result) ([]*cfg.CFG, error) {
	var bodies []*ast.FuncDecl
	for _, fn := range prog.Functions() {
		if fn.Body != nil {
			bodies = append(bodies, fn)
		}
	}
	if len(bodies) != len(res.Functions) {
		return nil, fmt.Errorf("irgen: program has %d function bodies but the check produced %d graphs",
			len(bodies), len(res.Functions))
	}

	res.Root.ResetCursors()
	for i, fn := range bodies {
		g := res.Functions[i]
		if g.Label != fn.Name || len(g.Blocks) != 0 {
			return nil, fmt.Errorf("irgen: graph %d is %q, expected an empty graph for %q", i, g.Label, fn.Name)
		}
		scope := res.Root.NextChild()
		if scope != g.Scope {
			panic(fmt.Sprintf("irgen: scope walk out of step at function %s", fn.Name))
		}
		b := &builder{res: res, g: g, scope: scope, live: make(map[*symtab.Symbol]bool)}
		b.function(fn)
	}
	return res.Functions, nil
}

func (b *builder) function(fn *ast.FuncDecl) {
	entry := &cfg.BasicBlock{Label: fn.Name}
	b.g.AddBlock(entry)

	for _, s := range fn.Body.Stmts {
		b.stmt(s)
	}

	exit := b.g.Exit()
	last := b.g.CurrentBlock()
	if !last.Terminated() {
		if fn.Name == "main" {
			b.emit(&ir.LoadConst{Value: 0, Dest: ir.Acc()})
		}
		last.True = exit
	}
	b.g.AddBlock(exit)
	exit.Append(&ir.FunctionEpilogue{})

	entry.Prepend(&ir.FunctionPrologue{FrameSize: b.g.FrameSize()})
}

func (b *builder) emit(in ...ir.Instruction) {
	if b.sink != nil {
		*b.sink = append(*b.sink, in...)
		return
	}
	b.g.CurrentBlock().Append(in...)
}

// capture runs fn and returns the instructions it emitted without adding
// them to the current block.
func (b *builder) capture(fn func() ir.Operand) ([]ir.Instruction, ir.Operand) {
	var out []ir.Instruction
	saved := b.sink
	b.sink = &out
	v := fn()
	b.sink = saved
	return out, v
}

// resolve finds the symbol a name refers to at the current point of the walk.
func (b *builder) resolve(name string) *symtab.Symbol {
	for t := b.scope; t != nil; t = t.Parent() {
		sym := t.Lookup(name)
		if sym != nil && (sym.Global || sym.IsParam() || b.live[sym]) {
			return sym
		}
	}
	panic(fmt.Sprintf("irgen: %q does not resolve in %s", name, b.g.Label))
}

// enter re-enters the next child scope the checker created here.
func (b *builder) enter() func() {
	parent := b.scope
	b.scope = parent.NextChild()
	return func() { b.scope = parent }
}

// store writes v into dst.
func (b *builder) store(dst ir.Operand, v ir.Operand) {
	if v.IsImm() {
		b.emit(&ir.LoadConst{Value: v.Imm, Dest: dst})
		return
	}
	b.emit(&ir.Move{Src: v, Dest: dst})
}

// spill copies v into a fresh temporary.
func (b *builder) spill(v ir.Operand) ir.Operand {
	tmp := b.g.NewTemp(types.Int)
	b.emit(&ir.Move{Src: v, Dest: ir.Sym(tmp)})
	return ir.Sym(tmp)
}
