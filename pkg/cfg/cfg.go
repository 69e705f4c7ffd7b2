// Package cfg holds the per-function control-flow graph: basic blocks with
// explicit successor edges, the function's scope and its temporaries.
package cfg

import (
	"fmt"
	"sort"
	"strings"

	"minicc/pkg/ir"
	"minicc/pkg/symtab"
	"minicc/pkg/types"
)

// CFG is the graph of one function. Blocks are kept in construction order,
// which is also the order they are emitted in.
type CFG struct {
	Label  string
	Scope  *symtab.Table
	Blocks []*BasicBlock

	current  *BasicBlock
	exit     *BasicBlock
	counter  int
	tempBase int
	tempOff  int
	low      int
}

// New creates an empty graph for the function label whose scope is given.
// Temporaries are allocated below tempBase.
func New(label string, scope *symtab.Table, tempBase int) *CFG {
	return &CFG{
		Label:    label,
		Scope:    scope,
		tempBase: tempBase,
		tempOff:  tempBase,
		low:      tempBase,
	}
}

// NewLabel returns a fresh assembler-local label.
func (g *CFG) NewLabel(hint string) string {
	g.counter++
	return fmt.Sprintf(".L%s_%s%d", g.Label, hint, g.counter)
}

// NewBlock creates a block with a fresh label without adding it to the graph.
func (g *CFG) NewBlock(hint string) *BasicBlock {
	return &BasicBlock{Label: g.NewLabel(hint)}
}

// AddBlock appends bb and makes it current.
func (g *CFG) AddBlock(bb *BasicBlock) {
	g.Blocks = append(g.Blocks, bb)
	g.current = bb
}

func (g *CFG) CurrentBlock() *BasicBlock      { return g.current }
func (g *CFG) SetCurrentBlock(bb *BasicBlock) { g.current = bb }

// Entry returns the first block, or nil for an empty graph.
func (g *CFG) Entry() *BasicBlock {
	if len(g.Blocks) == 0 {
		return nil
	}
	return g.Blocks[0]
}

// Exit returns the function's output block, creating it on first use. It
// is not part of Blocks until the builder adds it.
func (g *CFG) Exit() *BasicBlock {
	if g.exit == nil {
		g.exit = &BasicBlock{Label: fmt.Sprintf(".L%s_out", g.Label)}
	}
	return g.exit
}

// NewTemp reserves a 4-byte slot below the current temporary offset and
// registers it in the function scope.
func (g *CFG) NewTemp(typ types.Type) *symtab.Symbol {
	g.tempOff -= types.SizeOf(typ)
	if g.tempOff < g.low {
		g.low = g.tempOff
	}
	g.counter++
	return g.Scope.Place(fmt.Sprintf("__t%d", g.counter), typ, g.tempOff)
}

// ResetTemps releases every temporary. Called at each statement boundary.
func (g *CFG) ResetTemps() {
	g.tempOff = g.tempBase
}

// Locate implements ir.Resolver.
func (g *CFG) Locate(sym *symtab.Symbol) ir.Location {
	if sym == nil {
		panic("cfg: locating a nil symbol in " + g.Label)
	}
	switch {
	case sym.IsParam():
		return ir.Location{Kind: ir.InRegister, Reg: ir.ArgReg(sym.Position)}
	case sym.Global:
		return ir.Location{Kind: ir.InData, Label: sym.Name}
	}
	if sym.Offset >= 0 {
		panic(fmt.Sprintf("cfg: %s has no frame slot in %s", sym.Name, g.Label))
	}
	return ir.Location{Kind: ir.InFrame, Offset: sym.Offset}
}

// FrameSize returns the bytes reserved by the prologue, 16-byte aligned.
func (g *CFG) FrameSize() int {
	low := g.low
	if l := g.Scope.LowWater(); l < low {
		low = l
	}
	return (-low + 15) &^ 15
}

// Params returns the function's parameters ordered by position.
func (g *CFG) Params() []*symtab.Symbol {
	var params []*symtab.Symbol
	for _, sym := range g.Scope.Symbols() {
		if sym.IsParam() {
			params = append(params, sym)
		}
	}
	sort.Slice(params, func(i, j int) bool { return params[i].Position < params[j].Position })
	return params
}

// Render emits every block in construction order.
func (g *CFG) Render() string {
	var sb strings.Builder
	for i, b := range g.Blocks {
		var next *BasicBlock
		if i+1 < len(g.Blocks) {
			next = g.Blocks[i+1]
		}
		sb.WriteString(b.Render(g, next))
	}
	return sb.String()
}

// Dump returns the IR form of every block.
func (g *CFG) Dump() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s (frame %d)\n", g.Label, g.FrameSize())
	for _, b := range g.Blocks {
		sb.WriteString(b.Dump())
	}
	return sb.String()
}
