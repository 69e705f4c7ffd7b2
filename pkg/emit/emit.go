// Package emit linearizes control-flow graphs into GAS/AT&T assembly.
package emit

import (
	"fmt"
	"strings"

	"minicc/pkg/cfg"
	"minicc/pkg/sema"
)

// Emit renders every function in graphs, in order, followed by the data
// section for globals.
func Emit(graphs []*cfg.CFG, globals []sema.Global) string {
	var sb strings.Builder
	sb.WriteString("\t.text\n")
	for _, g := range graphs {
		if g.Entry() == nil {
			panic("emit: function " + g.Label + " has no blocks")
		}
		fmt.Fprintf(&sb, "\n\t.globl %s\n", g.Label)
		sb.WriteString(g.Render())
	}

	if len(globals) > 0 {
		sb.WriteString("\n\t.data\n")
		for _, gl := range globals {
			writeGlobal(&sb, gl)
		}
	}
	return sb.String()
}

func writeGlobal(sb *strings.Builder, gl sema.Global) {
	fmt.Fprintf(sb, "\t.globl %s\n%s:\n", gl.Sym.Name, gl.Sym.Name)

	// Trailing zeros collapse into a single .zero run.
	end := len(gl.Values)
	for end > 0 && gl.Values[end-1] == 0 {
		end--
	}
	for _, v := range gl.Values[:end] {
		fmt.Fprintf(sb, "\t.long %d\n", v)
	}
	if zeros := gl.Sym.Size - 4*end; zeros > 0 {
		fmt.Fprintf(sb, "\t.zero %d\n", zeros)
	}
}

// DumpIR returns the IR of every function in block order, with successor
// annotations.
func DumpIR(graphs []*cfg.CFG) string {
	var sb strings.Builder
	for i, g := range graphs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(g.Dump())
	}
	return sb.String()
}
