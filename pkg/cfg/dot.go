package cfg

import (
	"fmt"
	"io"
	"strings"
)

// WriteDot writes the graphs in Graphviz format, one cluster per function.
func WriteDot(w io.Writer, graphs []*CFG) error {
	if _, err := fmt.Fprintln(w, "digraph cfg {\n  node [shape=box fontname=monospace];"); err != nil {
		return err
	}
	for i, g := range graphs {
		fmt.Fprintf(w, "  subgraph cluster_%d {\n    label=%q;\n", i, g.Label)
		for _, b := range g.Blocks {
			var body []string
			for _, in := range b.Instrs {
				body = append(body, in.String())
			}
			label := b.Label + "\\l" + strings.Join(body, "\\l")
			if len(body) > 0 {
				label += "\\l"
			}
			fmt.Fprintf(w, "    %q [label=\"%s\"];\n", b.Label, escapeDot(label))
		}
		for _, b := range g.Blocks {
			if b.True != nil {
				attr := ""
				if b.Test {
					attr = " [label=T color=darkgreen]"
				}
				fmt.Fprintf(w, "    %q -> %q%s;\n", b.Label, b.True.Label, attr)
			}
			if b.False != nil {
				fmt.Fprintf(w, "    %q -> %q [label=F color=red style=dashed];\n", b.Label, b.False.Label)
			}
		}
		fmt.Fprintln(w, "  }")
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func escapeDot(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
