package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"minicc/pkg/compiler"
	"minicc/pkg/emit"
)

const testSource = `int x = 10;
int main() {
	int y = 20;
	return x + y;
}
`

func main() {
	src := testSource
	baseDir := "."
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "read error:", err)
			os.Exit(1)
		}
		src = string(data)
		baseDir = filepath.Dir(os.Args[1])
	}

	// CompileUnit reports the failing stage on stderr itself; dump whatever
	// was produced before it.
	unit, err := compiler.CompileUnit(src, compiler.Options{BaseDir: baseDir})
	dump(os.Stdout, unit)
	if err != nil {
		os.Exit(1)
	}
}

func dump(w io.Writer, u *compiler.Unit) {
	fmt.Fprintf(w, "Source:\n%s\n", u.Source)
	if u.Tokens == nil {
		return
	}

	fmt.Fprintf(w, "Tokens (%d)\n", len(u.Tokens))
	for _, tok := range u.Tokens {
		fmt.Fprintln(w, " ", tok)
	}
	fmt.Fprintln(w)

	if u.Program == nil {
		return
	}
	fmt.Fprintln(w, "AST")
	for _, item := range u.Program.Items {
		fmt.Fprintln(w, " ", item)
	}
	fmt.Fprintln(w)

	if u.Result == nil {
		return
	}
	fmt.Fprintln(w, "Scopes")
	fmt.Fprint(w, u.Result.Root)
	fmt.Fprintln(w)
	for _, d := range u.Warnings {
		fmt.Fprintln(w, "warning:", d)
	}

	if u.CFGs == nil {
		return
	}
	fmt.Fprintln(w, "IR")
	fmt.Fprint(w, emit.DumpIR(u.CFGs))
	fmt.Fprintln(w)

	if u.Assembly == "" {
		return
	}
	fmt.Fprintln(w, "Generated Assembly")
	fmt.Fprint(w, u.Assembly)
}
