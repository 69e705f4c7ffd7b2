//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"minicc/pkg/cfg"
	"minicc/pkg/compiler"
	"minicc/pkg/emit"
	"minicc/pkg/graph"
	"minicc/pkg/utils"
	"minicc/pkg/vfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the whole command line tool; it returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("minicc", flag.ContinueOnError)
	flags.SetOutput(stderr)
	inPath := flags.String("in", "", "input C source file path")
	outPath := flags.String("out", "", "output assembly file path (default: input with .s extension)")
	headerDir := flags.String("headers", "", "directory of .h/.c files searched by #include before the input's directory")
	runProgram := flags.Bool("run", false, "run main on the interpreter and print its return value")
	dotPath := flags.String("dot", "", "write the control-flow graphs as Graphviz to this file")
	pngDir := flags.String("png", "", "write one PNG per function's control-flow graph into this directory")
	dumpIR := flags.Bool("dump-ir", false, "print the IR of every function")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *inPath == "" {
		fmt.Fprintln(stderr, "nothing to do: provide -in <file.c>")
		flags.Usage()
		return 2
	}

	fullPath, baseDir, err := utils.GetPathInfo(*inPath)
	if err != nil {
		fmt.Fprintf(stderr, "invalid input path %q: %v\n", *inPath, err)
		return 2
	}
	source, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to read input file %q: %v\n", *inPath, err)
		return 1
	}

	opts := compiler.Options{BaseDir: baseDir, Diagnostics: stderr}
	if *headerDir != "" {
		opts.Headers = vfs.NewVirtualDisk()
		if err := opts.Headers.LoadFrom(*headerDir); err != nil {
			fmt.Fprintf(stderr, "failed to load headers from %q: %v\n", *headerDir, err)
			return 1
		}
	}

	// CompileUnit has already reported the failing stage on stderr.
	unit, err := compiler.CompileUnit(string(source), opts)
	if err != nil {
		return 1
	}

	output := *outPath
	if output == "" {
		output = utils.ReplaceExt(*inPath, ".s")
	}
	if err := os.WriteFile(output, []byte(unit.Assembly), 0o644); err != nil {
		fmt.Fprintf(stderr, "failed to write assembly file %q: %v\n", output, err)
		return 1
	}
	fmt.Fprintf(stdout, "compiled %d functions -> %s\n", len(unit.CFGs), output)

	if *dumpIR {
		fmt.Fprint(stdout, emit.DumpIR(unit.CFGs))
	}

	if *dotPath != "" {
		if err := writeDot(*dotPath, unit.CFGs); err != nil {
			fmt.Fprintf(stderr, "failed to write graph %q: %v\n", *dotPath, err)
			return 1
		}
	}

	if *pngDir != "" {
		if err := writePNGs(*pngDir, unit.CFGs); err != nil {
			fmt.Fprintf(stderr, "failed to write graph images: %v\n", err)
			return 1
		}
	}

	if *runProgram {
		vm, err := unit.Machine()
		if err != nil {
			fmt.Fprintf(stderr, "run failed: %v\n", err)
			return 1
		}
		ret, err := vm.Call("main")
		if err != nil {
			fmt.Fprintf(stderr, "run failed for %q: %v\n", *inPath, err)
			return 1
		}
		fmt.Fprintf(stdout, "run complete (%s): main returned %d after %d steps\n", *inPath, ret, vm.Steps)
	}
	return 0
}

func writeDot(path string, graphs []*cfg.CFG) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cfg.WriteDot(f, graphs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePNGs(dir string, graphs []*cfg.CFG) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, g := range graphs {
		f, err := os.Create(filepath.Join(dir, g.Label+".png"))
		if err != nil {
			return err
		}
		if err := graph.WritePNG(f, graph.NewLayout(g, graph.DefaultColumns)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
