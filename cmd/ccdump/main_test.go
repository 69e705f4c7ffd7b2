package main

import (
	"io"
	"strings"
	"testing"

	"minicc/pkg/compiler"
)

func TestDumpAllStages(t *testing.T) {
	unit, err := compiler.CompileUnit(testSource, compiler.Options{Diagnostics: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	var sb strings.Builder
	dump(&sb, unit)
	out := sb.String()
	for _, want := range []string{"Tokens (", "AST", "Scopes", "IR", "Generated Assembly", "main:"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestDumpStopsAtFailedStage(t *testing.T) {
	unit, err := compiler.CompileUnit("int main() { return y; }", compiler.Options{Diagnostics: io.Discard})
	if err == nil {
		t.Fatal("expected an undeclared-symbol error")
	}
	var sb strings.Builder
	dump(&sb, unit)
	out := sb.String()
	if !strings.Contains(out, "AST") {
		t.Errorf("parsed stages should still be dumped:\n%s", out)
	}
	if strings.Contains(out, "Generated Assembly") {
		t.Errorf("assembly dumped after a failed check:\n%s", out)
	}
}
