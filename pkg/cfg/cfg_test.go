package cfg

import (
	"bytes"
	"strings"
	"testing"

	"minicc/pkg/ir"
	"minicc/pkg/symtab"
	"minicc/pkg/types"
)

func newFunction(t *testing.T) (*CFG, *symtab.Table) {
	t.Helper()
	root := symtab.NewRoot()
	root.AddSymbol("counter", types.Int, 4, 0, 1)
	scope := root.NewChild(symtab.Function, "f")
	if _, err := scope.AddSymbol("n", types.Int, 4, 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := scope.AddSymbol("m", types.Int, 4, 2, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := scope.AddSymbol("x", types.Int, 4, 0, 2); err != nil {
		t.Fatal(err)
	}
	return New("f", scope, scope.LowWater()), root
}

func TestLocate(t *testing.T) {
	g, root := newFunction(t)
	tests := []struct {
		name string
		want string
	}{
		{"n", "%edi"},
		{"m", "%esi"},
		{"x", "-4(%rbp)"},
		{"counter", "counter(%rip)"},
	}
	for _, tc := range tests {
		sym := g.Scope.Resolve(tc.name)
		if got := g.Locate(sym).String(); got != tc.want {
			t.Errorf("Locate(%s) = %s; want %s", tc.name, got, tc.want)
		}
	}
	if root.Lookup("counter") == nil {
		t.Fatal("global missing")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for a nil symbol")
		}
	}()
	g.Locate(nil)
}

func TestTemporaries(t *testing.T) {
	g, _ := newFunction(t)
	t1 := g.NewTemp(types.Int)
	t2 := g.NewTemp(types.Int)
	if t1.Offset != -8 || t2.Offset != -12 {
		t.Errorf("temps should sit below the locals: %d, %d", t1.Offset, t2.Offset)
	}
	if t1.Name == t2.Name || !strings.HasPrefix(t1.Name, "__t") {
		t.Errorf("temp names must be unique: %s %s", t1.Name, t2.Name)
	}

	g.ResetTemps()
	t3 := g.NewTemp(types.Int)
	if t3.Offset != -8 {
		t.Errorf("offsets should restart after ResetTemps, got %d", t3.Offset)
	}
	if t3.Name == t1.Name {
		t.Errorf("names are never reused: %s", t3.Name)
	}
	if fs := g.FrameSize(); fs != 16 {
		t.Errorf("FrameSize: expected 16, got %d", fs)
	}

	params := g.Params()
	if len(params) != 2 || params[0].Name != "n" || params[1].Name != "m" {
		t.Errorf("Params out of order: %v", params)
	}
}

func TestLabels(t *testing.T) {
	g, _ := newFunction(t)
	a := g.NewLabel("then")
	b := g.NewLabel("then")
	if a == b || !strings.HasPrefix(a, ".Lf_then") {
		t.Errorf("labels must be unique and function-scoped: %s %s", a, b)
	}
	if g.Exit().Label != ".Lf_out" || g.Exit() != g.Exit() {
		t.Errorf("exit block should be created once: %s", g.Exit().Label)
	}
}

func TestBlockRender(t *testing.T) {
	g, _ := newFunction(t)
	entry := &BasicBlock{Label: "f"}
	then := g.NewBlock("then")
	merge := g.NewBlock("merge")
	exit := g.Exit()

	entry.Append(&ir.LoadConst{Value: 1, Dest: ir.Acc()})
	entry.Test = true
	entry.True, entry.False = then, merge
	then.Append(&ir.LoadConst{Value: 2, Dest: ir.Acc()}, &ir.Jump{Label: exit.Label})
	then.True = exit
	merge.True = exit
	exit.Append(&ir.FunctionEpilogue{})

	for _, b := range []*BasicBlock{entry, then, merge, exit} {
		g.AddBlock(b)
	}
	out := g.Render()

	if !strings.Contains(out, "\tcmpl $0, %eax\n\tje "+merge.Label+"\n") {
		t.Errorf("test block should branch to false successor:\n%s", out)
	}
	if strings.Contains(out, "jmp "+then.Label) {
		t.Errorf("true successor is next, no jump expected:\n%s", out)
	}
	if !strings.Contains(out, "jmp "+exit.Label) {
		t.Errorf("then block returns through the exit block:\n%s", out)
	}
	if strings.Count(out, "jmp "+exit.Label) != 1 {
		t.Errorf("merge falls through to exit, only one jump expected:\n%s", out)
	}
}

func TestTrailingJumpElided(t *testing.T) {
	g, _ := newFunction(t)
	a := &BasicBlock{Label: "f"}
	b := g.Exit()
	a.Append(&ir.Jump{Label: b.Label})
	a.True = b
	g.AddBlock(a)
	g.AddBlock(b)

	if !a.Terminated() {
		t.Fatal("block ending in a jump is terminated")
	}
	if out := g.Render(); strings.Contains(out, "jmp") {
		t.Errorf("jump to the next block should be elided:\n%s", out)
	}
}

func TestTestBlockNeedsSuccessors(t *testing.T) {
	b := &BasicBlock{Label: "bad", Test: true}
	defer func() {
		if recover() == nil {
			t.Error("expected panic for a test block without successors")
		}
	}()
	b.Render(nil, nil)
}

func TestWriteDot(t *testing.T) {
	g, _ := newFunction(t)
	entry := &BasicBlock{Label: "f", Test: true}
	body := g.NewBlock("body")
	entry.True, entry.False = body, g.Exit()
	body.True = g.Exit()
	g.AddBlock(entry)
	g.AddBlock(body)
	g.AddBlock(g.Exit())

	var buf bytes.Buffer
	if err := WriteDot(&buf, []*CFG{g}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"digraph cfg", `label="f"`, `"f" -> "` + body.Label + `" [label=T`, `"f" -> ".Lf_out" [label=F`} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output missing %q:\n%s", want, out)
		}
	}
}
