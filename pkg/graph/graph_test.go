package graph

import (
	"bytes"
	"image/png"
	"testing"

	"minicc/pkg/cfg"
	"minicc/pkg/ir"
	"minicc/pkg/symtab"
)

// diamond builds entry -> (then | else) -> join -> exit.
func diamond() *cfg.CFG {
	scope := symtab.NewRoot().NewChild(symtab.Function, "f")
	g := cfg.New("f", scope, 0)

	entry := &cfg.BasicBlock{Label: "f"}
	g.AddBlock(entry)
	entry.Append(&ir.LoadConst{Value: 1, Dest: ir.Acc()})
	entry.Test = true

	then := g.NewBlock("then")
	els := g.NewBlock("else")
	join := g.NewBlock("endif")
	entry.True, entry.False = then, els

	g.AddBlock(then)
	then.Append(&ir.LoadConst{Value: 2, Dest: ir.Acc()})
	then.True = join

	g.AddBlock(els)
	els.Append(&ir.LoadConst{Value: 3, Dest: ir.Acc()})
	els.True = join

	g.AddBlock(join)
	join.True = g.Exit()
	g.AddBlock(g.Exit())
	g.Exit().Append(&ir.FunctionEpilogue{})
	return g
}

func TestLayout(t *testing.T) {
	g := diamond()
	l := NewLayout(g, 2)

	if len(l.Boxes) != len(g.Blocks) {
		t.Fatalf("expected %d boxes, got %d", len(g.Blocks), len(l.Boxes))
	}
	if len(l.Edges) != 5 {
		t.Errorf("expected 5 edges, got %d: %+v", len(l.Edges), l.Edges)
	}

	kinds := map[EdgeKind]int{}
	for _, e := range l.Edges {
		kinds[e.Kind]++
	}
	if kinds[TrueEdge] != 1 || kinds[FalseEdge] != 1 || kinds[Next] != 3 {
		t.Errorf("edge kinds: %v", kinds)
	}

	for i, a := range l.Boxes {
		if !a.Rect.In(l.Bounds) {
			t.Errorf("box %s outside the image: %v", a.Label, a.Rect)
		}
		for _, b := range l.Boxes[i+1:] {
			if a.Rect.Overlaps(b.Rect) {
				t.Errorf("boxes %s and %s overlap", a.Label, b.Label)
			}
		}
	}

	// Two columns: the third block starts the second row.
	if l.Boxes[2].Rect.Min.X != l.Boxes[0].Rect.Min.X || l.Boxes[2].Rect.Min.Y <= l.Boxes[0].Rect.Max.Y {
		t.Errorf("grid placement wrong: %v %v", l.Boxes[0].Rect, l.Boxes[2].Rect)
	}
	if l.Boxes[0].Lines[0] != "%eax := 1" {
		t.Errorf("box text: %q", l.Boxes[0].Lines)
	}
}

func TestClip(t *testing.T) {
	long := "0123456789012345678901234567890123456789012345678901234567890123456789"
	got := clip(long)
	if len(got) != maxChars || got[len(got)-3:] != "..." {
		t.Errorf("clip(%d chars) = %q", len(long), got)
	}
	if clip("short") != "short" {
		t.Errorf("short lines stay intact")
	}
}

func TestRender(t *testing.T) {
	l := NewLayout(diamond(), 0)
	img := Render(l)
	if img.Bounds() != l.Bounds {
		t.Fatalf("image bounds %v, layout %v", img.Bounds(), l.Bounds)
	}

	r := l.Boxes[0].Rect
	if got := img.RGBAAt(r.Min.X, r.Min.Y+r.Dy()/2); got != boxBorder {
		t.Errorf("box border not drawn: %v", got)
	}

	inked := 0
	for y := r.Min.Y + 1; y < r.Max.Y-1; y++ {
		for x := r.Min.X + 1; x < r.Max.X-1; x++ {
			if img.RGBAAt(x, y) == textColor {
				inked++
			}
		}
	}
	if inked == 0 {
		t.Errorf("no text drawn inside the entry box")
	}
}

func TestWritePNG(t *testing.T) {
	l := NewLayout(diamond(), 3)
	var buf bytes.Buffer
	if err := WritePNG(&buf, l); err != nil {
		t.Fatalf("WritePNG failed: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("png.Decode failed: %v", err)
	}
	if img.Bounds().Dx() != l.Bounds.Dx() || img.Bounds().Dy() != l.Bounds.Dy() {
		t.Errorf("decoded size %v, want %v", img.Bounds(), l.Bounds)
	}
}
