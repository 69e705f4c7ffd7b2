package main

import (
	"io"
	"strings"
	"testing"

	"minicc/pkg/compiler"
	"minicc/pkg/graph"
)

const twoFunctions = `
int square(int x) { return x * x; }
int main() {
	int s = 0;
	for (int i = 0; i < 4; i++) {
		if (i == 2) continue;
		s += square(i);
	}
	return s;
}`

func loadViewer(t *testing.T) *viewer {
	t.Helper()
	unit, err := compiler.CompileUnit(twoFunctions, compiler.Options{Diagnostics: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	return newViewer(unit.CFGs, graph.DefaultColumns)
}

func TestViewerPaging(t *testing.T) {
	v := loadViewer(t)
	if len(v.layouts) != 2 || len(v.pages) != 2 {
		t.Fatalf("expected 2 layouts, got %d", len(v.layouts))
	}
	if !strings.HasPrefix(v.title(), "square  (1/2)") {
		t.Errorf("title = %q", v.title())
	}
	v.next()
	if !strings.HasPrefix(v.title(), "main  (2/2)") {
		t.Errorf("title = %q", v.title())
	}
	v.next()
	if v.current != 0 {
		t.Errorf("next should wrap, current = %d", v.current)
	}
	v.prev()
	if v.current != 1 {
		t.Errorf("prev should wrap, current = %d", v.current)
	}
}

func TestViewerScrollClamps(t *testing.T) {
	v := loadViewer(t)
	v.scroll(-100, -100)
	if v.scrollX != 0 || v.scrollY != 0 {
		t.Errorf("scroll went negative: %d,%d", v.scrollX, v.scrollY)
	}

	b := v.layouts[0].Bounds
	v.scroll(1<<20, 1<<20)
	maxX := b.Dx() - screenWidth
	if maxX < 0 {
		maxX = 0
	}
	if v.scrollX != maxX {
		t.Errorf("scrollX = %d, want %d", v.scrollX, maxX)
	}

	v.next()
	if v.scrollX != 0 || v.scrollY != 0 {
		t.Errorf("paging should reset scroll")
	}
}

func TestEmptyViewer(t *testing.T) {
	v := newViewer(nil, graph.DefaultColumns)
	v.next()
	v.prev()
	v.scroll(10, 10)
	if v.title() != "no functions" {
		t.Errorf("title = %q", v.title())
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ n, lo, hi, want int }{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{11, 0, 10, 10},
		{3, 0, -20, 0},
	}
	for _, tc := range tests {
		if got := clamp(tc.n, tc.lo, tc.hi); got != tc.want {
			t.Errorf("clamp(%d, %d, %d) = %d, want %d", tc.n, tc.lo, tc.hi, got, tc.want)
		}
	}
}
