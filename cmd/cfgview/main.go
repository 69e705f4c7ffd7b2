package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"minicc/pkg/cfg"
	"minicc/pkg/compiler"
	"minicc/pkg/graph"
	"minicc/pkg/utils"
)

const (
	screenWidth  = 960
	screenHeight = 720
	headerHeight = 20
	scrollStep   = 8
)

// viewer pages through the control-flow graphs of one compilation unit.
type viewer struct {
	layouts []*graph.Layout
	pages   []*ebiten.Image // rendered lazily, one per layout
	current int
	scrollX int
	scrollY int
}

func newViewer(graphs []*cfg.CFG, cols int) *viewer {
	v := &viewer{}
	for _, g := range graphs {
		v.layouts = append(v.layouts, graph.NewLayout(g, cols))
	}
	v.pages = make([]*ebiten.Image, len(v.layouts))
	return v
}

func (v *viewer) next() {
	if len(v.layouts) == 0 {
		return
	}
	v.current = (v.current + 1) % len(v.layouts)
	v.scrollX, v.scrollY = 0, 0
}

func (v *viewer) prev() {
	if len(v.layouts) == 0 {
		return
	}
	v.current = (v.current + len(v.layouts) - 1) % len(v.layouts)
	v.scrollX, v.scrollY = 0, 0
}

// scroll moves the view and keeps it inside the current graph.
func (v *viewer) scroll(dx, dy int) {
	if len(v.layouts) == 0 {
		return
	}
	b := v.layouts[v.current].Bounds
	v.scrollX = clamp(v.scrollX+dx, 0, b.Dx()-screenWidth)
	v.scrollY = clamp(v.scrollY+dy, 0, b.Dy()-(screenHeight-headerHeight))
}

func (v *viewer) title() string {
	if len(v.layouts) == 0 {
		return "no functions"
	}
	return fmt.Sprintf("%s  (%d/%d)  tab: next function  arrows: scroll",
		v.layouts[v.current].Title, v.current+1, len(v.layouts))
}

func clamp(n, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func (v *viewer) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		if ebiten.IsKeyPressed(ebiten.KeyShift) {
			v.prev()
		} else {
			v.next()
		}
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		v.scroll(-scrollStep, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		v.scroll(scrollStep, 0)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		v.scroll(0, -scrollStep)
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		v.scroll(0, scrollStep)
	}
	return nil
}

func (v *viewer) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, v.title(), 4, 2)
	if len(v.layouts) == 0 {
		return
	}

	if v.pages[v.current] == nil {
		v.pages[v.current] = ebiten.NewImageFromImage(graph.Render(v.layouts[v.current]))
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(-v.scrollX), float64(headerHeight-v.scrollY))
	screen.DrawImage(v.pages[v.current], op)
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: cfgview <file.c>")
	}

	fullPath, baseDir, err := utils.GetPathInfo(os.Args[1])
	if err != nil {
		log.Fatalf("Invalid source path: %v", err)
	}
	sourceBytes, err := os.ReadFile(fullPath)
	if err != nil {
		log.Fatalf("Failed to read source file: %v", err)
	}

	unit, err := compiler.CompileUnit(string(sourceBytes), compiler.Options{BaseDir: baseDir})
	if err != nil {
		log.Fatalf("Compilation failed: %v", err)
	}

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowTitle("minicc control-flow graphs")

	if err := ebiten.RunGame(newViewer(unit.CFGs, graph.DefaultColumns)); err != nil {
		log.Fatal(err)
	}
}
