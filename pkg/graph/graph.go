// Package graph rasterises a function's control-flow graph: one box per
// basic block holding its IR, one line per successor edge.
package graph

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"minicc/pkg/cfg"
	"minicc/pkg/grid"
)

const (
	DefaultColumns = 3

	padding  = 6
	gap      = 40
	margin   = 20
	charW    = 7
	lineH    = 13
	maxChars = 48
)

var (
	background = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	boxBorder  = color.RGBA{0x30, 0x30, 0x30, 0xFF}
	headerFill = color.RGBA{0xDD, 0xE6, 0xF5, 0xFF}
	textColor  = color.RGBA{0x10, 0x10, 0x10, 0xFF}
)

type EdgeKind int

const (
	Next EdgeKind = iota
	TrueEdge
	FalseEdge
)

func (k EdgeKind) Color() color.RGBA {
	switch k {
	case TrueEdge:
		return color.RGBA{0x00, 0x80, 0x00, 0xFF}
	case FalseEdge:
		return color.RGBA{0xC0, 0x00, 0x00, 0xFF}
	}
	return color.RGBA{0x40, 0x40, 0xA0, 0xFF}
}

type Box struct {
	Label string
	Lines []string
	Rect  image.Rectangle
}

type Edge struct {
	From, To int
	Kind     EdgeKind
}

// Layout is a placed graph ready to draw. Boxes follow block construction
// order, left to right and then top to bottom.
type Layout struct {
	Title  string
	Boxes  []Box
	Edges  []Edge
	Bounds image.Rectangle
}

// NewLayout places the blocks of g on a grid with cols columns. Every cell
// has the size of the largest box so rows and columns line up.
func NewLayout(g *cfg.CFG, cols int) *Layout {
	if cols <= 0 {
		cols = DefaultColumns
	}
	l := &Layout{Title: g.Label}

	index := make(map[*cfg.BasicBlock]int, len(g.Blocks))
	cellW, cellH := 0, 0
	for i, b := range g.Blocks {
		index[b] = i
		box := Box{Label: b.Label}
		for _, in := range b.Instrs {
			box.Lines = append(box.Lines, clip(in.String()))
		}
		w, h := boxSize(box)
		cellW, cellH = max(cellW, w), max(cellH, h)
		l.Boxes = append(l.Boxes, box)
	}

	top := margin + lineH + padding
	for i := range l.Boxes {
		x, y := grid.GetGridCoords(i, cols)
		w, h := boxSize(l.Boxes[i])
		px := margin + x*(cellW+gap)
		py := top + y*(cellH+gap)
		l.Boxes[i].Rect = image.Rect(px, py, px+w, py+h)
	}

	for i, b := range g.Blocks {
		if b.True != nil {
			kind := Next
			if b.Test {
				kind = TrueEdge
			}
			if to, ok := index[b.True]; ok {
				l.Edges = append(l.Edges, Edge{From: i, To: to, Kind: kind})
			}
		}
		if b.False != nil {
			if to, ok := index[b.False]; ok {
				l.Edges = append(l.Edges, Edge{From: i, To: to, Kind: FalseEdge})
			}
		}
	}

	used, rows := grid.Extent(len(l.Boxes), cols)
	l.Bounds = image.Rect(0, 0,
		max(2*margin+used*cellW+(used-1)*gap, 2*margin+len(l.Title)*charW),
		top+rows*cellH+(rows-1)*gap+margin)
	return l
}

func boxSize(b Box) (int, int) {
	chars := len(b.Label) + 1
	for _, s := range b.Lines {
		chars = max(chars, len(s))
	}
	return chars*charW + 2*padding, (len(b.Lines)+1)*lineH + 2*padding
}

func clip(s string) string {
	if len(s) <= maxChars {
		return s
	}
	return s[:maxChars-3] + "..."
}

// Render draws the layout onto a fresh image.
func Render(l *Layout) *image.RGBA {
	img := image.NewRGBA(l.Bounds)
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	drawText(img, l.Title, margin, margin+lineH-3)

	for _, e := range l.Edges {
		from, to := l.Boxes[e.From].Rect, l.Boxes[e.To].Rect
		start := image.Pt((from.Min.X+from.Max.X)/2, from.Max.Y)
		end := image.Pt((to.Min.X+to.Max.X)/2, to.Min.Y)
		if e.Kind == FalseEdge {
			start.X = from.Max.X - padding
		}
		drawLine(img, start, end, e.Kind.Color())
		arrow := image.Rect(end.X-2, end.Y-4, end.X+3, end.Y)
		draw.Draw(img, arrow, image.NewUniform(e.Kind.Color()), image.Point{}, draw.Src)
	}

	for _, b := range l.Boxes {
		r := b.Rect
		draw.Draw(img, r, image.NewUniform(background), image.Point{}, draw.Src)
		header := image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lineH+padding)
		draw.Draw(img, header, image.NewUniform(headerFill), image.Point{}, draw.Src)
		outline(img, r, boxBorder)

		y := r.Min.Y + padding + lineH - 3
		drawText(img, b.Label+":", r.Min.X+padding, y)
		for _, s := range b.Lines {
			y += lineH
			drawText(img, s, r.Min.X+padding, y)
		}
	}
	return img
}

func WritePNG(w io.Writer, l *Layout) error {
	return png.Encode(w, Render(l))
}

func drawText(dst draw.Image, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func outline(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetRGBA(x, r.Min.Y, c)
		img.SetRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetRGBA(r.Min.X, y, c)
		img.SetRGBA(r.Max.X-1, y, c)
	}
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, a, b image.Point, c color.RGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	for {
		img.SetRGBA(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			a.X += sx
		}
		if e2 <= dx {
			err += dx
			a.Y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
