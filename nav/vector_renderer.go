package nav

import (
	"image/png"
	"io"

	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// VectorRenderer draws the ternary map and overlay as vector graphics.
// Canvas units are millimetres; one cell is CellSize mm.
type VectorRenderer struct {
	CellSize     float64
	Padding      float64 // cells
	FitToContent bool    // crop to discovered cells and the overlay
	Resolution   canvas.Resolution
	Colors       Palette
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer() *VectorRenderer {
	return &VectorRenderer{
		CellSize:     5.0,
		Padding:      2,
		FitToContent: true,
		Resolution:   canvas.DPI(150),
		Colors:       DefaultPalette(),
	}
}

type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// RenderToSVG writes the map as an SVG
func (r *VectorRenderer) RenderToSVG(w io.Writer, g *GridMap, ov Overlay) error {
	t := g.ToTernary()
	view := r.viewBound(g, t, ov)
	width, height := r.canvasSize(view)

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, g, t, ov, view, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the map as a PNG
func (r *VectorRenderer) RenderToPNG(w io.Writer, g *GridMap, ov Overlay) error {
	t := g.ToTernary()
	view := r.viewBound(g, t, ov)
	width, height := r.canvasSize(view)

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, g, t, ov, view, width, height)
	return png.Encode(w, rast)
}

func (r *VectorRenderer) canvasSize(view orb.Bound) (float64, float64) {
	return (view.Max[0] - view.Min[0]) * r.CellSize, (view.Max[1] - view.Min[1]) * r.CellSize
}

// viewBound returns the rendered window in cell coordinates, Max exclusive
func (r *VectorRenderer) viewBound(g *GridMap, t *TernaryGrid, ov Overlay) orb.Bound {
	full := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{float64(t.Width), float64(t.Height)}}
	if !r.FitToContent {
		return full
	}

	var b orb.Bound
	seen := false
	extend := func(x, y float64) {
		p := orb.Point{x, y}
		if !seen {
			b = orb.Bound{Min: p, Max: p}
			seen = true
			return
		}
		b = b.Extend(p)
	}

	for y := 1; y < t.Height-1; y++ {
		for x := 1; x < t.Width-1; x++ {
			if t.Cells[y*t.Width+x] != Undiscovered {
				extend(float64(x), float64(y))
				extend(float64(x+1), float64(y+1))
			}
		}
	}
	points := append(Path(nil), ov.Path...)
	if ov.Pose != nil && ov.Pose.Valid() {
		points = append(points, ov.Pose.Position())
	}
	for _, p := range points {
		c := g.WorldToGrid(p.X, p.Y)
		extend(float64(c.X), float64(c.Y))
		extend(float64(c.X+1), float64(c.Y+1))
	}
	if !seen {
		return full
	}

	b = b.Pad(r.Padding)
	b.Min = orb.Point{max(b.Min[0], full.Min[0]), max(b.Min[1], full.Min[1])}
	b.Max = orb.Point{min(b.Max[0], full.Max[0]), min(b.Max[1], full.Max[1])}
	return b
}

func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, g *GridMap, t *TernaryGrid, ov Overlay, view orb.Bound, width, height float64) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: r.Colors.Unknown}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	x0, y0 := int(view.Min[0]), int(view.Min[1])
	x1, y1 := int(view.Max[0]), int(view.Max[1])
	toCanvas := func(cx, cy float64) (float64, float64) {
		return (cx - view.Min[0]) * r.CellSize, (cy - view.Min[1]) * r.CellSize
	}

	// One rectangle per horizontal run of equal cells keeps the SVG small.
	for _, class := range []CellState{Free, Obstacle} {
		style := canvas.DefaultStyle
		style.Stroke = canvas.Paint{Color: canvas.Transparent}
		if class == Free {
			style.Fill = canvas.Paint{Color: r.Colors.Free}
		} else {
			style.Fill = canvas.Paint{Color: r.Colors.Obstacle}
		}

		for y := y0; y < y1; y++ {
			x := x0
			for x < x1 {
				if t.At(Cell{X: x, Y: y}) != class {
					x++
					continue
				}
				start := x
				for x < x1 && t.At(Cell{X: x, Y: y}) == class {
					x++
				}
				px, py := toCanvas(float64(start), float64(y))
				rect := canvas.Rectangle(float64(x-start)*r.CellSize, r.CellSize).Translate(px, py)
				renderer.RenderPath(rect, style, canvas.Identity)
			}
		}
	}

	frontierStyle := canvas.DefaultStyle
	frontierStyle.Fill = canvas.Paint{Color: r.Colors.Frontier}
	frontierStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, f := range ov.Frontiers {
		for _, c := range f.Cells() {
			px, py := toCanvas(float64(c.X), float64(c.Y))
			renderer.RenderPath(canvas.Rectangle(r.CellSize, r.CellSize).Translate(px, py), frontierStyle, canvas.Identity)
		}
	}

	center := func(p Point) (float64, float64) {
		c := g.WorldToGrid(p.X, p.Y)
		return toCanvas(float64(c.X)+0.5, float64(c.Y)+0.5)
	}

	if len(ov.Path) > 1 {
		pathStyle := canvas.DefaultStyle
		pathStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		pathStyle.Stroke = canvas.Paint{Color: r.Colors.Path}
		pathStyle.StrokeWidth = r.CellSize * 0.4

		cp := &canvas.Path{}
		for i, p := range ov.Path {
			cx, cy := center(p)
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		renderer.RenderPath(cp, pathStyle, canvas.Identity)
	}

	if ov.Target != nil {
		targetStyle := canvas.DefaultStyle
		targetStyle.Fill = canvas.Paint{Color: r.Colors.Target}
		targetStyle.Stroke = canvas.Paint{Color: canvas.Black}
		cx, cy := center(*ov.Target)
		renderer.RenderPath(canvas.Circle(r.CellSize).Translate(cx, cy), targetStyle, canvas.Identity)
	}

	if ov.Pose != nil && ov.Pose.Valid() {
		robotStyle := canvas.DefaultStyle
		robotStyle.Fill = canvas.Paint{Color: r.Colors.Robot}
		robotStyle.Stroke = canvas.Paint{Color: canvas.Black}
		cx, cy := center(ov.Pose.Position())
		renderer.RenderPath(canvas.Circle(r.CellSize*1.5).Translate(cx, cy), robotStyle, canvas.Identity)
	}
}
