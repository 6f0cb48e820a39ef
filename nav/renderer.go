package nav

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay is the navigation state drawn on top of a grid
type Overlay struct {
	Pose      *Pose
	Path      Path
	Target    *Point
	Frontiers []*Frontier
	Label     string
}

// Palette holds the colors used by both renderers
type Palette struct {
	Free       color.RGBA
	Obstacle   color.RGBA
	Unknown    color.RGBA
	Frontier   color.RGBA
	Path       color.RGBA
	Target     color.RGBA
	Robot      color.RGBA
	Text       color.RGBA
	Background color.RGBA
}

// DefaultPalette returns the standard map colors
func DefaultPalette() Palette {
	return Palette{
		Free:       color.RGBA{250, 250, 250, 255},
		Obstacle:   color.RGBA{30, 30, 30, 255},
		Unknown:    color.RGBA{160, 160, 160, 255},
		Frontier:   color.RGBA{0, 160, 255, 255},
		Path:       color.RGBA{220, 40, 40, 255},
		Target:     color.RGBA{255, 170, 0, 255},
		Robot:      color.RGBA{0, 170, 0, 255},
		Text:       color.RGBA{0, 0, 0, 255},
		Background: color.RGBA{240, 240, 240, 255},
	}
}

// GridRenderer rasterizes a GridMap. Row 0 of the grid is drawn at the
// bottom so that +Y points up in the image.
type GridRenderer struct {
	Scale      int  // pixels per cell
	BlurRadius int  // box blur radius in cells for shading; 0 disables
	Ternary    bool // draw the three classes instead of shaded confidence
	Colors     Palette
}

// NewGridRenderer creates a renderer with default settings
func NewGridRenderer() *GridRenderer {
	return &GridRenderer{
		Scale:      4,
		BlurRadius: 0,
		Colors:     DefaultPalette(),
	}
}

// Render draws g and the overlay into a new image
func (r *GridRenderer) Render(g *GridMap, ov Overlay) *image.RGBA {
	cfg := g.Config()
	scale := max(r.Scale, 1)
	width, height := cfg.Width*scale, cfg.Height*scale
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	values := g.Values()
	shade := values
	if r.BlurRadius > 0 {
		shade = BoxBlur(values, cfg.Width, cfg.Height, r.BlurRadius)
	}
	t := g.ToTernary()

	for cy := 0; cy < cfg.Height; cy++ {
		for cx := 0; cx < cfg.Width; cx++ {
			i := cy*cfg.Width + cx
			var c color.RGBA
			if r.Ternary {
				c = r.classColor(t.Cells[i])
			} else {
				c = r.shadeColor(shade[i], cfg)
			}
			fillRect(img, cx*scale, (cfg.Height-1-cy)*scale, scale, c)
		}
	}

	toPixel := func(c Cell) (int, int) {
		return c.X*scale + scale/2, (cfg.Height-1-c.Y)*scale + scale/2
	}

	for _, f := range ov.Frontiers {
		for _, c := range f.Cells() {
			fillRect(img, c.X*scale, (cfg.Height-1-c.Y)*scale, scale, r.Colors.Frontier)
		}
	}

	for i := 1; i < len(ov.Path); i++ {
		ax, ay := toPixel(g.WorldToGrid(ov.Path[i-1].X, ov.Path[i-1].Y))
		bx, by := toPixel(g.WorldToGrid(ov.Path[i].X, ov.Path[i].Y))
		walkLine(Cell{X: ax, Y: ay}, Cell{X: bx, Y: by}, func(p Cell) bool {
			setPixel(img, p.X, p.Y, r.Colors.Path)
			return true
		})
	}
	for _, p := range ov.Path {
		x, y := toPixel(g.WorldToGrid(p.X, p.Y))
		drawCircle(img, x, y, max(scale/2, 1), r.Colors.Path)
	}

	if ov.Target != nil {
		x, y := toPixel(g.WorldToGrid(ov.Target.X, ov.Target.Y))
		drawCircle(img, x, y, max(scale, 2), r.Colors.Target)
	}

	if ov.Pose != nil && ov.Pose.Valid() {
		x, y := toPixel(g.WorldToGrid(ov.Pose.X, ov.Pose.Y))
		drawRobot(img, x, y, max(scale*2, 4), ov.Pose.Theta, r.Colors.Robot)
	}

	if ov.Label != "" {
		drawText(img, 4, 14, ov.Label, r.Colors.Text)
	}
	return img
}

func (r *GridRenderer) classColor(s CellState) color.RGBA {
	switch s {
	case Free:
		return r.Colors.Free
	case Obstacle:
		return r.Colors.Obstacle
	default:
		return r.Colors.Unknown
	}
}

// shadeColor maps a confidence to grey: MinValue is white, MaxValue black
func (r *GridRenderer) shadeColor(v float64, cfg GridConfig) color.RGBA {
	span := cfg.MaxValue - cfg.MinValue
	if span <= 0 || !isFinite(v) {
		return r.Colors.Unknown
	}
	f := clamp((v-cfg.MinValue)/span, 0, 1)
	grey := uint8(math.Round(255 * (1 - f)))
	return color.RGBA{grey, grey, grey, 255}
}

// EncodePNG renders g and writes it as PNG
func (r *GridRenderer) EncodePNG(w io.Writer, g *GridMap, ov Overlay) error {
	return png.Encode(w, r.Render(g, ov))
}

// SavePNG renders g to a PNG file
func (r *GridRenderer) SavePNG(path string, g *GridMap, ov Overlay) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return r.EncodePNG(f, g, ov)
}

// BoxBlur smooths a row-major grid with a (2r+1)x(2r+1) mean filter, run
// as two one-dimensional passes. Windows are truncated at the edges. It is
// for display only and never feeds back into the map.
func BoxBlur(values []float64, width, height, radius int) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	if radius <= 0 || width <= 0 || height <= 0 || len(values) != width*height {
		return out
	}

	tmp := make([]float64, len(values))
	line := make([]float64, max(width, height)+1)

	for y := 0; y < height; y++ {
		row := values[y*width : (y+1)*width]
		boxPass(row, tmp[y*width:(y+1)*width], radius, line)
	}

	col := make([]float64, height)
	res := make([]float64, height)
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			col[y] = tmp[y*width+x]
		}
		boxPass(col, res, radius, line)
		for y := 0; y < height; y++ {
			out[y*width+x] = res[y]
		}
	}
	return out
}

// boxPass writes the windowed mean of src into dst using prefix sums
func boxPass(src, dst []float64, radius int, prefix []float64) {
	n := len(src)
	prefix[0] = 0
	for i, v := range src {
		prefix[i+1] = prefix[i] + v
	}
	for i := 0; i < n; i++ {
		lo := max(i-radius, 0)
		hi := min(i+radius, n-1)
		dst[i] = (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func fillRect(img *image.RGBA, x0, y0, size int, c color.RGBA) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			setPixel(img, x, y, c)
		}
	}
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				setPixel(img, cx+dx, cy+dy, c)
			}
		}
	}
}

// drawRobot draws a filled body with a heading tick. theta is in radians,
// counter-clockwise in world space, so image y is negated.
func drawRobot(img *image.RGBA, cx, cy, size int, theta float64, c color.RGBA) {
	radius := size / 2
	drawCircle(img, cx, cy, radius+1, color.RGBA{40, 40, 40, 255})
	drawCircle(img, cx, cy, radius, c)

	tip := Cell{
		X: cx + int(math.Round(float64(size)*math.Cos(theta))),
		Y: cy - int(math.Round(float64(size)*math.Sin(theta))),
	}
	walkLine(Cell{X: cx, Y: cy}, tip, func(p Cell) bool {
		setPixel(img, p.X, p.Y, color.RGBA{40, 40, 40, 255})
		return true
	})
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
