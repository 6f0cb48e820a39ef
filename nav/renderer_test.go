package nav

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridRenderer_Render(t *testing.T) {
	g := newSmallGrid(t, 6, 5)
	r := NewGridRenderer()

	img := r.Render(g, Overlay{})
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())

	// Row 0 is at the bottom of the image.
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 19), "border cell is black")
	assert.Equal(t, color.RGBA{128, 128, 128, 255}, img.RGBAAt(2*4, 2*4), "undiscovered cell is mid grey")

	r.Ternary = true
	img = r.Render(g, Overlay{})
	assert.Equal(t, r.Colors.Obstacle, img.RGBAAt(0, 19))
	assert.Equal(t, r.Colors.Unknown, img.RGBAAt(2*4, 2*4))
}

func TestGridRenderer_Overlay(t *testing.T) {
	g := newSmallGrid(t, 20, 20)
	r := NewGridRenderer()
	r.Ternary = true

	frontier := NewFrontier([]Cell{{X: 3, Y: 3}})
	pose := g.GridToWorld(Cell{X: 15, Y: 15})
	img := r.Render(g, Overlay{
		Pose:      &Pose{X: pose.X, Y: pose.Y},
		Frontiers: []*Frontier{frontier},
		Label:     "bot-a explored t=3",
	})

	// Cell (3,3) spans x 12..15 and y (19-3)*4 = 64..67.
	assert.Equal(t, r.Colors.Frontier, img.RGBAAt(13, 65))

	// Robot body sits at the centre of cell (15,15); the heading tick runs along its row.
	cx, cy := 15*4+2, (19-15)*4+2
	assert.Equal(t, r.Colors.Robot, img.RGBAAt(cx, cy+2))
}

func TestGridRenderer_EncodeAndSavePNG(t *testing.T) {
	g := newSmallGrid(t, 8, 8)
	g.Update(Pose{}, []float64{2}, []float64{0})
	r := NewGridRenderer()
	r.BlurRadius = 1
	target := Point{X: 1, Y: 1}
	ov := Overlay{Path: Path{{X: 0, Y: 0}, {X: 1, Y: 1}}, Target: &target}

	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf, g, ov))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, r.SavePNG(path, g, ov))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, r.SavePNG(filepath.Join(t.TempDir(), "missing", "map.png"), g, ov))
}

func TestBoxBlur(t *testing.T) {
	got := BoxBlur([]float64{0, 3, 6}, 3, 1, 1)
	assert.InDeltaSlice(t, []float64{1.5, 3, 4.5}, got, 1e-12)

	// 3x3 with a single spike spreads evenly into the truncated windows.
	spike := []float64{
		0, 0, 0,
		0, 9, 0,
		0, 0, 0,
	}
	got = BoxBlur(spike, 3, 3, 1)
	assert.InDelta(t, 1.0, got[4], 1e-12)
	assert.InDelta(t, 9.0/4, got[0], 1e-12)
	assert.InDelta(t, 9.0/6, got[1], 1e-12)

	in := []float64{1, 2, 3, 4}
	out := BoxBlur(in, 2, 2, 0)
	assert.Equal(t, in, out)
	out[0] = 100
	assert.Equal(t, 1.0, in[0], "result never aliases the input")

	assert.Equal(t, []float64{1, 2}, BoxBlur([]float64{1, 2}, 3, 3, 1), "size mismatch returns a copy")
}
