package nav

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tdewolff/canvas"
)

type mockCanvas struct {
	mock.Mock
}

func (m *mockCanvas) RenderPath(path *canvas.Path, style canvas.Style, mat canvas.Matrix) {
	m.Called(path, style, mat)
}

// fillCount counts RenderPath calls whose fill matches c
func (m *mockCanvas) fillCount(c color.RGBA) int {
	n := 0
	for _, call := range m.Calls {
		if style, ok := call.Arguments.Get(1).(canvas.Style); ok && style.Fill.Color == c {
			n++
		}
	}
	return n
}

func partlyExploredGrid(t *testing.T) *GridMap {
	t.Helper()
	g := newSmallGrid(t, 20, 20)
	cfg := g.Config()
	values := g.Values()
	for y := 5; y <= 6; y++ {
		for x := 5; x <= 7; x++ {
			values[y*20+x] = cfg.MinValue
		}
	}
	require.NoError(t, g.Merge(values, 1))
	return g
}

func TestVectorRenderer_ViewBound(t *testing.T) {
	r := NewVectorRenderer()

	empty := newSmallGrid(t, 20, 20)
	full := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{20, 20}}
	assert.Equal(t, full, r.viewBound(empty, empty.ToTernary(), Overlay{}), "nothing discovered shows the whole grid")

	g := partlyExploredGrid(t)
	got := r.viewBound(g, g.ToTernary(), Overlay{})
	assert.Equal(t, orb.Bound{Min: orb.Point{3, 3}, Max: orb.Point{10, 9}}, got)

	// The robot pose widens the view and the padding is clipped at the grid edge.
	pose := g.GridToWorld(Cell{X: 18, Y: 1})
	got = r.viewBound(g, g.ToTernary(), Overlay{Pose: &Pose{X: pose.X, Y: pose.Y}})
	assert.Equal(t, orb.Bound{Min: orb.Point{3, 0}, Max: orb.Point{20, 9}}, got)

	r.FitToContent = false
	assert.Equal(t, full, r.viewBound(g, g.ToTernary(), Overlay{}))
}

func TestVectorRenderer_RenderToSVG(t *testing.T) {
	g := partlyExploredGrid(t)
	r := NewVectorRenderer()
	target := g.GridToWorld(Cell{X: 7, Y: 6})
	ov := Overlay{
		Pose:      &Pose{X: g.GridToWorld(Cell{X: 5, Y: 5}).X, Y: g.GridToWorld(Cell{X: 5, Y: 5}).Y},
		Path:      Path{g.GridToWorld(Cell{X: 5, Y: 5}), target},
		Target:    &target,
		Frontiers: []*Frontier{NewFrontier([]Cell{{X: 7, Y: 5}, {X: 7, Y: 6}})},
	}

	var buf bytes.Buffer
	require.NoError(t, r.RenderToSVG(&buf, g, ov))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "path")
}

func TestVectorRenderer_RenderToPNG(t *testing.T) {
	g := partlyExploredGrid(t)
	r := NewVectorRenderer()

	var buf bytes.Buffer
	require.NoError(t, r.RenderToPNG(&buf, g, Overlay{}))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
	assert.Greater(t, img.Bounds().Dy(), 0)
}

func TestVectorRenderer_DrawsRunsAndOverlay(t *testing.T) {
	g := partlyExploredGrid(t)
	r := NewVectorRenderer()
	r.FitToContent = false

	target := g.GridToWorld(Cell{X: 7, Y: 6})
	robot := g.GridToWorld(Cell{X: 6, Y: 5})
	ov := Overlay{
		Pose:      &Pose{X: robot.X, Y: robot.Y},
		Path:      Path{g.GridToWorld(Cell{X: 5, Y: 5}), target},
		Target:    &target,
		Frontiers: []*Frontier{NewFrontier([]Cell{{X: 8, Y: 5}, {X: 8, Y: 6}})},
	}

	m := &mockCanvas{}
	m.On("RenderPath", mock.Anything, mock.Anything, mock.Anything).Return()

	tern := g.ToTernary()
	view := r.viewBound(g, tern, ov)
	width, height := r.canvasSize(view)
	r.renderToCanvas(m, g, tern, ov, view, width, height)

	// background, 2 free runs, 38 border runs, 2 frontier cells, path, target, robot
	m.AssertNumberOfCalls(t, "RenderPath", 46)
	assert.Equal(t, 1, m.fillCount(r.Colors.Unknown))
	assert.Equal(t, 2, m.fillCount(r.Colors.Free))
	assert.Equal(t, 38, m.fillCount(r.Colors.Obstacle))
	assert.Equal(t, 2, m.fillCount(r.Colors.Frontier))
	assert.Equal(t, 1, m.fillCount(r.Colors.Target))
	assert.Equal(t, 1, m.fillCount(r.Colors.Robot))
}
