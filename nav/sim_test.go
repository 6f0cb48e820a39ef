package nav

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimWorld(t *testing.T) {
	w, err := ParseSimWorld("####\n#R.#\n####\n", 1)
	require.NoError(t, err)

	assert.Equal(t, 4, w.Width)
	assert.Equal(t, 3, w.Height)
	assert.Equal(t, Pose{X: -0.5, Y: 0}, w.Pose)
	assert.True(t, w.Occupied(Point{X: -1.5, Y: 0}))
	assert.False(t, w.Occupied(Point{X: 0.5, Y: 0}))
	assert.True(t, w.Occupied(Point{X: 50, Y: 0}), "outside the map is wall")
}

func TestParseSimWorld_ShortLinesAreWalls(t *testing.T) {
	w, err := ParseSimWorld("#####\n#R\n#####", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, w.Width)
	assert.True(t, w.Occupied(w.cellCenter(3, 1)))
}

func TestParseSimWorld_Errors(t *testing.T) {
	_, err := ParseSimWorld("", 1)
	assert.Error(t, err)

	_, err = ParseSimWorld("#x#", 1)
	assert.ErrorContains(t, err, "unknown map character")

	_, err = ParseSimWorld("###", 0)
	assert.Error(t, err)
}

func TestParseSimWorld_DefaultMap(t *testing.T) {
	w, err := ParseSimWorld(DefaultWorldMap, 0.25)
	require.NoError(t, err)
	assert.Equal(t, 40, w.Width)
	assert.Equal(t, 20, w.Height)
	assert.False(t, w.Occupied(w.Pose.Position()))
}

func TestLoadSimWorld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.txt")
	require.NoError(t, os.WriteFile(path, []byte("#####\n#.R.#\n#####\n"), 0644))

	w, err := LoadSimWorld(path, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.5, w.Resolution)

	_, err = LoadSimWorld(filepath.Join(t.TempDir(), "missing.txt"), 0.5)
	assert.Error(t, err)
}

func TestSimWorld_Scan(t *testing.T) {
	w, err := ParseSimWorld("####\n#R.#\n####\n", 1)
	require.NoError(t, err)

	ranges, angles := w.Scan(4, 10)
	require.Len(t, ranges, 4)
	require.Len(t, angles, 4)
	assert.Equal(t, 0.0, angles[0])

	// Rays march in quarter-cell steps and stop inside the first wall cell.
	assert.InDelta(t, 1.5, ranges[0], 1e-6, "+x")
	assert.InDelta(t, 0.5, ranges[1], 1e-6, "+y")
	assert.InDelta(t, 0.75, ranges[2], 1e-6, "-x")
	assert.InDelta(t, 0.75, ranges[3], 1e-6, "-y")

	ranges, _ = w.Scan(4, 0.2)
	for _, r := range ranges {
		assert.LessOrEqual(t, r, 0.2)
	}

	ranges, angles = w.Scan(0, 10)
	assert.Nil(t, ranges)
	assert.Nil(t, angles)
}

func TestSimWorld_Apply(t *testing.T) {
	w := NewSimWorld(10, 10, 1)

	w.Apply(Command{Forward: 1}, 1)
	assert.InDelta(t, 0.5, w.Pose.X, 1e-12)
	assert.InDelta(t, 0, w.Pose.Y, 1e-12)

	w.Apply(Command{Rotation: 1}, 0.5)
	assert.InDelta(t, 1.0, w.Pose.Theta, 1e-12)
	assert.InDelta(t, 0.5, w.Pose.X, 1e-12)

	w.Pose = Pose{}
	w.Apply(Command{Lateral: 2}, 1)
	assert.InDelta(t, 0.5, w.Pose.Y, 1e-12, "lateral is clamped and points left")
}

func TestSimWorld_StallsAtWalls(t *testing.T) {
	w := NewSimWorld(10, 10, 1)
	w.SetOccupied(w.cellOf(Point{X: 1.2, Y: 0}), true)

	w.Apply(Command{Forward: 1}, 2)
	assert.Equal(t, 0.0, w.Pose.X, "move into a wall is dropped")
}

func TestSimWorld_GridConfigFor(t *testing.T) {
	w := NewSimWorld(30, 20, 0.05)
	cfg := w.GridConfigFor(DefaultConfig().Grid)
	assert.Equal(t, 30, cfg.Width)
	assert.Equal(t, 20, cfg.Height)
	assert.Equal(t, 0.05, cfg.Resolution)
	assert.NoError(t, cfg.Validate())

	g, err := NewGridMap(cfg)
	require.NoError(t, err)
	c := Cell{X: 7, Y: 12}
	assert.Equal(t, w.cellCenter(c.X, c.Y), g.GridToWorld(c), "world and grid share a frame")
}
