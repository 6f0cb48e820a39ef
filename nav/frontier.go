package nav

import (
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// neighbors8 lists 8-connected offsets, cardinal first
var neighbors8 = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// Frontier is a connected region of cells on the boundary between free and
// undiscovered space. It is immutable once extracted.
type Frontier struct {
	cells []Cell

	once     sync.Once
	centroid Point
}

// NewFrontier wraps a set of cells. The slice is copied.
func NewFrontier(cells []Cell) *Frontier {
	c := make([]Cell, len(cells))
	copy(c, cells)
	return &Frontier{cells: c}
}

// Cells returns a copy of the frontier's cells
func (f *Frontier) Cells() []Cell {
	out := make([]Cell, len(f.cells))
	copy(out, f.cells)
	return out
}

// Size returns the number of cells
func (f *Frontier) Size() int {
	return len(f.cells)
}

// Centroid returns the mean cell position in grid coordinates. It is
// computed on first use.
func (f *Frontier) Centroid() Point {
	f.once.Do(func() {
		if len(f.cells) == 0 {
			return
		}
		var sx, sy float64
		for _, c := range f.cells {
			sx += float64(c.X)
			sy += float64(c.Y)
		}
		n := float64(len(f.cells))
		f.centroid = Point{X: sx / n, Y: sy / n}
	})
	return f.centroid
}

// CentroidCell returns the cell containing the centroid
func (f *Frontier) CentroidCell() Cell {
	c := f.Centroid()
	return Cell{X: int(math.Round(c.X)), Y: int(math.Round(c.Y))}
}

// NearestCell returns the frontier cell closest to the centroid, skipping
// exclude. ok is false when no other cell exists.
func (f *Frontier) NearestCell(exclude Cell) (Cell, bool) {
	centroid := f.Centroid()
	best, found := Cell{}, false
	bestDist := math.Inf(1)
	for _, c := range f.cells {
		if c == exclude {
			continue
		}
		d := math.Hypot(float64(c.X)-centroid.X, float64(c.Y)-centroid.Y)
		if d < bestDist {
			best, bestDist, found = c, d, true
		}
	}
	return best, found
}

// ExtractFrontiers finds every frontier of at least minSize cells.
//
// Each interior cell is compared with its right and lower neighbour; a
// Free/Undiscovered pair marks its Free cell. Marked cells must also see both
// a Free and an Undiscovered cell among their 8 neighbours. Marked cells are
// grouped by 8-connectivity. Frontiers are returned in row-major order of
// their first cell.
func ExtractFrontiers(t *TernaryGrid, minSize int) []*Frontier {
	if t == nil || t.Width < 3 || t.Height < 3 {
		return nil
	}

	mask := make([]bool, len(t.Cells))
	for y := 1; y < t.Height-1; y++ {
		for x := 1; x < t.Width-1; x++ {
			c := Cell{X: x, Y: y}
			s := t.At(c)
			for _, n := range [2]Cell{{X: x + 1, Y: y}, {X: x, Y: y + 1}} {
				ns := t.At(n)
				switch {
				case s == Free && ns == Undiscovered:
					mask[t.index(c)] = true
				case s == Undiscovered && ns == Free && isInterior(t, n):
					mask[t.index(n)] = true
				}
			}
		}
	}

	for i, marked := range mask {
		if marked && !touchesBoth(t, t.cellAt(i)) {
			mask[i] = false
		}
	}

	var frontiers []*Frontier
	visited := make([]bool, len(mask))
	for i, marked := range mask {
		if !marked || visited[i] {
			continue
		}
		component := floodComponent(t, mask, visited, t.cellAt(i))
		if len(component) >= minSize {
			frontiers = append(frontiers, &Frontier{cells: component})
		}
	}
	return frontiers
}

func isInterior(t *TernaryGrid, c Cell) bool {
	return c.X > 0 && c.Y > 0 && c.X < t.Width-1 && c.Y < t.Height-1
}

// touchesBoth reports whether c has a Free and an Undiscovered 8-neighbour
func touchesBoth(t *TernaryGrid, c Cell) bool {
	free, unknown := false, false
	for _, n := range neighbors8 {
		switch t.At(Cell{X: c.X + n[0], Y: c.Y + n[1]}) {
		case Free:
			free = true
		case Undiscovered:
			unknown = true
		}
		if free && unknown {
			return true
		}
	}
	return false
}

// floodComponent collects the 8-connected component of mask containing start
func floodComponent(t *TernaryGrid, mask, visited []bool, start Cell) []Cell {
	var component []Cell
	queue := []Cell{start}
	visited[t.index(start)] = true

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		component = append(component, c)

		for _, n := range neighbors8 {
			nc := Cell{X: c.X + n[0], Y: c.Y + n[1]}
			if !t.InBounds(nc) {
				continue
			}
			j := t.index(nc)
			if mask[j] && !visited[j] {
				visited[j] = true
				queue = append(queue, nc)
			}
		}
	}
	return component
}

// FrontierScore ranks a frontier for a robot at the given grid position.
// Lower is better: near and large frontiers win.
func FrontierScore(f *Frontier, robot Point) float64 {
	c := f.Centroid()
	d := planar.Distance(orb.Point{c.X, c.Y}, orb.Point{robot.X, robot.Y})
	s := float64(f.Size() + 1)
	return d / (s * s)
}

// SelectTarget returns the best-scoring frontier and its centroid in grid
// coordinates. ok is false when there is no frontier left, meaning the
// reachable space is fully explored. Ties go to the earlier frontier.
func SelectTarget(frontiers []*Frontier, robot Point) (best *Frontier, centroid Point, ok bool) {
	bestScore := math.Inf(1)
	for _, f := range frontiers {
		if f == nil || f.Size() == 0 {
			continue
		}
		if s := FrontierScore(f, robot); s < bestScore {
			bestScore = s
			best = f
		}
	}
	if best == nil {
		return nil, Point{}, false
	}
	return best, best.Centroid(), true
}
