package nav

import (
	"fmt"
	"math"
	"sync"
)

// GridMap is a probabilistic occupancy grid. Each cell holds a log-odds
// style confidence: negative leans free, positive leans occupied. All
// mutation goes through Update, Merge and the invalidation methods.
//
// GridMap is safe for concurrent use. The owning agent calls Update from its
// control tick while Merge may arrive from a transport goroutine.
type GridMap struct {
	mu     sync.RWMutex
	cfg    GridConfig
	values []float64
	pinned []bool // border and invalidated cells; never changed again
	merges uint64
}

// NewGridMap creates a grid with every interior cell at 0 (undiscovered) and
// the border pinned to MaxValue so that no route can leave the mapped area.
func NewGridMap(cfg GridConfig) (*GridMap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new grid map: %w", err)
	}

	n := cfg.Width * cfg.Height
	g := &GridMap{
		cfg:    cfg,
		values: make([]float64, n),
		pinned: make([]bool, n),
	}
	g.resetLocked()
	return g, nil
}

func (g *GridMap) resetLocked() {
	initial := clamp(0, g.cfg.MinValue, g.cfg.MaxValue)
	for y := 0; y < g.cfg.Height; y++ {
		for x := 0; x < g.cfg.Width; x++ {
			i := y*g.cfg.Width + x
			if g.isBorder(x, y) {
				g.values[i] = g.cfg.MaxValue
				g.pinned[i] = true
			} else {
				g.values[i] = initial
				g.pinned[i] = false
			}
		}
	}
}

// Reset discards everything learned so far, including invalidated cells
func (g *GridMap) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetLocked()
}

// Config returns the grid parameters
func (g *GridMap) Config() GridConfig {
	return g.cfg
}

// Width returns the grid width in cells
func (g *GridMap) Width() int { return g.cfg.Width }

// Height returns the grid height in cells
func (g *GridMap) Height() int { return g.cfg.Height }

// Resolution returns the world size of one cell
func (g *GridMap) Resolution() float64 { return g.cfg.Resolution }

// WorldToGrid returns the cell containing the world point (x, y). The world
// origin sits at the centre of the grid. The result may be out of bounds.
func (g *GridMap) WorldToGrid(x, y float64) Cell {
	return Cell{
		X: int(math.Floor(x/g.cfg.Resolution + float64(g.cfg.Width)/2)),
		Y: int(math.Floor(y/g.cfg.Resolution + float64(g.cfg.Height)/2)),
	}
}

// GridToWorld returns the world position of the centre of c
func (g *GridMap) GridToWorld(c Cell) Point {
	return Point{
		X: (float64(c.X) - float64(g.cfg.Width)/2 + 0.5) * g.cfg.Resolution,
		Y: (float64(c.Y) - float64(g.cfg.Height)/2 + 0.5) * g.cfg.Resolution,
	}
}

// InBounds reports whether c lies inside the grid
func (g *GridMap) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.cfg.Width && c.Y >= 0 && c.Y < g.cfg.Height
}

func (g *GridMap) isBorder(x, y int) bool {
	return x == 0 || y == 0 || x == g.cfg.Width-1 || y == g.cfg.Height-1
}

// Update integrates one range scan taken at pose. ranges and angles are
// parallel; angles are relative to the robot heading. Samples that are not
// finite or negative are skipped. An unavailable pose or an empty scan leaves
// the grid untouched. Update returns the number of rays applied.
func (g *GridMap) Update(pose Pose, ranges, angles []float64) int {
	if !pose.Valid() {
		return 0
	}
	n := min(len(ranges), len(angles))
	if n == 0 {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	origin := g.WorldToGrid(pose.X, pose.Y)
	applied := 0

	for i := 0; i < n; i++ {
		dist, rel := ranges[i], angles[i]
		if !isFinite(dist) || !isFinite(rel) || dist < 0 {
			continue
		}
		applied++

		angle := pose.Theta + rel
		cos, sin := math.Cos(angle), math.Sin(angle)

		hit := dist < g.cfg.MaxRange
		var hitCell Cell
		if hit {
			hitCell = g.WorldToGrid(pose.X+dist*cos, pose.Y+dist*sin)
		}

		empty := math.Max(math.Min(dist, g.cfg.MaxRange)-g.cfg.NearMargin, 0)
		end := g.WorldToGrid(pose.X+empty*cos, pose.Y+empty*sin)

		walkLine(origin, end, func(c Cell) bool {
			if !hit || c != hitCell {
				g.addLocked(c, g.cfg.FreeIncrement)
			}
			return true
		})

		if hit {
			g.addLocked(hitCell, g.cfg.OccupiedIncrement)
		}
	}

	g.addLocked(origin, g.cfg.RobotIncrement)

	for i, v := range g.values {
		g.values[i] = clamp(v, g.cfg.MinValue, g.cfg.MaxValue)
	}
	return applied
}

func (g *GridMap) addLocked(c Cell, delta float64) {
	if !g.InBounds(c) {
		return
	}
	i := c.Y*g.cfg.Width + c.X
	if g.pinned[i] {
		return
	}
	g.values[i] += delta
}

// ToTernary classifies every cell into Free, Obstacle or Undiscovered
func (g *GridMap) ToTernary() *TernaryGrid {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t := &TernaryGrid{
		Width:  g.cfg.Width,
		Height: g.cfg.Height,
		Cells:  make([]CellState, len(g.values)),
	}
	for i, v := range g.values {
		t.Cells[i] = g.classify(v)
	}
	return t
}

func (g *GridMap) classify(v float64) CellState {
	switch {
	case v >= g.cfg.ObstacleThreshold:
		return Obstacle
	case v <= g.cfg.FreeThreshold:
		return Free
	default:
		return Undiscovered
	}
}

// Merge blends a peer's grid into this one:
//
//	grid = grid*(1-confidence) + other*confidence
//
// confidence is clamped to [0, 1]. Non-finite peer values and pinned cells
// are left as they are. The write lock is held only for the blend.
func (g *GridMap) Merge(other []float64, confidence float64) error {
	if len(other) != len(g.values) {
		return fmt.Errorf("merge: peer grid has %d cells, want %d", len(other), len(g.values))
	}
	if !isFinite(confidence) {
		return fmt.Errorf("merge: confidence %v is not finite", confidence)
	}
	c := clamp(confidence, 0, 1)

	g.mu.Lock()
	defer g.mu.Unlock()

	for i, o := range other {
		if g.pinned[i] || !isFinite(o) {
			continue
		}
		g.values[i] = clamp(g.values[i]*(1-c)+o*c, g.cfg.MinValue, g.cfg.MaxValue)
	}
	g.merges++
	return nil
}

// MergeCount returns how many merges have been applied
func (g *GridMap) MergeCount() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.merges
}

// InvalidateCells pins the given cells at MaxValue so they read as obstacles
// from now on. It returns how many cells changed.
func (g *GridMap) InvalidateCells(cells []Cell) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	changed := 0
	for _, c := range cells {
		if !g.InBounds(c) {
			continue
		}
		i := c.Y*g.cfg.Width + c.X
		if g.pinned[i] {
			continue
		}
		g.values[i] = g.cfg.MaxValue
		g.pinned[i] = true
		changed++
	}
	return changed
}

// InvalidateFrontier permanently marks an unreachable frontier as obstacle so
// that it is never selected again.
func (g *GridMap) InvalidateFrontier(f *Frontier) int {
	if f == nil {
		return 0
	}
	return g.InvalidateCells(f.Cells())
}

// Value returns the raw confidence of c, or MaxValue outside the grid
func (g *GridMap) Value(c Cell) float64 {
	if !g.InBounds(c) {
		return g.cfg.MaxValue
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.values[c.Y*g.cfg.Width+c.X]
}

// Values returns a copy of the raw grid, row-major
func (g *GridMap) Values() []float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]float64, len(g.values))
	copy(out, g.values)
	return out
}
