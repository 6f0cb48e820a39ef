package nav

// TernaryGrid is a read-only classification snapshot of a GridMap. It is a
// copy; later grid updates never change it.
type TernaryGrid struct {
	Width  int
	Height int
	Cells  []CellState // row-major, Cells[y*Width+x]
}

// NewTernaryGrid creates a grid with every cell set to the given state
func NewTernaryGrid(width, height int, fill CellState) *TernaryGrid {
	t := &TernaryGrid{
		Width:  width,
		Height: height,
		Cells:  make([]CellState, width*height),
	}
	if fill != Undiscovered {
		for i := range t.Cells {
			t.Cells[i] = fill
		}
	}
	return t
}

// InBounds reports whether c lies inside the grid
func (t *TernaryGrid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < t.Width && c.Y >= 0 && c.Y < t.Height
}

// At returns the state of c; cells outside the grid read as Obstacle
func (t *TernaryGrid) At(c Cell) CellState {
	if !t.InBounds(c) {
		return Obstacle
	}
	return t.Cells[c.Y*t.Width+c.X]
}

// Set changes the state of c. It exists for building fixtures and derived
// maps; snapshots handed out by GridMap are never written to.
func (t *TernaryGrid) Set(c Cell, s CellState) {
	if t.InBounds(c) {
		t.Cells[c.Y*t.Width+c.X] = s
	}
}

// Passable reports whether a robot may occupy c. Undiscovered space is
// passable so routes can lead into frontiers.
func (t *TernaryGrid) Passable(c Cell) bool {
	return t.At(c) != Obstacle
}

// Clone returns a deep copy
func (t *TernaryGrid) Clone() *TernaryGrid {
	cells := make([]CellState, len(t.Cells))
	copy(cells, t.Cells)
	return &TernaryGrid{Width: t.Width, Height: t.Height, Cells: cells}
}

// Count returns how many cells have the given state
func (t *TernaryGrid) Count(s CellState) int {
	n := 0
	for _, v := range t.Cells {
		if v == s {
			n++
		}
	}
	return n
}

func (t *TernaryGrid) index(c Cell) int {
	return c.Y*t.Width + c.X
}

func (t *TernaryGrid) cellAt(i int) Cell {
	return Cell{X: i % t.Width, Y: i / t.Width}
}
