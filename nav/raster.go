package nav

// walkLine visits every cell of the Bresenham line from a to b, both ends
// included, in order. Returning false from visit stops the walk early; the
// return value reports whether the walk reached b.
func walkLine(a, b Cell, visit func(c Cell) bool) bool {
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	err := dx + dy
	x, y := a.X, a.Y
	for {
		if !visit(Cell{X: x, Y: y}) {
			return false
		}
		if x == b.X && y == b.Y {
			return true
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// lineCells returns the Bresenham cells between a and b inclusive
func lineCells(a, b Cell) []Cell {
	n := max(absInt(b.X-a.X), absInt(b.Y-a.Y)) + 1
	cells := make([]Cell, 0, n)
	walkLine(a, b, func(c Cell) bool {
		cells = append(cells, c)
		return true
	})
	return cells
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
