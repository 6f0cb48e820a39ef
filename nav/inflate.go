package nav

import "math"

// Inflate returns a copy of t where every Obstacle cell has been dilated by
// radius cells in a square (Chebyshev) neighbourhood. Non-obstacle cells keep
// their state unless they become Obstacle. radius <= 0 returns a plain copy.
//
// The dilation is separable: a horizontal then a vertical running-window
// count, so the cost does not depend on radius.
func Inflate(t *TernaryGrid, radius int) *TernaryGrid {
	out := t.Clone()
	if radius <= 0 {
		return out
	}

	w, h := t.Width, t.Height
	horiz := make([]bool, len(t.Cells))

	prefix := make([]int, max(w, h)+1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x]
			if t.Cells[y*w+x] == Obstacle {
				prefix[x+1]++
			}
		}
		for x := 0; x < w; x++ {
			lo, hi := max(x-radius, 0), min(x+radius, w-1)
			horiz[y*w+x] = prefix[hi+1]-prefix[lo] > 0
		}
	}

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			prefix[y+1] = prefix[y]
			if horiz[y*w+x] {
				prefix[y+1]++
			}
		}
		for y := 0; y < h; y++ {
			lo, hi := max(y-radius, 0), min(y+radius, h-1)
			if prefix[hi+1]-prefix[lo] > 0 {
				out.Cells[y*w+x] = Obstacle
			}
		}
	}
	return out
}

// NearestPassable searches square rings of growing radius around c, up to
// maxRadius, for a passable in-bounds cell. Within a ring the cell nearest to
// c in Euclidean distance wins, ties in row-major order.
func NearestPassable(t *TernaryGrid, c Cell, maxRadius int) (Cell, bool) {
	if t.InBounds(c) && t.Passable(c) {
		return c, true
	}
	for r := 1; r <= maxRadius; r++ {
		best, found := Cell{}, false
		bestDist := math.Inf(1)
		for y := c.Y - r; y <= c.Y+r; y++ {
			for x := c.X - r; x <= c.X+r; x++ {
				if absInt(x-c.X) != r && absInt(y-c.Y) != r {
					continue
				}
				n := Cell{X: x, Y: y}
				if !t.InBounds(n) || !t.Passable(n) {
					continue
				}
				d := math.Hypot(float64(x-c.X), float64(y-c.Y))
				if d < bestDist {
					bestDist = d
					best = n
					found = true
				}
			}
		}
		if found {
			return best, true
		}
	}
	return c, false
}
