package nav

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
)

// SimplifyCells reduces a raw grid route in three passes: collinear removal,
// line-of-sight shortcutting against t, then Ramer-Douglas-Peucker with
// tolerance epsilon (in cells). The first and last cells are always kept and
// no segment of the result crosses a blocked cell of t.
func SimplifyCells(t *TernaryGrid, cells []Cell, epsilon float64) []Cell {
	out := RemoveCollinear(cells)
	out = ShortcutLineOfSight(t, out)
	return SimplifyRDP(t, out, epsilon)
}

// RemoveCollinear drops cells that continue in the same direction as the
// step before them.
func RemoveCollinear(cells []Cell) []Cell {
	if len(cells) < 3 {
		return append([]Cell(nil), cells...)
	}
	out := []Cell{cells[0]}
	running := direction(cells[0], cells[1])
	for i := 1; i < len(cells)-1; i++ {
		next := direction(cells[i], cells[i+1])
		if next != running {
			out = append(out, cells[i])
			running = next
		}
	}
	return append(out, cells[len(cells)-1])
}

// direction returns the step from a to b reduced to lowest terms
func direction(a, b Cell) Cell {
	dx, dy := b.X-a.X, b.Y-a.Y
	g := gcd(absInt(dx), absInt(dy))
	if g == 0 {
		return Cell{}
	}
	return Cell{X: dx / g, Y: dy / g}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LineOfSight reports whether the straight Bresenham line from a to b stays
// on passable cells without cutting a blocked corner.
func LineOfSight(t *TernaryGrid, a, b Cell) bool {
	prev := a
	first := true
	return walkLine(a, b, func(c Cell) bool {
		if !t.Passable(c) {
			return false
		}
		if !first && !canStep(t, prev, c.X-prev.X, c.Y-prev.Y) {
			return false
		}
		first = false
		prev = c
		return true
	})
}

// ShortcutLineOfSight greedily connects each kept waypoint to the farthest
// later waypoint it can see, keeping only the waypoints where the line of
// sight breaks.
func ShortcutLineOfSight(t *TernaryGrid, cells []Cell) []Cell {
	if len(cells) < 3 {
		return append([]Cell(nil), cells...)
	}
	out := []Cell{cells[0]}
	anchor := 0
	last := len(cells) - 1
	for anchor < last {
		next := anchor + 1
		for j := last; j > anchor+1; j-- {
			if LineOfSight(t, cells[anchor], cells[j]) {
				next = j
				break
			}
		}
		out = append(out, cells[next])
		anchor = next
	}
	return out
}

// SimplifyRDP applies Douglas-Peucker with tolerance epsilon. Any chord the
// simplifier creates that is blocked in t is replaced by the original
// waypoints it skipped.
func SimplifyRDP(t *TernaryGrid, cells []Cell, epsilon float64) []Cell {
	if len(cells) < 3 {
		return append([]Cell(nil), cells...)
	}

	ls := make(orb.LineString, len(cells))
	for i, c := range cells {
		ls[i] = orb.Point{float64(c.X), float64(c.Y)}
	}
	simplified, ok := simplify.DouglasPeucker(epsilon).Simplify(ls.Clone()).(orb.LineString)
	if !ok || len(simplified) < 2 {
		return append([]Cell(nil), cells...)
	}

	// Map the kept points back to their original indices.
	kept := make([]int, 0, len(simplified))
	j := 0
	for _, p := range simplified {
		for j < len(cells) && (float64(cells[j].X) != p[0] || float64(cells[j].Y) != p[1]) {
			j++
		}
		if j == len(cells) {
			return append([]Cell(nil), cells...)
		}
		kept = append(kept, j)
		j++
	}
	if kept[0] != 0 || kept[len(kept)-1] != len(cells)-1 {
		return append([]Cell(nil), cells...)
	}

	out := []Cell{cells[0]}
	for k := 1; k < len(kept); k++ {
		a, b := kept[k-1], kept[k]
		if b-a > 1 && !LineOfSight(t, cells[a], cells[b]) {
			out = append(out, cells[a+1:b]...)
		}
		out = append(out, cells[b])
	}
	return out
}
