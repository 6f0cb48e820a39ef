package nav

import (
	"container/heap"
	"context"
	"errors"
	"math"
)

var (
	// ErrInfeasibleEndpoint is returned when the start or goal cell is out of
	// bounds or blocked. No search is attempted.
	ErrInfeasibleEndpoint = errors.New("start or goal is blocked or out of bounds")

	// ErrNoPath is returned when the goal is unreachable
	ErrNoPath = errors.New("no path found")

	// ErrSearchExhausted is returned when A* hits its expansion cap
	ErrSearchExhausted = errors.New("search iteration limit reached")
)

// ctxCheckInterval is how many expansions run between context checks
const ctxCheckInterval = 1024

// OctileDistance is the exact cost of an unobstructed 8-connected route
// with unit straight moves and sqrt(2) diagonal moves.
func OctileDistance(a, b Cell) float64 {
	dx := float64(absInt(a.X - b.X))
	dy := float64(absInt(a.Y - b.Y))
	return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
}

// StepCost returns the cost of moving between two 8-adjacent cells
func StepCost(a, b Cell) float64 {
	if a.X != b.X && a.Y != b.Y {
		return math.Sqrt2
	}
	return 1
}

// PathCost sums the step costs along a cell path
func PathCost(cells []Cell) float64 {
	total := 0.0
	for i := 1; i < len(cells); i++ {
		total += StepCost(cells[i-1], cells[i])
	}
	return total
}

type openNode struct {
	index int
	f     float64
	seq   int // discovery order, breaks ties in f
}

type openSet []openNode

func (o openSet) Len() int { return len(o) }
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].seq < o[j].seq
}
func (o openSet) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openSet) Push(x any)   { *o = append(*o, x.(openNode)) }
func (o *openSet) Pop() any {
	old := *o
	n := old[len(old)-1]
	*o = old[:len(old)-1]
	return n
}

// canStep reports whether a move from c by (dx, dy) is allowed. Diagonal
// moves may not squeeze between two blocked orthogonal cells or clip one.
func canStep(t *TernaryGrid, c Cell, dx, dy int) bool {
	n := Cell{X: c.X + dx, Y: c.Y + dy}
	if !t.Passable(n) {
		return false
	}
	if dx != 0 && dy != 0 {
		if !t.Passable(Cell{X: c.X + dx, Y: c.Y}) || !t.Passable(Cell{X: c.X, Y: c.Y + dy}) {
			return false
		}
	}
	return true
}

// AStar finds a least-cost 8-connected route from start to goal over the
// passable cells of t. The returned path includes both endpoints. When
// maxIterations > 0 the search gives up after that many expansions.
func AStar(ctx context.Context, t *TernaryGrid, start, goal Cell, maxIterations int) ([]Cell, error) {
	if !t.InBounds(start) || !t.InBounds(goal) || !t.Passable(start) || !t.Passable(goal) {
		return nil, ErrInfeasibleEndpoint
	}
	if start == goal {
		return []Cell{start}, nil
	}

	n := len(t.Cells)
	gScore := make([]float64, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int32, n)
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	closed := make([]bool, n)

	si, gi := t.index(start), t.index(goal)
	gScore[si] = 0

	seq := 0
	open := &openSet{{index: si, f: OctileDistance(start, goal), seq: seq}}

	expansions := 0
	for open.Len() > 0 {
		cur := heap.Pop(open).(openNode)
		if closed[cur.index] {
			continue
		}
		if cur.index == gi {
			return reconstructCells(t, cameFrom, gi), nil
		}
		closed[cur.index] = true

		expansions++
		if maxIterations > 0 && expansions > maxIterations {
			return nil, ErrSearchExhausted
		}
		if expansions%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		c := t.cellAt(cur.index)
		for _, d := range neighbors8 {
			if !canStep(t, c, d[0], d[1]) {
				continue
			}
			nc := Cell{X: c.X + d[0], Y: c.Y + d[1]}
			ni := t.index(nc)
			if closed[ni] {
				continue
			}
			tentative := gScore[cur.index] + StepCost(c, nc)
			if tentative < gScore[ni] {
				gScore[ni] = tentative
				cameFrom[ni] = int32(cur.index)
				seq++
				heap.Push(open, openNode{index: ni, f: tentative + OctileDistance(nc, goal), seq: seq})
			}
		}
	}
	return nil, ErrNoPath
}

func reconstructCells(t *TernaryGrid, cameFrom []int32, goal int) []Cell {
	var rev []Cell
	for i := goal; i >= 0; i = int(cameFrom[i]) {
		rev = append(rev, t.cellAt(i))
	}
	out := make([]Cell, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}
