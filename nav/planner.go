package nav

import (
	"context"
	"errors"
	"fmt"
)

// Plan is the result of a successful ComputeSafePath call
type Plan struct {
	Cells     []Cell // simplified waypoints
	RawCells  []Cell // A* route before simplification
	Inflation int    // obstacle inflation the route was found with
	Start     Cell   // start actually used after relocation
	Goal      Cell   // goal actually used after relocation
	Map       *TernaryGrid
}

// Cost returns the step cost of the raw A* route
func (p *Plan) Cost() float64 {
	return PathCost(p.RawCells)
}

// WorldPath converts the simplified waypoints to world coordinates
func (p *Plan) WorldPath(g *GridMap) Path {
	out := make(Path, len(p.Cells))
	for i, c := range p.Cells {
		out[i] = g.GridToWorld(c)
	}
	return out
}

// PathPlanner finds routes that keep the largest possible clearance from
// obstacles.
type PathPlanner struct {
	cfg PlannerConfig
}

// NewPathPlanner creates a planner
func NewPathPlanner(cfg PlannerConfig) *PathPlanner {
	return &PathPlanner{cfg: cfg}
}

// Config returns the planner parameters
func (p *PathPlanner) Config() PlannerConfig {
	return p.cfg
}

// ComputeSafePath plans from start to goal on t. It first tries the map with
// obstacles inflated by MaxInflation cells and relaxes one cell at a time
// down to no inflation, returning the first route found. At inflation k a
// start or goal swallowed by the inflated obstacles is moved to the nearest
// passable cell within MaxInflation-k cells.
//
// Errors: ErrInfeasibleEndpoint when start or goal is outside the grid,
// ErrNoPath when every inflation level fails, ErrSearchExhausted when the
// expansion cap is hit, or the context error.
func (p *PathPlanner) ComputeSafePath(ctx context.Context, t *TernaryGrid, start, goal Cell) (*Plan, error) {
	if t == nil || !t.InBounds(start) || !t.InBounds(goal) {
		return nil, ErrInfeasibleEndpoint
	}

	maxInflation := max(p.cfg.MaxInflation, 0)
	for inflation := maxInflation; inflation >= 0; inflation-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inflated := Inflate(t, inflation)
		radius := maxInflation - inflation

		s, ok := NearestPassable(inflated, start, radius)
		if !ok {
			continue
		}
		g, ok := NearestPassable(inflated, goal, radius)
		if !ok {
			continue
		}

		raw, err := AStar(ctx, inflated, s, g, p.cfg.MaxIterations)
		if err != nil {
			if errors.Is(err, ErrNoPath) || errors.Is(err, ErrInfeasibleEndpoint) {
				continue
			}
			return nil, fmt.Errorf("plan at inflation %d: %w", inflation, err)
		}

		return &Plan{
			Cells:     SimplifyCells(inflated, raw, p.cfg.RDPEpsilon),
			RawCells:  raw,
			Inflation: inflation,
			Start:     s,
			Goal:      g,
			Map:       inflated,
		}, nil
	}
	return nil, ErrNoPath
}

// PlanWorld snapshots g and plans between two world positions
func (p *PathPlanner) PlanWorld(ctx context.Context, g *GridMap, from, to Point) (Path, *Plan, error) {
	t := g.ToTernary()
	plan, err := p.ComputeSafePath(ctx, t, g.WorldToGrid(from.X, from.Y), g.WorldToGrid(to.X, to.Y))
	if err != nil {
		return nil, nil, err
	}
	return plan.WorldPath(g), plan, nil
}
