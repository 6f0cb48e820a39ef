package nav

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// NavigatorStatus summarizes what the navigator is doing
type NavigatorStatus int

const (
	StatusIdle NavigatorStatus = iota
	StatusFollowing
	StatusExplored // no reachable frontier left
	StatusBlocked  // planning failed for every candidate
)

func (s NavigatorStatus) String() string {
	switch s {
	case StatusFollowing:
		return "following"
	case StatusExplored:
		return "explored"
	case StatusBlocked:
		return "blocked"
	default:
		return "idle"
	}
}

// Navigator runs one control tick at a time: integrate the scan, pick a
// target when needed, plan to it and emit the follower command. Frontiers
// that cannot be reached are invalidated in the grid so they are not picked
// again.
type Navigator struct {
	cfg      *Config
	Grid     *GridMap
	Planner  *PathPlanner
	Follower *PathFollower

	mu        sync.RWMutex
	tick      int
	status    NavigatorStatus
	goal      *Point
	target    *Frontier
	targetPt  Point
	frontiers []*Frontier
	plan      *Plan

	mergesSeen uint64 // grid merge count when exploration last completed
}

// NewNavigator builds a grid, planner and follower from cfg
func NewNavigator(cfg *Config) (*Navigator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := NewGridMap(cfg.Grid)
	if err != nil {
		return nil, err
	}
	return &Navigator{
		cfg:      cfg,
		Grid:     grid,
		Planner:  NewPathPlanner(cfg.Planner),
		Follower: NewPathFollower(cfg.Follower),
	}, nil
}

// NavigateTo switches from exploration to an explicit world goal
func (n *Navigator) NavigateTo(goal Point) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.goal = &goal
	n.target = nil
	n.Follower.SetPath(nil)
}

// ClearGoal returns to frontier exploration
func (n *Navigator) ClearGoal() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.goal = nil
	n.status = StatusIdle
	n.Follower.SetPath(nil)
}

// Tick integrates one sensor sample and returns the steering command. An
// unavailable pose skips the map update and repeats the last command. A pose
// outside the grid stops the robot without touching any frontier.
func (n *Navigator) Tick(ctx context.Context, pose Pose, ranges, angles []float64) Command {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.tick++
	if !pose.Valid() {
		return n.Follower.Step(pose)
	}
	n.Grid.Update(pose, ranges, angles)

	if robot := n.Grid.WorldToGrid(pose.X, pose.Y); !n.Grid.InBounds(robot) {
		if n.status != StatusBlocked {
			log.Printf("Robot at (%.2f, %.2f) is outside the grid, holding", pose.X, pose.Y)
		}
		n.block()
		return n.Follower.Step(pose)
	}

	periodic := n.cfg.Navigator.ReplanInterval > 0 && n.tick%n.cfg.Navigator.ReplanInterval == 0
	if n.Follower.State() != FollowerFollowing || periodic {
		// A peer merge may have uncovered new frontiers.
		merged := n.Grid.MergeCount() != n.mergesSeen
		if n.status != StatusExplored || periodic || n.goal != nil || merged {
			n.replan(ctx, pose)
		}
	}
	return n.Follower.Step(pose)
}

func (n *Navigator) replan(ctx context.Context, pose Pose) {
	robot := n.Grid.WorldToGrid(pose.X, pose.Y)
	t := n.Grid.ToTernary()

	// A robot boxed in by obstacles says nothing about the target, so no
	// frontier is invalidated for it.
	if t.At(robot) == Obstacle {
		if _, ok := NearestPassable(t, robot, n.cfg.Planner.MaxInflation); !ok {
			log.Printf("Robot cell (%d, %d) is enclosed by obstacles, holding", robot.X, robot.Y)
			n.block()
			return
		}
	}

	if n.goal != nil {
		if n.Follower.Finished() {
			log.Printf("Reached goal (%.2f, %.2f)", n.goal.X, n.goal.Y)
			n.goal = nil
			n.status = StatusIdle
			n.Follower.SetPath(nil)
			return
		}
		goalCell := n.Grid.WorldToGrid(n.goal.X, n.goal.Y)
		plan, err := n.Planner.ComputeSafePath(ctx, t, robot, goalCell)
		if err != nil {
			log.Printf("Planning to goal (%.2f, %.2f) failed: %v", n.goal.X, n.goal.Y, err)
			n.status = StatusBlocked
			n.Follower.SetPath(nil)
			return
		}
		n.setPlan(plan, *n.goal)
		return
	}

	for attempt := 0; attempt < n.cfg.Navigator.MaxPlanAttempts; attempt++ {
		n.frontiers = ExtractFrontiers(t, n.cfg.Frontier.MinSize)
		f, centroid, ok := SelectTarget(n.frontiers, Point{X: float64(robot.X), Y: float64(robot.Y)})
		if !ok {
			if n.status != StatusExplored {
				log.Printf("No frontiers left after %d ticks, exploration complete", n.tick)
			}
			n.status = StatusExplored
			n.mergesSeen = n.Grid.MergeCount()
			n.target = nil
			n.Follower.SetPath(nil)
			return
		}

		// A frontier ringing the robot has its centroid under the robot.
		goal := f.CentroidCell()
		if goal == robot {
			if c, ok := f.NearestCell(robot); ok {
				goal = c
			}
		}

		plan, err := n.Planner.ComputeSafePath(ctx, t, robot, goal)
		if err == nil && len(plan.RawCells) > 1 {
			n.target = f
			n.setPlan(plan, n.Grid.GridToWorld(goal))
			return
		}
		if err != nil && !errors.Is(err, ErrNoPath) && !errors.Is(err, ErrInfeasibleEndpoint) {
			log.Printf("Planning to frontier at (%.1f, %.1f) aborted: %v", centroid.X, centroid.Y, err)
			n.status = StatusBlocked
			n.Follower.SetPath(nil)
			return
		}

		reason := "already at target"
		if err != nil {
			reason = err.Error()
		}
		cleared := n.Grid.InvalidateFrontier(f)
		log.Printf("Invalidating frontier of %d cells at (%.1f, %.1f): %s (%d cells pinned)",
			f.Size(), centroid.X, centroid.Y, reason, cleared)
		t = n.Grid.ToTernary()
	}

	n.status = StatusBlocked
	n.target = nil
	n.Follower.SetPath(nil)
}

func (n *Navigator) block() {
	n.status = StatusBlocked
	n.target = nil
	n.Follower.SetPath(nil)
}

func (n *Navigator) setPlan(plan *Plan, target Point) {
	n.plan = plan
	n.targetPt = target
	n.status = StatusFollowing
	n.Follower.SetPath(plan.WorldPath(n.Grid))
}

// Status returns the navigator status
func (n *Navigator) Status() NavigatorStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Ticks returns how many ticks have run
func (n *Navigator) Ticks() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.tick
}

// Target returns the current target in world coordinates
func (n *Navigator) Target() (Point, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.status != StatusFollowing {
		return Point{}, false
	}
	return n.targetPt, true
}

// Frontiers returns the frontiers found at the last selection
func (n *Navigator) Frontiers() []*Frontier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Frontier(nil), n.frontiers...)
}

// CurrentPlan returns the last successful plan, or nil
func (n *Navigator) CurrentPlan() *Plan {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.plan
}

// CurrentPath returns the world path being followed
func (n *Navigator) CurrentPath() Path {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append(Path(nil), n.Follower.Path()...)
}

// RunSimulation drives the navigator against a SimWorld for at most
// maxTicks ticks of dt seconds, stopping early once exploration completes.
// onTick, if non-nil, is called after every tick.
func RunSimulation(ctx context.Context, n *Navigator, w *SimWorld, rays int, dt float64, maxTicks int, onTick func(tick int, pose Pose, cmd Command)) (NavigatorStatus, error) {
	if rays <= 0 || dt <= 0 {
		return StatusIdle, fmt.Errorf("simulate: rays and dt must be positive")
	}
	for i := 0; i < maxTicks; i++ {
		if err := ctx.Err(); err != nil {
			return n.Status(), err
		}
		ranges, angles := w.Scan(rays, n.cfg.Grid.MaxRange)
		pose := w.Pose
		cmd := n.Tick(ctx, pose, ranges, angles)
		w.Apply(cmd, dt)
		if onTick != nil {
			onTick(i, pose, cmd)
		}
		if s := n.Status(); s == StatusExplored {
			return s, nil
		}
	}
	return n.Status(), nil
}
