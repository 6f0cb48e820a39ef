package nav

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FollowerState is the state of a PathFollower
type FollowerState int

const (
	FollowerIdle FollowerState = iota // no path
	FollowerFollowing
	FollowerFinished
)

func (s FollowerState) String() string {
	switch s {
	case FollowerFollowing:
		return "following"
	case FollowerFinished:
		return "finished"
	default:
		return "idle"
	}
}

// PathFollower steers a robot along a path one waypoint at a time. It turns
// toward the current waypoint, corrects sideways drift off the segment from
// the previous waypoint, and advances when inside the arrival radius.
//
// A stalled robot is not detected here; that is the caller's concern.
type PathFollower struct {
	cfg FollowerConfig

	path     Path
	index    int
	finished bool

	last        Command
	hasPrev     bool
	prevHeading float64
	prevCross   float64
}

// NewPathFollower creates an idle follower
func NewPathFollower(cfg FollowerConfig) *PathFollower {
	return &PathFollower{cfg: cfg}
}

// SetPath replaces the current path and restarts from its first waypoint
func (f *PathFollower) SetPath(p Path) {
	f.path = append(Path(nil), p...)
	f.index = 0
	f.finished = false
	f.last = Command{}
	f.hasPrev = false
}

// Path returns the path being followed
func (f *PathFollower) Path() Path {
	return f.path
}

// Index returns the index of the waypoint currently steered toward
func (f *PathFollower) Index() int {
	return f.index
}

// Finished reports whether the last waypoint has been reached
func (f *PathFollower) Finished() bool {
	return f.finished
}

// State returns the follower state
func (f *PathFollower) State() FollowerState {
	switch {
	case len(f.path) == 0:
		return FollowerIdle
	case f.finished:
		return FollowerFinished
	default:
		return FollowerFollowing
	}
}

// Remaining returns the waypoints not yet reached
func (f *PathFollower) Remaining() Path {
	if f.finished || f.index >= len(f.path) {
		return nil
	}
	return f.path[f.index:]
}

// Step computes the command for the current tick. With no path, or once
// finished, it returns a zero command. With an unavailable pose it repeats
// the previous command.
func (f *PathFollower) Step(pose Pose) Command {
	if len(f.path) == 0 || f.finished {
		f.last = Command{}
		return f.last
	}
	if !pose.Valid() {
		return f.last
	}

	pos := r2.Vec{X: pose.X, Y: pose.Y}
	target := toVec(f.path[f.index])
	for r2.Norm(r2.Sub(target, pos)) < f.cfg.ArrivalRadius {
		if f.index == len(f.path)-1 {
			f.finished = true
			f.last = Command{}
			return f.last
		}
		f.index++
		f.hasPrev = false
		target = toVec(f.path[f.index])
	}

	toTarget := r2.Sub(target, pos)
	dist := r2.Norm(toTarget)
	headingErr := NormalizeAngle(math.Atan2(toTarget.Y, toTarget.X) - pose.Theta)

	// Signed distance from the segment line, positive to its left.
	crossTrack := 0.0
	pathAngle := math.Atan2(toTarget.Y, toTarget.X)
	if f.index > 0 {
		prev := toVec(f.path[f.index-1])
		seg := r2.Sub(target, prev)
		if r2.Norm(seg) > 0 {
			crossTrack = r2.Cross(r2.Unit(seg), r2.Sub(pos, prev))
			pathAngle = math.Atan2(seg.Y, seg.X)
		}
	}

	var dHeading, dCross float64
	if f.hasPrev {
		dHeading = NormalizeAngle(headingErr - f.prevHeading)
		dCross = crossTrack - f.prevCross
	}
	f.prevHeading, f.prevCross, f.hasPrev = headingErr, crossTrack, true

	rotation := f.cfg.HeadingP*headingErr + f.cfg.HeadingD*dHeading
	correction := -(f.cfg.CrossTrackP*crossTrack + f.cfg.CrossTrackD*dCross)
	lateral := correction * math.Cos(pathAngle-pose.Theta)
	forward := math.Min(f.cfg.ForwardGain*dist, 1) * math.Max(math.Cos(headingErr), 0)

	f.last = Command{
		Forward:  clamp(forward, -1, 1),
		Lateral:  clamp(lateral, -1, 1),
		Rotation: clamp(rotation, -1, 1),
	}
	return f.last
}

// NormalizeAngle wraps an angle in radians into (-pi, pi]
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

func toVec(p Point) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}
