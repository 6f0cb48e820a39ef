package nav

import (
	"fmt"
	"math"
	"os"
	"strings"
)

// DefaultWorldMap is a small two-room layout used by --simulate when no world
// file is given. '#' is a wall, '.' is floor, 'R' is the robot start.
const DefaultWorldMap = `
########################################
#..................#...................#
#..................#...................#
#..................#...................#
#..................#.......#####.......#
#..................#.......#...........#
#..........................#...........#
#..........................#...........#
#..................#.......#...........#
#..................#...................#
#..................#...................#
#########.##########...................#
#..................#...................#
#..................#.......#############
#..................#...................#
#.........R............................#
#..................#...................#
#..................#...................#
#..................#...................#
########################################
`

// SimWorld is a deterministic kinematic stand-in for the physics engine. It
// holds a ground-truth occupancy map, answers range scans by ray marching and
// integrates steering commands without dynamics.
type SimWorld struct {
	Resolution  float64
	Width       int
	Height      int
	Pose        Pose
	MaxSpeed    float64 // world units per second at |command| = 1
	MaxTurnRate float64 // radians per second at |rotation| = 1

	occupied []bool
}

// NewSimWorld creates an empty world of the given size in cells. The world
// uses the same centred coordinate frame as GridMap.
func NewSimWorld(width, height int, resolution float64) *SimWorld {
	return &SimWorld{
		Resolution:  resolution,
		Width:       width,
		Height:      height,
		MaxSpeed:    0.5,
		MaxTurnRate: 2.0,
		occupied:    make([]bool, width*height),
	}
}

// ParseSimWorld builds a world from an ASCII map. The first line is the top
// row (largest Y). Lines may differ in length; missing cells are walls.
func ParseSimWorld(text string, resolution float64) (*SimWorld, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("parse world: resolution must be positive")
	}
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r \t")
		if line != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("parse world: map is empty")
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	height := len(rows)

	w := NewSimWorld(width, height, resolution)
	for r, line := range rows {
		y := height - 1 - r
		for x := 0; x < width; x++ {
			ch := byte('#')
			if x < len(line) {
				ch = line[x]
			}
			switch ch {
			case '#':
				w.occupied[y*width+x] = true
			case '.', ' ':
			case 'R':
				c := w.cellCenter(x, y)
				w.Pose = Pose{X: c.X, Y: c.Y}
			default:
				return nil, fmt.Errorf("parse world: unknown map character %q at row %d", ch, r)
			}
		}
	}
	return w, nil
}

// LoadSimWorld reads an ASCII world map from a file
func LoadSimWorld(path string, resolution float64) (*SimWorld, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file: %w", err)
	}
	return ParseSimWorld(string(data), resolution)
}

func (w *SimWorld) cellCenter(x, y int) Point {
	return Point{
		X: (float64(x) - float64(w.Width)/2 + 0.5) * w.Resolution,
		Y: (float64(y) - float64(w.Height)/2 + 0.5) * w.Resolution,
	}
}

func (w *SimWorld) cellOf(p Point) Cell {
	return Cell{
		X: int(math.Floor(p.X/w.Resolution + float64(w.Width)/2)),
		Y: int(math.Floor(p.Y/w.Resolution + float64(w.Height)/2)),
	}
}

// SetOccupied marks a world cell as wall or floor
func (w *SimWorld) SetOccupied(c Cell, occupied bool) {
	if c.X >= 0 && c.X < w.Width && c.Y >= 0 && c.Y < w.Height {
		w.occupied[c.Y*w.Width+c.X] = occupied
	}
}

// Occupied reports whether the world point is inside a wall. Everything
// outside the map counts as wall.
func (w *SimWorld) Occupied(p Point) bool {
	c := w.cellOf(p)
	if c.X < 0 || c.X >= w.Width || c.Y < 0 || c.Y >= w.Height {
		return true
	}
	return w.occupied[c.Y*w.Width+c.X]
}

// Scan casts numRays rays evenly spread over a full turn, starting straight
// ahead. A ray that hits nothing within maxRange reports maxRange. Angles are
// relative to the robot heading.
func (w *SimWorld) Scan(numRays int, maxRange float64) (ranges, angles []float64) {
	if numRays <= 0 {
		return nil, nil
	}
	ranges = make([]float64, numRays)
	angles = make([]float64, numRays)
	step := w.Resolution / 4
	for i := 0; i < numRays; i++ {
		rel := 2 * math.Pi * float64(i) / float64(numRays)
		a := w.Pose.Theta + rel
		cos, sin := math.Cos(a), math.Sin(a)
		d := 0.0
		for d < maxRange {
			d += step
			if w.Occupied(Point{X: w.Pose.X + d*cos, Y: w.Pose.Y + d*sin}) {
				break
			}
		}
		angles[i] = rel
		ranges[i] = math.Min(d, maxRange)
	}
	return ranges, angles
}

// Apply integrates cmd for dt seconds. The robot turns first, then
// translates in its own frame. A move that would end inside a wall is
// dropped, leaving the robot stalled in place.
func (w *SimWorld) Apply(cmd Command, dt float64) {
	theta := NormalizeAngle(w.Pose.Theta + clamp(cmd.Rotation, -1, 1)*w.MaxTurnRate*dt)
	fwd := clamp(cmd.Forward, -1, 1) * w.MaxSpeed * dt
	lat := clamp(cmd.Lateral, -1, 1) * w.MaxSpeed * dt

	cos, sin := math.Cos(theta), math.Sin(theta)
	next := Point{
		X: w.Pose.X + fwd*cos - lat*sin,
		Y: w.Pose.Y + fwd*sin + lat*cos,
	}

	w.Pose.Theta = theta
	if !w.Occupied(next) {
		w.Pose.X, w.Pose.Y = next.X, next.Y
	}
}

// GridConfigFor returns grid parameters that cover the world exactly
func (w *SimWorld) GridConfigFor(base GridConfig) GridConfig {
	base.Resolution = w.Resolution
	base.Width = w.Width
	base.Height = w.Height
	return base
}
