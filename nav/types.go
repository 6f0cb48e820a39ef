package nav

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Point is a position in world coordinates (meters)
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Cell addresses a single grid cell by column (X) and row (Y)
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pose is the robot position in world coordinates and its heading in radians
// (0 = +X, counter-clockwise). A pose with any non-finite field is treated as
// unavailable.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// UnavailablePose returns the sentinel used when no pose estimate exists
func UnavailablePose() Pose {
	return Pose{X: math.NaN(), Y: math.NaN(), Theta: math.NaN()}
}

// Valid reports whether every field of the pose is finite
func (p Pose) Valid() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Theta)
}

// Position returns the translational part of the pose
func (p Pose) Position() Point {
	return Point{X: p.X, Y: p.Y}
}

// Command is a normalized steering command for the actuation layer.
// Every field lies in [-1, 1].
type Command struct {
	Forward  float64 `json:"forward"`
	Lateral  float64 `json:"lateral"`
	Rotation float64 `json:"rotation"`
}

// Path is an ordered list of world-space waypoints
type Path []Point

// Length returns the polyline length in world units
func (p Path) Length() float64 {
	if len(p) < 2 {
		return 0
	}
	ls := make(orb.LineString, len(p))
	for i, pt := range p {
		ls[i] = orb.Point{pt.X, pt.Y}
	}
	return planar.Length(ls)
}

// CellState is the ternary classification of a grid cell
type CellState uint8

const (
	Undiscovered CellState = iota
	Free
	Obstacle
)

func (s CellState) String() string {
	switch s {
	case Free:
		return "free"
	case Obstacle:
		return "obstacle"
	case Undiscovered:
		return "undiscovered"
	default:
		return fmt.Sprintf("CellState(%d)", uint8(s))
	}
}

// GridConfig holds the fixed parameters of the occupancy grid
type GridConfig struct {
	Resolution        float64 `yaml:"resolution" json:"resolution"` // world units per cell
	Width             int     `yaml:"width" json:"width"`           // cells
	Height            int     `yaml:"height" json:"height"`         // cells
	MinValue          float64 `yaml:"minValue" json:"minValue"`
	MaxValue          float64 `yaml:"maxValue" json:"maxValue"`
	ObstacleThreshold float64 `yaml:"obstacleThreshold" json:"obstacleThreshold"` // value >= threshold is an obstacle
	FreeThreshold     float64 `yaml:"freeThreshold" json:"freeThreshold"`         // value <= threshold is free
	FreeIncrement     float64 `yaml:"freeIncrement" json:"freeIncrement"`
	OccupiedIncrement float64 `yaml:"occupiedIncrement" json:"occupiedIncrement"`
	RobotIncrement    float64 `yaml:"robotIncrement" json:"robotIncrement"`
	MaxRange          float64 `yaml:"maxRange" json:"maxRange"`     // maximum trusted sensor range
	NearMargin        float64 `yaml:"nearMargin" json:"nearMargin"` // clipped off the free part of every ray
}

// FrontierConfig holds frontier extraction parameters
type FrontierConfig struct {
	MinSize int `yaml:"minSize" json:"minSize"`
}

// PlannerConfig holds path planning parameters
type PlannerConfig struct {
	MaxInflation  int     `yaml:"maxInflation" json:"maxInflation"`   // cells
	RDPEpsilon    float64 `yaml:"rdpEpsilon" json:"rdpEpsilon"`       // cells
	MaxIterations int     `yaml:"maxIterations" json:"maxIterations"` // A* expansions per search; 0 = unlimited
}

// FollowerConfig holds the waypoint pursuit gains
type FollowerConfig struct {
	ArrivalRadius float64 `yaml:"arrivalRadius" json:"arrivalRadius"` // world units
	HeadingP      float64 `yaml:"headingP" json:"headingP"`
	HeadingD      float64 `yaml:"headingD" json:"headingD"`
	CrossTrackP   float64 `yaml:"crossTrackP" json:"crossTrackP"`
	CrossTrackD   float64 `yaml:"crossTrackD" json:"crossTrackD"`
	ForwardGain   float64 `yaml:"forwardGain" json:"forwardGain"`
}

// NavigatorConfig holds the per-tick composition parameters
type NavigatorConfig struct {
	ReplanInterval  int `yaml:"replanInterval" json:"replanInterval"` // ticks; 0 disables periodic replanning
	MaxPlanAttempts int `yaml:"maxPlanAttempts" json:"maxPlanAttempts"`
}

// PeerConfig describes another agent whose map snapshots are merged
type PeerConfig struct {
	ID         string  `yaml:"id" json:"id"`
	Topic      string  `yaml:"topic" json:"topic"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	ApiURL     *string `yaml:"apiUrl,omitempty" json:"apiUrl,omitempty"` // Optional HTTP endpoint serving /grid
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	AgentID   string          `yaml:"agentId,omitempty" json:"agentId,omitempty"`
	Grid      GridConfig      `yaml:"grid" json:"grid"`
	Frontier  FrontierConfig  `yaml:"frontier" json:"frontier"`
	Planner   PlannerConfig   `yaml:"planner" json:"planner"`
	Follower  FollowerConfig  `yaml:"follower" json:"follower"`
	Navigator NavigatorConfig `yaml:"navigator" json:"navigator"`
	MQTT      MQTTConfig      `yaml:"mqtt" json:"mqtt"`
	Peers     []PeerConfig    `yaml:"peers,omitempty" json:"peers,omitempty"`
}

// GetPeerByID returns the peer config for the given ID
func (c *Config) GetPeerByID(id string) *PeerConfig {
	for i := range c.Peers {
		if c.Peers[i].ID == id {
			return &c.Peers[i]
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
