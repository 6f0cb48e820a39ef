package nav

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration suitable for a small indoor robot
// with a 4 m range sensor on a 20 m x 20 m grid.
func DefaultConfig() *Config {
	return &Config{
		Grid: GridConfig{
			Resolution:        0.1,
			Width:             200,
			Height:            200,
			MinValue:          -10,
			MaxValue:          10,
			ObstacleThreshold: 2,
			FreeThreshold:     -2,
			FreeIncrement:     -1,
			OccupiedIncrement: 4,
			RobotIncrement:    -10,
			MaxRange:          4.0,
			NearMargin:        0.05,
		},
		Frontier: FrontierConfig{
			MinSize: 4,
		},
		Planner: PlannerConfig{
			MaxInflation:  4,
			RDPEpsilon:    1.0,
			MaxIterations: 0,
		},
		Follower: FollowerConfig{
			ArrivalRadius: 0.15,
			HeadingP:      1.5,
			HeadingD:      0.3,
			CrossTrackP:   2.0,
			CrossTrackD:   0.2,
			ForwardGain:   2.0,
		},
		Navigator: NavigatorConfig{
			ReplanInterval:  0,
			MaxPlanAttempts: 5,
		},
		MQTT: MQTTConfig{
			PublishPrefix: "tudonav",
		},
	}
}

// LoadConfig loads the configuration from a YAML file. Fields missing from
// the file keep their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration can build a working engine
func (c *Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}

	if c.Frontier.MinSize < 1 {
		return fmt.Errorf("frontier.minSize must be at least 1")
	}

	if c.Planner.MaxInflation < 0 {
		return fmt.Errorf("planner.maxInflation must not be negative")
	}
	if c.Planner.RDPEpsilon < 0 || !isFinite(c.Planner.RDPEpsilon) {
		return fmt.Errorf("planner.rdpEpsilon must be a non-negative number")
	}
	if c.Planner.MaxIterations < 0 {
		return fmt.Errorf("planner.maxIterations must not be negative")
	}

	f := c.Follower
	if f.ArrivalRadius <= 0 || !isFinite(f.ArrivalRadius) {
		return fmt.Errorf("follower.arrivalRadius must be positive")
	}
	for name, v := range map[string]float64{
		"headingP":    f.HeadingP,
		"headingD":    f.HeadingD,
		"crossTrackP": f.CrossTrackP,
		"crossTrackD": f.CrossTrackD,
		"forwardGain": f.ForwardGain,
	} {
		if !isFinite(v) {
			return fmt.Errorf("follower.%s must be finite", name)
		}
	}

	if c.Navigator.MaxPlanAttempts < 1 {
		return fmt.Errorf("navigator.maxPlanAttempts must be at least 1")
	}

	for i, p := range c.Peers {
		if p.ID == "" {
			return fmt.Errorf("peers[%d].id is required", i)
		}
		if p.Topic == "" && p.ApiURL == nil {
			return fmt.Errorf("peers[%d] needs a topic or an apiUrl for %s", i, p.ID)
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("peers[%d].confidence must be within [0, 1] for %s", i, p.ID)
		}
	}

	return nil
}

// Validate checks grid dimensions and the ordering of the value bands
func (g GridConfig) Validate() error {
	if g.Resolution <= 0 || !isFinite(g.Resolution) {
		return fmt.Errorf("grid.resolution must be positive, got %v", g.Resolution)
	}
	if g.Width < 3 || g.Height < 3 {
		return fmt.Errorf("grid must be at least 3x3 cells, got %dx%d", g.Width, g.Height)
	}
	if !(g.MinValue < g.MaxValue) {
		return fmt.Errorf("grid.minValue (%v) must be below grid.maxValue (%v)", g.MinValue, g.MaxValue)
	}
	if !(g.MinValue <= g.FreeThreshold && g.FreeThreshold < g.ObstacleThreshold && g.ObstacleThreshold <= g.MaxValue) {
		return fmt.Errorf("grid thresholds must satisfy minValue <= freeThreshold < obstacleThreshold <= maxValue")
	}
	if g.MaxRange <= 0 || !isFinite(g.MaxRange) {
		return fmt.Errorf("grid.maxRange must be positive")
	}
	if g.NearMargin < 0 || !isFinite(g.NearMargin) {
		return fmt.Errorf("grid.nearMargin must not be negative")
	}
	for name, v := range map[string]float64{
		"freeIncrement":     g.FreeIncrement,
		"occupiedIncrement": g.OccupiedIncrement,
		"robotIncrement":    g.RobotIncrement,
	} {
		if !isFinite(v) {
			return fmt.Errorf("grid.%s must be finite", name)
		}
	}
	return nil
}
