// Package scenario loads world layouts (start pose, goal, obstacle boxes)
// from YAML documents and provides the built-in demo layouts.
package scenario

import (
	"fmt"
	"os"

	"github.com/golang/geo/r2"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/racecar-bt-research/internal/core"
)

// Pose is the starting state of the vehicle.
type Pose struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Yaw   float64 `yaml:"yaw"`
	Speed float64 `yaml:"speed"`
}

// Point is a planar coordinate.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Box is an axis-aligned obstacle given by center and half extents.
type Box struct {
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	HalfX float64 `yaml:"half_x"`
	HalfY float64 `yaml:"half_y"`
}

// Scenario is one world layout.
type Scenario struct {
	Name      string `yaml:"name"`
	Start     Pose   `yaml:"start"`
	Goal      Point  `yaml:"goal"`
	Obstacles []Box  `yaml:"obstacles"`
}

// Load reads a scenario document from path.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario %s has no name", path)
	}
	for i, b := range s.Obstacles {
		if b.HalfX <= 0 || b.HalfY <= 0 {
			return nil, fmt.Errorf("scenario %s: obstacle %d has non-positive half extents", s.Name, i)
		}
	}
	return &s, nil
}

// OpenPlane is the obstacle-free layout toward the demo goal.
func OpenPlane() *Scenario {
	return &Scenario{
		Name: "open_plane",
		Goal: Point{X: 7.0, Y: 3.0},
	}
}

// Slalom is the four-box layout between the origin and the demo goal.
func Slalom() *Scenario {
	return &Scenario{
		Name: "slalom",
		Goal: Point{X: 7.0, Y: 3.0},
		Obstacles: []Box{
			{X: 2.0, Y: 0.9, HalfX: 0.40, HalfY: 0.55},
			{X: 3.7, Y: -0.9, HalfX: 0.45, HalfY: 0.45},
			{X: 5.0, Y: 1.1, HalfX: 0.35, HalfY: 0.70},
			{X: 6.0, Y: -0.3, HalfX: 0.30, HalfY: 0.45},
		},
	}
}

// StartState converts the starting pose.
func (s *Scenario) StartState() core.CarState {
	return core.CarState{X: s.Start.X, Y: s.Start.Y, Yaw: s.Start.Yaw, Speed: s.Start.Speed}
}

// GoalPoint converts the goal.
func (s *Scenario) GoalPoint() r2.Point {
	return r2.Point{X: s.Goal.X, Y: s.Goal.Y}
}

// ObstacleList converts the boxes, numbering body handles in order.
func (s *Scenario) ObstacleList() []core.Obstacle {
	out := make([]core.Obstacle, 0, len(s.Obstacles))
	for i, b := range s.Obstacles {
		out = append(out, core.Obstacle{
			Center: r2.Point{X: b.X, Y: b.Y},
			Half:   r2.Point{X: b.HalfX, Y: b.HalfY},
			BodyID: i + 1,
		})
	}
	return out
}
