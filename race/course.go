package race

import (
	"fmt"
	"os"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"gopkg.in/yaml.v3"
)

type Course struct {
	Name           string            `json:"name" yaml:"name"`
	Polar          string            `json:"polar,omitempty" yaml:"polar,omitempty"`
	Start          latlon.LatLon     `json:"start" yaml:"start"`
	StartHeading   float64           `json:"startHeading" yaml:"startHeading"`
	StartTime      time.Time         `json:"startTime" yaml:"-"`
	FinishLine     Gate              `json:"finishLine" yaml:"finishLine"`
	Gates          []Gate            `json:"gates" yaml:"gates"`
	ExclusionZones [][]latlon.LatLon `json:"exclusionZones,omitempty" yaml:"exclusionZones,omitempty"`
	RouteWaypoints [][]latlon.LatLon `json:"routeWaypoints,omitempty" yaml:"routeWaypoints,omitempty"`
	IceLimits      *IceLimits        `json:"iceLimits,omitempty" yaml:"iceLimits,omitempty"`
	TimeFactor     float64           `json:"timeFactor" yaml:"timeFactor"`
	MaxDays        int               `json:"maxDays" yaml:"maxDays"`
}

// HasNextGate reports whether index still designates a gate and not the
// finish line.
func (c *Course) HasNextGate(index int) bool {
	return index < len(c.Gates)
}

// GateAt is the line to cross for progress index: a gate, then the
// finish line. ok is false once the race is complete.
func (c *Course) GateAt(index int) (Gate, bool) {
	if index < 0 || index > len(c.Gates) {
		return Gate{}, false
	}
	if index == len(c.Gates) {
		return c.FinishLine, true
	}
	return c.Gates[index], true
}

func (c *Course) Reached(index int) int {
	return index + 1
}

// Leg is the route drawn for leg i, nil when the course has none.
func (c *Course) Leg(i int) []latlon.LatLon {
	if i < 0 || i >= len(c.RouteWaypoints) {
		return nil
	}
	return c.RouteWaypoints[i]
}

// Deadline is the instant the race expires. ok is false when the course
// has no time limit.
func (c *Course) Deadline() (time.Time, bool) {
	if c.MaxDays <= 0 {
		return time.Time{}, false
	}
	return c.StartTime.AddDate(0, 0, c.MaxDays), true
}

// CourseTime converts an elapsed wall clock duration into course time.
func (c *Course) CourseTime(clock time.Duration) time.Time {
	return c.StartTime.Add(time.Duration(float64(clock) * c.TimeFactor))
}

// IsToAvoid reports whether p lies in an exclusion zone or beyond the
// ice limits.
func (c *Course) IsToAvoid(p latlon.LatLon) bool {
	if c.InExclusionZone(p) {
		return true
	}
	return c.IceLimits != nil && c.IceLimits.IsInIceLimits(p)
}

func (c *Course) Validate() error {
	if c.TimeFactor <= 0 {
		return fmt.Errorf("time factor must be positive, got %v", c.TimeFactor)
	}
	if c.MaxDays < 0 {
		return fmt.Errorf("max days must not be negative, got %d", c.MaxDays)
	}
	if c.Start.Lat < -90 || c.Start.Lat > 90 {
		return fmt.Errorf("start latitude %v out of range", c.Start.Lat)
	}
	for i, g := range c.Gates {
		if err := g.validate(); err != nil {
			return fmt.Errorf("gate %d: %w", i, err)
		}
	}
	if err := c.FinishLine.validate(); err != nil {
		return fmt.Errorf("finish line: %w", err)
	}
	for i, z := range c.ExclusionZones {
		if len(z) < 3 {
			return fmt.Errorf("exclusion zone %d has %d points", i, len(z))
		}
	}
	return nil
}

type courseFile struct {
	Course    `yaml:",inline"`
	StartTime string `yaml:"startTime"`
}

// ParseCourse reads a course in YAML. JSON being valid YAML, JSON course
// files are read the same way.
func ParseCourse(data []byte) (*Course, error) {
	var f courseFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c := f.Course
	if f.StartTime != "" {
		t, err := time.Parse(time.RFC3339, f.StartTime)
		if err != nil {
			return nil, fmt.Errorf("start time: %w", err)
		}
		c.StartTime = t
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func LoadCourse(path string) (*Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseCourse(data)
	if err != nil {
		return nil, fmt.Errorf("loading course %s: %w", path, err)
	}
	return c, nil
}
