// Package session runs one boat through one race: every tick it samples
// the wind, derives the boat speed, turns, moves and checks the next
// gate, in that order.
package session

import (
	"errors"
	"time"

	"github.com/a-bouts/race-engine/latlon"
	"github.com/a-bouts/race-engine/maneuver"
	"github.com/a-bouts/race-engine/polar"
	"github.com/a-bouts/race-engine/race"
	"github.com/a-bouts/race-engine/wind"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Course      *race.Course
	Polar       polar.Model
	Descriptors []wind.Descriptor
	// TurnRate in degrees per wall clock second.
	TurnRate  float64
	Tolerance float64
}

// Mask tells whether a position is land.
type Mask interface {
	IsLand(p latlon.LatLon) bool
}

type Deps struct {
	Loader *wind.Loader
	Land   Mask
}

// Snapshot is the state of a session after a tick. It is a value and can
// be handed to any goroutine.
type Snapshot struct {
	SessionID      string        `json:"sessionId"`
	Clock          time.Duration `json:"clock"`
	CourseTime     time.Time     `json:"courseTime"`
	Position       latlon.LatLon `json:"position"`
	Heading        float64       `json:"heading"`
	TargetHeading  *float64      `json:"targetHeading,omitempty"`
	BoatSpeed      float64       `json:"boatSpeed"`
	Wind           wind.Vector   `json:"wind"`
	HasWind        bool          `json:"hasWind"`
	Twa            float64       `json:"twa"`
	NextGateIndex  int           `json:"nextGateIndex"`
	// FinishLineNext is set when the next line to cross is the finish.
	FinishLineNext bool          `json:"finishLineNext"`
	GateDistanceNm float64       `json:"gateDistanceNm"`
	GateBearing    float64       `json:"gateBearing"`
	DistanceNm     float64       `json:"distanceNm"`
	RaceFinished   bool          `json:"raceFinished"`
	Expired        bool          `json:"expired"`
	Blocked        bool          `json:"blocked"`
	Abandoned      bool          `json:"abandoned"`
}

// Done reports whether the session reached a terminal state.
func (s Snapshot) Done() bool {
	return s.RaceFinished || s.Expired || s.Abandoned
}

type Session struct {
	id       string
	course   *race.Course
	polar    polar.Model
	timeline *wind.Timeline
	loader   *wind.Loader
	land     Mask
	maneuver *maneuver.Controller
	tracker  *race.Tracker
	log      *log.Entry

	clock      time.Duration
	courseTime time.Time
	position   latlon.LatLon
	heading    float64
	boatSpeed  float64
	wind       wind.Vector
	hasWind    bool
	distance   float64
	blocked    bool
	expired    bool
	abandoned  bool
}

func New(cfg Config, deps Deps) (*Session, error) {
	if cfg.Course == nil {
		return nil, errors.New("session needs a course")
	}
	if cfg.Polar == nil {
		return nil, errors.New("session needs a polar")
	}
	if deps.Loader == nil {
		return nil, errors.New("session needs a wind loader")
	}
	if err := cfg.Course.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:         uuid.NewString(),
		course:     cfg.Course,
		polar:      cfg.Polar,
		timeline:   wind.NewTimeline(cfg.Descriptors),
		loader:     deps.Loader,
		land:       deps.Land,
		maneuver:   maneuver.New(cfg.TurnRate, cfg.Tolerance),
		tracker:    race.NewTracker(cfg.Course),
		courseTime: cfg.Course.StartTime,
		position:   cfg.Course.Start,
		heading:    latlon.Wrap360(cfg.Course.StartHeading),
	}
	s.log = log.WithFields(log.Fields{"session": s.id, "course": cfg.Course.Name})

	s.timeline.Advance(s.courseTime)
	s.loader.Poll(s.timeline)
	s.log.Infof("Session created with %d wind steps", s.timeline.Len())

	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Course() *race.Course {
	return s.course
}

// Done reports whether further ticks are no-ops.
func (s *Session) Done() bool {
	return s.abandoned || s.expired || s.tracker.Finished()
}

// Tick advances the session by dt of wall clock time.
func (s *Session) Tick(dt time.Duration) Snapshot {
	if s.Done() {
		return s.Snapshot()
	}
	if dt < 0 {
		dt = 0
	}

	s.clock += dt
	previous := s.courseTime
	s.courseTime = s.course.CourseTime(s.clock)
	elapsed := s.courseTime.Sub(previous)

	if s.timeline.Advance(s.courseTime) {
		s.log.Debugf("Wind timeline at %s", s.timeline)
	}
	s.loader.Poll(s.timeline)
	s.wind, s.hasWind = s.timeline.SampleAt(s.position, s.courseTime)

	s.boatSpeed = 0
	if s.hasWind {
		s.boatSpeed = s.polar.SpeedAt(s.wind.Knots(), polar.TwaOf(s.heading, s.wind.Direction()))
	}

	s.heading = s.maneuver.Step(s.heading, dt)

	s.move(elapsed)

	if deadline, ok := s.course.Deadline(); ok && !s.tracker.Finished() && !s.courseTime.Before(deadline) {
		s.expired = true
		s.log.Warnf("Race expired at %s", s.courseTime.Format(time.RFC3339))
	}

	return s.Snapshot()
}

func (s *Session) move(elapsed time.Duration) {
	d := s.boatSpeed * elapsed.Hours()
	if d <= 0 {
		return
	}

	next := latlon.DeadReckon(s.position, s.heading, d)
	if s.course.IsToAvoid(next) || (s.land != nil && s.land.IsLand(next)) {
		if !s.blocked {
			s.log.Infof("Blocked at %v heading %.1f", s.position, s.heading)
		}
		s.blocked = true
		return
	}
	s.blocked = false

	prev := s.position
	s.position = next
	s.distance += d

	if s.tracker.CheckCrossing(prev, next) {
		s.log.WithField("gate", s.tracker.NextIndex()-1).Infof("Gate crossed at %s", s.courseTime.Format(time.RFC3339))
		if s.tracker.Finished() {
			s.log.Infof("Race finished after %.1f nm", s.distance)
		}
	}
}

// RequestTack starts a tack or gybe. It is refused during a maneuver,
// without wind and once the session is over.
func (s *Session) RequestTack() (float64, bool) {
	if s.Done() {
		return 0, false
	}
	w := wind.Vector{}
	if s.hasWind {
		w = s.wind
	}
	target, ok := s.maneuver.RequestTack(s.heading, w)
	if ok {
		s.log.Debugf("%s from %.1f to %.1f", s.maneuver.Kind(), s.heading, target)
	}
	return target, ok
}

// SetHeading overrides the heading and drops any maneuver in flight.
func (s *Session) SetHeading(heading float64) {
	if s.Done() {
		return
	}
	s.maneuver.Cancel()
	s.heading = latlon.Wrap360(heading)
}

// MergeDescriptors adds wind steps found after the session started.
func (s *Session) MergeDescriptors(descs []wind.Descriptor) int {
	if s.abandoned {
		return 0
	}
	n := s.timeline.Merge(descs)
	if n > 0 {
		s.log.Debugf("%d new wind steps", n)
	}
	return n
}

// Abandon ends the session and drops every pending wind request.
func (s *Session) Abandon() {
	if s.abandoned {
		return
	}
	s.abandoned = true
	s.loader.Cancel()
	s.log.Info("Session abandoned")
}

// WindAt samples the wind at p for the current course time.
func (s *Session) WindAt(p latlon.LatLon) (wind.Vector, bool) {
	return s.timeline.SampleAt(p, s.courseTime)
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		SessionID:     s.id,
		Clock:         s.clock,
		CourseTime:    s.courseTime,
		Position:      s.position,
		Heading:       s.heading,
		BoatSpeed:     s.boatSpeed,
		Wind:          s.wind,
		HasWind:       s.hasWind,
		NextGateIndex: s.tracker.NextIndex(),
		DistanceNm:    s.distance,
		RaceFinished:  s.tracker.Finished(),
		Expired:       s.expired,
		Blocked:       s.blocked,
		Abandoned:     s.abandoned,
	}
	if s.hasWind {
		snap.Twa = wind.Twa(s.heading, s.wind.Direction())
	}
	if target, ok := s.maneuver.Target(); ok {
		snap.TargetHeading = &target
	}
	if g, ok := s.tracker.NextGate(); ok {
		snap.FinishLineNext = !s.course.HasNextGate(snap.NextGateIndex)
		snap.GateDistanceNm = latlon.DistanceNm(s.position, g.Center)
		snap.GateBearing = latlon.LatLonHaversine{}.BearingTo(s.position, g.Center)
	}
	return snap
}
