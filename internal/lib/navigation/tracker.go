package navigation

import (
	"math"
	"time"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// Options tune the tracker thresholds
type Options struct {
	StepProximityMeters     float64 // a step start closer than this is selected immediately
	ArrivalThresholdMeters  float64 // distance to the final point that counts as arrived
	OffRouteThresholdMeters float64 // distance from the current step geometry that counts as off route
	Now                     func() time.Time
}

// DefaultOptions returns the standard thresholds
func DefaultOptions() Options {
	return Options{
		StepProximityMeters:     20,
		ArrivalThresholdMeters:  15,
		OffRouteThresholdMeters: routing.DefaultOnRouteThreshold,
		Now:                     time.Now,
	}
}

// Snapshot is the derived navigation state after a position report
type Snapshot struct {
	Active                  bool                  `json:"active"`
	Profile                 routing.TravelProfile `json:"profile"`
	Position                geo.Point             `json:"position"`
	CurrentStepIndex        int                   `json:"current_step_index"`
	StepCount               int                   `json:"step_count"`
	StepChanged             bool                  `json:"step_changed"`
	IsFinalStep             bool                  `json:"is_final_step"`
	Arrived                 bool                  `json:"arrived"`
	Fallback                bool                  `json:"fallback"`
	RemainingDistanceMeters int                   `json:"remaining_distance_meters"`
	RemainingTimeSeconds    float64               `json:"remaining_time_seconds"`
	ETA                     time.Time             `json:"eta"`
	Instruction             string                `json:"instruction"` // full text, may contain markup
	CurrentInstruction      string                `json:"current_instruction"`
	CurrentStreet           string                `json:"current_street"`
	NextInstruction         string                `json:"next_instruction"`
	DistanceToStepEndMeters float64               `json:"distance_to_step_end_meters"`
	OffRoute                bool                  `json:"off_route"`
	DistanceFromRouteMeters float64               `json:"distance_from_route_meters"`
	CurrentStepGeometry     []geo.Point           `json:"current_step_geometry"`
	CompletedGeometry       []geo.Point           `json:"completed_geometry"`
	RemainingGeometry       []geo.Point           `json:"remaining_geometry"`
	Cue                     string                `json:"cue,omitempty"`
}

// ETAEpochMillis returns the ETA as Unix milliseconds, or 0 when unknown
func (s Snapshot) ETAEpochMillis() int64 {
	if s.ETA.IsZero() {
		return 0
	}
	return s.ETA.UnixMilli()
}

// Tracker maps live positions onto a route and derives navigation state.
// A Tracker is not safe for concurrent use; callers serialize access.
type Tracker struct {
	opts    Options
	matcher routing.RouteMatcher
	profile routing.TravelProfile

	route            *routing.Route
	currentStepIndex int
	lastPosition     *geo.Point
}

// NewTracker creates an idle tracker. Zero-valued options use the defaults.
func NewTracker(profile routing.TravelProfile, opts Options) *Tracker {
	defaults := DefaultOptions()
	if opts.StepProximityMeters <= 0 {
		opts.StepProximityMeters = defaults.StepProximityMeters
	}
	if opts.ArrivalThresholdMeters <= 0 {
		opts.ArrivalThresholdMeters = defaults.ArrivalThresholdMeters
	}
	if opts.OffRouteThresholdMeters <= 0 {
		opts.OffRouteThresholdMeters = defaults.OffRouteThresholdMeters
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}

	return &Tracker{
		opts:    opts,
		matcher: routing.NewRouteMatcher(opts.OffRouteThresholdMeters, 0),
		profile: profile,
	}
}

// StartTracking replaces any current route and resets progress
func (t *Tracker) StartTracking(route routing.Route) {
	t.route = &route
	t.currentStepIndex = 0
	t.lastPosition = nil
}

// Stop discards the route and position
func (t *Tracker) Stop() {
	t.route = nil
	t.currentStepIndex = 0
	t.lastPosition = nil
}

// SetProfile changes the speed used for time estimates from the next report
func (t *Tracker) SetProfile(profile routing.TravelProfile) {
	t.profile = profile
}

// Profile returns the current travel profile
func (t *Tracker) Profile() routing.TravelProfile {
	return t.profile
}

// Active reports whether a route is being tracked
func (t *Tracker) Active() bool {
	return t.route != nil
}

// Route returns the tracked route
func (t *Tracker) Route() (routing.Route, bool) {
	if t.route == nil {
		return routing.Route{}, false
	}
	return *t.route, true
}

// CurrentStepIndex returns the index of the current step
func (t *Tracker) CurrentStepIndex() int {
	return t.currentStepIndex
}

// LastPosition returns the most recently reported position
func (t *Tracker) LastPosition() (geo.Point, bool) {
	if t.lastPosition == nil {
		return geo.Point{}, false
	}
	return *t.lastPosition, true
}

// ReportPosition advances progress for a new position and returns the derived state
func (t *Tracker) ReportPosition(position geo.Point) Snapshot {
	if t.route == nil {
		return Snapshot{Profile: t.profile}
	}

	t.lastPosition = &position

	selected := t.selectStep(position)
	changed := selected != t.currentStepIndex
	t.currentStepIndex = selected

	snap := t.build(position)
	snap.StepChanged = changed
	return snap
}

// Current rebuilds the snapshot for the last known position without advancing progress
func (t *Tracker) Current() Snapshot {
	if t.route == nil {
		return Snapshot{Profile: t.profile}
	}
	if t.lastPosition == nil {
		return t.build(t.route.Origin)
	}
	return t.build(*t.lastPosition)
}

// OffRoute matches a position against the current step geometry
func (t *Tracker) OffRoute(position geo.Point) (routing.PositionMatch, bool) {
	if t.route == nil || len(t.route.Steps) == 0 {
		return routing.PositionMatch{}, false
	}

	match, err := t.matcher.MatchStep(position, *t.route, t.currentStepIndex)
	if err != nil {
		return routing.PositionMatch{}, false
	}

	return match, match.Classification != routing.OnRoute
}

// selectStep scans forward from the current step. The first step whose start is
// within the proximity threshold wins, otherwise the nearest start.
func (t *Tracker) selectStep(position geo.Point) int {
	steps := t.route.Steps
	if len(steps) == 0 {
		return 0
	}

	selected := t.currentStepIndex
	minDistance := math.Inf(1)

	for i := t.currentStepIndex; i < len(steps); i++ {
		distance := geo.DistanceMeters(position, steps[i].StartPoint)

		if distance < t.opts.StepProximityMeters {
			return i
		}

		if distance < minDistance {
			minDistance = distance
			selected = i
		}
	}

	return selected
}

func (t *Tracker) build(position geo.Point) Snapshot {
	route := t.route
	snap := Snapshot{
		Active:    true,
		Profile:   t.profile,
		Position:  position,
		StepCount: len(route.Steps),
		Fallback:  route.Fallback,
	}

	if len(route.Steps) == 0 {
		return snap
	}

	idx := t.currentStepIndex
	step := route.Steps[idx]

	snap.CurrentStepIndex = idx
	snap.IsFinalStep = idx == len(route.Steps)-1

	remaining := 0
	for _, s := range route.Steps[idx:] {
		remaining += s.DistanceMeters
	}
	snap.RemainingDistanceMeters = remaining

	speed := t.profile.SpeedMetersPerSecond()
	if speed > 0 {
		snap.RemainingTimeSeconds = float64(remaining) / speed
		snap.ETA = t.opts.Now().Add(time.Duration(snap.RemainingTimeSeconds * float64(time.Second)))
	} else {
		snap.RemainingTimeSeconds = math.Inf(1)
	}

	snap.Instruction = step.Instruction
	snap.CurrentInstruction, snap.CurrentStreet = SplitInstruction(step.Instruction)
	if snap.IsFinalStep {
		snap.NextInstruction = ArriveInstruction
	} else {
		snap.NextInstruction = NextInstruction(route.Steps[idx+1].Instruction)
	}

	snap.DistanceToStepEndMeters = geo.DistanceMeters(position, step.EndPoint)
	if snap.IsFinalStep && snap.DistanceToStepEndMeters <= t.opts.ArrivalThresholdMeters {
		snap.Arrived = true
	}

	if match, off := t.OffRoute(position); match.StepIndex == idx {
		snap.OffRoute = off
		snap.DistanceFromRouteMeters = match.DistanceToRoute
	}

	snap.CurrentStepGeometry = step.Geometry
	snap.CompletedGeometry = concatGeometry(route.Steps[:idx])
	snap.RemainingGeometry = concatGeometry(route.Steps[idx+1:])

	return snap
}

func concatGeometry(steps []routing.Step) []geo.Point {
	n := 0
	for _, s := range steps {
		n += len(s.Geometry)
	}

	points := make([]geo.Point, 0, n)
	for _, s := range steps {
		points = append(points, s.Geometry...)
	}
	return points
}
