package navigation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

var (
	p0 = geo.Point{Latitude: 37.0, Longitude: -122.0}
	p1 = geo.Point{Latitude: 37.0018, Longitude: -122.0}
	p2 = geo.Point{Latitude: 37.0018, Longitude: -121.9966}
	p3 = geo.Point{Latitude: 37.0045, Longitude: -121.9966}
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return testNow }
	return opts
}

func step(start, end geo.Point, instruction string, distance int) routing.Step {
	return routing.Step{
		StartPoint:     start,
		EndPoint:       end,
		Instruction:    instruction,
		DistanceMeters: distance,
		Geometry:       []geo.Point{start, end},
	}
}

func threeStepRoute() routing.Route {
	return routing.Route{
		Origin:      p0,
		Destination: p3,
		Steps: []routing.Step{
			step(p0, p1, "Head north on Main St", 100),
			step(p1, p2, "Turn right onto Ocean Ave", 200),
			step(p2, p3, "Turn left on Pacific Coast Highway Frontage Road", 300),
		},
		Overview: []geo.Point{p0, p1, p2, p3},
		Mode:     "walking",
	}
}

func TestTracker_IdleReturnsEmptySnapshot(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())

	assert.False(t, tracker.Active())
	snap := tracker.ReportPosition(p0)
	assert.False(t, snap.Active)
	assert.Equal(t, 0, snap.RemainingDistanceMeters)
	assert.Empty(t, snap.CurrentInstruction)
	assert.Equal(t, int64(0), snap.ETAEpochMillis())

	_, ok := tracker.LastPosition()
	assert.False(t, ok, "idle tracker does not record positions")
}

func TestTracker_StartTracking(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	assert.True(t, tracker.Active())
	assert.Equal(t, 0, tracker.CurrentStepIndex())

	snap := tracker.ReportPosition(p0)
	require.True(t, snap.Active)
	assert.Equal(t, 0, snap.CurrentStepIndex)
	assert.False(t, snap.StepChanged)
	assert.Equal(t, 3, snap.StepCount)
	assert.Equal(t, 600, snap.RemainingDistanceMeters)
	assert.Equal(t, "Head north", snap.CurrentInstruction)
	assert.Equal(t, "on Main St", snap.CurrentStreet)
	assert.Equal(t, "Head north on Main St", snap.Instruction)
	assert.Equal(t, "Turn right onto Ocean Ave", snap.NextInstruction)
	assert.False(t, snap.IsFinalStep)
	assert.False(t, snap.Arrived)

	pos, ok := tracker.LastPosition()
	require.True(t, ok)
	assert.Equal(t, p0, pos)
}

func TestTracker_StepSelectionShortCircuit(t *testing.T) {
	// P1 and P2 are ~11m apart; a position on P2 is within 20m of P1 so P1 wins
	q0 := geo.Point{Latitude: 37.0, Longitude: -122.0}
	q1 := geo.Point{Latitude: 37.001, Longitude: -122.0}
	q2 := geo.Point{Latitude: 37.0011, Longitude: -122.0}
	q3 := geo.Point{Latitude: 37.002, Longitude: -122.0}

	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(routing.Route{Steps: []routing.Step{
		step(q0, q1, "Head north", 111),
		step(q1, q2, "Continue", 11),
		step(q2, q3, "Continue", 100),
	}})

	snap := tracker.ReportPosition(q2)
	assert.Equal(t, 1, snap.CurrentStepIndex)
	assert.True(t, snap.StepChanged)
}

func TestTracker_StepSelectionNearest(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	// ~30m short of P2 on the Ocean Ave leg: no start within 20m, P2 is nearest
	snap := tracker.ReportPosition(geo.Point{Latitude: 37.0018, Longitude: -121.99694})
	assert.Equal(t, 2, snap.CurrentStepIndex)
	assert.True(t, snap.StepChanged)
	assert.True(t, snap.IsFinalStep)
}

func TestTracker_RemainingDistance(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(p1)
	require.Equal(t, 1, snap.CurrentStepIndex)
	assert.Equal(t, 500, snap.RemainingDistanceMeters)
	assert.InDelta(t, 500/1.4, snap.RemainingTimeSeconds, 1e-9)

	// Reporting the same position again is not a step change
	snap = tracker.ReportPosition(p1)
	assert.False(t, snap.StepChanged)
	assert.Equal(t, 500, snap.RemainingDistanceMeters)
}

func TestTracker_Monotonic(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(p2)
	require.Equal(t, 2, snap.CurrentStepIndex)

	// Walking back to the start never regresses progress
	snap = tracker.ReportPosition(p0)
	assert.Equal(t, 2, snap.CurrentStepIndex)
	assert.False(t, snap.StepChanged)

	// Random walk around the route area
	tracker.StartTracking(threeStepRoute())
	rng := rand.New(rand.NewSource(42))
	last := 0
	for i := 0; i < 500; i++ {
		pos := geo.Point{
			Latitude:  37.0 + rng.Float64()*0.005,
			Longitude: -122.0 + rng.Float64()*0.004,
		}
		snap := tracker.ReportPosition(pos)
		require.GreaterOrEqual(t, snap.CurrentStepIndex, last, "step index regressed at report %d", i)
		last = snap.CurrentStepIndex
	}
}

func TestTracker_SingleStepWalkingETA(t *testing.T) {
	origin := geo.Point{Latitude: 37.0, Longitude: -122.0}
	destination := geo.Point{Latitude: 37.01, Longitude: -122.0}

	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(routing.Route{Steps: []routing.Step{
		step(origin, destination, "Head north", 1400),
	}})

	snap := tracker.ReportPosition(origin)
	assert.Equal(t, 0, snap.CurrentStepIndex)
	assert.Equal(t, 1400, snap.RemainingDistanceMeters)
	assert.InDelta(t, 1000.0, snap.RemainingTimeSeconds, 1e-9)
	assert.InDelta(t, float64(testNow.Add(1000*time.Second).UnixMilli()), float64(snap.ETAEpochMillis()), 1)
	assert.Equal(t, ArriveInstruction, snap.NextInstruction)
	assert.True(t, snap.IsFinalStep)
	assert.False(t, snap.Arrived)
}

func TestTracker_SetProfile(t *testing.T) {
	origin := geo.Point{Latitude: 37.0, Longitude: -122.0}
	destination := geo.Point{Latitude: 37.01, Longitude: -122.0}

	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(routing.Route{Origin: origin, Steps: []routing.Step{
		step(origin, destination, "Head north", 1400),
	}})

	snap := tracker.ReportPosition(origin)
	assert.InDelta(t, 1000.0, snap.RemainingTimeSeconds, 1e-9)

	tracker.SetProfile(routing.FourWheeler)
	assert.Equal(t, routing.FourWheeler, tracker.Profile())

	current := tracker.Current()
	assert.InDelta(t, 1400/13.9, current.RemainingTimeSeconds, 1e-9)
	assert.Equal(t, routing.FourWheeler, current.Profile)

	snap = tracker.ReportPosition(origin)
	assert.InDelta(t, 1400/13.9, snap.RemainingTimeSeconds, 1e-9)
}

func TestTracker_NonPositiveSpeed(t *testing.T) {
	tracker := NewTracker(routing.TravelProfile(99), testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(p0)
	assert.True(t, math.IsInf(snap.RemainingTimeSeconds, 1))
	assert.True(t, snap.ETA.IsZero())
	assert.Equal(t, int64(0), snap.ETAEpochMillis())
	assert.Equal(t, 600, snap.RemainingDistanceMeters)
}

func TestTracker_EmptyRoute(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(routing.Route{})

	snap := tracker.ReportPosition(p0)
	assert.True(t, snap.Active)
	assert.Equal(t, 0, snap.CurrentStepIndex)
	assert.Equal(t, 0, snap.RemainingDistanceMeters)
	assert.Equal(t, 0.0, snap.RemainingTimeSeconds)
	assert.Empty(t, snap.CurrentInstruction)
	assert.Empty(t, snap.NextInstruction)
	assert.Empty(t, snap.CurrentStepGeometry)
	assert.False(t, snap.OffRoute)

	_, off := tracker.OffRoute(p0)
	assert.False(t, off)
}

func TestTracker_Geometry(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(p0)
	assert.Empty(t, snap.CompletedGeometry)
	assert.Equal(t, []geo.Point{p0, p1}, snap.CurrentStepGeometry)
	assert.Equal(t, []geo.Point{p1, p2, p2, p3}, snap.RemainingGeometry)

	snap = tracker.ReportPosition(p1)
	assert.Equal(t, []geo.Point{p0, p1}, snap.CompletedGeometry)
	assert.Equal(t, []geo.Point{p1, p2}, snap.CurrentStepGeometry)
	assert.Equal(t, []geo.Point{p2, p3}, snap.RemainingGeometry)

	snap = tracker.ReportPosition(p2)
	assert.Equal(t, []geo.Point{p0, p1, p1, p2}, snap.CompletedGeometry)
	assert.Equal(t, []geo.Point{p2, p3}, snap.CurrentStepGeometry)
	assert.Empty(t, snap.RemainingGeometry)
}

func TestTracker_FinalStepAndArrival(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(p2)
	require.True(t, snap.IsFinalStep)
	assert.Equal(t, ArriveInstruction, snap.NextInstruction)
	assert.Equal(t, "Turn left", snap.CurrentInstruction)
	assert.Equal(t, "on Pacific Coast Highway ...", snap.CurrentStreet)
	assert.False(t, snap.Arrived)
	assert.InDelta(t, 300, snap.DistanceToStepEndMeters, 2)

	// ~10m short of the end
	snap = tracker.ReportPosition(geo.Point{Latitude: 37.00441, Longitude: -121.9966})
	assert.True(t, snap.Arrived)
	assert.Equal(t, 300, snap.RemainingDistanceMeters, "arrival does not zero the remaining distance")
	assert.True(t, tracker.Active(), "arrival is not a state transition")
}

func TestTracker_OffRoute(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())

	snap := tracker.ReportPosition(geo.Point{Latitude: 37.0007, Longitude: -122.0})
	require.Equal(t, 0, snap.CurrentStepIndex)
	assert.False(t, snap.OffRoute)
	assert.Less(t, snap.DistanceFromRouteMeters, 1.0)

	// ~89m east of Main St
	snap = tracker.ReportPosition(geo.Point{Latitude: 37.0003, Longitude: -121.999})
	require.Equal(t, 0, snap.CurrentStepIndex)
	assert.True(t, snap.OffRoute)
	assert.InDelta(t, 88.8, snap.DistanceFromRouteMeters, 2)

	match, off := tracker.OffRoute(geo.Point{Latitude: 37.0003, Longitude: -121.999})
	assert.True(t, off)
	assert.Equal(t, routing.Nearby, match.Classification)
}

func TestTracker_StopAndRestart(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(threeStepRoute())
	tracker.ReportPosition(p2)
	require.Equal(t, 2, tracker.CurrentStepIndex())

	// A new route resets progress
	tracker.StartTracking(threeStepRoute())
	assert.Equal(t, 0, tracker.CurrentStepIndex())
	_, ok := tracker.LastPosition()
	assert.False(t, ok)

	tracker.Stop()
	assert.False(t, tracker.Active())
	_, ok = tracker.Route()
	assert.False(t, ok)
	assert.False(t, tracker.ReportPosition(p0).Active)
	assert.False(t, tracker.Current().Active)
}

func TestTracker_FallbackFlag(t *testing.T) {
	tracker := NewTracker(routing.Walking, testOptions())
	tracker.StartTracking(routing.StraightLineRoute(p0, p3, routing.Walking))

	snap := tracker.Current()
	assert.True(t, snap.Fallback)
	assert.Equal(t, routing.StraightLineInstruction, snap.CurrentInstruction)
	assert.Empty(t, snap.CurrentStreet)
	assert.Equal(t, p0, snap.Position)
}
