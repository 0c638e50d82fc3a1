package routing

import (
	"errors"
	"math"

	"github.com/dpup/geonav/server/internal/lib/geo"
)

// Classification represents the relationship between a position and a route
type Classification string

const (
	OnRoute Classification = "on_route" // within the on-route threshold of the step geometry
	Nearby  Classification = "nearby"   // within the nearby threshold
	Distant Classification = "distant"  // beyond both thresholds
)

const (
	DefaultOnRouteThreshold = 50.0
	DefaultNearbyThreshold  = 200.0
)

// PositionMatch describes where a position sits relative to route geometry
type PositionMatch struct {
	Classification  Classification `json:"classification"`
	StepIndex       int            `json:"step_index"`
	DistanceToRoute float64        `json:"distance_to_route"`
	ClosestPoint    geo.Point      `json:"closest_point"`
}

// RouteMatcher classifies positions against route geometry
type RouteMatcher interface {
	// Classify position against one step's geometry
	MatchStep(position geo.Point, route Route, stepIndex int) (PositionMatch, error)

	// Classify position against the nearest step at or after fromIndex
	MatchRoute(position geo.Point, route Route, fromIndex int) (PositionMatch, error)

	// Current thresholds in meters
	Thresholds() (onRoute, nearby float64)
}

// routeMatcher implements the RouteMatcher interface
type routeMatcher struct {
	geoUtils         geo.GeoUtils
	onRouteThreshold float64
	nearbyThreshold  float64
}

// NewRouteMatcher creates a RouteMatcher. Non-positive thresholds use the defaults.
func NewRouteMatcher(onRouteThreshold, nearbyThreshold float64) RouteMatcher {
	if onRouteThreshold <= 0 {
		onRouteThreshold = DefaultOnRouteThreshold
	}
	if nearbyThreshold <= 0 {
		nearbyThreshold = DefaultNearbyThreshold
	}
	if nearbyThreshold < onRouteThreshold {
		nearbyThreshold = onRouteThreshold
	}

	return &routeMatcher{
		geoUtils:         geo.NewGeoUtils(),
		onRouteThreshold: onRouteThreshold,
		nearbyThreshold:  nearbyThreshold,
	}
}

// MatchStep classifies a position against a single step
func (r *routeMatcher) MatchStep(position geo.Point, route Route, stepIndex int) (PositionMatch, error) {
	if stepIndex < 0 || stepIndex >= len(route.Steps) {
		return PositionMatch{}, errors.New("step index out of range")
	}

	polyline := geo.Polyline{Points: route.Steps[stepIndex].Path()}

	distance, err := r.geoUtils.PointToPolyline(position, polyline)
	if err != nil {
		return PositionMatch{}, err
	}

	closest, err := r.geoUtils.ClosestPointOnPolyline(position, polyline)
	if err != nil {
		return PositionMatch{}, err
	}

	return PositionMatch{
		Classification:  r.classify(distance),
		StepIndex:       stepIndex,
		DistanceToRoute: distance,
		ClosestPoint:    closest,
	}, nil
}

// MatchRoute finds the nearest step at or after fromIndex
func (r *routeMatcher) MatchRoute(position geo.Point, route Route, fromIndex int) (PositionMatch, error) {
	if len(route.Steps) == 0 {
		return PositionMatch{}, errors.New("route has no steps")
	}
	if fromIndex < 0 {
		fromIndex = 0
	}

	best := PositionMatch{Classification: Distant, StepIndex: -1, DistanceToRoute: math.Inf(1)}
	for i := fromIndex; i < len(route.Steps); i++ {
		match, err := r.MatchStep(position, route, i)
		if err != nil {
			return PositionMatch{}, err
		}
		if match.DistanceToRoute < best.DistanceToRoute {
			best = match
		}
	}

	if best.StepIndex < 0 {
		return PositionMatch{}, errors.New("step index out of range")
	}

	return best, nil
}

// Thresholds returns the on-route and nearby thresholds
func (r *routeMatcher) Thresholds() (float64, float64) {
	return r.onRouteThreshold, r.nearbyThreshold
}

func (r *routeMatcher) classify(distance float64) Classification {
	switch {
	case distance <= r.onRouteThreshold:
		return OnRoute
	case distance <= r.nearbyThreshold:
		return Nearby
	default:
		return Distant
	}
}
