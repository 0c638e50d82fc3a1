package routing

import (
	"time"

	"github.com/dpup/geonav/server/internal/lib/geo"
)

// EstimateTravelTime returns the straight-line travel time for a profile.
// Used by the mode picker before a route has been fetched.
func EstimateTravelTime(origin, destination geo.Point, profile TravelProfile) time.Duration {
	speed := profile.SpeedMetersPerSecond()
	if speed <= 0 {
		return 0
	}
	seconds := geo.DistanceMeters(origin, destination) / speed
	return time.Duration(seconds * float64(time.Second))
}

// EstimateAll returns the straight-line travel time for every profile
func EstimateAll(origin, destination geo.Point) map[TravelProfile]time.Duration {
	estimates := make(map[TravelProfile]time.Duration, len(profileInfo))
	for _, p := range AllProfiles() {
		estimates[p] = EstimateTravelTime(origin, destination, p)
	}
	return estimates
}
