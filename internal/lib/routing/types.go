package routing

import (
	"fmt"
	"math"
	"strings"

	"github.com/dpup/geonav/server/internal/lib/geo"
)

// TravelProfile selects the routing mode and the assumed average speed used for ETA math
type TravelProfile int

const (
	Walking TravelProfile = iota
	TwoWheeler
	FourWheeler
)

// The two motorized profiles share "driving" geometry and differ only in speed
var profileInfo = map[TravelProfile]struct {
	name  string
	mode  string
	speed float64 // meters per second
}{
	Walking:     {name: "walking", mode: "walking", speed: 1.4},
	TwoWheeler:  {name: "two_wheeler", mode: "driving", speed: 8.3},
	FourWheeler: {name: "four_wheeler", mode: "driving", speed: 13.9},
}

// AllProfiles returns every profile in display order
func AllProfiles() []TravelProfile {
	return []TravelProfile{Walking, TwoWheeler, FourWheeler}
}

// SpeedMetersPerSecond returns the assumed average speed
func (p TravelProfile) SpeedMetersPerSecond() float64 {
	return profileInfo[p].speed
}

// APIMode returns the directions API mode name
func (p TravelProfile) APIMode() string {
	if info, ok := profileInfo[p]; ok {
		return info.mode
	}
	return profileInfo[Walking].mode
}

func (p TravelProfile) String() string {
	if info, ok := profileInfo[p]; ok {
		return info.name
	}
	return fmt.Sprintf("TravelProfile(%d)", int(p))
}

// MarshalText implements encoding.TextMarshaler
func (p TravelProfile) MarshalText() ([]byte, error) {
	if _, ok := profileInfo[p]; !ok {
		return nil, fmt.Errorf("unknown travel profile %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *TravelProfile) UnmarshalText(text []byte) error {
	parsed, err := ParseTravelProfile(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseTravelProfile accepts "walking", "two_wheeler" and "four_wheeler" (case-insensitive, '-' or '_')
func ParseTravelProfile(s string) (TravelProfile, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, p := range AllProfiles() {
		if profileInfo[p].name == normalized {
			return p, nil
		}
	}
	return Walking, fmt.Errorf("unknown travel profile %q", s)
}

// SharesGeometry reports whether switching between the two profiles can reuse the current route
func (p TravelProfile) SharesGeometry(other TravelProfile) bool {
	return p.APIMode() == other.APIMode()
}

// Step represents one maneuver segment of a route
type Step struct {
	StartPoint     geo.Point   `json:"start_point"`
	EndPoint       geo.Point   `json:"end_point"`
	Instruction    string      `json:"instruction"` // may contain simple HTML markup
	DistanceMeters int         `json:"distance_meters"`
	Geometry       []geo.Point `json:"geometry"`
}

// Path returns the step geometry, or its start and end points when the geometry is empty
func (s Step) Path() []geo.Point {
	if len(s.Geometry) > 0 {
		return s.Geometry
	}
	return []geo.Point{s.StartPoint, s.EndPoint}
}

// Route is an ordered sequence of steps plus the overview geometry.
// Routes are replaced wholesale, never mutated after construction.
type Route struct {
	Origin      geo.Point   `json:"origin"`
	Destination geo.Point   `json:"destination"`
	Steps       []Step      `json:"steps"`
	Overview    []geo.Point `json:"overview"`
	Mode        string      `json:"mode"`
	Fallback    bool        `json:"fallback"` // straight line used after a failed fetch
}

// TotalDistanceMeters sums the per-step distances
func (r Route) TotalDistanceMeters() int {
	total := 0
	for _, step := range r.Steps {
		total += step.DistanceMeters
	}
	return total
}

// FinalPoint returns the end of the last step, or the destination when there are no steps
func (r Route) FinalPoint() geo.Point {
	if len(r.Steps) == 0 {
		return r.Destination
	}
	return r.Steps[len(r.Steps)-1].EndPoint
}

// StraightLineInstruction is the instruction used by fallback routes
const StraightLineInstruction = "Head toward destination"

// StraightLineRoute builds a single-step direct route between origin and destination
func StraightLineRoute(origin, destination geo.Point, profile TravelProfile) Route {
	line := []geo.Point{origin, destination}
	return Route{
		Origin:      origin,
		Destination: destination,
		Steps: []Step{{
			StartPoint:     origin,
			EndPoint:       destination,
			Instruction:    StraightLineInstruction,
			DistanceMeters: int(math.Round(geo.DistanceMeters(origin, destination))),
			Geometry:       line,
		}},
		Overview: line,
		Mode:     profile.APIMode(),
		Fallback: true,
	}
}
