package navigation

import (
	"fmt"

	"github.com/dpup/geonav/server/internal/lib/geo"
)

// Quality grades a geospatial pose by its accuracy estimates
type Quality string

const (
	QualityExcellent Quality = "EXCELLENT"
	QualityGood      Quality = "GOOD"
	QualityFair      Quality = "FAIR"
	QualityPoor      Quality = "POOR"
)

// LocalizedAccuracyMeters is the horizontal accuracy below which a pose is usable outdoors
const LocalizedAccuracyMeters = 20.0

// Pose is an Earth-relative position and heading fix with accuracy estimates
type Pose struct {
	geo.Point
	Heading            float64 `json:"heading"`             // degrees clockwise from north
	HorizontalAccuracy float64 `json:"horizontal_accuracy"` // meters
	HeadingAccuracy    float64 `json:"heading_accuracy"`    // degrees
}

// Quality grades the pose
func (p Pose) Quality() Quality {
	switch {
	case p.HorizontalAccuracy <= 3 && p.HeadingAccuracy <= 10:
		return QualityExcellent
	case p.HorizontalAccuracy <= 10 && p.HeadingAccuracy <= 20:
		return QualityGood
	case p.HorizontalAccuracy <= 20 && p.HeadingAccuracy <= 30:
		return QualityFair
	default:
		return QualityPoor
	}
}

// QualityText renders the quality with its accuracies, e.g. "Tracking: GOOD (±5m, ±12°)"
func (p Pose) QualityText() string {
	return fmt.Sprintf("Tracking: %s (±%dm, ±%d°)", p.Quality(), int(p.HorizontalAccuracy), int(p.HeadingAccuracy))
}

// Localized reports whether the pose is accurate enough to anchor content
func (p Pose) Localized() bool {
	return p.HorizontalAccuracy < LocalizedAccuracyMeters
}

// Proximity bands the distance to the destination
type Proximity string

const (
	ProximityNear        Proximity = "near"        // < 50m
	ProximityApproaching Proximity = "approaching" // < 200m
	ProximityFar         Proximity = "far"
)

// Indicator describes which way and how far the destination is from a pose
type Indicator struct {
	DistanceMeters float64   `json:"distance_meters"`
	DistanceText   string    `json:"distance_text"`
	Bearing        float64   `json:"bearing"`
	RelativeAngle  float64   `json:"relative_angle"`
	Arrow          geo.Arrow `json:"-"`
	Symbol         string    `json:"arrow"`
	Proximity      Proximity `json:"proximity"`
}

// DestinationCue computes the on-screen indicator pointing at the destination
func DestinationCue(pose Pose, destination geo.Point) Indicator {
	distance := geo.DistanceMeters(pose.Point, destination)
	bearing := geo.InitialBearingDegrees(pose.Point, destination)
	angle := geo.RelativeAngleDegrees(bearing, pose.Heading)
	arrow := geo.CompassArrow(angle)

	proximity := ProximityFar
	switch {
	case distance < 50:
		proximity = ProximityNear
	case distance < 200:
		proximity = ProximityApproaching
	}

	return Indicator{
		DistanceMeters: distance,
		DistanceText:   FormatDistance(distance),
		Bearing:        bearing,
		RelativeAngle:  angle,
		Arrow:          arrow,
		Symbol:         arrow.Symbol(),
		Proximity:      proximity,
	}
}
