package geo

import "math"

// Arrow is one of the eight compass arrows shown to the user
type Arrow int

const (
	ArrowNorth Arrow = iota
	ArrowNorthEast
	ArrowEast
	ArrowSouthEast
	ArrowSouth
	ArrowSouthWest
	ArrowWest
	ArrowNorthWest
)

var arrowSymbols = [...]string{"↑", "↗", "→", "↘", "↓", "↙", "←", "↖"}

var arrowNames = [...]string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}

// Symbol returns the glyph for the arrow
func (a Arrow) Symbol() string {
	if a < ArrowNorth || a > ArrowNorthWest {
		return "?"
	}
	return arrowSymbols[a]
}

// String returns the compass name of the arrow
func (a Arrow) String() string {
	if a < ArrowNorth || a > ArrowNorthWest {
		return "unknown"
	}
	return arrowNames[a]
}

// InitialBearingDegrees returns the great-circle bearing from one point to another in [0, 360).
// Identical points yield 0.
func InitialBearingDegrees(from, to Point) float64 {
	if from == to {
		return 0
	}

	lat1 := toRadians(from.Latitude)
	lat2 := toRadians(to.Latitude)
	dlon := toRadians(to.Longitude - from.Longitude)

	y := math.Sin(dlon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dlon)

	return NormalizeDegrees(toDegrees(math.Atan2(y, x)))
}

// NormalizeDegrees folds any angle into [0, 360)
func NormalizeDegrees(angle float64) float64 {
	a := math.Mod(angle, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}

// RelativeAngleDegrees returns the clockwise angle from heading to bearing in [0, 360).
// This is the value consumed by CompassArrow.
func RelativeAngleDegrees(bearing, heading float64) float64 {
	return NormalizeDegrees(bearing - heading)
}

// ShortestTurnDegrees returns the signed shortest turn from heading to bearing in (-180, 180].
// Positive values turn right.
func ShortestTurnDegrees(bearing, heading float64) float64 {
	a := RelativeAngleDegrees(bearing, heading)
	if a > 180 {
		a -= 360
	}
	return a
}

// CompassArrow maps an angle to one of eight 45° buckets centered on the compass points.
// An angle exactly on a boundary belongs to the bucket that starts there, so 22.5 is northeast.
func CompassArrow(angle float64) Arrow {
	a := NormalizeDegrees(angle)
	return Arrow(int(math.Floor((a+22.5)/45)) % 8)
}
