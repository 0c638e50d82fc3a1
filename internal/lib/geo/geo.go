package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for all distance math
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinates is returned when a point lies outside the valid lat/lng ranges
var ErrInvalidCoordinates = errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")

// DistanceMeters calculates great-circle distance between two points using the Haversine formula.
// Inputs are assumed valid; use GeoUtils.PointToPoint for validation.
func DistanceMeters(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dlat := toRadians(b.Latitude - a.Latitude)
	dlon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	// Rounding can push h just past 1 for near-antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// geoUtils implements the GeoUtils interface
type geoUtils struct{}

// NewGeoUtils creates a new GeoUtils implementation
func NewGeoUtils() GeoUtils {
	return &geoUtils{}
}

// PointToPoint calculates great-circle distance between two validated points
func (g *geoUtils) PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, ErrInvalidCoordinates
	}
	return DistanceMeters(p1, p2), nil
}

// PointToPolyline calculates minimum distance from point to polyline
func (g *geoUtils) PointToPolyline(point Point, polyline Polyline) (float64, error) {
	if !isValidCoordinate(point) {
		return 0, errors.New("invalid point coordinates")
	}

	if len(polyline.Points) == 0 {
		return 0, errors.New("polyline has no points")
	}

	if len(polyline.Points) == 1 {
		return DistanceMeters(point, polyline.Points[0]), nil
	}

	minDistance := math.Inf(1)
	for i := 0; i < len(polyline.Points)-1; i++ {
		distance := pointToSegmentDistance(point, polyline.Points[i], polyline.Points[i+1])
		if distance < minDistance {
			minDistance = distance
		}
	}

	return minDistance, nil
}

// pointToSegmentDistance calculates distance from point to a great-circle segment.
// Points whose projection falls outside the segment measure to the nearest endpoint.
func pointToSegmentDistance(point, segmentStart, segmentEnd Point) float64 {
	distanceToStart := DistanceMeters(point, segmentStart)
	distanceToEnd := DistanceMeters(point, segmentEnd)
	segmentLength := DistanceMeters(segmentStart, segmentEnd)

	// Degenerate or very short segment
	if segmentLength < 1 {
		return math.Min(distanceToStart, distanceToEnd)
	}

	segmentBearing := toRadians(InitialBearingDegrees(segmentStart, segmentEnd))
	pointBearing := toRadians(InitialBearingDegrees(segmentStart, point))
	delta := pointBearing - segmentBearing

	// Behind the start of the segment
	if math.Cos(delta) < 0 {
		return distanceToStart
	}

	d13 := distanceToStart / EarthRadiusMeters
	dxt := math.Asin(clamp(math.Sin(d13)*math.Sin(delta), -1, 1))
	crossTrack := math.Abs(dxt) * EarthRadiusMeters

	alongTrack := math.Acos(clamp(math.Cos(d13)/math.Cos(dxt), -1, 1)) * EarthRadiusMeters
	if alongTrack > segmentLength {
		return distanceToEnd
	}

	return crossTrack
}

// ClosestPointOnPolyline finds closest point on polyline to given point
func (g *geoUtils) ClosestPointOnPolyline(point Point, polyline Polyline) (Point, error) {
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid point coordinates")
	}

	if len(polyline.Points) == 0 {
		return Point{}, errors.New("polyline has no points")
	}

	if len(polyline.Points) == 1 {
		return polyline.Points[0], nil
	}

	var closestPoint Point
	minDistance := math.Inf(1)

	for i := 0; i < len(polyline.Points)-1; i++ {
		candidate := closestPointOnSegment(point, polyline.Points[i], polyline.Points[i+1])
		distance := DistanceMeters(point, candidate)
		if distance < minDistance {
			minDistance = distance
			closestPoint = candidate
		}
	}

	return closestPoint, nil
}

// closestPointOnSegment projects point onto the segment in an equirectangular frame.
// Good enough for route segments, which are short.
func closestPointOnSegment(point, segmentStart, segmentEnd Point) Point {
	if segmentStart == segmentEnd {
		return segmentStart
	}

	scale := math.Cos(toRadians(segmentStart.Latitude))
	ax, ay := segmentStart.Longitude*scale, segmentStart.Latitude
	bx, by := segmentEnd.Longitude*scale, segmentEnd.Latitude
	px, py := point.Longitude*scale, point.Latitude

	dx, dy := bx-ax, by-ay
	t := clamp(((px-ax)*dx+(py-ay)*dy)/(dx*dx+dy*dy), 0, 1)

	return Point{
		Latitude:  segmentStart.Latitude + t*(segmentEnd.Latitude-segmentStart.Latitude),
		Longitude: segmentStart.Longitude + t*(segmentEnd.Longitude-segmentStart.Longitude),
	}
}

// DecodePolyline decodes Google polyline string to point sequence
func (g *geoUtils) DecodePolyline(encoded string) ([]Point, error) {
	return DecodePolyline(encoded)
}

// FilterPointsByDistance returns the points within maxDistanceMeters of center, in order
func (g *geoUtils) FilterPointsByDistance(points []Point, center Point, maxDistanceMeters float64) ([]Point, error) {
	if !isValidCoordinate(center) {
		return nil, errors.New("invalid center point coordinates")
	}

	var filteredPoints []Point
	for _, point := range points {
		if !isValidCoordinate(point) {
			continue // Skip invalid points
		}

		if DistanceMeters(center, point) <= maxDistanceMeters {
			filteredPoints = append(filteredPoints, point)
		}
	}

	return filteredPoints, nil
}

// DistanceFromCoords calculates distance between two coordinate pairs
func (g *geoUtils) DistanceFromCoords(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return g.PointToPoint(Point{Latitude: lat1, Longitude: lon1}, Point{Latitude: lat2, Longitude: lon2})
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, ErrInvalidCoordinates
	}
	return point, nil
}

// NewPointUnsafe creates a Point without validation (for performance-critical paths)
func NewPointUnsafe(latitude, longitude float64) Point {
	return Point{Latitude: latitude, Longitude: longitude}
}

// Valid reports whether the point lies within the lat/lng ranges
func (p Point) Valid() bool {
	return isValidCoordinate(p)
}

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
