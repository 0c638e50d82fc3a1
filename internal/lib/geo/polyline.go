package geo

import (
	"errors"
	"fmt"

	"github.com/twpayne/go-polyline"
)

// ErrMalformedPolyline is returned when an encoded polyline cannot be decoded
var ErrMalformedPolyline = errors.New("malformed polyline")

// DecodePolyline decodes a Google polyline string (1e5 precision) to a point sequence.
// An empty string decodes to an empty sequence.
func DecodePolyline(encoded string) ([]Point, error) {
	if encoded == "" {
		return []Point{}, nil
	}

	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPolyline, err)
	}

	points := make([]Point, len(coords))
	for i, coord := range coords {
		points[i] = Point{
			Latitude:  coord[0],
			Longitude: coord[1],
		}

		if !isValidCoordinate(points[i]) {
			return nil, fmt.Errorf("%w: decoded coordinate %d out of range", ErrMalformedPolyline, i)
		}
	}

	return points, nil
}

// EncodePolyline encodes points with the Google polyline algorithm.
// Coordinates are rounded to 5 decimal places.
func EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}

	return string(polyline.EncodeCoords(coords))
}
