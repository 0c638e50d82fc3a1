package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	geoUtils := geo.NewGeoUtils()

	switch command {
	case "point-distance":
		handlePointDistance(geoUtils)
	case "polyline-distance":
		handlePolylineDistance(geoUtils)
	case "bearing":
		handleBearing()
	case "encode-polyline":
		handleEncodePolyline()
	case "decode-polyline":
		handleDecodePolyline(geoUtils)
	case "filter-points":
		handleFilterPoints(geoUtils)
	case "estimate":
		handleEstimate()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handlePointDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("point-distance", flag.ExitOnError)
	lat1 := fs.Float64("lat1", 0, "Latitude of first point")
	lng1 := fs.Float64("lng1", 0, "Longitude of first point")
	lat2 := fs.Float64("lat2", 0, "Latitude of second point")
	lng2 := fs.Float64("lng2", 0, "Longitude of second point")

	fs.Parse(os.Args[2:])

	if *lat1 == 0 && *lng1 == 0 && *lat2 == 0 && *lng2 == 0 {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils point-distance --lat1 37.7749 --lng1 -122.4194 --lat2 37.8199 --lng2 -122.4783")
		fmt.Println("  (Distance from downtown San Francisco to the Golden Gate Bridge)")
		os.Exit(1)
	}

	distance, err := geoUtils.DistanceFromCoords(*lat1, *lng1, *lat2, *lng2)
	if err != nil {
		log.Fatalf("Error calculating distance: %v", err)
	}

	fmt.Printf("Distance between points:\n")
	fmt.Printf("  Point 1: (%.6f, %.6f)\n", *lat1, *lng1)
	fmt.Printf("  Point 2: (%.6f, %.6f)\n", *lat2, *lng2)
	fmt.Printf("  Distance: %.2f meters (%s)\n", distance, navigation.FormatDistance(distance))
}

func handlePolylineDistance(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("polyline-distance", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "Latitude of point")
	lng := fs.Float64("lng", 0, "Longitude of point")
	polylineStr := fs.String("polyline", "", "Encoded polyline string")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils polyline-distance --lat 38.5 --lng -120.25 --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}
	polyline := geo.Polyline{EncodedPolyline: *polylineStr, Points: points}
	point := geo.Point{Latitude: *lat, Longitude: *lng}

	distance, err := geoUtils.PointToPolyline(point, polyline)
	if err != nil {
		log.Fatalf("Error calculating distance to polyline: %v", err)
	}

	closest, err := geoUtils.ClosestPointOnPolyline(point, polyline)
	if err != nil {
		log.Fatalf("Error finding closest point: %v", err)
	}

	fmt.Printf("Distance from point to polyline:\n")
	fmt.Printf("  Point: (%.6f, %.6f)\n", point.Latitude, point.Longitude)
	fmt.Printf("  Polyline: %d points\n", len(points))
	fmt.Printf("  Closest point: (%.6f, %.6f)\n", closest.Latitude, closest.Longitude)
	fmt.Printf("  Distance: %.2f meters (%s)\n", distance, navigation.FormatDistance(distance))
}

func handleBearing() {
	fs := flag.NewFlagSet("bearing", flag.ExitOnError)
	from := fs.String("from", "", "Observer position (lat,lng)")
	to := fs.String("to", "", "Target position (lat,lng)")
	heading := fs.Float64("heading", 0, "Observer heading in degrees clockwise from north")

	fs.Parse(os.Args[2:])

	if *from == "" || *to == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils bearing --from \"37.7749,-122.4194\" --to \"37.8199,-122.4783\" --heading 90")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*from + ";" + *to)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}

	pose := navigation.Pose{Point: points[0], Heading: *heading}
	indicator := navigation.DestinationCue(pose, points[1])

	fmt.Printf("Bearing to target:\n")
	fmt.Printf("  Bearing: %.1f°\n", indicator.Bearing)
	fmt.Printf("  Heading: %.1f°\n", *heading)
	fmt.Printf("  Relative angle: %.1f°\n", indicator.RelativeAngle)
	fmt.Printf("  Arrow: %s (%s)\n", indicator.Symbol, indicator.Arrow)
	fmt.Printf("  Distance: %s (%s)\n", indicator.DistanceText, indicator.Proximity)
}

func handleEncodePolyline() {
	fs := flag.NewFlagSet("encode-polyline", flag.ExitOnError)
	coords := fs.String("coords", "", "Semicolon separated lat,lng pairs")

	fs.Parse(os.Args[2:])

	if *coords == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils encode-polyline --coords \"38.5,-120.2;40.7,-120.95;43.252,-126.453\"")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*coords)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}

	fmt.Printf("Encoded %d points:\n", len(points))
	fmt.Printf("  %s\n", geo.EncodePolyline(points))
}

func handleDecodePolyline(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("decode-polyline", flag.ExitOnError)
	polylineStr := fs.String("polyline", "", "Encoded polyline string to decode")
	verbose := fs.Bool("verbose", false, "Show all decoded points")

	fs.Parse(os.Args[2:])

	if *polylineStr == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"_p~iF~ps|U_ulLnnqC_mqNvxq`@\"")
		fmt.Println("  test-geo-utils decode-polyline --polyline \"encoded_string\" --verbose")
		os.Exit(1)
	}

	points, err := geoUtils.DecodePolyline(*polylineStr)
	if err != nil {
		log.Fatalf("Error decoding polyline: %v", err)
	}

	fmt.Printf("Polyline decoded successfully:\n")
	fmt.Printf("  Input: %s\n", *polylineStr)
	fmt.Printf("  Points: %d\n", len(points))

	if len(points) > 0 {
		fmt.Printf("  Start: (%.6f, %.6f)\n", points[0].Latitude, points[0].Longitude)
		if len(points) > 1 {
			fmt.Printf("  End: (%.6f, %.6f)\n", points[len(points)-1].Latitude, points[len(points)-1].Longitude)
		}
	}

	if *verbose && len(points) > 0 {
		fmt.Printf("  All points:\n")
		for i, point := range points {
			fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
		}
	}
}

func handleFilterPoints(geoUtils geo.GeoUtils) {
	fs := flag.NewFlagSet("filter-points", flag.ExitOnError)
	coords := fs.String("coords", "", "Semicolon separated lat,lng pairs")
	center := fs.String("center", "", "Center point (lat,lng)")
	radius := fs.Float64("radius", 100, "Radius in meters")

	fs.Parse(os.Args[2:])

	if *coords == "" || *center == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils filter-points --coords \"37.0,-122.0;37.001,-122.0;37.1,-122.0\" --center \"37.0,-122.0\" --radius 200")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*coords)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}
	centers, err := parseCoordinatePairs(*center)
	if err != nil {
		log.Fatalf("Error parsing center: %v", err)
	}

	within, err := geoUtils.FilterPointsByDistance(points, centers[0], *radius)
	if err != nil {
		log.Fatalf("Error filtering points: %v", err)
	}

	fmt.Printf("Points within %.0f meters: %d of %d\n", *radius, len(within), len(points))
	for i, point := range within {
		fmt.Printf("    %d: (%.6f, %.6f)\n", i+1, point.Latitude, point.Longitude)
	}
}

func handleEstimate() {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	origin := fs.String("origin", "", "Origin (lat,lng)")
	dest := fs.String("dest", "", "Destination (lat,lng)")

	fs.Parse(os.Args[2:])

	if *origin == "" || *dest == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-geo-utils estimate --origin \"37.7749,-122.4194\" --dest \"37.8199,-122.4783\"")
		os.Exit(1)
	}

	points, err := parseCoordinatePairs(*origin + ";" + *dest)
	if err != nil {
		log.Fatalf("Error parsing coordinates: %v", err)
	}

	distance := geo.DistanceMeters(points[0], points[1])
	fmt.Printf("Straight-line travel times for %s:\n", navigation.FormatDistance(distance))
	estimates := routing.EstimateAll(points[0], points[1])
	for _, profile := range routing.AllProfiles() {
		fmt.Printf("  %-13s %s\n", profile.String()+":", navigation.FormatMinutes(estimates[profile].Seconds()))
	}
}

func printUsage() {
	fmt.Printf(`test-geo-utils - Geographic utility testing tool

USAGE:
    test-geo-utils <command> [options]

COMMANDS:
    point-distance      Calculate great-circle distance between two points
    polyline-distance   Calculate minimum distance from point to polyline
    bearing             Show bearing, relative angle and arrow toward a target
    encode-polyline     Encode coordinates as a Google polyline string
    decode-polyline     Decode Google polyline string to coordinates
    filter-points       Keep the points within a radius of a center point
    estimate            Straight-line travel time for every travel profile
    help                Show this help message

EXAMPLES:
    # Distance from downtown San Francisco to the Golden Gate Bridge
    test-geo-utils point-distance --lat1 37.7749 --lng1 -122.4194 --lat2 37.8199 --lng2 -122.4783

    # Which way is the bridge when facing east
    test-geo-utils bearing --from "37.7749,-122.4194" --to "37.8199,-122.4783" --heading 90

    # Round trip a polyline
    test-geo-utils encode-polyline --coords "38.5,-120.2;40.7,-120.95;43.252,-126.453"
    test-geo-utils decode-polyline --polyline "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@" --verbose
`)
}

// Helper function to parse coordinate pairs from string
func parseCoordinatePairs(coordStr string) ([]geo.Point, error) {
	if coordStr == "" {
		return nil, fmt.Errorf("empty coordinate string")
	}

	pairs := strings.Split(coordStr, ";")
	points := make([]geo.Point, 0, len(pairs))

	for _, pair := range pairs {
		coords := strings.Split(strings.TrimSpace(pair), ",")
		if len(coords) != 2 {
			return nil, fmt.Errorf("invalid coordinate pair: %s", pair)
		}

		lat, err := strconv.ParseFloat(strings.TrimSpace(coords[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid latitude: %s", coords[0])
		}

		lng, err := strconv.ParseFloat(strings.TrimSpace(coords[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid longitude: %s", coords[1])
		}

		point, err := geo.NewPoint(lat, lng)
		if err != nil {
			return nil, err
		}
		points = append(points, point)
	}

	return points, nil
}
