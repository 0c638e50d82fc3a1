package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "match-position":
		handleMatchPosition()
	case "step-distances":
		handleStepDistances()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleMatchPosition() {
	fs := flag.NewFlagSet("match-position", flag.ExitOnError)
	routeFile := fs.String("route-json", "", "Path to a Directions API response")
	lat := fs.Float64("lat", 0, "Latitude of position")
	lng := fs.Float64("lng", 0, "Longitude of position")
	fromStep := fs.Int("from-step", 0, "Only consider steps at or after this index")
	onRoute := fs.Float64("on-route", routing.DefaultOnRouteThreshold, "On-route threshold in meters")
	nearby := fs.Float64("nearby", routing.DefaultNearbyThreshold, "Nearby threshold in meters")

	fs.Parse(os.Args[2:])

	if *routeFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-route-matcher match-position --route-json tests/testdata/google/directions_walking.json --lat 37.001 --lng -122.0003")
		os.Exit(1)
	}

	route := loadRoute(*routeFile)
	position, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		log.Fatalf("Invalid position: %v", err)
	}

	matcher := routing.NewRouteMatcher(*onRoute, *nearby)
	match, err := matcher.MatchRoute(position, route, *fromStep)
	if err != nil {
		log.Fatalf("Error matching position: %v", err)
	}

	onRouteThreshold, nearbyThreshold := matcher.Thresholds()
	fmt.Printf("Position match:\n")
	fmt.Printf("  Position: (%.6f, %.6f)\n", position.Latitude, position.Longitude)
	fmt.Printf("  Thresholds: on route <= %.0fm, nearby <= %.0fm\n", onRouteThreshold, nearbyThreshold)
	fmt.Printf("  Classification: %s\n", match.Classification)
	fmt.Printf("  Step: %d - %s\n", match.StepIndex+1, guidance.StripMarkup(route.Steps[match.StepIndex].Instruction))
	fmt.Printf("  Distance to route: %.1f meters\n", match.DistanceToRoute)
	fmt.Printf("  Closest point: (%.6f, %.6f)\n", match.ClosestPoint.Latitude, match.ClosestPoint.Longitude)
}

func handleStepDistances() {
	fs := flag.NewFlagSet("step-distances", flag.ExitOnError)
	routeFile := fs.String("route-json", "", "Path to a Directions API response")
	lat := fs.Float64("lat", 0, "Latitude of position")
	lng := fs.Float64("lng", 0, "Longitude of position")

	fs.Parse(os.Args[2:])

	if *routeFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-route-matcher step-distances --route-json tests/testdata/google/directions_walking.json --lat 37.0018 --lng -121.999")
		os.Exit(1)
	}

	route := loadRoute(*routeFile)
	position, err := geo.NewPoint(*lat, *lng)
	if err != nil {
		log.Fatalf("Invalid position: %v", err)
	}

	matcher := routing.NewRouteMatcher(0, 0)
	fmt.Printf("Distance from (%.6f, %.6f) to each step:\n", position.Latitude, position.Longitude)
	for i := range route.Steps {
		match, err := matcher.MatchStep(position, route, i)
		if err != nil {
			log.Fatalf("Error matching step %d: %v", i, err)
		}
		toStart := geo.DistanceMeters(position, route.Steps[i].StartPoint)
		fmt.Printf("  %d. %-45s %9s from path  %9s from start  [%s]\n", i+1,
			guidance.StripMarkup(route.Steps[i].Instruction),
			navigation.FormatDistance(match.DistanceToRoute),
			navigation.FormatDistance(toStart),
			match.Classification)
	}
}

func loadRoute(path string) routing.Route {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Error reading route file %s: %v", path, err)
	}

	route, err := routing.Parse(data, routing.Walking)
	if err != nil {
		log.Fatalf("Error parsing route: %v", err)
	}
	if len(route.Steps) == 0 {
		log.Fatal("Route has no steps")
	}
	return *route
}

func printUsage() {
	fmt.Printf(`test-route-matcher - Route position matching testing tool

USAGE:
    test-route-matcher <command> [options]

COMMANDS:
    match-position   Classify a position against the nearest remaining step
    step-distances   Show the distance from a position to every step
    help             Show this help message

EXAMPLES:
    test-route-matcher match-position --route-json tests/testdata/google/directions_walking.json --lat 37.001 --lng -122.0003
    test-route-matcher match-position --route-json route.json --lat 37.001 --lng -122.0003 --from-step 1 --on-route 20
    test-route-matcher step-distances --route-json route.json --lat 37.0018 --lng -121.999
`)
}
