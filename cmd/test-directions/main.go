package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dpup/geonav/server/internal/clients/google"
	"github.com/dpup/geonav/server/internal/lib/export"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

func main() {
	var (
		apiKey     = flag.String("api-key", "", "Google Directions API key (or set GOOGLE_API_KEY env var)")
		originStr  = flag.String("origin", "37.774900,-122.419400", "Origin coordinates (lat,lon)")
		destStr    = flag.String("dest", "37.819900,-122.478300", "Destination coordinates (lat,lon)")
		profileStr = flag.String("profile", "walking", "Travel profile: walking, two_wheeler, four_wheeler")
		kmlPath    = flag.String("kml", "", "Write the route as KML to this file")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		fmt.Printf("Google Directions API Test Tool\n\n")
		fmt.Printf("Fetches a route with the Directions client and prints its steps.\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nExamples:\n")
		fmt.Printf("  %s -api-key=YOUR_KEY\n", os.Args[0])
		fmt.Printf("  %s -origin=\"37.7749,-122.4194\" -dest=\"37.8078,-122.4750\" -profile=four_wheeler\n", os.Args[0])
		fmt.Printf("  GOOGLE_API_KEY=your_key %s -kml=route.kml\n", os.Args[0])
		return
	}

	// Get API key from flag or environment
	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if key == "" {
		log.Fatal("Google Directions API key required. Use -api-key flag or GOOGLE_API_KEY env var")
	}

	profile, err := routing.ParseTravelProfile(*profileStr)
	if err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}

	origin, err := parsePoint(*originStr)
	if err != nil {
		log.Fatalf("Invalid origin coordinates: %v", err)
	}
	destination, err := parsePoint(*destStr)
	if err != nil {
		log.Fatalf("Invalid destination coordinates: %v", err)
	}

	fmt.Printf("Google Directions API Test\n")
	fmt.Printf("==========================\n")
	fmt.Printf("Origin: %.6f, %.6f\n", origin.Latitude, origin.Longitude)
	fmt.Printf("Destination: %.6f, %.6f\n", destination.Latitude, destination.Longitude)
	fmt.Printf("Profile: %s (mode=%s)\n", profile, profile.APIMode())
	fmt.Printf("API Key: %s...\n", key[:min(len(key), 10)])
	fmt.Printf("\n")

	client := google.NewClient(key)

	fmt.Printf("Testing FetchRoute...\n")
	route, err := client.FetchRoute(context.Background(), origin, destination, profile)
	if err != nil {
		if derr, ok := routing.AsDirectionsError(err); ok {
			log.Fatalf("FetchRoute failed (%s): %v", derr.Kind, err)
		}
		log.Fatalf("FetchRoute failed: %v", err)
	}

	total := float64(route.TotalDistanceMeters())
	fmt.Printf("✅ FetchRoute successful!\n")
	fmt.Printf("Distance: %s\n", navigation.FormatDistance(total))
	fmt.Printf("Estimated time: %s\n", navigation.FormatMinutes(total/profile.SpeedMetersPerSecond()))
	fmt.Printf("Overview points: %d\n", len(route.Overview))
	fmt.Printf("Steps: %d\n", len(route.Steps))
	for i, step := range route.Steps {
		fmt.Printf("  %2d. %-60s %s\n", i+1, guidance.StripMarkup(step.Instruction),
			navigation.FormatDistance(float64(step.DistanceMeters)))
	}

	if *kmlPath != "" {
		f, err := os.Create(*kmlPath)
		if err != nil {
			log.Fatalf("Failed to create KML file: %v", err)
		}
		defer f.Close()
		if err := export.WriteRoute(f, *route); err != nil {
			log.Fatalf("Failed to write KML: %v", err)
		}
		fmt.Printf("\nRoute written to %s\n", *kmlPath)
	}

	fmt.Printf("\n🎉 Directions fetch completed!\n")
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
