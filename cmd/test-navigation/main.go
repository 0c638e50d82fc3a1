package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/geonav/server/internal/clients/google"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
	"github.com/dpup/geonav/server/internal/services"
)

func main() {
	var (
		fixture    = flag.String("fixture", "tests/testdata/google/directions_walking.json", "Directions response to replay")
		apiKey     = flag.String("api-key", "", "Fetch a live route instead of the fixture (or set GOOGLE_API_KEY env var)")
		originStr  = flag.String("origin", "37.774900,-122.419400", "Origin for live routes (lat,lon)")
		destStr    = flag.String("dest", "37.779300,-122.419200", "Destination for live routes (lat,lon)")
		profileStr = flag.String("profile", "walking", "Travel profile: walking, two_wheeler, four_wheeler")
		spacing    = flag.Float64("spacing", 25, "Meters between simulated position fixes")
		accuracy   = flag.Float64("accuracy", 3, "Simulated horizontal accuracy in meters")
		interval   = flag.Duration("interval", 100*time.Millisecond, "Delay between simulated fixes")
	)
	flag.Parse()

	profile, err := routing.ParseTravelProfile(*profileStr)
	if err != nil {
		log.Fatalf("Invalid profile: %v", err)
	}

	key := *apiKey
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}

	var fetcher services.RouteFetcher
	var origin, destination geo.Point
	if key != "" {
		fetcher = google.NewClient(key)
		if origin, err = parsePoint(*originStr); err != nil {
			log.Fatalf("Invalid origin coordinates: %v", err)
		}
		if destination, err = parsePoint(*destStr); err != nil {
			log.Fatalf("Invalid destination coordinates: %v", err)
		}
	} else {
		body, err := os.ReadFile(*fixture)
		if err != nil {
			log.Fatalf("Failed to read fixture: %v", err)
		}
		route, err := routing.Parse(body, profile)
		if err != nil {
			log.Fatalf("Failed to parse fixture: %v", err)
		}
		fetcher = fixtureFetcher{route: route}
		origin, destination = route.Origin, route.Destination
	}

	ctx := logging.EnsureLogger(context.Background())
	service := services.NewNavigationService(fetcher, nil, guidance.NewRuleCondenser(), profile, navigation.DefaultOptions())

	fmt.Printf("Navigation Replay\n")
	fmt.Printf("=================\n")
	snap, err := service.StartNavigation(ctx, origin, destination)
	if err != nil {
		log.Printf("Directions failed, following straight line: %v", err)
	}
	route, _ := service.Route()
	fmt.Printf("Route: %d steps, %s, ETA %s\n\n", snap.StepCount,
		navigation.FormatDistance(float64(snap.RemainingDistanceMeters)), navigation.FormatMinutes(snap.RemainingTimeSeconds))

	walker := newWalker(route, *spacing, *accuracy)
	loop := services.NewPositionLoop(service, walker, *interval, printUpdate)
	loop.Start(ctx)
	<-loop.Done()

	final := service.Current()
	if final.Arrived {
		fmt.Printf("\n🎉 Arrived after %d fixes\n", walker.count())
	} else {
		fmt.Printf("\nReplay ended before arrival (step %d of %d)\n", final.CurrentStepIndex+1, final.StepCount)
	}
}

func printUpdate(update services.PositionUpdate) {
	snap := update.Snapshot
	marker := " "
	if snap.StepChanged {
		marker = "*"
	}
	arrow := ""
	if update.Indicator != nil {
		arrow = fmt.Sprintf("%s %s", update.Indicator.Symbol, update.Indicator.DistanceText)
	}
	fmt.Printf("%s step %d/%d  %-40s %10s remaining  %s\n", marker,
		snap.CurrentStepIndex+1, snap.StepCount, snap.Cue,
		navigation.FormatDistance(float64(snap.RemainingDistanceMeters)), arrow)
	if snap.OffRoute {
		fmt.Printf("    off route by %.0f meters\n", snap.DistanceFromRouteMeters)
	}
}

// fixtureFetcher serves a pre-parsed route for any request
type fixtureFetcher struct {
	route *routing.Route
}

func (f fixtureFetcher) FetchRoute(_ context.Context, _, _ geo.Point, _ routing.TravelProfile) (*routing.Route, error) {
	return f.route, nil
}

// walker is a LocationProvider that moves along the route geometry at a
// fixed spacing and then reports ErrNoMorePositions
type walker struct {
	mu    sync.Mutex
	poses []navigation.Pose
	next  int
}

func newWalker(route routing.Route, spacing, accuracy float64) *walker {
	var path []geo.Point
	for _, step := range route.Steps {
		path = append(path, step.Path()...)
	}

	var samples []geo.Point
	for i := 1; i < len(path); i++ {
		a, b := path[i-1], path[i]
		n := int(math.Max(1, math.Ceil(geo.DistanceMeters(a, b)/spacing)))
		for j := 0; j < n; j++ {
			t := float64(j) / float64(n)
			samples = append(samples, geo.Point{
				Latitude:  a.Latitude + (b.Latitude-a.Latitude)*t,
				Longitude: a.Longitude + (b.Longitude-a.Longitude)*t,
			})
		}
	}
	if len(path) > 0 {
		samples = append(samples, path[len(path)-1])
	}

	poses := make([]navigation.Pose, len(samples))
	for i, p := range samples {
		heading := 0.0
		if i+1 < len(samples) {
			heading = geo.InitialBearingDegrees(p, samples[i+1])
		} else if i > 0 {
			heading = geo.InitialBearingDegrees(samples[i-1], p)
		}
		poses[i] = navigation.Pose{Point: p, Heading: heading, HorizontalAccuracy: accuracy, HeadingAccuracy: 5}
	}
	return &walker{poses: poses}
}

func (w *walker) CurrentPosition(context.Context) (navigation.Pose, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.next >= len(w.poses) {
		return navigation.Pose{}, services.ErrNoMorePositions
	}
	pose := w.poses[w.next]
	w.next++
	return pose, nil
}

func (w *walker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.next
}

func parsePoint(s string) (geo.Point, error) {
	var lat, lng float64
	if _, err := fmt.Sscanf(s, "%f,%f", &lat, &lng); err != nil {
		return geo.Point{}, err
	}
	return geo.NewPoint(lat, lng)
}
