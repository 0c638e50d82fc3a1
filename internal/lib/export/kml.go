package export

import (
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// KML colors are rendered aabbggrr by the encoder
var (
	routeColor     = color.RGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0xff}
	completedColor = color.RGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	currentColor   = color.RGBA{R: 0x34, G: 0xa8, B: 0x53, A: 0xff}
	remainingColor = color.RGBA{R: 0x1a, G: 0x73, B: 0xe8, A: 0x99}
)

// ContentType is the media type of KML documents
const ContentType = "application/vnd.google-earth.kml+xml"

// WriteRoute writes a KML document with the route overview, one line per step
// and start/destination markers
func WriteRoute(w io.Writer, route routing.Route) error {
	return Write(w, route, nil)
}

// Write writes a KML document for route. When snapshot is an active
// navigation state the progress split and current position are included.
func Write(w io.Writer, route routing.Route, snapshot *navigation.Snapshot) error {
	routeStyle := kml.SharedStyle("route", kml.LineStyle(kml.Color(routeColor), kml.Width(5)))
	completedStyle := kml.SharedStyle("completed", kml.LineStyle(kml.Color(completedColor), kml.Width(5)))
	currentStyle := kml.SharedStyle("current", kml.LineStyle(kml.Color(currentColor), kml.Width(7)))
	remainingStyle := kml.SharedStyle("remaining", kml.LineStyle(kml.Color(remainingColor), kml.Width(5)))

	children := []kml.Element{
		kml.Name(fmt.Sprintf("Route (%s)", route.Mode)),
		kml.Description(describeRoute(route)),
		routeStyle,
		completedStyle,
		currentStyle,
		remainingStyle,
	}

	overview := route.Overview
	if len(overview) < 2 {
		overview = stepsPath(route.Steps)
	}
	if line := lineString(overview); line != nil {
		children = append(children, kml.Placemark(
			kml.Name("Overview"),
			kml.StyleURL(routeStyle.URL()),
			line,
		))
	}

	steps := make([]kml.Element, 0, len(route.Steps)+1)
	steps = append(steps, kml.Name("Steps"))
	for i, step := range route.Steps {
		placemark := []kml.Element{
			kml.Name(fmt.Sprintf("%d. %s", i+1, guidance.StripMarkup(step.Instruction))),
			kml.Description(navigation.FormatDistance(float64(step.DistanceMeters))),
			kml.StyleURL(routeStyle.URL()),
		}
		if line := lineString(step.Path()); line != nil {
			placemark = append(placemark, line)
		}
		steps = append(steps, kml.Placemark(placemark...))
	}
	children = append(children, kml.Folder(steps...))

	if len(route.Steps) > 0 || route.Origin != (geo.Point{}) {
		origin := route.Origin
		if len(route.Steps) > 0 {
			origin = route.Steps[0].StartPoint
		}
		children = append(children,
			pointPlacemark("Start", origin),
			pointPlacemark("Destination", route.FinalPoint()),
		)
	}

	if snapshot != nil && snapshot.Active {
		progress := []kml.Element{kml.Name("Progress")}
		for _, part := range []struct {
			name   string
			style  string
			points []geo.Point
		}{
			{"Completed", completedStyle.URL(), snapshot.CompletedGeometry},
			{"Current step", currentStyle.URL(), snapshot.CurrentStepGeometry},
			{"Remaining", remainingStyle.URL(), snapshot.RemainingGeometry},
		} {
			if line := lineString(part.points); line != nil {
				progress = append(progress, kml.Placemark(kml.Name(part.name), kml.StyleURL(part.style), line))
			}
		}
		progress = append(progress, kml.Placemark(
			kml.Name("Position"),
			kml.Description(fmt.Sprintf("Step %d of %d, %s remaining",
				snapshot.CurrentStepIndex+1, snapshot.StepCount,
				navigation.FormatDistance(float64(snapshot.RemainingDistanceMeters)))),
			kml.Point(kml.Coordinates(coordinate(snapshot.Position))),
		))
		children = append(children, kml.Folder(progress...))
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

func describeRoute(route routing.Route) string {
	desc := fmt.Sprintf("%s, %d steps", navigation.FormatDistance(float64(route.TotalDistanceMeters())), len(route.Steps))
	if route.Fallback {
		desc += " (straight line)"
	}
	return desc
}

func stepsPath(steps []routing.Step) []geo.Point {
	var points []geo.Point
	for _, step := range steps {
		points = append(points, step.Path()...)
	}
	return points
}

// lineString returns nil for fewer than two points
func lineString(points []geo.Point) kml.Element {
	if len(points) < 2 {
		return nil
	}
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = coordinate(p)
	}
	return kml.LineString(kml.Coordinates(coords...))
}

func pointPlacemark(name string, p geo.Point) kml.Element {
	return kml.Placemark(kml.Name(name), kml.Point(kml.Coordinates(coordinate(p))))
}

func coordinate(p geo.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
}
