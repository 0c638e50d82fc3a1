package routing

import (
	"encoding/json"
	"math"

	"github.com/dpup/geonav/server/internal/lib/geo"
)

// Wire format of the Google Directions API (json output). Pointer fields
// distinguish absent values from zero values.
type directionsResponse struct {
	Status       *string          `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Routes       []directionRoute `json:"routes"`
}

type directionRoute struct {
	OverviewPolyline *encodedPolyline `json:"overview_polyline"`
	Legs             []directionLeg   `json:"legs"`
}

type directionLeg struct {
	Steps []directionStep `json:"steps"`
}

type directionStep struct {
	HTMLInstructions *string          `json:"html_instructions"`
	Distance         *textValue       `json:"distance"`
	StartLocation    *latLng          `json:"start_location"`
	EndLocation      *latLng          `json:"end_location"`
	Polyline         *encodedPolyline `json:"polyline"`
}

type encodedPolyline struct {
	Points *string `json:"points"`
}

type textValue struct {
	Text  string   `json:"text"`
	Value *float64 `json:"value"`
}

type latLng struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Parse converts a directions response body into a Route.
// Failures are *DirectionsError with KindAPIStatus or KindMalformed.
func Parse(body []byte, profile TravelProfile) (*Route, error) {
	var resp directionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, NewMalformedError("failed to decode response: %w", err)
	}

	if resp.Status == nil {
		return nil, NewMalformedError("missing status")
	}
	if *resp.Status != "OK" {
		return nil, NewAPIStatusError(*resp.Status, resp.ErrorMessage)
	}

	if len(resp.Routes) == 0 {
		return nil, NewMalformedError("no routes in response")
	}
	first := resp.Routes[0]

	if first.OverviewPolyline == nil || first.OverviewPolyline.Points == nil {
		return nil, NewMalformedError("missing overview_polyline.points")
	}
	overview, err := geo.DecodePolyline(*first.OverviewPolyline.Points)
	if err != nil {
		return nil, NewMalformedError("overview polyline: %w", err)
	}

	if len(first.Legs) == 0 {
		return nil, NewMalformedError("no legs in route")
	}

	steps := make([]Step, 0, len(first.Legs[0].Steps))
	for i, raw := range first.Legs[0].Steps {
		step, err := parseStep(raw)
		if err != nil {
			return nil, NewMalformedError("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}

	route := &Route{
		Steps:    steps,
		Overview: overview,
		Mode:     profile.APIMode(),
	}
	if len(steps) > 0 {
		route.Origin = steps[0].StartPoint
		route.Destination = steps[len(steps)-1].EndPoint
	}

	return route, nil
}

func parseStep(raw directionStep) (Step, error) {
	if raw.HTMLInstructions == nil {
		return Step{}, errMissing("html_instructions")
	}
	if raw.Distance == nil || raw.Distance.Value == nil {
		return Step{}, errMissing("distance.value")
	}

	start, err := parseLatLng(raw.StartLocation, "start_location")
	if err != nil {
		return Step{}, err
	}
	end, err := parseLatLng(raw.EndLocation, "end_location")
	if err != nil {
		return Step{}, err
	}

	if raw.Polyline == nil || raw.Polyline.Points == nil {
		return Step{}, errMissing("polyline.points")
	}
	geometry, err := geo.DecodePolyline(*raw.Polyline.Points)
	if err != nil {
		return Step{}, err
	}

	return Step{
		StartPoint:     start,
		EndPoint:       end,
		Instruction:    *raw.HTMLInstructions,
		DistanceMeters: int(math.Round(*raw.Distance.Value)),
		Geometry:       geometry,
	}, nil
}

func parseLatLng(raw *latLng, field string) (geo.Point, error) {
	if raw == nil || raw.Lat == nil || raw.Lng == nil {
		return geo.Point{}, errMissing(field)
	}
	return geo.NewPoint(*raw.Lat, *raw.Lng)
}

type missingFieldError string

func (e missingFieldError) Error() string {
	return "missing " + string(e)
}

func errMissing(field string) error {
	return missingFieldError(field)
}
