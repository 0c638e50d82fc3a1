package integration

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/geonav/server/internal/clients/google"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// Union Square to Coit Tower, San Francisco
var (
	unionSquare = geo.Point{Latitude: 37.7880, Longitude: -122.4075}
	coitTower   = geo.Point{Latitude: 37.8024, Longitude: -122.4058}
)

func directionsKey(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}
	return key
}

func TestDirectionsClient_FetchRoute_Integration(t *testing.T) {
	client := google.NewClient(directionsKey(t))

	route, err := client.FetchRoute(context.Background(), unionSquare, coitTower, routing.Walking)
	require.NoError(t, err, "FetchRoute should not return error with valid coordinates")
	require.NotNil(t, route)

	require.NotEmpty(t, route.Steps, "Route should have steps")
	require.NotEmpty(t, route.Overview, "Overview polyline should decode to points")
	assert.Equal(t, "walking", route.Mode)
	assert.False(t, route.Fallback)

	// Roughly 1.6 km straight line; walking paths add some
	total := route.TotalDistanceMeters()
	assert.Greater(t, total, 1500)
	assert.Less(t, total, 4000)

	for i, step := range route.Steps {
		assert.NotEmpty(t, step.Instruction, "step %d instruction", i)
		assert.True(t, step.StartPoint.Valid(), "step %d start point", i)
		assert.True(t, step.EndPoint.Valid(), "step %d end point", i)
	}

	assert.InDelta(t, coitTower.Latitude, route.FinalPoint().Latitude, 0.005)
	assert.InDelta(t, coitTower.Longitude, route.FinalPoint().Longitude, 0.005)
}

func TestDirectionsClient_MotorizedProfiles_Integration(t *testing.T) {
	client := google.NewClient(directionsKey(t))

	for _, profile := range []routing.TravelProfile{routing.TwoWheeler, routing.FourWheeler} {
		route, err := client.FetchRoute(context.Background(), unionSquare, coitTower, profile)
		require.NoError(t, err, "profile %s", profile)
		assert.Equal(t, "driving", route.Mode)
		assert.NotEmpty(t, route.Steps)
	}
}

func TestDirectionsClient_InvalidKey_Integration(t *testing.T) {
	directionsKey(t)
	client := google.NewClient("invalid-key")

	_, err := client.FetchRoute(context.Background(), unionSquare, coitTower, routing.Walking)
	require.Error(t, err)
	assert.True(t, routing.IsKind(err, routing.KindAPIStatus), "expected API status error, got %v", err)
}
