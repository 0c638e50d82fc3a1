package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dpup/geonav/server/internal/cache"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

var (
	origin      = geo.Point{Latitude: 37.0, Longitude: -122.0}
	destination = geo.Point{Latitude: 37.0045, Longitude: -121.9966}
	secondTurn  = geo.Point{Latitude: 37.0018, Longitude: -122.0}
)

// MockRouteFetcher is a mock implementation of RouteFetcher
type MockRouteFetcher struct {
	mock.Mock
}

func (m *MockRouteFetcher) FetchRoute(ctx context.Context, o, d geo.Point, p routing.TravelProfile) (*routing.Route, error) {
	args := m.Called(ctx, o, d, p)
	route, _ := args.Get(0).(*routing.Route)
	return route, args.Error(1)
}

// Helper function to load the walking route fixture
func loadTestRoute(t *testing.T) *routing.Route {
	data, err := os.ReadFile("../../tests/testdata/google/directions_walking.json")
	require.NoError(t, err, "Failed to load test fixture")
	route, err := routing.Parse(data, routing.Walking)
	require.NoError(t, err)
	route.Origin = origin
	route.Destination = destination
	return route
}

// countingCondenser wraps the rule condenser and counts calls
type countingCondenser struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCondenser) Condense(ctx context.Context, instruction string) (guidance.Cue, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return guidance.NewRuleCondenser().Condense(ctx, instruction)
}

func (c *countingCondenser) HealthCheck(context.Context) error { return nil }

func (c *countingCondenser) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newTestService(fetcher RouteFetcher, routes *cache.RouteCache, condenser guidance.Condenser) *NavigationService {
	return NewNavigationService(fetcher, routes, condenser, routing.Walking, navigation.Options{Now: fixedClock()})
}

func TestStartNavigation_Success(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil)

	svc := newTestService(fetcher, nil, nil)

	snap, err := svc.StartNavigation(logging.EnsureLogger(t.Context()), origin, destination)
	require.NoError(t, err)

	assert.True(t, snap.Active)
	assert.False(t, snap.Fallback)
	assert.Equal(t, 3, snap.StepCount)
	assert.Equal(t, 0, snap.CurrentStepIndex)
	assert.Equal(t, 800, snap.RemainingDistanceMeters)
	assert.Equal(t, "Head <b>north</b> on <b>Main St</b>", snap.Instruction)
	assert.Equal(t, "Head north", snap.Cue)

	route, ok := svc.Route()
	require.True(t, ok)
	assert.Len(t, route.Steps, 3)

	fetcher.AssertExpectations(t)
}

func TestStartNavigation_FallsBackToStraightLine(t *testing.T) {
	fetchErr := routing.NewNetworkError(errors.New("connection refused"))
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(nil, fetchErr)

	svc := newTestService(fetcher, nil, nil)

	snap, err := svc.StartNavigation(logging.EnsureLogger(t.Context()), origin, destination)
	require.Error(t, err)
	assert.True(t, routing.IsKind(err, routing.KindNetwork))

	assert.True(t, snap.Active)
	assert.True(t, snap.Fallback)
	assert.Equal(t, 1, snap.StepCount)
	assert.Equal(t, routing.StraightLineInstruction, snap.Instruction)
	assert.Equal(t, navigation.ArriveInstruction, snap.NextInstruction)

	route, ok := svc.Route()
	require.True(t, ok)
	assert.True(t, route.Fallback)
	assert.Equal(t, destination, route.FinalPoint())
}

func TestStartNavigation_NoFetcher(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	snap, err := svc.StartNavigation(logging.EnsureLogger(t.Context()), origin, destination)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.True(t, snap.Fallback)
}

// gatedFetcher blocks requests from a chosen origin until released
type gatedFetcher struct {
	blockOrigin geo.Point
	entered     chan struct{}
	release     chan struct{}
	route       func(o, d geo.Point) *routing.Route
}

func (g *gatedFetcher) FetchRoute(ctx context.Context, o, d geo.Point, p routing.TravelProfile) (*routing.Route, error) {
	if o == g.blockOrigin {
		close(g.entered)
		<-g.release
	}
	return g.route(o, d), nil
}

func TestStartNavigation_SupersededResponseIsDiscarded(t *testing.T) {
	slowOrigin := geo.Point{Latitude: 40.0, Longitude: -120.0}
	fetcher := &gatedFetcher{
		blockOrigin: slowOrigin,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		route: func(o, d geo.Point) *routing.Route {
			r := routing.StraightLineRoute(o, d, routing.Walking)
			r.Fallback = false
			return &r
		},
	}
	svc := newTestService(fetcher, nil, nil)
	ctx := logging.EnsureLogger(t.Context())

	first := svc.StartNavigationAsync(ctx, slowOrigin, destination)
	<-fetcher.entered

	snap, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	assert.True(t, snap.Active)

	close(fetcher.release)
	select {
	case result := <-first:
		assert.ErrorIs(t, result.Err, ErrSuperseded)
		assert.Equal(t, codes.Aborted, status.Code(result.Err))
		assert.False(t, result.Snapshot.Active)
	case <-time.After(2 * time.Second):
		t.Fatal("async start did not complete")
	}

	route, ok := svc.Route()
	require.True(t, ok)
	assert.Equal(t, origin, route.Steps[0].StartPoint, "the newer route stays installed")
}

func TestStartNavigationAsync_DeliversResult(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil)
	svc := newTestService(fetcher, nil, nil)

	select {
	case result := <-svc.StartNavigationAsync(logging.EnsureLogger(t.Context()), origin, destination):
		require.NoError(t, result.Err)
		assert.Equal(t, 3, result.Snapshot.StepCount)
	case <-time.After(2 * time.Second):
		t.Fatal("async start did not complete")
	}
}

func TestStop_DiscardsInFlightFetch(t *testing.T) {
	fetcher := &gatedFetcher{
		blockOrigin: origin,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		route: func(o, d geo.Point) *routing.Route {
			r := routing.StraightLineRoute(o, d, routing.Walking)
			return &r
		},
	}
	svc := newTestService(fetcher, nil, nil)
	ctx := logging.EnsureLogger(t.Context())

	result := svc.StartNavigationAsync(ctx, origin, destination)
	<-fetcher.entered
	svc.Stop(ctx)
	close(fetcher.release)

	res := <-result
	assert.ErrorIs(t, res.Err, ErrSuperseded)
	_, ok := svc.Route()
	assert.False(t, ok)
	assert.False(t, svc.Current().Active)
}

func TestSetProfile_RefetchesOnlyWhenGeometryChanges(t *testing.T) {
	walkingRoute := loadTestRoute(t)
	drivingRoute := routing.StraightLineRoute(secondTurn, destination, routing.TwoWheeler)
	drivingRoute.Fallback = false

	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(walkingRoute, nil).Once()
	fetcher.On("FetchRoute", mock.Anything, secondTurn, destination, routing.TwoWheeler).Return(&drivingRoute, nil).Once()

	svc := newTestService(fetcher, nil, nil)
	ctx := logging.EnsureLogger(t.Context())

	_, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	svc.ReportPosition(ctx, navigation.Pose{Point: secondTurn})

	// Walking to two-wheeler refetches from the last known position
	snap, err := svc.SetProfile(ctx, routing.TwoWheeler)
	require.NoError(t, err)
	assert.Equal(t, routing.TwoWheeler, snap.Profile)
	assert.Equal(t, 1, snap.StepCount)
	route, ok := svc.Route()
	require.True(t, ok)
	assert.Equal(t, "driving", route.Mode)

	// Two-wheeler to four-wheeler keeps the route and changes ETA math
	before := snap.RemainingTimeSeconds
	snap, err = svc.SetProfile(ctx, routing.FourWheeler)
	require.NoError(t, err)
	assert.Equal(t, routing.FourWheeler, svc.Profile())
	assert.Less(t, snap.RemainingTimeSeconds, before)

	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "FetchRoute", 2)
}

func TestSetProfile_KeepsProfileWhileRefetching(t *testing.T) {
	fetcher := &gatedFetcher{
		blockOrigin: secondTurn,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		route: func(o, d geo.Point) *routing.Route {
			r := routing.StraightLineRoute(o, d, routing.Walking)
			r.Fallback = false
			return &r
		},
	}
	svc := newTestService(fetcher, nil, nil)
	ctx := logging.EnsureLogger(t.Context())

	_, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	walking := svc.ReportPosition(ctx, navigation.Pose{Point: secondTurn}).Snapshot

	results := make(chan StartResult, 1)
	go func() {
		snap, err := svc.SetProfile(ctx, routing.TwoWheeler)
		results <- StartResult{Snapshot: snap, Err: err}
	}()
	<-fetcher.entered

	// The old route keeps its walking ETA until the new route arrives
	assert.Equal(t, routing.Walking, svc.Profile())
	during := svc.Current()
	assert.Equal(t, routing.Walking, during.Profile)
	assert.Equal(t, walking.RemainingTimeSeconds, during.RemainingTimeSeconds)

	close(fetcher.release)
	select {
	case result := <-results:
		require.NoError(t, result.Err)
		assert.Equal(t, routing.TwoWheeler, result.Snapshot.Profile)
	case <-time.After(2 * time.Second):
		t.Fatal("profile change did not complete")
	}
	assert.Equal(t, routing.TwoWheeler, svc.Profile())
}

func TestSupersededStart_KeepsProfile(t *testing.T) {
	slowOrigin := geo.Point{Latitude: 40.0, Longitude: -120.0}
	fetcher := &gatedFetcher{
		blockOrigin: slowOrigin,
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
		route: func(o, d geo.Point) *routing.Route {
			r := routing.StraightLineRoute(o, d, routing.Walking)
			return &r
		},
	}
	svc := newTestService(fetcher, nil, nil)
	ctx := logging.EnsureLogger(t.Context())

	results := make(chan StartResult, 1)
	go func() {
		snap, err := svc.StartNavigationWithProfile(ctx, slowOrigin, destination, routing.FourWheeler)
		results <- StartResult{Snapshot: snap, Err: err}
	}()
	<-fetcher.entered
	svc.Stop(ctx)
	close(fetcher.release)

	result := <-results
	assert.ErrorIs(t, result.Err, ErrSuperseded)
	assert.Equal(t, routing.Walking, svc.Profile())
}

func TestNavigationService_WithoutLogger(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil)
	fetcher.On("FetchRoute", mock.Anything, secondTurn, destination, routing.TwoWheeler).
		Return(nil, routing.NewNetworkError(errors.New("connection refused")))
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.TwoWheeler).Return(loadTestRoute(t), nil)
	svc := newTestService(fetcher, nil, nil)
	ctx := context.Background()

	snap, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	assert.True(t, snap.Active)

	update := svc.ReportPosition(ctx, navigation.Pose{Point: secondTurn})
	assert.Equal(t, 1, update.Snapshot.CurrentStepIndex)

	snap, err = svc.SetProfile(ctx, routing.TwoWheeler)
	require.Error(t, err)
	assert.True(t, snap.Fallback)

	result := <-svc.StartNavigationAsync(ctx, origin, destination)
	require.NoError(t, result.Err)

	svc.Stop(ctx)
	assert.False(t, svc.Current().Active)
}

func TestSetProfile_WhileIdle(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	svc := newTestService(fetcher, nil, nil)

	snap, err := svc.SetProfile(logging.EnsureLogger(t.Context()), routing.FourWheeler)
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.Equal(t, routing.FourWheeler, svc.Profile())
	fetcher.AssertNotCalled(t, "FetchRoute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReportPosition(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil)
	condenser := &countingCondenser{}
	svc := newTestService(fetcher, nil, condenser)
	ctx := logging.EnsureLogger(t.Context())

	// Idle service reports an inactive snapshot without an indicator
	update := svc.ReportPosition(ctx, navigation.Pose{Point: origin, HorizontalAccuracy: 4, HeadingAccuracy: 8})
	assert.False(t, update.Snapshot.Active)
	assert.Nil(t, update.Indicator)
	assert.Equal(t, "Tracking: GOOD (±4m, ±8°)", update.Tracking)

	_, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	assert.Equal(t, 1, condenser.Calls())

	update = svc.ReportPosition(ctx, navigation.Pose{Point: secondTurn, Heading: 90})
	assert.True(t, update.Snapshot.StepChanged)
	assert.Equal(t, 1, update.Snapshot.CurrentStepIndex)
	assert.Equal(t, "Turn right onto Ocean Ave", update.Snapshot.Cue)
	require.NotNil(t, update.Indicator)
	assert.InDelta(t, geo.DistanceMeters(secondTurn, destination), update.Indicator.DistanceMeters, 1e-9)
	assert.Equal(t, 2, condenser.Calls())

	// Same step reuses the cue
	update = svc.ReportPosition(ctx, navigation.Pose{Point: geo.Point{Latitude: 37.0018, Longitude: -121.999}})
	assert.False(t, update.Snapshot.StepChanged)
	assert.Equal(t, "Turn right onto Ocean Ave", update.Snapshot.Cue)
	assert.Equal(t, 2, condenser.Calls())

	assert.Equal(t, "Turn right onto Ocean Ave", svc.Current().Cue)
}

func TestStartNavigation_UsesRouteCache(t *testing.T) {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil).Once()

	routes := cache.NewRouteCache(cache.NewCache(), time.Minute)
	svc := newTestService(fetcher, routes, nil)
	ctx := logging.EnsureLogger(t.Context())

	_, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	svc.Stop(ctx)

	snap, err := svc.StartNavigation(ctx, origin, destination)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.StepCount)

	fetcher.AssertNumberOfCalls(t, "FetchRoute", 1)
}

func TestEstimateTravelTimes(t *testing.T) {
	svc := newTestService(nil, nil, nil)

	estimates := svc.EstimateTravelTimes(origin, geo.Point{Latitude: 37.01, Longitude: -122.0})
	require.Len(t, estimates, 3)
	assert.InDelta(t, 1112/1.4, estimates[routing.Walking].Seconds(), 1)
	assert.Greater(t, estimates[routing.TwoWheeler], estimates[routing.FourWheeler])
}
