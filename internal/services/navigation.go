package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dpup/geonav/server/internal/cache"
	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/guidance"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

var (
	// ErrSuperseded is returned for a fetch whose response arrived after a newer request
	ErrSuperseded = status.Error(codes.Aborted, "navigation request superseded by a newer request")

	// ErrNotNavigating is returned by operations that need an active route
	ErrNotNavigating = status.Error(codes.FailedPrecondition, "no active navigation")
)

// RouteFetcher fetches directions. *google.Client satisfies it.
type RouteFetcher interface {
	FetchRoute(ctx context.Context, origin, destination geo.Point, profile routing.TravelProfile) (*routing.Route, error)
}

// PositionUpdate is the result of reporting a pose
type PositionUpdate struct {
	Snapshot  navigation.Snapshot
	Indicator *navigation.Indicator // nil when not navigating
	Tracking  string
}

// StartResult carries the outcome of an asynchronous start
type StartResult struct {
	Snapshot navigation.Snapshot
	Err      error
}

// NavigationService owns the route tracker and serializes access to it.
// Directions fetches run outside the lock; only the latest request may
// install its route.
type NavigationService struct {
	fetcher   RouteFetcher
	routes    *cache.RouteCache
	condenser guidance.Condenser

	mu          sync.Mutex
	tracker     *navigation.Tracker
	seq         uint64
	session     string
	origin      geo.Point
	destination geo.Point
	cue         string
	cueStep     int
}

// NewNavigationService creates an idle navigation service. routes may be nil
// to disable caching; a nil condenser uses the rule based one.
func NewNavigationService(fetcher RouteFetcher, routes *cache.RouteCache, condenser guidance.Condenser, profile routing.TravelProfile, opts navigation.Options) *NavigationService {
	if condenser == nil {
		condenser = guidance.NewRuleCondenser()
	}
	return &NavigationService{
		fetcher:   fetcher,
		routes:    routes,
		condenser: condenser,
		tracker:   navigation.NewTracker(profile, opts),
		cueStep:   -1,
	}
}

// StartNavigation fetches a route with the current profile and starts
// tracking it. On a fetch failure a straight-line route is tracked and the
// fetch error is still returned alongside the snapshot.
func (s *NavigationService) StartNavigation(ctx context.Context, origin, destination geo.Point) (navigation.Snapshot, error) {
	s.mu.Lock()
	profile := s.tracker.Profile()
	s.mu.Unlock()
	return s.StartNavigationWithProfile(ctx, origin, destination, profile)
}

// StartNavigationWithProfile starts navigation with profile. The profile
// takes effect together with the fetched route.
func (s *NavigationService) StartNavigationWithProfile(ctx context.Context, origin, destination geo.Point, profile routing.TravelProfile) (navigation.Snapshot, error) {
	ctx = logging.EnsureLogger(ctx)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	session := uuid.NewString()
	s.session = session
	s.origin = origin
	s.destination = destination
	s.mu.Unlock()

	logging.Infow(ctx, "Starting navigation", "session", session,
		"origin", formatPoint(origin), "destination", formatPoint(destination), "profile", profile.String())

	return s.navigate(ctx, seq, origin, destination, profile)
}

// StartNavigationAsync runs StartNavigation in the background. The channel
// receives exactly one result.
func (s *NavigationService) StartNavigationAsync(ctx context.Context, origin, destination geo.Point) <-chan StartResult {
	ctx = logging.EnsureLogger(ctx)
	results := make(chan StartResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err, _ := errors.ParseStack(debug.Stack())
				skipFrames := 3
				numFrames := 5
				logging.Errorw(ctx, "Navigation start: recovered from panic",
					"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
				results <- StartResult{Err: status.Errorf(codes.Internal, "navigation start failed: %v", r)}
			}
		}()

		snap, err := s.StartNavigation(ctx, origin, destination)
		results <- StartResult{Snapshot: snap, Err: err}
	}()
	return results
}

// SetProfile changes the travel profile. Switching between profiles that
// share geometry only changes ETA math; otherwise the route is refetched from
// the last known position (or the original origin) to the destination. A
// refetched profile applies once its route is installed.
func (s *NavigationService) SetProfile(ctx context.Context, profile routing.TravelProfile) (navigation.Snapshot, error) {
	ctx = logging.EnsureLogger(ctx)

	s.mu.Lock()
	previous := s.tracker.Profile()

	if !s.tracker.Active() || previous.SharesGeometry(profile) {
		s.tracker.SetProfile(profile)
		snap := s.tracker.Current()
		s.fillCueLocked(&snap)
		s.mu.Unlock()
		return snap, nil
	}

	from := s.origin
	if last, ok := s.tracker.LastPosition(); ok {
		from = last
	}
	destination := s.destination
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	logging.Infow(ctx, "Travel profile changed, refetching route",
		"from", previous.String(), "to", profile.String())

	return s.navigate(ctx, seq, from, destination, profile)
}

// Profile returns the current travel profile
func (s *NavigationService) Profile() routing.TravelProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Profile()
}

// ReportPosition maps a pose onto the route
func (s *NavigationService) ReportPosition(ctx context.Context, pose navigation.Pose) PositionUpdate {
	ctx = logging.EnsureLogger(ctx)

	s.mu.Lock()
	if !s.tracker.Active() {
		snap := s.tracker.ReportPosition(pose.Point)
		s.mu.Unlock()
		return PositionUpdate{Snapshot: snap, Tracking: pose.QualityText()}
	}

	snap := s.tracker.ReportPosition(pose.Point)
	destination := s.destination
	needCue := s.cueStep != snap.CurrentStepIndex && snap.StepCount > 0
	if !needCue {
		snap.Cue = s.cue
	}
	seq := s.seq
	s.mu.Unlock()

	if needCue {
		snap.Cue = s.condense(ctx, seq, snap.CurrentStepIndex, snap.Instruction)
	}

	if snap.OffRoute {
		logging.Debugw(ctx, "Position is off route",
			"step", snap.CurrentStepIndex, "distance_m", snap.DistanceFromRouteMeters)
	}

	indicator := navigation.DestinationCue(pose, destination)
	return PositionUpdate{
		Snapshot:  snap,
		Indicator: &indicator,
		Tracking:  pose.QualityText(),
	}
}

// Current returns the snapshot for the last known position without advancing progress
func (s *NavigationService) Current() navigation.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.tracker.Current()
	s.fillCueLocked(&snap)
	return snap
}

// SessionID identifies the navigation started most recently. It is empty
// when stopped.
func (s *NavigationService) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Route returns the tracked route
func (s *NavigationService) Route() (routing.Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Route()
}

// Stop ends navigation. Fetches still in flight are discarded.
func (s *NavigationService) Stop(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.tracker.Stop()
	s.cue = ""
	s.cueStep = -1

	logging.Infow(ctx, "Navigation stopped", "session", s.session)
	s.session = ""
}

// EstimateTravelTimes returns straight-line travel times for every profile
func (s *NavigationService) EstimateTravelTimes(origin, destination geo.Point) map[routing.TravelProfile]time.Duration {
	return routing.EstimateAll(origin, destination)
}

// navigate fetches and installs a route for request seq
func (s *NavigationService) navigate(ctx context.Context, seq uint64, origin, destination geo.Point, profile routing.TravelProfile) (navigation.Snapshot, error) {
	route, fetchErr := s.fetch(ctx, origin, destination, profile)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		logging.Debugw(ctx, "Discarding superseded directions response", "seq", seq)
		return navigation.Snapshot{}, ErrSuperseded
	}

	if fetchErr != nil {
		logging.Warnw(ctx, "Directions fetch failed, using straight-line route", "error", fetchErr)
		fallback := routing.StraightLineRoute(origin, destination, profile)
		route = &fallback
	}

	s.tracker.SetProfile(profile)
	s.tracker.StartTracking(*route)
	s.cue = ""
	s.cueStep = -1
	snap := s.tracker.Current()
	s.mu.Unlock()

	if snap.StepCount > 0 {
		snap.Cue = s.condense(ctx, seq, snap.CurrentStepIndex, snap.Instruction)
	}

	return snap, fetchErr
}

func (s *NavigationService) fetch(ctx context.Context, origin, destination geo.Point, profile routing.TravelProfile) (*routing.Route, error) {
	if route, ok := s.routes.GetRoute(profile, origin, destination); ok {
		logging.Debugw(ctx, "Route cache hit", "key", cache.RouteKey(profile, origin, destination))
		return route, nil
	}

	if s.fetcher == nil {
		return nil, status.Error(codes.Unavailable, "no directions client configured")
	}

	route, err := s.fetcher.FetchRoute(ctx, origin, destination, profile)
	if err != nil {
		return nil, err
	}

	if err := s.routes.SetRoute(profile, origin, destination, route); err != nil {
		logging.Warnw(ctx, "Failed to cache route", "error", err)
	}
	return route, nil
}

// condense produces the overlay cue for a step and remembers it while the
// same request and step are current
func (s *NavigationService) condense(ctx context.Context, seq uint64, step int, instruction string) string {
	cue, err := s.condenser.Condense(ctx, instruction)
	if err != nil {
		logging.Warnw(ctx, "Failed to condense instruction", "error", err)
		cue, _ = guidance.NewRuleCondenser().Condense(ctx, instruction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq == s.seq && s.tracker.Active() && s.tracker.CurrentStepIndex() == step {
		s.cue = cue.Text
		s.cueStep = step
	}
	return cue.Text
}

func (s *NavigationService) fillCueLocked(snap *navigation.Snapshot) {
	if snap.Active && s.cueStep == snap.CurrentStepIndex {
		snap.Cue = s.cue
	}
}

func formatPoint(p geo.Point) string {
	return fmt.Sprintf("%.5f,%.5f", p.Latitude, p.Longitude)
}
