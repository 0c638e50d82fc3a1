package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dpup/prefab/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dpup/geonav/server/internal/lib/geo"
	"github.com/dpup/geonav/server/internal/lib/navigation"
	"github.com/dpup/geonav/server/internal/lib/routing"
)

// scriptedProvider replays a fixed list of poses, then reports exhaustion
type scriptedProvider struct {
	mu    sync.Mutex
	poses []navigation.Pose
	errAt int // index that fails once with a transient error, -1 for none
	reads int
}

func (p *scriptedProvider) CurrentPosition(ctx context.Context) (navigation.Pose, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reads++
	if p.errAt >= 0 && p.reads-1 == p.errAt {
		return navigation.Pose{}, errors.New("gps unavailable")
	}
	if len(p.poses) == 0 {
		return navigation.Pose{}, ErrNoMorePositions
	}
	pose := p.poses[0]
	p.poses = p.poses[1:]
	return pose, nil
}

// endlessProvider always returns the same pose
type endlessProvider struct {
	pose navigation.Pose
}

func (p endlessProvider) CurrentPosition(context.Context) (navigation.Pose, error) {
	return p.pose, nil
}

type updateRecorder struct {
	mu      sync.Mutex
	updates []PositionUpdate
}

func (r *updateRecorder) sink(u PositionUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *updateRecorder) all() []PositionUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PositionUpdate(nil), r.updates...)
}

func startedService(t *testing.T) *NavigationService {
	fetcher := &MockRouteFetcher{}
	fetcher.On("FetchRoute", mock.Anything, origin, destination, routing.Walking).Return(loadTestRoute(t), nil)
	svc := newTestService(fetcher, nil, nil)
	_, err := svc.StartNavigation(logging.EnsureLogger(t.Context()), origin, destination)
	require.NoError(t, err)
	return svc
}

func TestPositionLoop_ReplaysUntilExhausted(t *testing.T) {
	svc := startedService(t)
	provider := &scriptedProvider{
		errAt: 1,
		poses: []navigation.Pose{
			{Point: origin},
			{Point: secondTurn},
			{Point: geo.Point{Latitude: 37.0018, Longitude: -121.9966}},
			{Point: destination},
		},
	}
	recorder := &updateRecorder{}

	loop := NewPositionLoop(svc, provider, 5*time.Millisecond, recorder.sink)
	loop.Start(logging.EnsureLogger(t.Context()))
	assert.True(t, loop.IsRunning())

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after provider was exhausted")
	}
	assert.False(t, loop.IsRunning())

	updates := recorder.all()
	require.Len(t, updates, 4, "transient provider errors are skipped")
	assert.Equal(t, 0, updates[0].Snapshot.CurrentStepIndex)
	assert.Equal(t, 1, updates[1].Snapshot.CurrentStepIndex)
	assert.Equal(t, 2, updates[2].Snapshot.CurrentStepIndex)
	assert.True(t, updates[3].Snapshot.Arrived)
	assert.Equal(t, navigation.ProximityNear, updates[3].Indicator.Proximity)

	// Stopping an exited loop is a no-op
	loop.Stop()
}

func TestPositionLoop_StopAndContext(t *testing.T) {
	svc := startedService(t)
	recorder := &updateRecorder{}

	loop := NewPositionLoop(svc, endlessProvider{pose: navigation.Pose{Point: origin}}, 2*time.Millisecond, recorder.sink)
	ctx := logging.EnsureLogger(t.Context())
	loop.Start(ctx)
	loop.Start(ctx) // already running

	assert.Eventually(t, func() bool { return len(recorder.all()) >= 3 }, time.Second, 2*time.Millisecond)
	loop.Stop()
	assert.False(t, loop.IsRunning())

	count := len(recorder.all())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, count, len(recorder.all()), "no updates after Stop")

	// Restart and stop through the context
	ctx, cancel := context.WithCancel(ctx)
	loop.Start(ctx)
	assert.True(t, loop.IsRunning())
	cancel()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
	assert.Eventually(t, func() bool { return !loop.IsRunning() }, time.Second, time.Millisecond)
}

func TestNewPositionLoop_DefaultInterval(t *testing.T) {
	loop := NewPositionLoop(nil, endlessProvider{}, 0, nil)
	assert.Equal(t, DefaultPollInterval, loop.interval)
	assert.Nil(t, loop.Done())
}
