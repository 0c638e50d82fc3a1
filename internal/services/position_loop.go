package services

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	prefaberrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/geonav/server/internal/lib/navigation"
)

// DefaultPollInterval is how often the position loop asks for a new pose
const DefaultPollInterval = time.Second

// ErrNoMorePositions is returned by a LocationProvider that has run out of
// positions. The loop stops when it sees it.
var ErrNoMorePositions = errors.New("no more positions")

// LocationProvider supplies the device pose
type LocationProvider interface {
	CurrentPosition(ctx context.Context) (navigation.Pose, error)
}

// SnapshotSink receives every position update produced by the loop
type SnapshotSink func(PositionUpdate)

// PositionLoop polls a LocationProvider on a ticker and feeds each pose to
// the navigation service
type PositionLoop struct {
	service  *NavigationService
	provider LocationProvider
	interval time.Duration
	sink     SnapshotSink

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewPositionLoop creates a position loop. A non-positive interval uses the default.
func NewPositionLoop(service *NavigationService, provider LocationProvider, interval time.Duration, sink SnapshotSink) *PositionLoop {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PositionLoop{
		service:  service,
		provider: provider,
		interval: interval,
		sink:     sink,
	}
}

// Start begins polling until ctx is done, Stop is called, or the provider
// runs out of positions
func (p *PositionLoop) Start(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})

	logging.Infow(ctx, "Starting position loop", "interval", p.interval.String())
	go p.loop(ctx, p.stopChan, p.done)
}

// Stop ends polling and waits for the loop to exit
func (p *PositionLoop) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	<-done
}

// Done is closed when the loop exits. It is nil before the first Start.
func (p *PositionLoop) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// IsRunning returns whether the loop is active
func (p *PositionLoop) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PositionLoop) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			err, _ := prefaberrors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Position loop: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
		p.markStopped(stop)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if !p.poll(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			logging.Infow(ctx, "Position loop stopping due to context cancellation")
			return
		case <-stop:
			logging.Infow(ctx, "Position loop stopping due to stop signal")
			return
		case <-ticker.C:
			if !p.poll(ctx) {
				return
			}
		}
	}
}

// poll reports one pose and returns false when the loop should end
func (p *PositionLoop) poll(ctx context.Context) bool {
	pose, err := p.provider.CurrentPosition(ctx)
	switch {
	case errors.Is(err, ErrNoMorePositions):
		logging.Infow(ctx, "Position loop: provider exhausted")
		return false
	case err != nil:
		if ctx.Err() != nil {
			return false
		}
		logging.Warnw(ctx, "Position loop: failed to read position", "error", err)
		return true
	}

	update := p.service.ReportPosition(ctx, pose)
	if p.sink != nil {
		p.sink(update)
	}
	return true
}

// markStopped clears the running flag if this loop instance is still current
func (p *PositionLoop) markStopped(stop <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopChan == stop {
		p.running = false
	}
}
