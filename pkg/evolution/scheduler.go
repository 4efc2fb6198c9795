package evolution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is how often the scheduler runs a cycle.
const DefaultInterval = 5 * time.Minute

// ErrCycleInProgress is returned when a cycle is requested while one runs.
var ErrCycleInProgress = errors.New("evolution cycle already in progress")

// State is the scheduler state.
type State int32

const (
	StateIdle State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Scheduler runs the engine periodically and on demand, never more than
// one cycle at a time.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	state    atomic.Int32

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}

	logger *zap.Logger
}

// NewScheduler creates a scheduler. A non-positive interval uses
// DefaultInterval.
func NewScheduler(engine *Engine, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		engine:   engine,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		logger:   logger.With(zap.String("component", "scheduler")),
	}
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// TryRun runs a cycle now unless one is already running, in which case it
// returns ErrCycleInProgress without waiting.
func (s *Scheduler) TryRun(ctx context.Context, trigger string) (CycleReport, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer s.state.Store(int32(StateIdle))
	return s.engine.Run(ctx, trigger)
}

// Start begins periodic cycles on a background goroutine. Calls after the
// first are no-ops.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.run(context.Background())
	})
}

// Stop halts the periodic cycles and waits for a running cycle to finish.
// A running cycle is never interrupted. It is safe to call more than once
// and without Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.started.Load() {
			<-s.doneCh
		}
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if _, err := s.TryRun(ctx, TriggerScheduled); errors.Is(err, ErrCycleInProgress) {
				s.logger.Debug("skipping scheduled cycle, previous still running")
			}
		}
	}
}
