// Package scheduler drives refresh cycles on a timer and on demand.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
)

// CycleRunner executes one refresh cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (menu.CycleResult, error)
}

// Config controls the Scheduler.
type Config struct {
	// Interval between timer-driven cycles.
	Interval time.Duration
	// CycleTimeout bounds one whole cycle.
	CycleTimeout time.Duration
	// RunOnStart fires an immediate cycle before the first tick.
	RunOnStart bool
}

type state int

const (
	stateIdle state = iota
	stateRunning
)

// Scheduler runs at most one cycle at a time. Manual triggers while a
// cycle is running coalesce into the pending slot instead of queueing,
// and timer ticks that land mid-cycle are skipped outright.
type Scheduler struct {
	runner CycleRunner
	logger *zap.Logger
	cfg    Config

	trigger chan struct{}

	mu         sync.Mutex
	state      state
	lastResult *menu.CycleResult
}

// New builds a Scheduler.
func New(runner CycleRunner, logger *zap.Logger, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 5 * time.Minute
	}
	return &Scheduler{
		runner:  runner,
		logger:  logger,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		state:   stateIdle,
	}
}

// Trigger requests an on-demand cycle. It never blocks: if a cycle is
// already running or pending, the request rides along with it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Running reports whether a cycle is currently in flight.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// LastResult returns the most recent cycle result, if any.
func (s *Scheduler) LastResult() (menu.CycleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return menu.CycleResult{}, false
	}
	return *s.lastResult, true
}

// Run blocks until the context finishes. Cycle failures are logged and
// absorbed; only snapshot store corruption stops the loop, since a store
// that violated its publish invariant cannot be trusted with another
// publish.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		if err := s.cycle(ctx); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx); err != nil {
				return err
			}
			drainTicks(ticker)
		case <-s.trigger:
			if err := s.cycle(ctx); err != nil {
				return err
			}
			drainTicks(ticker)
		}
	}
}

// drainTicks discards a tick that fired while a cycle was running, so a
// slow cycle is followed by a full quiet interval instead of an immediate
// rerun.
func drainTicks(ticker *time.Ticker) {
	select {
	case <-ticker.C:
	default:
	}
}

func (s *Scheduler) cycle(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateRunning {
		// Cannot happen from the single Run loop; guards direct callers.
		s.mu.Unlock()
		return nil
	}
	s.state = stateRunning
	s.mu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	result, err := s.runner.RunCycle(cycleCtx)
	cancel()

	s.mu.Lock()
	s.state = stateIdle
	s.lastResult = &result
	s.mu.Unlock()

	// A trigger that arrived mid-cycle is satisfied by the cycle that
	// just finished, not by starting another one.
	select {
	case <-s.trigger:
	default:
	}

	if err != nil {
		if menu.IsStoreCorruption(err) {
			s.logger.Error("snapshot store corrupted, halting scheduler", zap.Error(err))
			return err
		}
		s.logger.Error("refresh cycle error", zap.Error(err))
	}
	return nil
}
