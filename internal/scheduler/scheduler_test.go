package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/menu"
)

type fakeRunner struct {
	cycles  atomic.Int64
	err     error
	block   chan struct{}
	started chan struct{}
}

func (r *fakeRunner) RunCycle(ctx context.Context) (menu.CycleResult, error) {
	r.cycles.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	return menu.CycleResult{Status: menu.CycleSuccess}, r.err
}

func TestRunOnStart(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), Config{Interval: time.Hour, RunOnStart: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return runner.cycles.Load() == 1
	}, time.Second, time.Millisecond)

	_, ok := s.LastResult()
	assert.True(t, ok)

	cancel()
	require.NoError(t, <-done)
}

func TestTimerFiresCycles(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return runner.cycles.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestTriggerRunsImmediately(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, zap.NewNop(), Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger()
	require.Eventually(t, func() bool {
		return runner.cycles.Load() == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestTriggersCoalesceWhileRunning(t *testing.T) {
	runner := &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan struct{}, 8),
	}
	s := New(runner, zap.NewNop(), Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Trigger()
	<-runner.started
	assert.True(t, s.Running())

	// Everything that lands mid-cycle rides along with that cycle.
	for i := 0; i < 5; i++ {
		s.Trigger()
	}
	close(runner.block)

	require.Eventually(t, func() bool {
		return !s.Running()
	}, time.Second, time.Millisecond)
	// Allow any stray second cycle to start before counting.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), runner.cycles.Load(),
		"concurrent triggers must coalesce into the in-flight cycle")

	cancel()
	require.NoError(t, <-done)
}

func TestCycleErrorDoesNotStopLoop(t *testing.T) {
	runner := &fakeRunner{err: context.DeadlineExceeded}
	s := New(runner, zap.NewNop(), Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return runner.cycles.Load() >= 2
	}, time.Second, time.Millisecond, "the loop keeps running after cycle errors")

	cancel()
	require.NoError(t, <-done)
}

func TestStoreCorruptionHaltsLoop(t *testing.T) {
	runner := &fakeRunner{err: &menu.StoreCorruptionError{Reason: "regressing generated_at"}}
	s := New(runner, zap.NewNop(), Config{Interval: time.Hour, RunOnStart: true})

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, menu.IsStoreCorruption(err))
	assert.Equal(t, int64(1), runner.cycles.Load())
}

func TestLastResultBeforeAnyCycle(t *testing.T) {
	s := New(&fakeRunner{}, zap.NewNop(), Config{Interval: time.Hour})
	_, ok := s.LastResult()
	assert.False(t, ok)
}
