// Package aggregate runs the scrape, normalize, enrich, publish pipeline.
package aggregate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/columbiacals/menud/internal/adapter"
	"github.com/columbiacals/menud/internal/menu"
	"github.com/columbiacals/menud/internal/metrics"
	"github.com/columbiacals/menud/internal/normalize"
	"github.com/columbiacals/menud/internal/nutrition"
	"github.com/columbiacals/menud/internal/snapshot"
)

// Config controls one Aggregator.
type Config struct {
	// AdapterTimeout bounds each university's fetch.
	AdapterTimeout time.Duration
	// FetchWorkers bounds how many adapters fetch at once.
	FetchWorkers int
}

// Aggregator owns the refresh cycle. Adapters are isolated failure
// domains: one university's error degrades the cycle to partial instead
// of aborting it.
type Aggregator struct {
	registry   *adapter.Registry
	normalizer *normalize.Normalizer
	enricher   *nutrition.Enricher
	store      *snapshot.Store
	clock      menu.Clock
	logger     *zap.Logger
	cfg        Config
}

// New builds an Aggregator.
func New(
	registry *adapter.Registry,
	normalizer *normalize.Normalizer,
	enricher *nutrition.Enricher,
	store *snapshot.Store,
	clock menu.Clock,
	logger *zap.Logger,
	cfg Config,
) *Aggregator {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = 30 * time.Second
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 4
	}
	return &Aggregator{
		registry:   registry,
		normalizer: normalizer,
		enricher:   enricher,
		store:      store,
		clock:      clock,
		logger:     logger,
		cfg:        cfg,
	}
}

type fetchOutcome struct {
	halls     []menu.DiningHall
	err       error
	fetchedAt time.Time
	duration  time.Duration
}

// RunCycle executes one full cycle and returns its result. A failed cycle
// (every adapter errored) does not publish; the previous snapshot remains
// authoritative. The returned error is non-nil only for publish problems,
// which the scheduler treats as fatal.
func (a *Aggregator) RunCycle(ctx context.Context) (menu.CycleResult, error) {
	startedAt := a.clock.Now()
	adapters := a.registry.Adapters()
	outcomes := a.fetchAll(ctx, adapters)

	var halls []menu.DiningHall
	statuses := make(map[string]menu.UniversityStatus, len(adapters))
	succeeded := 0

	prev, havePrev := a.store.Read()

	// Assemble in registry order so hall ordering is stable across cycles.
	for _, ad := range adapters {
		tag := ad.University()
		outcome := outcomes[tag]
		status := menu.UniversityStatus{
			FetchedAt:  outcome.fetchedAt,
			DurationMs: outcome.duration.Milliseconds(),
		}

		if outcome.err == nil {
			normalized := a.normalizer.Halls(outcome.halls)
			enriched := a.enricher.Halls(ctx, normalized)
			halls = append(halls, enriched...)
			status.OK = true
			status.Halls = len(enriched)
			succeeded++
			metrics.ObserveAdapterFetch(tag, "ok", outcome.duration)
		} else {
			a.logger.Error("adapter fetch failed",
				zap.String("university", tag),
				zap.Error(outcome.err))
			status.Error = outcome.err.Error()
			metrics.ObserveAdapterFetch(tag, "error", outcome.duration)

			carried := carryForward(prev, havePrev, tag)
			if len(carried) > 0 {
				halls = append(halls, carried...)
				status.CarriedOver = true
				status.Halls = len(carried)
				a.logger.Warn("carrying forward previous halls",
					zap.String("university", tag),
					zap.Int("halls", len(carried)))
			} else {
				halls = append(halls, placeholderHall(tag, a.clock.Now()))
				status.Halls = 1
			}
		}
		statuses[tag] = status
	}

	finishedAt := a.clock.Now()
	result := menu.CycleResult{
		Universities: statuses,
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
	}

	switch {
	case succeeded == len(adapters):
		result.Status = menu.CycleSuccess
	case succeeded > 0:
		result.Status = menu.CyclePartial
	default:
		result.Status = menu.CycleFailed
	}
	metrics.ObserveCycle(string(result.Status), finishedAt.Sub(startedAt))

	if result.Status == menu.CycleFailed {
		a.logger.Error("refresh cycle failed, keeping previous snapshot",
			zap.Int("adapters", len(adapters)))
		return result, nil
	}

	snap := menu.Snapshot{Halls: halls, GeneratedAt: finishedAt}
	if err := a.store.Publish(ctx, snap); err != nil {
		return result, err
	}
	result.Snapshot = snap

	a.logger.Info("refresh cycle complete",
		zap.String("status", string(result.Status)),
		zap.Int("halls", len(halls)),
		zap.Duration("duration", finishedAt.Sub(startedAt)))
	return result, nil
}

// fetchAll runs every adapter with bounded concurrency and a per-adapter
// timeout.
func (a *Aggregator) fetchAll(ctx context.Context, adapters []menu.Adapter) map[string]fetchOutcome {
	outcomes := make(map[string]fetchOutcome, len(adapters))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.cfg.FetchWorkers)

	for _, ad := range adapters {
		wg.Add(1)
		sem <- struct{}{}
		go func(ad menu.Adapter) {
			defer wg.Done()
			defer func() { <-sem }()

			fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.AdapterTimeout)
			defer cancel()

			start := a.clock.Now()
			halls, err := ad.Fetch(fetchCtx)
			outcome := fetchOutcome{
				halls:     halls,
				err:       err,
				fetchedAt: start,
				duration:  a.clock.Now().Sub(start),
			}

			mu.Lock()
			outcomes[ad.University()] = outcome
			mu.Unlock()
		}(ad)
	}
	wg.Wait()
	return outcomes
}

// carryForward returns the previous snapshot's halls for the university,
// menus intact. Staleness is surfaced through the cycle status, not by
// blanking menus people were just looking at.
func carryForward(prev menu.Snapshot, havePrev bool, tag string) []menu.DiningHall {
	if !havePrev {
		return nil
	}
	return prev.ByUniversity(tag)
}

func placeholderHall(tag string, now time.Time) menu.DiningHall {
	return menu.DiningHall{
		Name:       tag,
		University: tag,
		Status:     menu.StatusServiceUnavailable,
		ScrapedAt:  now,
	}
}
