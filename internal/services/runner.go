package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"daysim/internal/platform/obs"
	"daysim/internal/ports"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PassResult summarizes one pass over the population.
type PassResult struct {
	Mode         choice.Mode
	Households   int
	Tours        int
	InvalidDays  int
	Observations int
	// DestinationCounts[purpose][parcel] counts simulated tour destinations.
	DestinationCounts map[domain.Purpose]map[int]int
}

// Runner drives the model chain over every household with a fixed pool of
// workers. Each worker owns a choice.Context; households never share a worker.
type Runner struct {
	env     *Environment
	workers int
	logger  *zap.Logger
	sink    ports.ObservationSink
}

// NewRunner returns a runner. sink may be nil for simulation-only use.
func NewRunner(env *Environment, workers int, logger *zap.Logger, sink ports.ObservationSink) (*Runner, error) {
	if env == nil {
		return nil, errors.New("new runner: environment is nil")
	}
	if workers < 1 {
		return nil, fmt.Errorf("new runner: workers %d must be positive", workers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{env: env, workers: workers, logger: logger, sink: sink}, nil
}

// RunPass resolves every household of arena. Because every draw is keyed by
// decision identity, the outcome does not depend on the worker count or on
// which worker picks up a household.
func (r *Runner) RunPass(ctx context.Context, arena *domain.Arena, mode choice.Mode) (_ PassResult, err error) {
	defer obs.Time(ctx, r.logger, "runner.pass")(&err)

	if mode == choice.Estimating && r.sink == nil {
		return PassResult{}, errors.New("run pass: estimating requires an observation sink")
	}

	ids := arena.HouseholdIDs()
	stats := make([]*workerStats, r.workers)
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, id := range ids {
			select {
			case jobs <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < r.workers; w++ {
		stats[w] = newWorkerStats()
		x := choice.NewContext(w, r.logger, r.sink)
		day := newHouseholdDay(r.env, x, mode, arena, stats[w])

		g.Go(func() error {
			for id := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := day.run(gctx, id); err != nil {
					return fmt.Errorf("household_id=%d: %w", id, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return PassResult{}, fmt.Errorf("run pass: %s: %w", mode, err)
	}

	res := PassResult{Mode: mode, DestinationCounts: map[domain.Purpose]map[int]int{}}
	for _, s := range stats {
		res.Households += s.households
		res.Tours += s.tours
		res.InvalidDays += s.invalidDays
		res.Observations += s.observations
		for purpose, counts := range s.destinations {
			merged, ok := res.DestinationCounts[purpose]
			if !ok {
				merged = map[int]int{}
				res.DestinationCounts[purpose] = merged
			}
			for parcel, n := range counts {
				merged[parcel] += n
			}
		}
	}

	r.logger.Info("pass summary",
		zap.String("pass_id", obs.PassID(ctx)),
		zap.Stringer("mode", mode),
		zap.Int("households", res.Households),
		zap.Int("tours", res.Tours),
		zap.Int("invalid_days", res.InvalidDays),
		zap.Int("observations", res.Observations),
	)
	return res, nil
}
