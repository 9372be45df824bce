package main

import (
	"context"
	"daysim/internal/adapters/repositories"
	"daysim/internal/choice"
	"daysim/internal/platform/obs"
	"daysim/internal/services"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate the travel day of every household",
		Long: `Run one or more simulation passes over the population.

Between passes destination shadow prices move simulated destination
totals toward parcel-size targets. Prices and the outcomes of the last
pass are written back to the run database.

Examples:
  daysim simulate                 # settings from defaults and environment
  daysim simulate --passes 5      # five shadow-price iterations`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			r, err := openRun(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, r.close()) }()

			if passes, _ := cmd.Flags().GetInt("passes"); passes > 0 {
				r.cfg.Passes = passes
			}
			return simulate(ctx, r)
		},
	}
	cmd.Flags().Int("passes", 0, "Override the number of shadow-price passes")
	return cmd
}

func simulate(ctx context.Context, r *run) error {
	// A zero step keeps whatever prices are stored.
	var balancer *services.ShadowPriceBalancer
	store := repositories.NewSqliteShadowPriceStore(r.db)
	if r.cfg.ShadowPriceStep > 0 {
		b, err := services.NewShadowPriceBalancer(store, r.cfg.ShadowPriceStep, r.logger)
		if err != nil {
			return fmt.Errorf("simulate: %w", err)
		}
		balancer = b
	}
	if err := services.LoadShadowPrices(ctx, store, r.env); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	runner, err := services.NewRunner(r.env, r.cfg.Workers, r.logger, nil)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	for pass := 1; pass <= r.cfg.Passes; pass++ {
		passCtx := obs.WithPassID(ctx, fmt.Sprintf("simulate-%d", pass))
		res, err := runner.RunPass(passCtx, r.arena, choice.Simulating)
		if err != nil {
			return fmt.Errorf("simulate: pass %d: %w", pass, err)
		}
		if balancer == nil {
			continue
		}
		if err := balancer.Rebalance(passCtx, r.env, r.parcels, res); err != nil {
			return fmt.Errorf("simulate: pass %d: %w", pass, err)
		}
	}

	if err := r.repo.SaveOutcomes(ctx, r.arena); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	r.logger.Info("simulation complete", zap.Int("passes", r.cfg.Passes))
	return nil
}
