package main

import (
	"context"
	"daysim/internal/adapters/repositories"
	"daysim/internal/choice"
	"daysim/internal/platform/obs"
	"daysim/internal/ports"
	"daysim/internal/services"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Write estimation rows for the observed choices",
		Long: `Replay the observed vehicles, destinations, modes and times of the
population and write one estimation row per decision.

Rows go to the run database unless --database-url (or DATABASE_URL)
points at Postgres.

Examples:
  daysim estimate
  daysim estimate --database-url postgres://localhost/daysim`,
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

			sink, err := openSink(ctx, r)
			if err != nil {
				return err
			}
			// Closing flushes buffered rows, so its error is part of the result.
			defer func() { err = multierr.Append(err, sink.Close()) }()

			return estimate(ctx, r, sink)
		},
	}
	return cmd
}

// openSink returns the observation sink of the run: Postgres when a URL is
// configured, the run database otherwise.
func openSink(ctx context.Context, r *run) (ports.ObservationSink, error) {
	if r.pg == nil {
		return repositories.NewSqliteObservationSink(r.db), nil
	}
	if err := repositories.InitPostgresObservationSchema(ctx, r.pg); err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}
	return repositories.NewSQLObservationSink(r.pg), nil
}

func estimate(ctx context.Context, r *run, sink ports.ObservationSink) error {
	runner, err := services.NewRunner(r.env, r.cfg.Workers, r.logger, sink)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	res, err := runner.RunPass(obs.WithPassID(ctx, "estimate"), r.arena, choice.Estimating)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}
	r.logger.Info("estimation complete",
		zap.Int("observations", res.Observations),
		zap.Int("invalid_days", res.InvalidDays),
	)
	return nil
}
