package main

import (
	"context"
	"database/sql"
	"daysim/internal/adapters/cache"
	"daysim/internal/adapters/coefficients"
	"daysim/internal/adapters/repositories"
	"daysim/internal/adapters/skims"
	"daysim/internal/config"
	"daysim/internal/domain"
	"daysim/internal/platform/db"
	"daysim/internal/platform/logging"
	"daysim/internal/ports"
	"daysim/internal/services"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// run bundles what both subcommands need: settings, logger, the run
// database, the loaded population and the model environment.
type run struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sql.DB
	// pg is set when a Postgres URL is configured.
	pg      *sql.DB
	repo    *repositories.SqlitePopulationRepository
	parcels []domain.Parcel
	arena   *domain.Arena
	env     *services.Environment
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Workers = workers
	}
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		cfg.DatabaseURL = url
	}
	return cfg, nil
}

func openRun(ctx context.Context, cmd *cobra.Command) (*run, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	conn, err := db.OpenSqlite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	r := &run{cfg: cfg, logger: logger, db: conn}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		if r.pg, err = db.Open(cfg.DatabaseURL); err != nil {
			return nil, multierr.Append(err, r.close())
		}
	}
	if err := r.load(ctx); err != nil {
		return nil, multierr.Append(err, r.close())
	}
	return r, nil
}

func (r *run) load(ctx context.Context) error {
	if err := repositories.InitSchema(r.db); err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	r.repo = repositories.NewSqlitePopulationRepository(r.db)
	parcels, err := r.repo.ListParcels(ctx)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	arena, err := r.repo.LoadArena(ctx)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	set, err := coefficients.LoadFile(r.cfg.CoefficientsPath)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	tables, err := modelTables(set)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	skimCache, err := r.skimCache(ctx)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}
	// The skim matrix reuses zone pairs cached by earlier runs.
	provider, err := skims.NewZoneSkimProvider(ctx, r.logger, parcels, skims.DefaultSpeeds(), skimCache)
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	env, err := services.NewEnvironment(tables, parcels, provider, services.Options{
		SampleSize:    r.cfg.SampleSize,
		DistanceDecay: r.cfg.DistanceDecay,
	})
	if err != nil {
		return fmt.Errorf("open run: %w", err)
	}

	r.parcels, r.arena, r.env = parcels, arena, env
	r.logger.Info("run loaded",
		zap.String("db_path", r.cfg.DBPath),
		zap.Int("parcels", len(parcels)),
		zap.Int("households", arena.CountHouseholds()),
		zap.Int("persons", arena.CountPersons()),
		zap.Int("workers", r.cfg.Workers),
	)
	return nil
}

func (r *run) skimCache(ctx context.Context) (ports.SkimCache, error) {
	if r.pg == nil {
		return cache.NewSqliteSkimCache(r.db), nil
	}
	if err := cache.InitPostgresSkimCacheSchema(ctx, r.pg); err != nil {
		return nil, err
	}
	return cache.NewSQLSkimCache(r.pg), nil
}

func modelTables(coefs coefficients.Set) (services.ModelTables, error) {
	var t services.ModelTables
	for _, m := range []struct {
		name string
		set  func(*coefficients.Table)
	}{
		{name: services.ModelAutoOwnership, set: func(x *coefficients.Table) { t.AutoOwnership = x }},
		{name: services.ModelTourDestination, set: func(x *coefficients.Table) { t.TourDestination = x }},
		{name: services.ModelTourMode, set: func(x *coefficients.Table) { t.TourMode = x }},
		{name: services.ModelTourTime, set: func(x *coefficients.Table) { t.TourTime = x }},
	} {
		table, err := coefs.Table(m.name)
		if err != nil {
			return services.ModelTables{}, err
		}
		m.set(table)
	}
	return t, nil
}

func (r *run) close() error {
	// Sync fails on some terminals; only the database errors matter here.
	_ = r.logger.Sync()
	err := r.db.Close()
	if r.pg != nil {
		err = multierr.Append(err, r.pg.Close())
	}
	return err
}
