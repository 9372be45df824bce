package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
)

// Initialize the observation tables in Postgres.
func InitPostgresObservationSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init observation schema: DB is nil")
	}

	statements := []string{
		`
		CREATE TABLE IF NOT EXISTS observations (
			observation_id BIGSERIAL PRIMARY KEY,
			model TEXT NOT NULL,
			household_id INTEGER NOT NULL,
			person_id INTEGER NOT NULL,
			tour_id INTEGER NOT NULL,
			trip_id INTEGER NOT NULL,
			model_offset INTEGER NOT NULL,
			chosen_alternative_id INTEGER NOT NULL
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS observation_alternatives (
			observation_id BIGINT NOT NULL REFERENCES observations(observation_id),
			alternative_id INTEGER NOT NULL,
			available BOOLEAN NOT NULL,
			chosen BOOLEAN NOT NULL,
			nest_id INTEGER NOT NULL,
			PRIMARY KEY (observation_id, alternative_id)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS observation_nests (
			observation_id BIGINT NOT NULL REFERENCES observations(observation_id),
			nest_id INTEGER NOT NULL,
			parent_nest_id INTEGER NOT NULL,
			theta DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (observation_id, nest_id)
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS observation_terms (
			observation_id BIGINT NOT NULL REFERENCES observations(observation_id),
			owner TEXT NOT NULL,
			owner_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			coefficient_id INTEGER NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (observation_id, owner, owner_id, position)
		);
		`,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init observation schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init observation schema: exec statement #%d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init observation schema: commit tx: %w", err)
	}
	return nil
}

// SQLObservationSink writes estimation rows to Postgres, one transaction per
// row. *sql.DB pools connections, so workers write concurrently.
type SQLObservationSink struct {
	DB *sql.DB
}

func NewSQLObservationSink(db *sql.DB) *SQLObservationSink {
	return &SQLObservationSink{DB: db}
}

func (s *SQLObservationSink) WriteObservation(ctx context.Context, obs domain.Observation) error {
	if s.DB == nil {
		return errors.New("sql observation sink: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write observation: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := insertObservation(ctx, tx, rebindDollar, obs); err != nil {
		return fmt.Errorf("write observation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write observation: commit tx: %w", err)
	}
	return nil
}

// Close is a no-op; the caller owns DB.
func (s *SQLObservationSink) Close() error { return nil }
