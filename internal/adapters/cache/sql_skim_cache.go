package cache

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
)

// Create the skim_cache table in Postgres.
func InitPostgresSkimCacheSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init skim cache schema: DB is nil")
	}

	if _, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS skim_cache (
		mode INTEGER NOT NULL,
		origin_zone INTEGER NOT NULL,
		destination_zone INTEGER NOT NULL,
		minutes DOUBLE PRECISION NOT NULL,
		miles DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (mode, origin_zone, destination_zone)
	);
	`); err != nil {
		return fmt.Errorf("init skim cache schema: %w", err)
	}
	return nil
}

// SQLSkimCache is a Postgres-backed cache of zone-to-zone skims, shared by
// every run that points at the same database.
type SQLSkimCache struct {
	DB *sql.DB
}

func NewSQLSkimCache(db *sql.DB) *SQLSkimCache {
	return &SQLSkimCache{DB: db}
}

// Fetch cached skims for one mode and origin and multiple destinations.
func (s *SQLSkimCache) GetMany(
	ctx context.Context,
	mode domain.Mode,
	originZone int,
	destinationZones []int,
) (map[int]domain.ZoneSkim, error) {
	if s.DB == nil {
		return nil, errors.New("skim cache: db is nil")
	}

	if len(destinationZones) == 0 {
		return map[int]domain.ZoneSkim{}, nil
	}

	seen := map[int]struct{}{}
	uniq := make([]int64, 0, len(destinationZones))
	for _, d := range destinationZones {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		uniq = append(uniq, int64(d))
	}

	q := `
	SELECT destination_zone, minutes, miles
    FROM skim_cache
    WHERE mode = $1
        AND origin_zone = $2
        AND destination_zone = ANY($3::integer[]);
	`

	rows, err := s.DB.QueryContext(ctx, q, int(mode), originZone, uniq)
	if err != nil {
		return nil, fmt.Errorf("get skim cache: query skim_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[int]domain.ZoneSkim, len(uniq))
	for rows.Next() {
		sk := domain.ZoneSkim{Mode: mode, OriginZone: originZone}
		if err := rows.Scan(&sk.DestinationZone, &sk.Minutes, &sk.Miles); err != nil {
			return nil, fmt.Errorf("get skim cache: scan rows: %w", err)
		}
		out[sk.DestinationZone] = sk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get skim cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many skims in one transaction.
func (s *SQLSkimCache) PutMany(ctx context.Context, skims []domain.ZoneSkim) error {
	if s.DB == nil {
		return errors.New("skim cache: db is nil")
	}

	if len(skims) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert skim cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO skim_cache (mode, origin_zone, destination_zone, minutes, miles)
    VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (mode, origin_zone, destination_zone) DO UPDATE
	SET minutes = EXCLUDED.minutes,
		miles = EXCLUDED.miles;
	`)
	if err != nil {
		return fmt.Errorf("insert skim cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for _, sk := range skims {
		if sk.Mode == domain.ModeNone {
			return fmt.Errorf("insert skim cache: origin_zone=%d destination_zone=%d has no mode", sk.OriginZone, sk.DestinationZone)
		}

		if _, err := stmt.ExecContext(ctx, int(sk.Mode), sk.OriginZone, sk.DestinationZone, sk.Minutes, sk.Miles); err != nil {
			return fmt.Errorf("insert skim cache mode=%s origin_zone=%d destination_zone=%d: %w", sk.Mode, sk.OriginZone, sk.DestinationZone, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert skim cache commit: %w", err)
	}

	return nil
}
