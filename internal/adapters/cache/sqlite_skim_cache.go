package cache

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
	"strings"
)

// SQLite backed cache of zone-to-zone skims, one row per
// (mode, origin zone, destination zone).
type SqliteSkimCache struct {
	DB *sql.DB
}

func NewSqliteSkimCache(db *sql.DB) *SqliteSkimCache {
	return &SqliteSkimCache{DB: db}
}

// Fetch cached skims for one mode and origin and multiple destinations.
func (s *SqliteSkimCache) GetMany(
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
	ph := make([]string, 0, len(destinationZones))
	args := make([]any, 0, 2+len(destinationZones))
	args = append(args, int(mode), originZone)
	for _, d := range destinationZones {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		ph = append(ph, "?")
		args = append(args, d)
	}

	// SQLite does not support binding slices directly in an IN (...) clause.
	// Only the placeholder structure is interpolated; all values remain parameterized.
	q := fmt.Sprintf(`
	SELECT
        destination_zone,
        minutes,
        miles
    FROM skim_cache
    WHERE mode = ?
        AND origin_zone = ?
        AND destination_zone IN (%s);
	`, strings.Join(ph, ","))

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get skim cache: query skim_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[int]domain.ZoneSkim, len(seen))
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
func (s *SqliteSkimCache) PutMany(ctx context.Context, skims []domain.ZoneSkim) error {
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
	INSERT OR REPLACE INTO skim_cache (
        mode,
        origin_zone,
        destination_zone,
        minutes,
        miles
    )
    VALUES (?, ?, ?, ?, ?)
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
