package repositories

import (
	"context"
	"database/sql"
	"daysim/internal/domain"
	"errors"
	"fmt"
	"slices"
)

// SQLite-backed implementation of the ShadowPriceStore port.
type SqliteShadowPriceStore struct{ DB *sql.DB }

func NewSqliteShadowPriceStore(db *sql.DB) *SqliteShadowPriceStore {
	return &SqliteShadowPriceStore{DB: db}
}

// LoadShadowPrices returns parcel_id -> price for purpose; missing parcels
// have a price of 0.
func (s *SqliteShadowPriceStore) LoadShadowPrices(ctx context.Context, purpose domain.Purpose) (map[int]float64, error) {
	if s.DB == nil {
		return nil, errors.New("sqlite shadow price store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT parcel_id, price
	FROM shadow_prices
	WHERE purpose = ?;
	`, int(purpose))
	if err != nil {
		return nil, fmt.Errorf("load shadow prices purpose=%s: %w", purpose, err)
	}
	defer rows.Close()

	out := map[int]float64{}
	for rows.Next() {
		var parcelID int
		var price float64
		if err := rows.Scan(&parcelID, &price); err != nil {
			return nil, fmt.Errorf("load shadow prices: scan row: %w", err)
		}
		out[parcelID] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load shadow prices: row iteration: %w", err)
	}
	return out, nil
}

// SaveShadowPrices replaces every stored price of purpose.
func (s *SqliteShadowPriceStore) SaveShadowPrices(ctx context.Context, purpose domain.Purpose, prices map[int]float64) error {
	if s.DB == nil {
		return errors.New("sqlite shadow price store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save shadow prices: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shadow_prices WHERE purpose = ?;`, int(purpose)); err != nil {
		return fmt.Errorf("save shadow prices: clear purpose=%s: %w", purpose, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO shadow_prices (purpose, parcel_id, price) VALUES (?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("save shadow prices: prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int, 0, len(prices))
	for id := range prices {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, int(purpose), id, prices[id]); err != nil {
			return fmt.Errorf("save shadow prices: insert parcel_id=%d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save shadow prices: commit tx: %w", err)
	}
	return nil
}
