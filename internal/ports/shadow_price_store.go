package ports

import (
	"context"
	"daysim/internal/domain"
)

// Persistence for destination shadow prices between passes.
type ShadowPriceStore interface {
	LoadShadowPrices(ctx context.Context, purpose domain.Purpose) (map[int]float64, error)
	SaveShadowPrices(ctx context.Context, purpose domain.Purpose, prices map[int]float64) error
}
