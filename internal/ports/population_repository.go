package ports

import (
	"context"
	"daysim/internal/domain"
)

// Port: a boundary for loading the synthetic population and parcel universe.
type PopulationRepository interface {
	ListParcels(ctx context.Context) ([]domain.Parcel, error)
	LoadArena(ctx context.Context) (*domain.Arena, error)
}
