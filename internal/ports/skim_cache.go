package ports

import (
	"context"
	"daysim/internal/domain"
)

// Persistent store of zone-to-zone skims so repeated runs skip rebuilding them.
type SkimCache interface {
	// Return cached skims from origin to any of destinations, keyed by destination zone.
	GetMany(ctx context.Context, mode domain.Mode, originZone int, destinationZones []int) (map[int]domain.ZoneSkim, error)
	PutMany(ctx context.Context, skims []domain.ZoneSkim) error
}
