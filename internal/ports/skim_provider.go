package ports

import "daysim/internal/domain"

// Contract for level-of-service lookups between parcels. Implementations are
// read-only during a pass and safe for concurrent use.
type SkimProvider interface {
	// Return the path for mode from origin to destination departing at minute.
	Path(mode domain.Mode, originParcelID, destinationParcelID, minute int) domain.PathResult
}
