package ports

import (
	"context"
	"daysim/internal/domain"
)

// Append-only destination for estimation rows. Implementations must be safe
// for concurrent use by every worker of a pass.
type ObservationSink interface {
	WriteObservation(ctx context.Context, obs domain.Observation) error
	Close() error
}
