package domain

// DecisionKey identifies one choice instance. The random stream of a
// calculator is derived from it, so the same key always replays the same draw.
//
// Ids that do not apply to a decision (e.g. TourID for a household-level
// model) are left at zero. ModelOffset separates models that share the
// same agent ids.
type DecisionKey struct {
	HouseholdID int
	PersonID    int
	TourID      int
	TripID      int
	ModelOffset int
}

// Model offsets used by the bundled model chain.
const (
	OffsetAutoOwnership     = 1
	OffsetTourDestination   = 11
	OffsetDestinationSample = 12
	OffsetTourMode          = 21
	OffsetTourTime          = 31
)
