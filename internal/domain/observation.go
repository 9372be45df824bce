package domain

// One registered utility contribution: coefficient id and the raw value it multiplies.
type ObservationTerm struct {
	CoefficientID int
	Value         float64
}

type ObservedAlternative struct {
	AlternativeID int
	Available     bool
	Chosen        bool
	NestID        int // 0 when the alternative sits directly under the root
	Terms         []ObservationTerm
}

type ObservedNest struct {
	NestID       int
	ParentNestID int
	Theta        float64
	Terms        []ObservationTerm
}

// Observation is one estimation row: the observed choice of one decision and
// the per-coefficient utility decomposition of every alternative. Terms keep
// registration order, and a coefficient id may appear more than once.
type Observation struct {
	Model               string
	Key                 DecisionKey
	ChosenAlternativeID int
	Alternatives        []ObservedAlternative
	Nests               []ObservedNest
}
