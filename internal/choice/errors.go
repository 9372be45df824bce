package choice

import "errors"

// Configuration class: a model-specification bug. A pass halts on these.
var (
	ErrInvalidTheta        = errors.New("nest theta must lie in (0,1]")
	ErrInvalidNest         = errors.New("invalid nest structure")
	ErrUnknownCoefficient  = errors.New("unknown coefficient id")
	ErrInvalidAlternative  = errors.New("invalid alternative id")
	ErrDuplicateComponent  = errors.New("utility component already exists")
	ErrUnknownComponent    = errors.New("unknown utility component")
	ErrNotPopulated        = errors.New("calculator resolved before any alternative was added")
	ErrAlreadyResolved     = errors.New("calculator already resolved")
	ErrNonFiniteUtility    = errors.New("non-finite utility on an available alternative")
	ErrObservationContract = errors.New("estimation observation contract violated")
)

// Feasibility class: this agent-day cannot be resolved, other agents continue.
var (
	ErrNoAvailableAlternative = errors.New("no available alternative")
	ErrChosenUnavailable      = errors.New("chosen alternative is unavailable")
)

var configurationErrors = []error{
	ErrInvalidTheta,
	ErrInvalidNest,
	ErrUnknownCoefficient,
	ErrInvalidAlternative,
	ErrDuplicateComponent,
	ErrUnknownComponent,
	ErrNotPopulated,
	ErrAlreadyResolved,
	ErrNonFiniteUtility,
	ErrObservationContract,
}

// IsConfigurationError reports whether err stems from a model-specification bug.
func IsConfigurationError(err error) bool {
	for _, target := range configurationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsFeasibilityError reports whether err only invalidates the current agent-day.
func IsFeasibilityError(err error) bool {
	return errors.Is(err, ErrNoAvailableAlternative) || errors.Is(err, ErrChosenUnavailable)
}
