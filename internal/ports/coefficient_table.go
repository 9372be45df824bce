package ports

// Read-only coefficient lookup for one model specification.
type CoefficientTable interface {
	// Return the coefficient registered under id; ok is false for unknown ids.
	Coefficient(id int) (value float64, ok bool)
}
