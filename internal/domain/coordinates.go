package domain

import "math"

// Immutable planar coordinates in meters (projected, e.g. state plane).
type Coordinates struct {
	X float64
	Y float64
}

// Straight-line distance in meters.
func (c Coordinates) DistanceTo(o Coordinates) float64 {
	return math.Hypot(c.X-o.X, c.Y-o.Y)
}
