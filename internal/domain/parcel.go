package domain

// Represents one destination alternative in the regional universe.
// Size attributes feed both sampling weights and size terms in utilities.
type Parcel struct {
	ParcelID   int
	ZoneID     int
	Location   Coordinates
	Employment float64
	Households float64
	Students   float64
}

// Size returns the attraction measure a parcel offers for a tour purpose.
func (p Parcel) Size(purpose Purpose) float64 {
	switch purpose {
	case PurposeWork:
		return p.Employment
	case PurposeSchool:
		return p.Students
	case PurposeShop:
		return 0.5 * p.Employment
	default:
		return p.Employment + 0.25*p.Households
	}
}
