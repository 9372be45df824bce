package domain

import "fmt"

type PayloadKind int

const (
	PayloadNone PayloadKind = iota
	PayloadCount
	PayloadParcel
	PayloadMode
	PayloadTimePeriods
)

// ChoicePayload lets a caller recover the domain outcome behind a resolved
// alternative. Only the fields matching Kind are meaningful.
type ChoicePayload struct {
	Kind PayloadKind

	Count    int
	ParcelID int
	Mode     Mode

	ArrivalMinute   int
	DepartureMinute int
}

func CountChoice(n int) ChoicePayload { return ChoicePayload{Kind: PayloadCount, Count: n} }

func ParcelChoice(parcelID int) ChoicePayload {
	return ChoicePayload{Kind: PayloadParcel, ParcelID: parcelID}
}

func ModeChoice(m Mode) ChoicePayload { return ChoicePayload{Kind: PayloadMode, Mode: m} }

func TimePeriodChoice(arrival, departure int) ChoicePayload {
	return ChoicePayload{Kind: PayloadTimePeriods, ArrivalMinute: arrival, DepartureMinute: departure}
}

func (p ChoicePayload) String() string {
	switch p.Kind {
	case PayloadCount:
		return fmt.Sprintf("count=%d", p.Count)
	case PayloadParcel:
		return fmt.Sprintf("parcel=%d", p.ParcelID)
	case PayloadMode:
		return fmt.Sprintf("mode=%s", p.Mode)
	case PayloadTimePeriods:
		return fmt.Sprintf("arrive=%d depart=%d", p.ArrivalMinute, p.DepartureMinute)
	default:
		return "none"
	}
}
