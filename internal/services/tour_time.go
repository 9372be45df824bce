package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"daysim/internal/timewindow"
	"fmt"
	"math"
)

// Tour time coefficient ids.
const (
	coefDurationHours   = 1
	coefDurationSquared = 2
	coefArriveAMPeak    = 3
	coefDepartPMPeak    = 4
	coefArriveEarly     = 5
	coefDepartLate      = 6
)

const hoursPerDay = 24

type hourPair struct {
	arrive, depart int
}

// timeAlternatives enumerates every (arrival hour, departure hour) pair with
// arrival <= departure. The alternative id is the index.
var timeAlternatives = func() []hourPair {
	out := make([]hourPair, 0, hoursPerDay*(hoursPerDay+1)/2)
	for a := 0; a < hoursPerDay; a++ {
		for d := a; d < hoursPerDay; d++ {
			out = append(out, hourPair{a, d})
		}
	}
	return out
}()

func timeAlternativeID(arrivalMinute, departureMinute int) int {
	a := (arrivalMinute - 1) / 60
	d := (departureMinute - 1) / 60
	for id, hp := range timeAlternatives {
		if hp.arrive == a && hp.depart == d {
			return id
		}
	}
	return -1
}

// arrivalMinute and departureMinute bound the activity at the destination.
func (hp hourPair) arrivalMinute() int   { return hp.arrive*60 + 1 }
func (hp hourPair) departureMinute() int { return (hp.depart + 1) * 60 }

// tourSpan is the part of the day the tour occupies: the activity plus travel
// to and from the destination.
func (d *householdDay) tourSpan(h *domain.Household, t *domain.Tour, arrival, departure int) (int, int) {
	if t.Mode == domain.ModeNone || t.DestinationParcelID == 0 {
		return arrival, departure
	}
	out := d.env.Skims.Path(t.Mode, h.HomeParcelID, t.DestinationParcelID, arrival)
	back := d.env.Skims.Path(t.Mode, t.DestinationParcelID, h.HomeParcelID, departure)
	return arrival - int(math.Ceil(out.Time())), departure + int(math.Ceil(back.Time()))
}

// participantWindow merges the windows of the tour owner and every participant.
func (d *householdDay) participantWindow(t *domain.Tour) *timewindow.TimeWindow {
	w := d.windows[t.PersonID].Clone()
	for _, id := range t.ParticipantIDs {
		w.IncorporateAnotherWindow(d.windows[id])
	}
	return w
}

func (d *householdDay) markTourBusy(t *domain.Tour, start, end int) {
	d.windows[t.PersonID].MarkBusy(start, end)
	for _, id := range t.ParticipantIDs {
		d.windows[id].MarkBusy(start, end)
	}
}

func (d *householdDay) runTourTime(ctx context.Context, h *domain.Household, p *domain.Person, t *domain.Tour) error {
	observed := -1
	if d.mode == choice.Estimating {
		if t.ArrivalMinute <= 0 || t.DepartureMinute < t.ArrivalMinute {
			return nil
		}
		observed = timeAlternativeID(t.ArrivalMinute, t.DepartureMinute)
		if observed < 0 {
			return fmt.Errorf("tour time: tour_id=%d: observed times %d..%d: %w", t.TourID, t.ArrivalMinute, t.DepartureMinute, choice.ErrChosenUnavailable)
		}
	}

	key := domain.DecisionKey{
		HouseholdID: h.HouseholdID,
		PersonID:    p.PersonID,
		TourID:      t.TourID,
		ModelOffset: domain.OffsetTourTime,
	}
	calc := d.x.NewCalculator(d.env.TourTime, d.mode, key)
	defer calc.Release()

	window := d.participantWindow(t)
	mandatory := t.Purpose == domain.PurposeWork || t.Purpose == domain.PurposeSchool

	for id, hp := range timeAlternatives {
		arrival, departure := hp.arrivalMinute(), hp.departureMinute()
		start, end := d.tourSpan(h, t, arrival, departure)
		available := window.EntireSpanIsAvailable(start, end)

		alt := calc.GetAlternative(id, available, id == observed)
		alt.Payload = domain.TimePeriodChoice(arrival, departure)
		if !available {
			continue
		}

		hours := float64(hp.depart - hp.arrive + 1)
		alt.AddUtilityTerm(coefDurationHours, hours)
		alt.AddUtilityTerm(coefDurationSquared, hours*hours)
		if mandatory && hp.arrive >= 7 && hp.arrive < 9 {
			alt.AddUtilityTerm(coefArriveAMPeak, 1)
		}
		if mandatory && hp.depart >= 16 && hp.depart < 18 {
			alt.AddUtilityTerm(coefDepartPMPeak, 1)
		}
		if hp.arrive < 6 {
			alt.AddUtilityTerm(coefArriveEarly, 1)
		}
		if hp.depart >= 21 {
			alt.AddUtilityTerm(coefDepartLate, 1)
		}
	}

	if d.mode == choice.Estimating {
		if err := calc.WriteObservation(ctx); err != nil {
			return fmt.Errorf("tour time: tour_id=%d: %w", t.TourID, err)
		}
		d.stats.observations++
		start, end := d.tourSpan(h, t, t.ArrivalMinute, t.DepartureMinute)
		d.markTourBusy(t, start, end)
		return nil
	}

	chosen, err := calc.SimulateChoice(choice.NoForcedChoice)
	if err != nil {
		return fmt.Errorf("tour time: tour_id=%d: %w", t.TourID, err)
	}
	t.ArrivalMinute = chosen.Payload.ArrivalMinute
	t.DepartureMinute = chosen.Payload.DepartureMinute
	start, end := d.tourSpan(h, t, t.ArrivalMinute, t.DepartureMinute)
	d.markTourBusy(t, start, end)
	return nil
}
