package services

import (
	"context"
	"daysim/internal/choice"
	"daysim/internal/domain"
	"fmt"
	"math"
)

// Auto ownership coefficient ids.
const (
	coefOneVehicle       = 1
	coefTwoVehicles      = 2
	coefThreeVehicles    = 3
	coefLogIncome        = 4
	coefWorkers          = 5
	coefVehiclesAboveAge = 6
)

const (
	maxVehicles = 3
	drivingAge  = 16

	// Terms every vehicle-owning alternative shares.
	componentCarOwning = 1
)

// runAutoOwnership chooses 0..3+ vehicles for h. Alternative id equals the
// vehicle count; zero vehicles is the reference alternative.
func (d *householdDay) runAutoOwnership(ctx context.Context, h *domain.Household) error {
	key := domain.DecisionKey{HouseholdID: h.HouseholdID, ModelOffset: domain.OffsetAutoOwnership}
	calc := d.x.NewCalculator(d.env.AutoOwnership, d.mode, key)
	defer calc.Release()

	drivers, workers := 0, 0
	for _, id := range h.PersonIDs {
		p := d.arena.Person(id)
		if p.Age >= drivingAge {
			drivers++
		}
		if p.Worker {
			workers++
		}
	}

	owning := calc.CreateUtilityComponent(componentCarOwning)
	owning.AddUtilityTerm(coefLogIncome, math.Log1p(float64(max(h.Income, 0))/1000))
	owning.AddUtilityTerm(coefWorkers, float64(workers))

	observed := -1
	if d.mode == choice.Estimating {
		observed = min(h.Vehicles, maxVehicles)
	}

	for v := 0; v <= maxVehicles; v++ {
		alt := calc.GetAlternative(v, true, v == observed)
		alt.Payload = domain.CountChoice(v)
		if v == 0 {
			continue
		}
		alt.AddUtilityTerm(coefOneVehicle+v-1, 1)
		alt.AddUtilityComponent(owning)
		alt.AddUtilityTerm(coefVehiclesAboveAge, float64(max(v-drivers, 0)))
	}

	if d.mode == choice.Estimating {
		if err := calc.WriteObservation(ctx); err != nil {
			return fmt.Errorf("auto ownership: %w", err)
		}
		d.stats.observations++
		return nil
	}

	chosen, err := calc.SimulateChoice(choice.NoForcedChoice)
	if err != nil {
		return fmt.Errorf("auto ownership: household_id=%d: %w", h.HouseholdID, err)
	}
	h.Vehicles = chosen.Payload.Count
	return nil
}
