package domain

import (
	"fmt"
	"slices"
)

// Household record in the agent-day arena. Vehicles holds the observed
// count when estimating and the simulated count after auto ownership runs.
type Household struct {
	HouseholdID  int
	HomeParcelID int
	Income       int
	Vehicles     int
	PersonIDs    []int
	InvalidDay   bool
}

type Person struct {
	PersonID    int
	HouseholdID int
	Age         int
	Worker      bool
	Student     bool
	TourIDs     []int
	InvalidDay  bool
}

// Tour record. ParticipantIDs lists the other household members on a joint
// tour; the tour owner is PersonID. Destination, mode and times are observed
// values when estimating and simulated values otherwise.
type Tour struct {
	TourID              int
	PersonID            int
	HouseholdID         int
	Purpose             Purpose
	ParticipantIDs      []int
	DestinationParcelID int
	Mode                Mode
	ArrivalMinute       int
	DepartureMinute     int
}

// IsJoint reports whether other household members travel on the tour.
func (t *Tour) IsJoint() bool { return len(t.ParticipantIDs) > 0 }

// Arena holds every agent-day record, addressed by integer id. Parent links
// are plain id fields, so records never point at each other.
//
// An Arena is built before a pass and is then only mutated per household by
// the worker that owns that household.
type Arena struct {
	households []Household
	persons    []Person
	tours      []Tour

	householdIdx map[int]int
	personIdx    map[int]int
	tourIdx      map[int]int
}

func NewArena() *Arena {
	return &Arena{
		householdIdx: make(map[int]int),
		personIdx:    make(map[int]int),
		tourIdx:      make(map[int]int),
	}
}

func (a *Arena) AddHousehold(h Household) error {
	if _, ok := a.householdIdx[h.HouseholdID]; ok {
		return fmt.Errorf("add household: duplicate household_id=%d", h.HouseholdID)
	}
	h.PersonIDs = nil
	a.householdIdx[h.HouseholdID] = len(a.households)
	a.households = append(a.households, h)
	return nil
}

func (a *Arena) AddPerson(p Person) error {
	if _, ok := a.personIdx[p.PersonID]; ok {
		return fmt.Errorf("add person: duplicate person_id=%d", p.PersonID)
	}
	hi, ok := a.householdIdx[p.HouseholdID]
	if !ok {
		return fmt.Errorf("add person: person_id=%d references unknown household_id=%d", p.PersonID, p.HouseholdID)
	}
	p.TourIDs = nil
	a.personIdx[p.PersonID] = len(a.persons)
	a.persons = append(a.persons, p)
	a.households[hi].PersonIDs = append(a.households[hi].PersonIDs, p.PersonID)
	return nil
}

func (a *Arena) AddTour(t Tour) error {
	if _, ok := a.tourIdx[t.TourID]; ok {
		return fmt.Errorf("add tour: duplicate tour_id=%d", t.TourID)
	}
	pi, ok := a.personIdx[t.PersonID]
	if !ok {
		return fmt.Errorf("add tour: tour_id=%d references unknown person_id=%d", t.TourID, t.PersonID)
	}
	t.HouseholdID = a.persons[pi].HouseholdID
	for _, id := range t.ParticipantIDs {
		other, ok := a.personIdx[id]
		if !ok || a.persons[other].HouseholdID != t.HouseholdID {
			return fmt.Errorf("add tour: tour_id=%d participant person_id=%d is not in household_id=%d", t.TourID, id, t.HouseholdID)
		}
	}
	a.tourIdx[t.TourID] = len(a.tours)
	a.tours = append(a.tours, t)
	a.persons[pi].TourIDs = append(a.persons[pi].TourIDs, t.TourID)
	return nil
}

func (a *Arena) Household(id int) *Household {
	i, ok := a.householdIdx[id]
	if !ok {
		return nil
	}
	return &a.households[i]
}

func (a *Arena) Person(id int) *Person {
	i, ok := a.personIdx[id]
	if !ok {
		return nil
	}
	return &a.persons[i]
}

func (a *Arena) Tour(id int) *Tour {
	i, ok := a.tourIdx[id]
	if !ok {
		return nil
	}
	return &a.tours[i]
}

// HouseholdIDs returns every household id in ascending order.
func (a *Arena) HouseholdIDs() []int {
	ids := make([]int, 0, len(a.households))
	for _, h := range a.households {
		ids = append(ids, h.HouseholdID)
	}
	slices.Sort(ids)
	return ids
}

// Tours returns a copy of every tour record in insertion order.
func (a *Arena) Tours() []Tour {
	return slices.Clone(a.tours)
}

func (a *Arena) CountHouseholds() int { return len(a.households) }
func (a *Arena) CountPersons() int    { return len(a.persons) }
