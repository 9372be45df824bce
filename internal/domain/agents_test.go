package domain

import (
	"reflect"
	"testing"
)

func TestArenaLinksRecordsByID(t *testing.T) {
	a := NewArena()
	if err := a.AddHousehold(Household{HouseholdID: 2, HomeParcelID: 7, PersonIDs: []int{99}}); err != nil {
		t.Fatalf("AddHousehold: %v", err)
	}
	if err := a.AddHousehold(Household{HouseholdID: 1, HomeParcelID: 3}); err != nil {
		t.Fatalf("AddHousehold: %v", err)
	}
	for _, p := range []Person{
		{PersonID: 20, HouseholdID: 2, Age: 40},
		{PersonID: 21, HouseholdID: 2, Age: 8},
		{PersonID: 10, HouseholdID: 1, Age: 30},
	} {
		if err := a.AddPerson(p); err != nil {
			t.Fatalf("AddPerson(%d): %v", p.PersonID, err)
		}
	}
	if err := a.AddTour(Tour{TourID: 200, PersonID: 20, Purpose: PurposeShop, ParticipantIDs: []int{21}}); err != nil {
		t.Fatalf("AddTour: %v", err)
	}

	if got := a.HouseholdIDs(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("HouseholdIDs = %v, want [1 2]", got)
	}
	if got := a.Household(2).PersonIDs; !reflect.DeepEqual(got, []int{20, 21}) {
		t.Fatalf("PersonIDs = %v, want [20 21] (input ids ignored)", got)
	}

	tour := a.Tour(200)
	if tour.HouseholdID != 2 || !tour.IsJoint() {
		t.Fatalf("tour = %+v, want household 2 and joint", tour)
	}
	if got := a.Person(20).TourIDs; !reflect.DeepEqual(got, []int{200}) {
		t.Fatalf("TourIDs = %v, want [200]", got)
	}

	// Records are addressed in place.
	a.Tour(200).Mode = ModeHOV
	if a.Tours()[0].Mode != ModeHOV {
		t.Fatalf("update through Tour(200) was lost")
	}
	if a.Household(5) != nil || a.Person(5) != nil || a.Tour(5) != nil {
		t.Fatalf("unknown ids must return nil")
	}
	if a.CountHouseholds() != 2 || a.CountPersons() != 3 {
		t.Fatalf("counts = %d/%d, want 2/3", a.CountHouseholds(), a.CountPersons())
	}
}

func TestArenaRejectsBrokenLinks(t *testing.T) {
	a := NewArena()
	_ = a.AddHousehold(Household{HouseholdID: 1})
	_ = a.AddHousehold(Household{HouseholdID: 2})
	_ = a.AddPerson(Person{PersonID: 10, HouseholdID: 1})
	_ = a.AddPerson(Person{PersonID: 20, HouseholdID: 2})

	tests := []struct {
		name string
		add  func() error
	}{
		{"duplicate household", func() error { return a.AddHousehold(Household{HouseholdID: 1}) }},
		{"duplicate person", func() error { return a.AddPerson(Person{PersonID: 10, HouseholdID: 1}) }},
		{"person without household", func() error { return a.AddPerson(Person{PersonID: 30, HouseholdID: 9}) }},
		{"tour without person", func() error { return a.AddTour(Tour{TourID: 1, PersonID: 99}) }},
		{"participant from another household", func() error {
			return a.AddTour(Tour{TourID: 2, PersonID: 10, ParticipantIDs: []int{20}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.add(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPathGeneralizedTime(t *testing.T) {
	road := RoadPath{PathMode: ModeHOV, OK: true, Minutes: 20, CostCents: 200, Occupancy: 2, ValueOfTime: 25}
	if got := road.GeneralizedTime(); got != 24 {
		t.Fatalf("road generalized time = %v, want 24", got)
	}
	transit := TransitPath{OK: true, InVehicle: 30, Wait: 5, Access: 5, FareCents: 250, ValueOfTime: 25, WaitMultiplier: 2}
	if got := transit.GeneralizedTime(); got != 60 {
		t.Fatalf("transit generalized time = %v, want 60", got)
	}
	if p := UnavailablePath(ModeTransit); p.Available() || p.Mode() != ModeTransit {
		t.Fatalf("UnavailablePath(transit) = %+v", p)
	}
	if p := UnavailablePath(ModeWalk); p.Mode() != ModeWalk {
		t.Fatalf("UnavailablePath(walk).Mode() = %v", p.Mode())
	}
}
