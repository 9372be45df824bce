package timewindow

import (
	"reflect"
	"testing"
)

func TestTimeWindowScenario(t *testing.T) {
	w := NewTimeWindow()
	w.MarkBusy(480, 600)

	if got := w.TotalAvailableMinutes(0, 1440); got != 1319 {
		t.Fatalf("TotalAvailableMinutes(0,1440) = %d, want 1319", got)
	}
	if got := w.MaxAvailableMinutesAfter(600); got != 840 {
		t.Fatalf("MaxAvailableMinutesAfter(600) = %d, want 840", got)
	}
	if got := w.MaxAvailableMinutesBefore(480); got != 479 {
		t.Fatalf("MaxAvailableMinutesBefore(480) = %d, want 479", got)
	}
	if got := w.MaxAvailableMinutesBefore(500); got != 0 {
		t.Fatalf("MaxAvailableMinutesBefore(500) = %d, want 0", got)
	}
}

func TestMarkBusyIdempotent(t *testing.T) {
	once := NewTimeWindow()
	once.MarkBusy(100, 200)

	twice := NewTimeWindow()
	twice.MarkBusy(100, 200)
	twice.MarkBusy(100, 200)

	if !reflect.DeepEqual(once.BusySpans(), twice.BusySpans()) {
		t.Fatalf("busy spans differ: once=%v twice=%v", once.BusySpans(), twice.BusySpans())
	}
}

func TestMarkBusyMergesOverlapAndAdjacency(t *testing.T) {
	w := NewTimeWindow()
	w.MarkBusy(100, 200)
	w.MarkBusy(300, 400)
	w.MarkBusy(201, 250) // adjacent to the first span
	w.MarkBusy(240, 310) // bridges into the second span
	w.MarkBusy(600, 500) // reversed bounds

	want := []MinuteSpan{{Start: 100, End: 400}, {Start: 500, End: 600}}
	if got := w.BusySpans(); !reflect.DeepEqual(got, want) {
		t.Fatalf("busy spans = %v, want %v", got, want)
	}
}

func TestIncorporateAnotherWindowCommutative(t *testing.T) {
	a := NewTimeWindow()
	a.MarkBusy(60, 120)
	a.MarkBusy(700, 800)

	b := NewTimeWindow()
	b.MarkBusy(100, 300)
	b.MarkBusy(801, 900)

	c := NewTimeWindow()
	c.MarkBusy(1000, 1100)

	ab := NewTimeWindow()
	ab.IncorporateAnotherWindow(a)
	ab.IncorporateAnotherWindow(b)

	ba := NewTimeWindow()
	ba.IncorporateAnotherWindow(b)
	ba.IncorporateAnotherWindow(a)

	if !reflect.DeepEqual(ab.BusySpans(), ba.BusySpans()) {
		t.Fatalf("union not commutative: ab=%v ba=%v", ab.BusySpans(), ba.BusySpans())
	}

	left := a.Clone()
	left.IncorporateAnotherWindow(b)
	left.IncorporateAnotherWindow(c)

	bc := b.Clone()
	bc.IncorporateAnotherWindow(c)
	right := a.Clone()
	right.IncorporateAnotherWindow(bc)

	if !reflect.DeepEqual(left.BusySpans(), right.BusySpans()) {
		t.Fatalf("union not associative: left=%v right=%v", left.BusySpans(), right.BusySpans())
	}
}

func TestOutOfDomainRangesClip(t *testing.T) {
	w := NewTimeWindow()
	w.MarkBusy(-50, 10)
	w.MarkBusy(1430, 5000)

	want := []MinuteSpan{{Start: 1, End: 10}, {Start: 1430, End: 1440}}
	if got := w.BusySpans(); !reflect.DeepEqual(got, want) {
		t.Fatalf("busy spans = %v, want %v", got, want)
	}
	if got := w.TotalAvailableMinutes(-100, 3000); got != 1440-21 {
		t.Fatalf("TotalAvailableMinutes = %d, want %d", got, 1440-21)
	}
}

func TestFullyBusyWindowReturnsZero(t *testing.T) {
	w := NewTimeWindow()
	w.MarkBusy(1, 1440)

	tests := []struct {
		name string
		got  int
	}{
		{"total", w.TotalAvailableMinutes(1, 1440)},
		{"before", w.MaxAvailableMinutesBefore(720)},
		{"after", w.MaxAvailableMinutesAfter(720)},
		{"both", w.AvailableWindow(720, Both)},
		{"spans", len(w.AvailableSpans(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != 0 {
				t.Fatalf("%s = %d, want 0", tt.name, tt.got)
			}
		})
	}
}

func TestAvailableWindow(t *testing.T) {
	w := NewTimeWindow()
	w.MarkBusy(1, 360)
	w.MarkBusy(1200, 1440)

	tests := []struct {
		name      string
		minute    int
		direction Direction
		want      int
	}{
		{"before free pivot", 600, Before, 239},
		{"after free pivot", 600, After, 599},
		{"both free pivot", 600, Both, 839},
		{"both busy pivot", 1200, Both, 839},
		{"after busy edge", 360, After, 839},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.AvailableWindow(tt.minute, tt.direction); got != tt.want {
				t.Fatalf("AvailableWindow(%d, %v) = %d, want %d", tt.minute, tt.direction, got, tt.want)
			}
		})
	}
}

func TestAvailableSpansAndEntireSpan(t *testing.T) {
	w, err := NewTimeWindowWithDomain(1, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.MarkBusy(20, 29)
	w.MarkBusy(35, 90)

	want := []MinuteSpan{{Start: 1, End: 19}, {Start: 91, End: 100}}
	if got := w.AvailableSpans(6); !reflect.DeepEqual(got, want) {
		t.Fatalf("AvailableSpans(6) = %v, want %v", got, want)
	}

	if !w.EntireSpanIsAvailable(30, 34) {
		t.Fatalf("expected 30..34 to be available")
	}
	if w.EntireSpanIsAvailable(30, 35) {
		t.Fatalf("expected 30..35 to be unavailable")
	}
	if w.EntireSpanIsAvailable(95, 101) {
		t.Fatalf("expected span leaving the domain to be unavailable")
	}
}

func TestNewTimeWindowWithEmptyDomain(t *testing.T) {
	if _, err := NewTimeWindowWithDomain(10, 5); err == nil {
		t.Fatalf("expected error for empty domain")
	}
}
