package timewindow

import (
	"fmt"
	"sort"
)

const (
	FirstMinuteOfDay = 1
	LastMinuteOfDay  = 1440
)

// Direction selects which side of a pivot minute AvailableWindow measures.
type Direction int

const (
	Before Direction = iota
	After
	Both
)

func (d Direction) String() string {
	switch d {
	case Before:
		return "before"
	case After:
		return "after"
	case Both:
		return "both"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Inclusive range of day minutes.
type MinuteSpan struct {
	Start int
	End   int
}

func (s MinuteSpan) Length() int { return s.End - s.Start + 1 }

// TimeWindow records which minutes of a simulated day are already committed
// for one agent (or for several agents after IncorporateAnotherWindow).
//
// Busy spans are kept ordered, merged and non-overlapping. Time is only ever
// added; nothing un-marks a minute.
//
// A TimeWindow is owned by a single decision and is not safe for concurrent use.
type TimeWindow struct {
	first int
	last  int
	busy  []MinuteSpan
}

// NewTimeWindow returns an empty window over the default 1..1440 day.
func NewTimeWindow() *TimeWindow {
	return &TimeWindow{first: FirstMinuteOfDay, last: LastMinuteOfDay}
}

// NewTimeWindowWithDomain returns an empty window over first..last inclusive.
func NewTimeWindowWithDomain(first, last int) (*TimeWindow, error) {
	if last < first {
		return nil, fmt.Errorf("new time window: domain %d..%d is empty", first, last)
	}
	return &TimeWindow{first: first, last: last}, nil
}

func (w *TimeWindow) FirstMinute() int { return w.first }
func (w *TimeWindow) LastMinute() int  { return w.last }

// clip restricts [start,end] to the window domain; ok is false when nothing remains.
func (w *TimeWindow) clip(start, end int) (int, int, bool) {
	if start > end {
		start, end = end, start
	}
	if start < w.first {
		start = w.first
	}
	if end > w.last {
		end = w.last
	}
	return start, end, start <= end
}

// MarkBusy commits [start,end] (inclusive). Overlapping and adjacent spans
// are merged, so marking the same span twice is a no-op.
func (w *TimeWindow) MarkBusy(start, end int) {
	start, end, ok := w.clip(start, end)
	if !ok {
		return
	}
	w.insert(MinuteSpan{Start: start, End: end})
}

func (w *TimeWindow) insert(span MinuteSpan) {
	// First span that could touch the new one (its End reaches span.Start-1).
	i := sort.Search(len(w.busy), func(k int) bool { return w.busy[k].End >= span.Start-1 })

	j := i
	for j < len(w.busy) && w.busy[j].Start <= span.End+1 {
		if w.busy[j].Start < span.Start {
			span.Start = w.busy[j].Start
		}
		if w.busy[j].End > span.End {
			span.End = w.busy[j].End
		}
		j++
	}

	merged := make([]MinuteSpan, 0, len(w.busy)-(j-i)+1)
	merged = append(merged, w.busy[:i]...)
	merged = append(merged, span)
	merged = append(merged, w.busy[j:]...)
	w.busy = merged
}

// IncorporateAnotherWindow unions other's busy minutes into w. Spans of other
// that fall outside w's domain are clipped.
func (w *TimeWindow) IncorporateAnotherWindow(other *TimeWindow) {
	if other == nil {
		return
	}
	for _, s := range other.busy {
		w.MarkBusy(s.Start, s.End)
	}
}

// IsBusy reports whether minute is committed. Minutes outside the domain are busy.
func (w *TimeWindow) IsBusy(minute int) bool {
	if minute < w.first || minute > w.last {
		return true
	}
	i := sort.Search(len(w.busy), func(k int) bool { return w.busy[k].End >= minute })
	return i < len(w.busy) && w.busy[i].Start <= minute
}

// TotalAvailableMinutes counts free minutes in [from,to] inclusive.
func (w *TimeWindow) TotalAvailableMinutes(from, to int) int {
	from, to, ok := w.clip(from, to)
	if !ok {
		return 0
	}

	free := to - from + 1
	for _, s := range w.busy {
		if s.End < from {
			continue
		}
		if s.Start > to {
			break
		}
		lo, hi := max(s.Start, from), min(s.End, to)
		free -= hi - lo + 1
	}
	return free
}

// MaxAvailableMinutesBefore is the length of the free run ending at minute-1.
func (w *TimeWindow) MaxAvailableMinutesBefore(minute int) int {
	end := min(minute-1, w.last)
	if end < w.first {
		return 0
	}

	// Busy span starting at or before end with the largest start.
	i := sort.Search(len(w.busy), func(k int) bool { return w.busy[k].Start > end }) - 1
	if i >= 0 && w.busy[i].End >= end {
		return 0
	}
	if i < 0 {
		return end - w.first + 1
	}
	return end - w.busy[i].End
}

// MaxAvailableMinutesAfter is the length of the free run starting at minute+1.
func (w *TimeWindow) MaxAvailableMinutesAfter(minute int) int {
	start := max(minute+1, w.first)
	if start > w.last {
		return 0
	}

	i := sort.Search(len(w.busy), func(k int) bool { return w.busy[k].End >= start })
	if i == len(w.busy) {
		return w.last - start + 1
	}
	if w.busy[i].Start <= start {
		return 0
	}
	return w.busy[i].Start - start
}

// AvailableWindow measures free time around a pivot minute.
//
// Both returns the free run containing minute when it is free. When minute is
// busy (typically an anchor already committed) it returns the free time on
// either side of it.
func (w *TimeWindow) AvailableWindow(minute int, direction Direction) int {
	switch direction {
	case Before:
		return w.MaxAvailableMinutesBefore(minute)
	case After:
		return w.MaxAvailableMinutesAfter(minute)
	default:
		total := w.MaxAvailableMinutesBefore(minute) + w.MaxAvailableMinutesAfter(minute)
		if !w.IsBusy(minute) {
			total++
		}
		return total
	}
}

// EntireSpanIsAvailable reports whether every minute in [from,to] is free and inside the domain.
func (w *TimeWindow) EntireSpanIsAvailable(from, to int) bool {
	if from > to {
		from, to = to, from
	}
	if from < w.first || to > w.last {
		return false
	}
	return w.TotalAvailableMinutes(from, to) == to-from+1
}

// AvailableSpans lists free runs of at least minLength minutes, in day order.
func (w *TimeWindow) AvailableSpans(minLength int) []MinuteSpan {
	if minLength < 1 {
		minLength = 1
	}

	out := []MinuteSpan{}
	cursor := w.first
	for _, s := range w.busy {
		if s.Start-cursor >= minLength {
			out = append(out, MinuteSpan{Start: cursor, End: s.Start - 1})
		}
		cursor = s.End + 1
	}
	if w.last-cursor+1 >= minLength {
		out = append(out, MinuteSpan{Start: cursor, End: w.last})
	}
	return out
}

// BusySpans returns a copy of the committed spans.
func (w *TimeWindow) BusySpans() []MinuteSpan {
	out := make([]MinuteSpan, len(w.busy))
	copy(out, w.busy)
	return out
}

func (w *TimeWindow) Clone() *TimeWindow {
	return &TimeWindow{first: w.first, last: w.last, busy: w.BusySpans()}
}
