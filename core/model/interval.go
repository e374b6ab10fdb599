package model

import "fmt"

// Interval is the half-open time range [Start, End).
type Interval struct {
	Start ServiceTime `json:"start"`
	End   ServiceTime `json:"end"`
}

// Empty reports whether the interval covers no time at all.
func (i Interval) Empty() bool { return i.End <= i.Start }

// Seconds returns the length of the interval.
func (i Interval) Seconds() int {
	if i.Empty() {
		return 0
	}
	return int(i.End - i.Start)
}

// Overlaps reports whether both intervals share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Intersect returns the common part of both intervals.
func (i Interval) Intersect(o Interval) (Interval, bool) {
	r := Interval{Start: max(i.Start, o.Start), End: min(i.End, o.End)}
	return r, !r.Empty()
}

// Pad widens the interval by sec seconds on both ends.
func (i Interval) Pad(sec int) Interval {
	return Interval{Start: i.Start - ServiceTime(sec), End: i.End + ServiceTime(sec)}
}

func (i Interval) String() string { return fmt.Sprintf("[%s,%s)", i.Start, i.End) }
