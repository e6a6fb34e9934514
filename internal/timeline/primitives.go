package timeline

import (
	"fmt"
	"time"
)

// Snap rounds t to the nearest multiple of stepMinutes measured from the Unix
// epoch. Ties round up (towards the later instant). The result keeps t's
// location. stepMinutes must be positive.
func Snap(t time.Time, stepMinutes int) time.Time {
	if stepMinutes <= 0 {
		panic(fmt.Sprintf("timeline: snap step must be positive, got %d", stepMinutes))
	}
	// Work in whole seconds so instants outside the UnixNano range
	// (before 1678 or after 2262) snap correctly.
	stepSeconds := int64(stepMinutes) * 60
	q := floorDiv(t.Unix(), stepSeconds)
	rem := time.Duration(t.Unix()-q*stepSeconds)*time.Second + time.Duration(t.Nanosecond())
	if 2*rem >= time.Duration(stepSeconds)*time.Second {
		q++
	}
	return time.Unix(q*stepSeconds, 0).In(t.Location())
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// AddMinutes translates t by minutes, which may be negative.
func AddMinutes(t time.Time, minutes int) time.Time {
	return t.Add(time.Duration(minutes) * time.Minute)
}

// Clamp bounds t into [lo, hi]. It panics when lo is after hi.
func Clamp(t, lo, hi time.Time) time.Time {
	if lo.After(hi) {
		panic(fmt.Sprintf("timeline: clamp bounds inverted: %s > %s", lo.Format(time.RFC3339), hi.Format(time.RFC3339)))
	}
	if t.Before(lo) {
		return lo
	}
	if t.After(hi) {
		return hi
	}
	return t
}

// IntervalsOverlap reports whether [aStart, aEnd) and [bStart, bEnd) share
// any instant. Touching intervals do not overlap.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// EnsureMinimumDuration pushes end forward so that the interval spans at
// least MinDurationMinutes.
func EnsureMinimumDuration(start, end time.Time) Interval {
	return ensureMinimum(start, end, MinDurationMinutes)
}

func ensureMinimum(start, end time.Time, minMinutes int) Interval {
	minEnd := AddMinutes(start, minMinutes)
	if !end.After(minEnd) {
		return Interval{Start: start, End: minEnd}
	}
	return Interval{Start: start, End: end}
}
