package timeline

import (
	"fmt"
	"time"
)

// SnapPolicy holds the grid steps used by the resolver. Moves use a finer
// grid than resizes so whole blocks can be placed precisely while durations
// stay on quarter hours.
type SnapPolicy struct {
	MoveStepMinutes    int
	ResizeStepMinutes  int
	MinDurationMinutes int
}

// DefaultSnapPolicy returns the 5/15/15 minute policy.
func DefaultSnapPolicy() SnapPolicy {
	return SnapPolicy{
		MoveStepMinutes:    5,
		ResizeStepMinutes:  15,
		MinDurationMinutes: MinDurationMinutes,
	}
}

func (p SnapPolicy) normalized() SnapPolicy {
	def := DefaultSnapPolicy()
	if p.MoveStepMinutes <= 0 {
		p.MoveStepMinutes = def.MoveStepMinutes
	}
	if p.ResizeStepMinutes <= 0 {
		p.ResizeStepMinutes = def.ResizeStepMinutes
	}
	if p.MinDurationMinutes <= 0 {
		p.MinDurationMinutes = def.MinDurationMinutes
	}
	return p
}

// ResolveInput describes one edit against an interval. Delta carries the
// offset; use Minutes for whole-minute nudges or PixelsToDuration for drags.
type ResolveInput struct {
	Interval Interval
	Kind     EditKind
	Delta    time.Duration
	Range    Range
}

// Minutes converts a whole number of minutes to a resolver delta.
func Minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Resolve applies the edit with the default snap policy.
func Resolve(in ResolveInput) Interval {
	return DefaultSnapPolicy().Resolve(in)
}

// Resolve computes the interval produced by the edit. The result spans at
// least MinDurationMinutes and lies within in.Range, provided the range is at
// least that wide; narrower ranges cap the duration at the range width.
// It panics when the range is empty or inverted, or the kind is unknown.
func (p SnapPolicy) Resolve(in ResolveInput) Interval {
	p = p.normalized()
	in.Range.mustValid()

	start, end := in.Interval.Start, in.Interval.End
	from, to := in.Range.From, in.Range.To

	var out Interval
	switch in.Kind {
	case EditMove:
		nextStart := Clamp(Snap(start.Add(in.Delta), p.MoveStepMinutes), from, to)
		nextEnd := Clamp(Snap(end.Add(in.Delta), p.MoveStepMinutes), from, to)
		if !nextEnd.After(nextStart) {
			nextEnd = AddMinutes(nextStart, p.MinDurationMinutes)
		}
		out = ensureMinimum(nextStart, nextEnd, p.MinDurationMinutes)
	case EditResizeStart:
		nextStart := Clamp(Snap(start.Add(in.Delta), p.ResizeStepMinutes), from, to)
		if !nextStart.Before(end) {
			nextStart = AddMinutes(end, -p.MinDurationMinutes)
		}
		out = ensureMinimum(nextStart, end, p.MinDurationMinutes)
	case EditResizeEnd:
		nextEnd := Clamp(Snap(end.Add(in.Delta), p.ResizeStepMinutes), from, to)
		if !nextEnd.After(start) {
			nextEnd = AddMinutes(start, p.MinDurationMinutes)
		}
		out = ensureMinimum(start, nextEnd, p.MinDurationMinutes)
	default:
		panic(fmt.Sprintf("timeline: unhandled edit kind %v", in.Kind))
	}

	return fitRange(out, in.Range, p.MinDurationMinutes)
}

// fitRange keeps both endpoints inside r. When the end has to be pulled back
// to the range edge, the start is pushed earlier to preserve the minimum
// duration; only a range narrower than the minimum can shorten it.
func fitRange(iv Interval, r Range, minMinutes int) Interval {
	start, end := iv.Start, iv.End
	if end.After(r.To) {
		end = r.To
		if floor := AddMinutes(end, -minMinutes); start.After(floor) {
			start = floor
		}
	}
	if start.Before(r.From) {
		start = r.From
		if end.Before(start) {
			end = start
		}
		if ceiling := AddMinutes(start, minMinutes); end.Before(ceiling) {
			end = Clamp(ceiling, r.From, r.To)
		}
	}
	return Interval{Start: start, End: end}
}
