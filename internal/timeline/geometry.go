package timeline

import (
	"math"
	"strings"
	"time"
)

const (
	// MinSegmentWidthPercent is the narrowest a segment is drawn relative to
	// the lane.
	MinSegmentWidthPercent = 2.0
	// MinSegmentWidthPixels is the narrowest a segment is drawn in absolute
	// units, so its handles stay grabbable.
	MinSegmentWidthPixels = 48.0

	// DefaultDayStartHour and DefaultDayEndHour bound the initial range.
	DefaultDayStartHour = 8
	DefaultDayEndHour   = 20

	// CapacitySampleMinutes is the spacing of capacity meter samples.
	CapacitySampleMinutes = 15
)

// PixelsToDuration maps a horizontal pointer offset to a time offset given
// the lane width. A non-positive width or an empty range maps to zero.
func PixelsToDuration(deltaX, containerWidth float64, r Range) time.Duration {
	if containerWidth <= 0 {
		return 0
	}
	total := r.Duration()
	if total <= 0 {
		return 0
	}
	return time.Duration(math.Round(deltaX / containerWidth * float64(total)))
}

// SegmentLayout positions a segment inside its lane.
type SegmentLayout struct {
	LeftPercent  float64
	WidthPercent float64
	// MinWidthPixels is zero when the container width is unknown.
	MinWidthPixels float64
}

// LayoutSegment computes where iv is drawn within r.
func LayoutSegment(iv Interval, r Range, containerWidth float64) SegmentLayout {
	total := float64(r.Duration())
	var layout SegmentLayout
	if total > 0 {
		layout.WidthPercent = float64(iv.Duration()) / total * 100
		layout.LeftPercent = float64(iv.Start.Sub(r.From)) / total * 100
	}
	layout.WidthPercent = math.Max(MinSegmentWidthPercent, layout.WidthPercent)
	if containerWidth > 0 && total > 0 {
		rangeMinutes := r.Duration().Minutes()
		layout.MinWidthPixels = math.Max(MinSegmentWidthPixels, MinDurationMinutes/rangeMinutes*containerWidth)
	}
	return layout
}

// HourTicks returns one tick per hour from r.From (inclusive) up to r.To
// (exclusive).
func HourTicks(r Range) []time.Time {
	if !r.Valid() {
		return nil
	}
	var ticks []time.Time
	for cursor := r.From; cursor.Before(r.To); cursor = cursor.Add(time.Hour) {
		ticks = append(ticks, cursor)
	}
	return ticks
}

// DefaultRange spans 08:00 to 20:00 of day in day's location.
func DefaultRange(day time.Time) Range {
	y, m, d := day.Date()
	loc := day.Location()
	return Range{
		From: time.Date(y, m, d, DefaultDayStartHour, 0, 0, 0, loc),
		To:   time.Date(y, m, d, DefaultDayEndHour, 0, 0, 0, loc),
	}
}

// rangeLayouts are tried in order by ParseRange.
var rangeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseRange validates a range draft typed by an operator. Empty,
// unparsable, or non-increasing drafts yield ErrInvalidRange. Values without
// an offset are read in loc.
func ParseRange(from, to string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	start, ok := parseDraftTime(from, loc)
	if !ok {
		return Range{}, ErrInvalidRange
	}
	end, ok := parseDraftTime(to, loc)
	if !ok {
		return Range{}, ErrInvalidRange
	}
	if !start.Before(end) {
		return Range{}, ErrInvalidRange
	}
	return Range{From: start, To: end}, nil
}

func parseDraftTime(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range rangeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CapacitySample is the seat usage of one sampled slot.
type CapacitySample struct {
	At    time.Time
	Seats int
}

// CapacityMeter summarises room usage across the visible range.
type CapacityMeter struct {
	RoomID   string
	Capacity int
	Samples  []CapacitySample
	Peak     int
	// Percent is Peak relative to Capacity, capped at 100. It is zero for a
	// room without capacity.
	Percent float64
}

// MeasureCapacity samples every CapacitySampleMinutes from r.From through
// r.To inclusive, summing the seats of allocations that overlap each
// [sample, sample+15m) slot.
func MeasureCapacity(room Room, allocations []Allocation, r Range) CapacityMeter {
	meter := CapacityMeter{RoomID: room.ID, Capacity: room.Capacity}
	if !r.Valid() {
		return meter
	}
	for cursor := r.From; !cursor.After(r.To); cursor = AddMinutes(cursor, CapacitySampleMinutes) {
		slotEnd := AddMinutes(cursor, CapacitySampleMinutes)
		seats := 0
		for _, a := range allocations {
			if IntervalsOverlap(a.Interval.Start, a.Interval.End, cursor, slotEnd) {
				seats += a.SeatsRequested
			}
		}
		meter.Samples = append(meter.Samples, CapacitySample{At: cursor, Seats: seats})
		if seats > meter.Peak {
			meter.Peak = seats
		}
	}
	if room.Capacity > 0 {
		meter.Percent = math.Min(100, float64(meter.Peak)/float64(room.Capacity)*100)
	}
	return meter
}
