// Package recurrence expands a repeating exam session into its concrete
// sessions.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/timeline"
)

var jst = time.FixedZone("JST", 9*60*60)

// MaxSessions bounds a single series.
const MaxSessions = 366

// Frequency is how often a session repeats.
type Frequency int

const (
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily repeats every day, or every listed weekday when
	// weekdays are given.
	FrequencyDaily
	// FrequencyWeekly repeats on the listed weekdays, or on the weekday of
	// the first session when none are listed.
	FrequencyWeekly
)

var (
	// ErrInvalidFrequency is returned for an unknown or missing frequency.
	ErrInvalidFrequency = errors.New("recurrence: invalid frequency")
	// ErrInvalidUntil is returned when the series has no end or ends before it starts.
	ErrInvalidUntil = errors.New("recurrence: until must not precede the first session")
	// ErrInvalidDuration is returned for an empty or inverted first session.
	ErrInvalidDuration = errors.New("recurrence: session duration must be positive")
	// ErrTooManySessions is returned when a series exceeds MaxSessions.
	ErrTooManySessions = errors.New("recurrence: too many sessions")
)

// ParseFrequency accepts "daily" and "weekly".
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	}
	return FrequencyUnspecified, fmt.Errorf("%w: %q", ErrInvalidFrequency, value)
}

// ParseWeekday accepts English weekday names and their three letter forms.
func ParseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("recurrence: unknown weekday %q", value)
}

// Rule describes how a session repeats. Until is inclusive by calendar date.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	Until     time.Time
}

// Expander turns rules into sessions on the calendar of one location.
type Expander struct {
	location *time.Location
}

// NewExpander returns an Expander working in loc, or JST when loc is nil.
func NewExpander(loc *time.Location) *Expander {
	if loc == nil {
		loc = jst
	}
	return &Expander{location: loc}
}

// Expand lists the sessions of rule starting from the calendar date of
// first. Every session keeps first's wall-clock start and duration. The
// first session is itself included only when its weekday matches the rule.
func (e *Expander) Expand(rule Rule, first timeline.Interval) ([]timeline.Interval, error) {
	loc := e.location
	start := first.Start.In(loc)
	duration := first.End.Sub(first.Start)
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if rule.Until.IsZero() {
		return nil, ErrInvalidUntil
	}
	lastDay := dateOf(rule.Until.In(loc), loc)
	if lastDay.Before(dateOf(start, loc)) {
		return nil, ErrInvalidUntil
	}

	weekdays := make(map[time.Weekday]bool, len(rule.Weekdays))
	for _, d := range rule.Weekdays {
		weekdays[d] = true
	}
	if rule.Frequency == FrequencyWeekly && len(weekdays) == 0 {
		weekdays[start.Weekday()] = true
	}

	var sessions []timeline.Interval
	y, m, d := start.Date()
	for i := 0; ; i++ {
		// time.Date keeps the wall clock across offset changes.
		at := time.Date(y, m, d+i, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), loc)
		if dateOf(at, loc).After(lastDay) {
			break
		}
		include, err := matches(rule.Frequency, weekdays, at.Weekday())
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		if len(sessions) == MaxSessions {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManySessions, MaxSessions)
		}
		sessions = append(sessions, timeline.Interval{Start: at, End: at.Add(duration)})
	}
	return sessions, nil
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func matches(freq Frequency, weekdays map[time.Weekday]bool, day time.Weekday) (bool, error) {
	switch freq {
	case FrequencyDaily:
		return len(weekdays) == 0 || weekdays[day], nil
	case FrequencyWeekly:
		return weekdays[day], nil
	default:
		return false, ErrInvalidFrequency
	}
}
