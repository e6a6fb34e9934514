package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/example/exam-timeline/internal/timeline"
)

// Monday 2024-03-04 09:00 JST.
var firstSession = timeline.Interval{
	Start: time.Date(2024, time.March, 4, 9, 0, 0, 0, jst),
	End:   time.Date(2024, time.March, 4, 10, 30, 0, 0, jst),
}

func starts(sessions []timeline.Interval) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.Start.Format("Mon 01-02 15:04")
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExpand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rule Rule
		want []string
	}{
		{
			name: "daily through until",
			rule: Rule{Frequency: FrequencyDaily, Until: firstSession.Start.AddDate(0, 0, 2)},
			want: []string{"Mon 03-04 09:00", "Tue 03-05 09:00", "Wed 03-06 09:00"},
		},
		{
			name: "daily filtered by weekdays",
			rule: Rule{Frequency: FrequencyDaily, Weekdays: []time.Weekday{time.Monday, time.Friday}, Until: firstSession.Start.AddDate(0, 0, 7)},
			want: []string{"Mon 03-04 09:00", "Fri 03-08 09:00", "Mon 03-11 09:00"},
		},
		{
			name: "weekly defaults to the first weekday",
			rule: Rule{Frequency: FrequencyWeekly, Until: firstSession.Start.AddDate(0, 0, 14)},
			want: []string{"Mon 03-04 09:00", "Mon 03-11 09:00", "Mon 03-18 09:00"},
		},
		{
			name: "weekly skips the first day when not listed",
			rule: Rule{Frequency: FrequencyWeekly, Weekdays: []time.Weekday{time.Wednesday}, Until: firstSession.Start.AddDate(0, 0, 9)},
			want: []string{"Wed 03-06 09:00", "Wed 03-13 09:00"},
		},
		{
			name: "until is inclusive by date",
			rule: Rule{Frequency: FrequencyDaily, Until: time.Date(2024, time.March, 5, 0, 0, 0, 0, jst)},
			want: []string{"Mon 03-04 09:00", "Tue 03-05 09:00"},
		},
	}

	expander := NewExpander(nil)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sessions, err := expander.Expand(tt.rule, firstSession)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := starts(sessions); !equalStrings(got, tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for _, s := range sessions {
				if s.Duration() != 90*time.Minute {
					t.Errorf("session %s lost its duration", s)
				}
			}
		})
	}
}

func TestExpandNormalizesToLocation(t *testing.T) {
	t.Parallel()

	// 00:30 UTC is 09:30 JST on the same day.
	first := timeline.Interval{
		Start: time.Date(2024, time.March, 4, 0, 30, 0, 0, time.UTC),
		End:   time.Date(2024, time.March, 4, 1, 30, 0, 0, time.UTC),
	}
	sessions, err := NewExpander(nil).Expand(Rule{Frequency: FrequencyDaily, Until: first.Start.AddDate(0, 0, 1)}, first)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if got := sessions[1].Start.Format("2006-01-02 15:04 MST"); got != "2024-03-05 09:30 JST" {
		t.Errorf("second session starts %s", got)
	}
	if !sessions[0].Start.Equal(first.Start) {
		t.Errorf("first session moved to %s", sessions[0].Start)
	}
}

func TestExpandErrors(t *testing.T) {
	t.Parallel()

	expander := NewExpander(time.UTC)
	tests := []struct {
		name  string
		rule  Rule
		first timeline.Interval
		want  error
	}{
		{name: "missing frequency", rule: Rule{Until: firstSession.End}, first: firstSession, want: ErrInvalidFrequency},
		{name: "missing until", rule: Rule{Frequency: FrequencyDaily}, first: firstSession, want: ErrInvalidUntil},
		{name: "until before start", rule: Rule{Frequency: FrequencyDaily, Until: firstSession.Start.AddDate(0, 0, -1)}, first: firstSession, want: ErrInvalidUntil},
		{name: "inverted session", rule: Rule{Frequency: FrequencyDaily, Until: firstSession.End}, first: timeline.Interval{Start: firstSession.End, End: firstSession.Start}, want: ErrInvalidDuration},
		{name: "too long", rule: Rule{Frequency: FrequencyDaily, Until: firstSession.Start.AddDate(2, 0, 0)}, first: firstSession, want: ErrTooManySessions},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := expander.Expand(tt.rule, tt.first); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	if f, err := ParseFrequency(" Weekly "); err != nil || f != FrequencyWeekly {
		t.Errorf("ParseFrequency(weekly) = %v, %v", f, err)
	}
	if _, err := ParseFrequency("monthly"); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("expected ErrInvalidFrequency, got %v", err)
	}
	for in, want := range map[string]time.Weekday{"mon": time.Monday, "Thursday": time.Thursday, "SUN": time.Sunday} {
		if got, err := ParseWeekday(in); err != nil || got != want {
			t.Errorf("ParseWeekday(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseWeekday("th"); err == nil {
		t.Error("expected an error for an ambiguous weekday")
	}
}

func BenchmarkExpandWeekdays(b *testing.B) {
	expander := NewExpander(nil)
	rule := Rule{
		Frequency: FrequencyWeekly,
		Weekdays:  []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Until:     firstSession.Start.AddDate(0, 3, 0),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sessions, err := expander.Expand(rule, firstSession)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		if len(sessions) == 0 {
			b.Fatal("expected sessions")
		}
	}
}
