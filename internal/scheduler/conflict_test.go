package scheduler

import (
	"testing"
	"time"

	"github.com/example/exam-timeline/internal/timeline"
)

var day = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func window(startHour, endHour int) timeline.Interval {
	return timeline.Interval{
		Start: day.Add(time.Duration(startHour) * time.Hour),
		End:   day.Add(time.Duration(endHour) * time.Hour),
	}
}

func TestDetectCapacityConflicts(t *testing.T) {
	capacities := map[string]int{"hall-a": 30, "hall-b": 80}
	existing := []Booking{
		{ID: "physics", RoomIDs: []string{"hall-a"}, Interval: window(10, 12), SeatsRequested: 15},
		{ID: "biology", RoomIDs: []string{"hall-a", "hall-b"}, Interval: window(13, 14), SeatsRequested: 10},
		{ID: "calculus", RoomIDs: []string{"hall-a"}, Interval: window(8, 9), SeatsRequested: 20},
	}

	t.Run("overlapping seats above capacity produce a conflict", func(t *testing.T) {
		candidate := Booking{ID: "calculus", RoomIDs: []string{"hall-a"}, Interval: window(11, 12), SeatsRequested: 20}

		conflicts := DetectCapacityConflicts(existing, candidate, capacities)
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %#v", conflicts)
		}
		got := conflicts[0]
		if got.RoomID != "hall-a" || got.ProjectedSeats != 35 || got.Capacity != 30 || got.Overflow() != 5 {
			t.Fatalf("unexpected conflict: %#v", got)
		}
		if len(got.WithBookingIDs) != 1 || got.WithBookingIDs[0] != "physics" {
			t.Fatalf("expected physics to be counted, got %v", got.WithBookingIDs)
		}
	})

	t.Run("the candidate's previous state is not counted", func(t *testing.T) {
		candidate := Booking{ID: "calculus", RoomIDs: []string{"hall-a"}, Interval: window(8, 9), SeatsRequested: 20}
		if conflicts := DetectCapacityConflicts(existing, candidate, capacities); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %#v", conflicts)
		}
	})

	t.Run("touching intervals do not overlap", func(t *testing.T) {
		candidate := Booking{ID: "new", RoomIDs: []string{"hall-a"}, Interval: window(12, 13), SeatsRequested: 30}
		if conflicts := DetectCapacityConflicts(existing, candidate, capacities); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %#v", conflicts)
		}
	})

	t.Run("each room is checked independently", func(t *testing.T) {
		candidate := Booking{ID: "new", RoomIDs: []string{"hall-b", "hall-a", "hall-b"}, Interval: window(13, 15), SeatsRequested: 25}

		conflicts := DetectCapacityConflicts(existing, candidate, capacities)
		if len(conflicts) != 1 || conflicts[0].RoomID != "hall-a" || conflicts[0].ProjectedSeats != 35 {
			t.Fatalf("expected only hall-a to overflow, got %#v", conflicts)
		}
	})

	t.Run("rooms without a known capacity are skipped", func(t *testing.T) {
		candidate := Booking{ID: "new", RoomIDs: []string{"annex"}, Interval: window(10, 12), SeatsRequested: 500}
		if conflicts := DetectCapacityConflicts(existing, candidate, capacities); conflicts != nil {
			t.Fatalf("expected nil, got %#v", conflicts)
		}
	})
}
