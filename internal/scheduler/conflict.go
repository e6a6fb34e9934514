// Package scheduler checks proposed allocation windows against room
// capacities on the server side.
package scheduler

import (
	"sort"

	"github.com/example/exam-timeline/internal/timeline"
)

// Booking is an allocation as seen by the conflict check.
type Booking struct {
	ID             string
	RoomIDs        []string
	Interval       timeline.Interval
	SeatsRequested int
}

// CapacityConflict reports a room whose seats would be exceeded.
type CapacityConflict struct {
	RoomID         string
	Capacity       int
	ProjectedSeats int
	// WithBookingIDs lists the overlapping bookings counted for the room.
	WithBookingIDs []string
}

// Overflow is the number of seats above capacity.
func (c CapacityConflict) Overflow() int {
	return c.ProjectedSeats - c.Capacity
}

// DetectCapacityConflicts sums, for each room of candidate, the seats of
// every other booking in that room whose interval overlaps the candidate's,
// plus the candidate's own seats. Rooms whose sum exceeds their capacity are
// reported in candidate room order. Rooms missing from capacities are
// skipped. A booking with the candidate's ID is the candidate's previous
// state and is ignored.
func DetectCapacityConflicts(existing []Booking, candidate Booking, capacities map[string]int) []CapacityConflict {
	var conflicts []CapacityConflict
	seen := make(map[string]bool, len(candidate.RoomIDs))

	for _, roomID := range candidate.RoomIDs {
		if seen[roomID] {
			continue
		}
		seen[roomID] = true

		capacity, ok := capacities[roomID]
		if !ok {
			continue
		}

		projected := candidate.SeatsRequested
		var overlapping []string
		for _, booking := range existing {
			if booking.ID == candidate.ID || !hasRoom(booking, roomID) {
				continue
			}
			if !timeline.IntervalsOverlap(booking.Interval.Start, booking.Interval.End, candidate.Interval.Start, candidate.Interval.End) {
				continue
			}
			projected += booking.SeatsRequested
			overlapping = append(overlapping, booking.ID)
		}

		if projected > capacity {
			sort.Strings(overlapping)
			conflicts = append(conflicts, CapacityConflict{
				RoomID:         roomID,
				Capacity:       capacity,
				ProjectedSeats: projected,
				WithBookingIDs: overlapping,
			})
		}
	}
	return conflicts
}

func hasRoom(booking Booking, roomID string) bool {
	for _, id := range booking.RoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}
