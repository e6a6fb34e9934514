package application

import "github.com/example/exam-timeline/internal/timeline"

// TimelineRoom converts a room to the read-only view the editor works with.
func (r Room) TimelineRoom() timeline.Room {
	return timeline.Room{ID: r.ID, Name: r.Name, Capacity: r.Capacity}
}

// TimelineAllocation converts an allocation to its editor form.
func (a Allocation) TimelineAllocation() timeline.Allocation {
	return timeline.Allocation{
		ID:             a.ID,
		ExamID:         a.ExamID,
		ExamTitle:      a.ExamTitle,
		RoomIDs:        append([]string(nil), a.RoomIDs...),
		Interval:       timeline.Interval{Start: a.StartsAt, End: a.EndsAt},
		SeatsRequested: a.SeatsRequested,
		Notes:          a.Notes,
	}
}

// TimelineRooms converts a room listing.
func TimelineRooms(rooms []Room) []timeline.Room {
	out := make([]timeline.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.TimelineRoom())
	}
	return out
}

// TimelineAllocations converts an allocation listing.
func TimelineAllocations(allocations []Allocation) []timeline.Allocation {
	out := make([]timeline.Allocation, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, a.TimelineAllocation())
	}
	return out
}

// UpdateParamsFromTimeline builds the service request for an editor commit.
func UpdateParamsFromTimeline(allocationID string, update timeline.AllocationUpdate) UpdateAllocationParams {
	return UpdateAllocationParams{
		AllocationID: allocationID,
		Input: AllocationInput{
			RoomIDs:        append([]string(nil), update.RoomIDs...),
			StartsAt:       update.Interval.Start,
			EndsAt:         update.Interval.End,
			SeatsRequested: update.SeatsRequested,
			Notes:          update.Notes,
		},
		Force:        update.ConfirmOverbooking,
		ForceRoomIDs: forceRooms(update),
	}
}

func forceRooms(update timeline.AllocationUpdate) []string {
	if !update.ConfirmOverbooking || update.ConfirmedRoomID == "" {
		return nil
	}
	return []string{update.ConfirmedRoomID}
}
