package timeline

// CapacityQuery describes a proposed placement of an allocation in a room.
type CapacityQuery struct {
	AllocationID   string
	TargetRoomID   string
	Interval       Interval
	SeatsRequested int
}

// CapacityEstimate is the projected seat usage of a room after a placement.
type CapacityEstimate struct {
	Capacity       int
	ProjectedSeats int
	Overflow       bool
}

// EstimateCapacity projects the seat usage of q.TargetRoomID over
// q.Interval: the seats of every other allocation overlapping the interval in
// that room, plus the seats of the allocation being placed. It reports
// ok == false when the target room is not among rooms.
func EstimateCapacity(q CapacityQuery, rooms []Room, segments []Segment) (CapacityEstimate, bool) {
	var (
		target Room
		found  bool
	)
	for _, room := range rooms {
		if room.ID == q.TargetRoomID {
			target, found = room, true
			break
		}
	}
	if !found {
		return CapacityEstimate{}, false
	}

	existing := 0
	for _, seg := range segments {
		if seg.RoomID != q.TargetRoomID || seg.Allocation.ID == q.AllocationID {
			continue
		}
		iv := seg.Allocation.Interval
		if IntervalsOverlap(iv.Start, iv.End, q.Interval.Start, q.Interval.End) {
			existing += seg.Allocation.SeatsRequested
		}
	}

	projected := existing + q.SeatsRequested
	return CapacityEstimate{
		Capacity:       target.Capacity,
		ProjectedSeats: projected,
		Overflow:       projected > target.Capacity,
	}, true
}

// SegmentsOf expands allocations into one segment per (allocation, room)
// pair, preserving allocation order.
func SegmentsOf(allocations []Allocation) []Segment {
	var segments []Segment
	for _, a := range allocations {
		for _, roomID := range a.RoomIDs {
			segments = append(segments, Segment{Allocation: a, RoomID: roomID})
		}
	}
	return segments
}

// reassignRooms swaps source for target in ids, or appends target when the
// source is absent, dropping duplicates while keeping first-seen order.
func reassignRooms(ids []string, source, target string) []string {
	replaced := make([]string, 0, len(ids)+1)
	hadSource := false
	for _, id := range ids {
		if id == source {
			hadSource = true
			replaced = append(replaced, target)
			continue
		}
		replaced = append(replaced, id)
	}
	if !hadSource {
		replaced = append(replaced, target)
	}

	seen := make(map[string]struct{}, len(replaced))
	out := replaced[:0]
	for _, id := range replaced {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
