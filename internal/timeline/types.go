// Package timeline implements the allocation timeline editor: the time
// arithmetic behind drag-to-reschedule, the nudge/drag resolver, the room
// capacity estimator, and the stateful editor that coordinates them against
// injected room/allocation collaborators.
package timeline

import (
	"fmt"
	"strings"
	"time"
)

// MinDurationMinutes is the shortest interval the editor will ever produce.
const MinDurationMinutes = 15

// Interval is a half-open span of time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Equal reports whether both endpoints denote the same instants.
func (i Interval) Equal(other Interval) bool {
	return i.Start.Equal(other.Start) && i.End.Equal(other.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s .. %s", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Range is the visible window of the editor. From must precede To.
type Range struct {
	From time.Time
	To   time.Time
}

// Duration returns the width of the range.
func (r Range) Duration() time.Duration {
	return r.To.Sub(r.From)
}

// Valid reports whether From precedes To.
func (r Range) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.From.Before(r.To)
}

func (r Range) mustValid() {
	if !r.From.Before(r.To) {
		panic(fmt.Sprintf("timeline: invalid range %s .. %s", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339)))
	}
}

// Room is a read-only view of a bookable exam room.
type Room struct {
	ID       string
	Name     string
	Capacity int
}

// Allocation reserves seats for an exam across one or more rooms.
type Allocation struct {
	ID             string
	ExamID         string
	ExamTitle      string
	RoomIDs        []string
	Interval       Interval
	SeatsRequested int
	Notes          string
}

// HasRoom reports whether the allocation is assigned to roomID.
func (a Allocation) HasRoom(roomID string) bool {
	for _, id := range a.RoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}

func (a Allocation) clone() Allocation {
	out := a
	out.RoomIDs = append([]string(nil), a.RoomIDs...)
	return out
}

// Segment is one (allocation, room) pair as rendered on the timeline.
type Segment struct {
	Allocation Allocation
	RoomID     string
}

// Key identifies the segment within a render pass.
func (s Segment) Key() string {
	return s.Allocation.ID + "/" + s.RoomID
}

// EditKind enumerates the edits a gesture or nudge can apply.
type EditKind int

const (
	// EditMove translates both endpoints.
	EditMove EditKind = iota + 1
	// EditResizeStart moves only the start.
	EditResizeStart
	// EditResizeEnd moves only the end.
	EditResizeEnd
)

func (k EditKind) String() string {
	switch k {
	case EditMove:
		return "move"
	case EditResizeStart:
		return "resize-start"
	case EditResizeEnd:
		return "resize-end"
	default:
		return fmt.Sprintf("EditKind(%d)", int(k))
	}
}

// ParseEditKind accepts both the gesture names and the short nudge names
// ("start", "end").
func ParseEditKind(value string) (EditKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "move":
		return EditMove, nil
	case "resize-start", "start":
		return EditResizeStart, nil
	case "resize-end", "end":
		return EditResizeEnd, nil
	}
	return 0, fmt.Errorf("timeline: unknown edit kind %q", value)
}

// DragMetadata is captured when a gesture starts and discarded when it ends.
type DragMetadata struct {
	Kind         EditKind
	AllocationID string
	SourceRoomID string
	Original     Interval
}

// Selection identifies the keyboard-focused segment.
type Selection struct {
	AllocationID string
	RoomID       string
}

// AllocationUpdate is the payload handed to the Updater on commit.
type AllocationUpdate struct {
	RoomIDs            []string
	Interval           Interval
	SeatsRequested     int
	Notes              string
	ConfirmOverbooking bool
	// ConfirmedRoomID is the room the operator accepted overbooking for.
	// Other rooms of the allocation are still checked by the server.
	ConfirmedRoomID string
}
