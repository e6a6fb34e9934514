package seed

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/recurrence"
)

const sampleDoc = `
rooms:
  - key: hall-a
    code: A101
    name: Hall A
    capacity: 120
  - code: B201
    name: Hall B
    capacity: 40
exams:
  - key: calc
    course_code: MATH101
    title: Calculus I
    expected_candidates: 150
allocations:
  - exam: calc
    rooms: [hall-a, B201]
    starts_at: 2025-01-20T09:00:00Z
    ends_at: 2025-01-20T11:00:00Z
    seats_requested: 150
    notes: split sitting
`

type fakeStores struct {
	rooms       []application.Room
	exams       []application.Exam
	allocations []application.CreateAllocationParams
	allocErr    error
}

func (f *fakeStores) CreateRoom(_ context.Context, in application.RoomInput) (application.Room, error) {
	room := application.Room{ID: fmt.Sprintf("room-%d", len(f.rooms)+1), Code: in.Code, Name: in.Name, Capacity: in.Capacity}
	f.rooms = append(f.rooms, room)
	return room, nil
}

func (f *fakeStores) ListRooms(context.Context) ([]application.Room, error) {
	return f.rooms, nil
}

func (f *fakeStores) CreateExam(_ context.Context, in application.ExamInput) (application.Exam, error) {
	exam := application.Exam{ID: fmt.Sprintf("exam-%d", len(f.exams)+1), CourseCode: in.CourseCode, Title: in.Title}
	f.exams = append(f.exams, exam)
	return exam, nil
}

func (f *fakeStores) ListExams(context.Context) ([]application.Exam, error) {
	return f.exams, nil
}

func (f *fakeStores) CreateAllocation(_ context.Context, params application.CreateAllocationParams) (application.Allocation, error) {
	if f.allocErr != nil {
		return application.Allocation{}, f.allocErr
	}
	f.allocations = append(f.allocations, params)
	return application.Allocation{ID: fmt.Sprintf("alloc-%d", len(f.allocations))}, nil
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("parses the document", func(t *testing.T) {
		t.Parallel()
		f, err := Decode(strings.NewReader(sampleDoc))
		require.NoError(t, err)
		require.Len(t, f.Rooms, 2)
		require.Len(t, f.Allocations, 1)
		assert.Equal(t, 9, f.Allocations[0].StartsAt.Hour())
		assert.Equal(t, "split sitting", f.Allocations[0].Notes)
	})

	t.Run("empty documents are valid", func(t *testing.T) {
		t.Parallel()
		f, err := Decode(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, f.Rooms)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(strings.NewReader("rooms:\n  - code: A\n    seats: 3\n"))
		assert.Error(t, err)
	})

	t.Run("rejects dangling references", func(t *testing.T) {
		t.Parallel()
		doc := "exams:\n  - course_code: X1\nallocations:\n  - exam: X1\n    rooms: [nowhere]\n"
		_, err := Decode(strings.NewReader(doc))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown room "nowhere"`)
	})

	t.Run("rejects duplicate keys", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(strings.NewReader("rooms:\n  - code: A\n  - code: A\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate key")
	})
}

func TestSeederApply(t *testing.T) {
	t.Parallel()

	f, err := Decode(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	t.Run("creates entities and resolves keys", func(t *testing.T) {
		t.Parallel()
		stores := &fakeStores{}
		res, err := NewSeeder(stores, stores, stores, nil).Apply(context.Background(), f)
		require.NoError(t, err)

		assert.Equal(t, Result{RoomsCreated: 2, ExamsCreated: 1, AllocationsCreated: 1}, res)
		require.Len(t, stores.allocations, 1)
		got := stores.allocations[0]
		assert.Equal(t, "exam-1", got.ExamID)
		assert.Equal(t, []string{"room-1", "room-2"}, got.Input.RoomIDs)
		assert.Equal(t, 150, got.Input.SeatsRequested)
	})

	t.Run("reuses rooms and exams by code", func(t *testing.T) {
		t.Parallel()
		stores := &fakeStores{
			rooms: []application.Room{{ID: "existing-a", Code: "A101"}},
			exams: []application.Exam{{ID: "existing-calc", CourseCode: "MATH101"}},
		}
		res, err := NewSeeder(stores, stores, stores, nil).Apply(context.Background(), f)
		require.NoError(t, err)

		assert.Equal(t, 1, res.RoomsReused)
		assert.Equal(t, 1, res.ExamsReused)
		assert.Equal(t, "existing-calc", stores.allocations[0].ExamID)
		assert.Equal(t, "existing-a", stores.allocations[0].Input.RoomIDs[0])
	})

	t.Run("wraps allocation failures with the entry index", func(t *testing.T) {
		t.Parallel()
		stores := &fakeStores{allocErr: application.ErrCapacityConflict}
		_, err := NewSeeder(stores, stores, stores, nil).Apply(context.Background(), f)
		require.ErrorIs(t, err, application.ErrCapacityConflict)
		assert.Contains(t, err.Error(), "allocations[0]")
	})
}

func TestSeederRepeat(t *testing.T) {
	t.Parallel()

	const doc = `
rooms:
  - code: A101
    name: Hall A
    capacity: 120
exams:
  - course_code: MATH101
    title: Calculus I
allocations:
  - exam: MATH101
    rooms: [A101]
    starts_at: 2025-01-20T00:00:00Z
    ends_at: 2025-01-20T02:00:00Z
    seats_requested: 60
    repeat:
      frequency: weekly
      weekdays: [mon, thu]
      until: 2025-01-30T00:00:00Z
`

	t.Run("stores one allocation per session", func(t *testing.T) {
		t.Parallel()
		f, err := Decode(strings.NewReader(doc))
		require.NoError(t, err)

		stores := &fakeStores{}
		res, err := NewSeeder(stores, stores, stores, nil).Apply(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, 4, res.AllocationsCreated)

		var days []string
		for _, a := range stores.allocations {
			days = append(days, a.Input.StartsAt.UTC().Format("01-02 15:04"))
			assert.Equal(t, 2*time.Hour, a.Input.EndsAt.Sub(a.Input.StartsAt))
		}
		assert.Equal(t, []string{"01-20 00:00", "01-23 00:00", "01-27 00:00", "01-30 00:00"}, days)
	})

	t.Run("rejects an unknown frequency", func(t *testing.T) {
		t.Parallel()
		_, err := Decode(strings.NewReader(strings.Replace(doc, "weekly", "monthly", 1)))
		require.ErrorIs(t, err, recurrence.ErrInvalidFrequency)
		assert.Contains(t, err.Error(), "allocations[0]: repeat")
	})
}
