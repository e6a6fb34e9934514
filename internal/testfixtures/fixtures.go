package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/persistence"
	"github.com/example/exam-timeline/internal/timeline"
)

var (
	roomCounter       uint64
	examCounter       uint64
	allocationCounter uint64
)

var referenceTime = time.Date(2025, time.January, 20, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
// It is 08:00 UTC, the start of the default timeline range.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference day at hour:minute UTC.
func At(hour, minute int) time.Time {
	day := time.Date(referenceTime.Year(), referenceTime.Month(), referenceTime.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic exam room record.
type RoomFixture struct {
	ID        string
	Code      string
	Name      string
	Campus    string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns a deterministic room fixture with optional overrides.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Code:      fmt.Sprintf("R%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Campus:    "Main",
		Capacity:  50,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomCode overrides the generated room code.
func WithRoomCode(code string) RoomOption {
	return func(f *RoomFixture) {
		f.Code = code
	}
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
	}
}

// Application returns the fixture as an application.Room value.
func (f RoomFixture) Application() application.Room {
	return application.Room{
		ID:        f.ID,
		Code:      f.Code,
		Name:      f.Name,
		Campus:    f.Campus,
		Capacity:  f.Capacity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Room value.
func (f RoomFixture) Persistence() persistence.Room {
	return persistence.Room{
		ID:        f.ID,
		Code:      f.Code,
		Name:      f.Name,
		Campus:    f.Campus,
		Capacity:  f.Capacity,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Timeline returns the fixture as the editor sees it.
func (f RoomFixture) Timeline() timeline.Room {
	return timeline.Room{ID: f.ID, Name: f.Name, Capacity: f.Capacity}
}

// Input returns the fixture as an application.RoomInput.
func (f RoomFixture) Input() application.RoomInput {
	return application.RoomInput{Code: f.Code, Name: f.Name, Campus: f.Campus, Capacity: f.Capacity}
}

// ----------------------------- Exam fixtures -----------------------------

// ExamFixture represents a deterministic exam record.
type ExamFixture struct {
	ID                 string
	CourseCode         string
	Title              string
	ExpectedCandidates int
	DurationMinutes    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ExamOption configures the generated exam fixture.
type ExamOption func(*ExamFixture)

// NewExamFixture returns a deterministic exam fixture with optional overrides.
func NewExamFixture(opts ...ExamOption) ExamFixture {
	idx := atomic.AddUint64(&examCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := ExamFixture{
		ID:                 fmt.Sprintf("exam-%03d", idx),
		CourseCode:         fmt.Sprintf("C%03d", idx),
		Title:              fmt.Sprintf("Exam %03d", idx),
		ExpectedCandidates: 30,
		DurationMinutes:    120,
		CreatedAt:          created,
		UpdatedAt:          created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithExamID overrides the generated exam ID.
func WithExamID(id string) ExamOption {
	return func(f *ExamFixture) {
		f.ID = id
	}
}

// WithExamTitle overrides the generated title.
func WithExamTitle(title string) ExamOption {
	return func(f *ExamFixture) {
		f.Title = title
	}
}

// Persistence returns the fixture as a persistence.Exam value.
func (f ExamFixture) Persistence() persistence.Exam {
	return persistence.Exam{
		ID:                 f.ID,
		CourseCode:         f.CourseCode,
		Title:              f.Title,
		ExpectedCandidates: f.ExpectedCandidates,
		DurationMinutes:    f.DurationMinutes,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

// Application returns the fixture as an application.Exam value.
func (f ExamFixture) Application() application.Exam {
	return application.Exam{
		ID:                 f.ID,
		CourseCode:         f.CourseCode,
		Title:              f.Title,
		ExpectedCandidates: f.ExpectedCandidates,
		DurationMinutes:    f.DurationMinutes,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

// -------------------------- Allocation fixtures --------------------------

// AllocationFixture represents a deterministic allocation. The default is a
// two hour slot from 09:00 on the reference day.
type AllocationFixture struct {
	ID             string
	ExamID         string
	ExamTitle      string
	RoomIDs        []string
	StartsAt       time.Time
	EndsAt         time.Time
	SeatsRequested int
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllocationOption configures the generated allocation fixture.
type AllocationOption func(*AllocationFixture)

// NewAllocationFixture returns a deterministic allocation fixture for exam
// in the given rooms.
func NewAllocationFixture(exam ExamFixture, roomIDs []string, opts ...AllocationOption) AllocationFixture {
	idx := atomic.AddUint64(&allocationCounter, 1)
	fixture := AllocationFixture{
		ID:             fmt.Sprintf("alloc-%03d", idx),
		ExamID:         exam.ID,
		ExamTitle:      exam.Title,
		RoomIDs:        append([]string(nil), roomIDs...),
		StartsAt:       At(9, 0),
		EndsAt:         At(11, 0),
		SeatsRequested: 20,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithAllocationID overrides the generated allocation ID.
func WithAllocationID(id string) AllocationOption {
	return func(f *AllocationFixture) {
		f.ID = id
	}
}

// WithAllocationWindow sets the start and end of the allocation.
func WithAllocationWindow(start, end time.Time) AllocationOption {
	return func(f *AllocationFixture) {
		f.StartsAt = start
		f.EndsAt = end
	}
}

// WithAllocationSeats sets the requested seat count.
func WithAllocationSeats(seats int) AllocationOption {
	return func(f *AllocationFixture) {
		f.SeatsRequested = seats
	}
}

// WithAllocationNotes sets free-form notes.
func WithAllocationNotes(notes string) AllocationOption {
	return func(f *AllocationFixture) {
		f.Notes = notes
	}
}

// Persistence returns the fixture as a persistence.Allocation value.
func (f AllocationFixture) Persistence() persistence.Allocation {
	return persistence.Allocation{
		ID:             f.ID,
		ExamID:         f.ExamID,
		ExamTitle:      f.ExamTitle,
		RoomIDs:        append([]string(nil), f.RoomIDs...),
		StartsAt:       f.StartsAt,
		EndsAt:         f.EndsAt,
		SeatsRequested: f.SeatsRequested,
		Notes:          f.Notes,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Application returns the fixture as an application.Allocation value.
func (f AllocationFixture) Application() application.Allocation {
	return application.Allocation{
		ID:             f.ID,
		ExamID:         f.ExamID,
		ExamTitle:      f.ExamTitle,
		RoomIDs:        append([]string(nil), f.RoomIDs...),
		StartsAt:       f.StartsAt,
		EndsAt:         f.EndsAt,
		SeatsRequested: f.SeatsRequested,
		Notes:          f.Notes,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Timeline returns the fixture as the editor sees it.
func (f AllocationFixture) Timeline() timeline.Allocation {
	return f.Application().TimelineAllocation()
}

// Input returns the editable fields as an application.AllocationInput.
func (f AllocationFixture) Input() application.AllocationInput {
	return application.AllocationInput{
		RoomIDs:        append([]string(nil), f.RoomIDs...),
		StartsAt:       f.StartsAt,
		EndsAt:         f.EndsAt,
		SeatsRequested: f.SeatsRequested,
		Notes:          f.Notes,
	}
}
