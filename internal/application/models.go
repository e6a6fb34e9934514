package application

import "time"

// RoomInput captures the fields accepted when registering a room.
type RoomInput struct {
	Code     string `json:"code" validate:"required,max=32"`
	Name     string `json:"name" validate:"required,max=200"`
	Campus   string `json:"campus" validate:"max=100"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

// Room is an examination room with its seat count.
type Room struct {
	ID        string
	Code      string
	Name      string
	Campus    string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExamInput captures the fields accepted when registering an exam.
type ExamInput struct {
	CourseCode         string `json:"course_code" validate:"required,max=32"`
	Title              string `json:"title" validate:"required,max=200"`
	ExpectedCandidates int    `json:"expected_candidates" validate:"gte=0"`
	DurationMinutes    int    `json:"duration_minutes" validate:"gte=0"`
}

// Exam is a course examination.
type Exam struct {
	ID                 string
	CourseCode         string
	Title              string
	ExpectedCandidates int
	DurationMinutes    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// AllocationInput captures the editable fields of an allocation.
type AllocationInput struct {
	RoomIDs        []string  `json:"room_ids" validate:"required,min=1,dive,required"`
	StartsAt       time.Time `json:"starts_at" validate:"required"`
	EndsAt         time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	SeatsRequested int       `json:"seats_requested" validate:"gt=0"`
	Notes          string    `json:"notes" validate:"max=2000"`
}

// Allocation reserves seats for an exam in one or more rooms.
type Allocation struct {
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

// CreateAllocationParams bundles the inputs for creating an allocation.
type CreateAllocationParams struct {
	ExamID string `json:"exam_id" validate:"required"`
	Input  AllocationInput
	// Force stores the allocation even when a room would be over capacity.
	Force bool
}

// UpdateAllocationParams bundles the inputs for updating an allocation.
type UpdateAllocationParams struct {
	AllocationID string `json:"allocation_id" validate:"required"`
	Input        AllocationInput
	// Force stores the allocation even when a room would be over capacity.
	Force bool
	// ForceRoomIDs narrows Force to these rooms. Empty means every room.
	ForceRoomIDs []string
}

// ListAllocationsParams selects allocations overlapping [From, To),
// optionally restricted to one room.
type ListAllocationsParams struct {
	From   time.Time
	To     time.Time
	RoomID string
}

// AllocationFilter is the repository form of ListAllocationsParams.
type AllocationFilter struct {
	From   *time.Time
	To     *time.Time
	RoomID string
}
