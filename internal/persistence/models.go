package persistence

import "time"

// Room is an examination room with a fixed seat count.
type Room struct {
	ID        string
	Code      string
	Name      string
	Campus    string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exam is a course examination that needs seats.
type Exam struct {
	ID                 string
	CourseCode         string
	Title              string
	ExpectedCandidates int
	DurationMinutes    int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Allocation reserves seats for an exam in one or more rooms over a time
// window. RoomIDs keeps the order in which rooms were assigned.
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
