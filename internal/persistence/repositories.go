package persistence

import (
	"context"
	"time"
)

// RoomRepository exposes CRUD operations for rooms.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room Room) error
	UpdateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// ExamRepository exposes CRUD operations for exams.
type ExamRepository interface {
	CreateExam(ctx context.Context, exam Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)
	DeleteExam(ctx context.Context, id string) error
}

// AllocationFilter narrows allocation queries. From and To select
// allocations overlapping the half-open window [From, To); RoomID keeps
// allocations assigned to that room.
type AllocationFilter struct {
	From   *time.Time
	To     *time.Time
	RoomID string
}

// AllocationRepository stores allocations and their room assignments.
type AllocationRepository interface {
	CreateAllocation(ctx context.Context, allocation Allocation) error
	UpdateAllocation(ctx context.Context, allocation Allocation) error
	GetAllocation(ctx context.Context, id string) (Allocation, error)
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error)
	DeleteAllocation(ctx context.Context, id string) error
}
