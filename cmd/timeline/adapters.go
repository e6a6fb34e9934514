package main

import (
	"context"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/persistence"
)

type roomRepositoryAdapter struct {
	repo persistence.RoomRepository
}

func newRoomRepositoryAdapter(repo persistence.RoomRepository) *roomRepositoryAdapter {
	return &roomRepositoryAdapter{repo: repo}
}

func (a *roomRepositoryAdapter) CreateRoom(ctx context.Context, room application.Room) (application.Room, error) {
	if err := a.repo.CreateRoom(ctx, toPersistenceRoom(room)); err != nil {
		return application.Room{}, err
	}
	stored, err := a.repo.GetRoom(ctx, room.ID)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) GetRoom(ctx context.Context, id string) (application.Room, error) {
	stored, err := a.repo.GetRoom(ctx, id)
	if err != nil {
		return application.Room{}, err
	}
	return toApplicationRoom(stored), nil
}

func (a *roomRepositoryAdapter) ListRooms(ctx context.Context) ([]application.Room, error) {
	stored, err := a.repo.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]application.Room, 0, len(stored))
	for _, room := range stored {
		rooms = append(rooms, toApplicationRoom(room))
	}
	return rooms, nil
}

type examRepositoryAdapter struct {
	repo persistence.ExamRepository
}

func newExamRepositoryAdapter(repo persistence.ExamRepository) *examRepositoryAdapter {
	return &examRepositoryAdapter{repo: repo}
}

func (a *examRepositoryAdapter) CreateExam(ctx context.Context, exam application.Exam) (application.Exam, error) {
	if err := a.repo.CreateExam(ctx, toPersistenceExam(exam)); err != nil {
		return application.Exam{}, err
	}
	stored, err := a.repo.GetExam(ctx, exam.ID)
	if err != nil {
		return application.Exam{}, err
	}
	return toApplicationExam(stored), nil
}

func (a *examRepositoryAdapter) GetExam(ctx context.Context, id string) (application.Exam, error) {
	stored, err := a.repo.GetExam(ctx, id)
	if err != nil {
		return application.Exam{}, err
	}
	return toApplicationExam(stored), nil
}

func (a *examRepositoryAdapter) ListExams(ctx context.Context) ([]application.Exam, error) {
	stored, err := a.repo.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	exams := make([]application.Exam, 0, len(stored))
	for _, exam := range stored {
		exams = append(exams, toApplicationExam(exam))
	}
	return exams, nil
}

type allocationRepositoryAdapter struct {
	repo persistence.AllocationRepository
}

func newAllocationRepositoryAdapter(repo persistence.AllocationRepository) *allocationRepositoryAdapter {
	return &allocationRepositoryAdapter{repo: repo}
}

func (a *allocationRepositoryAdapter) CreateAllocation(ctx context.Context, allocation application.Allocation) (application.Allocation, error) {
	if err := a.repo.CreateAllocation(ctx, toPersistenceAllocation(allocation)); err != nil {
		return application.Allocation{}, err
	}
	return a.GetAllocation(ctx, allocation.ID)
}

func (a *allocationRepositoryAdapter) GetAllocation(ctx context.Context, id string) (application.Allocation, error) {
	stored, err := a.repo.GetAllocation(ctx, id)
	if err != nil {
		return application.Allocation{}, err
	}
	return toApplicationAllocation(stored), nil
}

func (a *allocationRepositoryAdapter) UpdateAllocation(ctx context.Context, allocation application.Allocation) (application.Allocation, error) {
	if err := a.repo.UpdateAllocation(ctx, toPersistenceAllocation(allocation)); err != nil {
		return application.Allocation{}, err
	}
	return a.GetAllocation(ctx, allocation.ID)
}

func (a *allocationRepositoryAdapter) ListAllocations(ctx context.Context, filter application.AllocationFilter) ([]application.Allocation, error) {
	stored, err := a.repo.ListAllocations(ctx, persistence.AllocationFilter{
		From:   filter.From,
		To:     filter.To,
		RoomID: filter.RoomID,
	})
	if err != nil {
		return nil, err
	}
	allocations := make([]application.Allocation, 0, len(stored))
	for _, allocation := range stored {
		allocations = append(allocations, toApplicationAllocation(allocation))
	}
	return allocations, nil
}

func toPersistenceRoom(room application.Room) persistence.Room {
	return persistence.Room{
		ID:        room.ID,
		Code:      room.Code,
		Name:      room.Name,
		Campus:    room.Campus,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toApplicationRoom(room persistence.Room) application.Room {
	return application.Room{
		ID:        room.ID,
		Code:      room.Code,
		Name:      room.Name,
		Campus:    room.Campus,
		Capacity:  room.Capacity,
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	}
}

func toPersistenceExam(exam application.Exam) persistence.Exam {
	return persistence.Exam{
		ID:                 exam.ID,
		CourseCode:         exam.CourseCode,
		Title:              exam.Title,
		ExpectedCandidates: exam.ExpectedCandidates,
		DurationMinutes:    exam.DurationMinutes,
		CreatedAt:          exam.CreatedAt,
		UpdatedAt:          exam.UpdatedAt,
	}
}

func toApplicationExam(exam persistence.Exam) application.Exam {
	return application.Exam{
		ID:                 exam.ID,
		CourseCode:         exam.CourseCode,
		Title:              exam.Title,
		ExpectedCandidates: exam.ExpectedCandidates,
		DurationMinutes:    exam.DurationMinutes,
		CreatedAt:          exam.CreatedAt,
		UpdatedAt:          exam.UpdatedAt,
	}
}

func toPersistenceAllocation(allocation application.Allocation) persistence.Allocation {
	return persistence.Allocation{
		ID:             allocation.ID,
		ExamID:         allocation.ExamID,
		ExamTitle:      allocation.ExamTitle,
		RoomIDs:        append([]string(nil), allocation.RoomIDs...),
		StartsAt:       allocation.StartsAt,
		EndsAt:         allocation.EndsAt,
		SeatsRequested: allocation.SeatsRequested,
		Notes:          allocation.Notes,
		CreatedAt:      allocation.CreatedAt,
		UpdatedAt:      allocation.UpdatedAt,
	}
}

func toApplicationAllocation(allocation persistence.Allocation) application.Allocation {
	return application.Allocation{
		ID:             allocation.ID,
		ExamID:         allocation.ExamID,
		ExamTitle:      allocation.ExamTitle,
		RoomIDs:        append([]string(nil), allocation.RoomIDs...),
		StartsAt:       allocation.StartsAt,
		EndsAt:         allocation.EndsAt,
		SeatsRequested: allocation.SeatsRequested,
		Notes:          allocation.Notes,
		CreatedAt:      allocation.CreatedAt,
		UpdatedAt:      allocation.UpdatedAt,
	}
}
