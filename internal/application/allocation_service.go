package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/persistence"
	"github.com/example/exam-timeline/internal/scheduler"
	"github.com/example/exam-timeline/internal/timeline"
)

// AllocationRepository captures the persistence operations needed by
// AllocationService.
type AllocationRepository interface {
	CreateAllocation(ctx context.Context, allocation Allocation) (Allocation, error)
	GetAllocation(ctx context.Context, id string) (Allocation, error)
	UpdateAllocation(ctx context.Context, allocation Allocation) (Allocation, error)
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error)
}

// AllocationService lists and edits allocations. Every write is checked
// against room capacities and rejected with a CapacityConflictError unless
// the caller forces it.
type AllocationService struct {
	allocations AllocationRepository
	rooms       RoomRepository
	exams       ExamRepository
	cache       *windowCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// AllocationServiceOption configures an AllocationService.
type AllocationServiceOption func(*AllocationService)

// WithListCache caches listings for ttl, keeping at most maxEntries windows.
func WithListCache(ttl time.Duration, maxEntries int) AllocationServiceOption {
	return func(s *AllocationService) {
		s.cache = newWindowCache(ttl, maxEntries)
	}
}

// WithAllocationClock overrides the id generator and clock.
func WithAllocationClock(idGenerator func() string, now func() time.Time) AllocationServiceOption {
	return func(s *AllocationService) {
		if idGenerator != nil {
			s.idGenerator = idGenerator
		}
		if now != nil {
			s.now = now
		}
	}
}

// NewAllocationService constructs an allocation service.
func NewAllocationService(allocations AllocationRepository, rooms RoomRepository, exams ExamRepository, logger *slog.Logger, opts ...AllocationServiceOption) *AllocationService {
	s := &AllocationService{
		allocations: allocations,
		rooms:       rooms,
		exams:       exams,
		idGenerator: func() string { return "" },
		now:         time.Now,
		logger:      defaultLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AllocationService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AllocationService", operation, attrs...)
}

// ListAllocations returns allocations overlapping the window, optionally
// restricted to one room, ordered by start time.
func (s *AllocationService) ListAllocations(ctx context.Context, params ListAllocationsParams) (allocations []Allocation, err error) {
	if s == nil {
		err = fmt.Errorf("AllocationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListAllocations", "room_id", params.RoomID)
	cached := false
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list allocations", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(allocations), "cached", cached).DebugContext(ctx, "allocations listed")
	}()

	if !params.From.IsZero() && !params.To.IsZero() && !params.From.Before(params.To) {
		vErr := &ValidationError{}
		vErr.add("to", "to must be after from")
		err = vErr
		return
	}

	key := buildWindowCacheKey(params)
	if allocations, cached = s.cache.Get(key); cached {
		return
	}

	filter := AllocationFilter{RoomID: params.RoomID}
	if !params.From.IsZero() {
		from := params.From
		filter.From = &from
	}
	if !params.To.IsZero() {
		to := params.To
		filter.To = &to
	}

	allocations, err = s.allocations.ListAllocations(ctx, filter)
	if err != nil {
		err = mapAllocationRepoError(err)
		return
	}
	s.cache.Store(key, allocations)
	return
}

// GetAllocation returns a single allocation.
func (s *AllocationService) GetAllocation(ctx context.Context, allocationID string) (Allocation, error) {
	allocation, err := s.allocations.GetAllocation(ctx, allocationID)
	if err != nil {
		return Allocation{}, mapAllocationRepoError(err)
	}
	return allocation, nil
}

// CreateAllocation validates and stores a new allocation for an existing exam.
func (s *AllocationService) CreateAllocation(ctx context.Context, params CreateAllocationParams) (allocation Allocation, err error) {
	logger := s.loggerWith(ctx, "CreateAllocation", "exam_id", params.ExamID, "force", params.Force)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create allocation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("allocation_id", allocation.ID).InfoContext(ctx, "allocation created")
	}()

	params.Input.RoomIDs = normalizeRoomIDs(params.Input.RoomIDs)
	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	var exam Exam
	if exam, err = s.exams.GetExam(ctx, params.ExamID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, ErrNotFound) {
			vErr := &ValidationError{}
			vErr.add("exam_id", "exam does not exist")
			err = vErr
		}
		return
	}

	allocation = Allocation{
		ID:             s.idGenerator(),
		ExamID:         exam.ID,
		ExamTitle:      exam.Title,
		RoomIDs:        params.Input.RoomIDs,
		StartsAt:       params.Input.StartsAt.UTC(),
		EndsAt:         params.Input.EndsAt.UTC(),
		SeatsRequested: params.Input.SeatsRequested,
		Notes:          strings.TrimSpace(params.Input.Notes),
		CreatedAt:      s.now(),
	}
	allocation.UpdatedAt = allocation.CreatedAt

	if err = s.checkCapacity(ctx, logger, allocation, params.Force, nil); err != nil {
		return
	}

	allocation, err = s.allocations.CreateAllocation(ctx, allocation)
	if err != nil {
		err = mapAllocationRepoError(err)
		return
	}
	s.cache.Invalidate()
	return
}

// UpdateAllocation replaces the rooms, window, seats and notes of an
// allocation.
func (s *AllocationService) UpdateAllocation(ctx context.Context, params UpdateAllocationParams) (allocation Allocation, err error) {
	if s == nil {
		err = fmt.Errorf("AllocationService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateAllocation", "allocation_id", params.AllocationID, "force", params.Force)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update allocation", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "allocation updated",
			"room_ids", allocation.RoomIDs,
			"starts_at", allocation.StartsAt,
			"ends_at", allocation.EndsAt,
		)
	}()

	var existing Allocation
	existing, err = s.allocations.GetAllocation(ctx, params.AllocationID)
	if err != nil {
		err = mapAllocationRepoError(err)
		return
	}

	params.Input.RoomIDs = normalizeRoomIDs(params.Input.RoomIDs)
	if vErr := validateStruct(params); vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.RoomIDs = params.Input.RoomIDs
	updated.StartsAt = params.Input.StartsAt.UTC()
	updated.EndsAt = params.Input.EndsAt.UTC()
	updated.SeatsRequested = params.Input.SeatsRequested
	updated.Notes = strings.TrimSpace(params.Input.Notes)
	updated.UpdatedAt = s.now()

	if err = s.checkCapacity(ctx, logger, updated, params.Force, params.ForceRoomIDs); err != nil {
		return
	}

	allocation, err = s.allocations.UpdateAllocation(ctx, updated)
	if err != nil {
		err = mapAllocationRepoError(err)
		return
	}
	s.cache.Invalidate()
	return
}

// checkCapacity rejects unknown rooms and rooms whose overlapping seat total
// would exceed capacity. force accepts the overflow on forceRooms, or on every
// room when forceRooms is empty.
func (s *AllocationService) checkCapacity(ctx context.Context, logger *slog.Logger, candidate Allocation, force bool, forceRooms []string) error {
	rooms, err := s.rooms.ListRooms(ctx)
	if err != nil {
		return mapRoomRepoError(err)
	}
	capacities := make(map[string]int, len(rooms))
	for _, room := range rooms {
		capacities[room.ID] = room.Capacity
	}

	vErr := &ValidationError{}
	for _, roomID := range candidate.RoomIDs {
		if _, ok := capacities[roomID]; !ok {
			vErr.add("room_ids", fmt.Sprintf("room %s does not exist", roomID))
		}
	}
	if vErr.HasErrors() {
		return vErr
	}

	from, to := candidate.StartsAt, candidate.EndsAt
	overlapping, err := s.allocations.ListAllocations(ctx, AllocationFilter{From: &from, To: &to})
	if err != nil {
		return mapAllocationRepoError(err)
	}

	bookings := make([]scheduler.Booking, len(overlapping))
	for i, allocation := range overlapping {
		bookings[i] = bookingOf(allocation)
	}
	conflicts := scheduler.DetectCapacityConflicts(bookings, bookingOf(candidate), capacities)
	if len(conflicts) == 0 {
		return nil
	}
	var rejected, accepted []scheduler.CapacityConflict
	for _, conflict := range conflicts {
		if force && (len(forceRooms) == 0 || slices.Contains(forceRooms, conflict.RoomID)) {
			accepted = append(accepted, conflict)
		} else {
			rejected = append(rejected, conflict)
		}
	}
	if len(rejected) > 0 {
		return &CapacityConflictError{Conflicts: rejected}
	}
	for _, conflict := range accepted {
		logger.WarnContext(ctx, "room over capacity accepted",
			"room_id", conflict.RoomID,
			"capacity", conflict.Capacity,
			"projected_seats", conflict.ProjectedSeats,
		)
	}
	return nil
}

func bookingOf(allocation Allocation) scheduler.Booking {
	return scheduler.Booking{
		ID:             allocation.ID,
		RoomIDs:        allocation.RoomIDs,
		Interval:       timeline.Interval{Start: allocation.StartsAt, End: allocation.EndsAt},
		SeatsRequested: allocation.SeatsRequested,
	}
}

func normalizeRoomIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func mapAllocationRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("room_ids", "room does not exist")
		return vErr
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("input", "allocation violates a storage constraint")
		return vErr
	}
	return err
}
