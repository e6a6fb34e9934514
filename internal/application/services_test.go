package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/exam-timeline/internal/persistence"
	"github.com/example/exam-timeline/internal/timeline"
)

// memoryStore implements the room, exam and allocation repositories.
type memoryStore struct {
	mu          sync.Mutex
	rooms       map[string]Room
	exams       map[string]Exam
	allocations map[string]Allocation
	listCalls   int
	updateErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rooms:       make(map[string]Room),
		exams:       make(map[string]Exam),
		allocations: make(map[string]Allocation),
	}
}

func (m *memoryStore) CreateRoom(_ context.Context, room Room) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rooms {
		if existing.Code == room.Code {
			return Room{}, persistence.ErrDuplicate
		}
	}
	m.rooms[room.ID] = room
	return room, nil
}

func (m *memoryStore) GetRoom(_ context.Context, id string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return Room{}, persistence.ErrNotFound
	}
	return room, nil
}

func (m *memoryStore) ListRooms(context.Context) ([]Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rooms []Room
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (m *memoryStore) CreateExam(_ context.Context, exam Exam) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[exam.ID] = exam
	return exam, nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exam, ok := m.exams[id]
	if !ok {
		return Exam{}, persistence.ErrNotFound
	}
	return exam, nil
}

func (m *memoryStore) ListExams(context.Context) ([]Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exams []Exam
	for _, exam := range m.exams {
		exams = append(exams, exam)
	}
	return exams, nil
}

func (m *memoryStore) CreateAllocation(_ context.Context, allocation Allocation) (Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[allocation.ID] = allocation
	return allocation, nil
}

func (m *memoryStore) GetAllocation(_ context.Context, id string) (Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	allocation, ok := m.allocations[id]
	if !ok {
		return Allocation{}, persistence.ErrNotFound
	}
	return allocation, nil
}

func (m *memoryStore) UpdateAllocation(_ context.Context, allocation Allocation) (Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return Allocation{}, m.updateErr
	}
	m.allocations[allocation.ID] = allocation
	return allocation, nil
}

func (m *memoryStore) ListAllocations(_ context.Context, filter AllocationFilter) ([]Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	var out []Allocation
	for _, allocation := range m.allocations {
		if filter.From != nil && !allocation.EndsAt.After(*filter.From) {
			continue
		}
		if filter.To != nil && !allocation.StartsAt.Before(*filter.To) {
			continue
		}
		if filter.RoomID != "" && !slices.Contains(allocation.RoomIDs, filter.RoomID) {
			continue
		}
		allocation.RoomIDs = slices.Clone(allocation.RoomIDs)
		out = append(out, allocation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

var serviceDay = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func clock(hour, minute int) time.Time {
	return serviceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAllocationFixture(t *testing.T, opts ...AllocationServiceOption) (*AllocationService, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	store.rooms["hall-a"] = Room{ID: "hall-a", Code: "A101", Name: "Hall A", Capacity: 30}
	store.rooms["hall-b"] = Room{ID: "hall-b", Code: "B201", Name: "Hall B", Capacity: 80}
	store.exams["exam-calc"] = Exam{ID: "exam-calc", CourseCode: "MATH101", Title: "Calculus I"}
	store.exams["exam-phys"] = Exam{ID: "exam-phys", CourseCode: "PHYS101", Title: "Physics I"}
	store.allocations["calculus"] = Allocation{
		ID: "calculus", ExamID: "exam-calc", ExamTitle: "Calculus I",
		RoomIDs: []string{"hall-a"}, StartsAt: clock(8, 0), EndsAt: clock(9, 0), SeatsRequested: 20,
	}
	store.allocations["physics"] = Allocation{
		ID: "physics", ExamID: "exam-phys", ExamTitle: "Physics I",
		RoomIDs: []string{"hall-a"}, StartsAt: clock(10, 0), EndsAt: clock(12, 0), SeatsRequested: 15,
	}

	counter := 0
	opts = append([]AllocationServiceOption{WithAllocationClock(func() string {
		counter++
		return "alloc-new-" + string(rune('0'+counter))
	}, func() time.Time { return clock(7, 0) })}, opts...)
	return NewAllocationService(store, store, store, discardLogger(), opts...), store
}

func moveInput(roomIDs []string, start, end time.Time, seats int) AllocationInput {
	return AllocationInput{RoomIDs: roomIDs, StartsAt: start, EndsAt: end, SeatsRequested: seats}
}

func TestAllocationServiceUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stores a change that fits", func(t *testing.T) {
		t.Parallel()
		svc, store := newAllocationFixture(t)

		updated, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"hall-b"}, clock(10, 0), clock(11, 0), 20),
		})
		if err != nil {
			t.Fatalf("UpdateAllocation failed: %v", err)
		}
		if !slices.Equal(updated.RoomIDs, []string{"hall-b"}) || !updated.StartsAt.Equal(clock(10, 0)) {
			t.Fatalf("unexpected allocation: %#v", updated)
		}
		if updated.ExamTitle != "Calculus I" || !updated.UpdatedAt.Equal(clock(7, 0)) {
			t.Fatalf("expected exam title and clock to carry through: %#v", updated)
		}
		if got := store.allocations["calculus"]; !got.StartsAt.Equal(clock(10, 0)) {
			t.Fatalf("store not updated: %#v", got)
		}
	})

	t.Run("rejects overbooking without force", func(t *testing.T) {
		t.Parallel()
		svc, store := newAllocationFixture(t)

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"hall-a"}, clock(11, 0), clock(12, 0), 20),
		})
		var conflict *CapacityConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected CapacityConflictError, got %v", err)
		}
		if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].ProjectedSeats != 35 {
			t.Fatalf("unexpected conflicts: %#v", conflict.Conflicts)
		}
		if got := store.allocations["calculus"]; !got.StartsAt.Equal(clock(8, 0)) {
			t.Fatalf("rejected change must not be stored: %#v", got)
		}
	})

	t.Run("accepts overbooking with force", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		updated, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"hall-a"}, clock(11, 0), clock(12, 0), 20),
			Force:        true,
		})
		if err != nil {
			t.Fatalf("UpdateAllocation failed: %v", err)
		}
		if !updated.StartsAt.Equal(clock(11, 0)) {
			t.Fatalf("unexpected allocation: %#v", updated)
		}
	})

	t.Run("force covers only the confirmed rooms", func(t *testing.T) {
		t.Parallel()
		svc, store := newAllocationFixture(t)
		store.allocations["chemistry"] = Allocation{
			ID: "chemistry", ExamID: "exam-phys", ExamTitle: "Physics I",
			RoomIDs: []string{"hall-b"}, StartsAt: clock(11, 0), EndsAt: clock(12, 0), SeatsRequested: 70,
		}
		input := moveInput([]string{"hall-a", "hall-b"}, clock(11, 0), clock(12, 0), 20)

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        input,
			Force:        true,
			ForceRoomIDs: []string{"hall-a"},
		})
		var conflict *CapacityConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected CapacityConflictError, got %v", err)
		}
		if len(conflict.Conflicts) != 1 || conflict.Conflicts[0].RoomID != "hall-b" || conflict.Conflicts[0].ProjectedSeats != 90 {
			t.Fatalf("expected only hall-b to be rejected, got %#v", conflict.Conflicts)
		}

		if _, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        input,
			Force:        true,
			ForceRoomIDs: []string{"hall-a", "hall-b"},
		}); err != nil {
			t.Fatalf("expected both confirmed rooms to be accepted, got %v", err)
		}
	})

	t.Run("timeline commits force the confirmed room only", func(t *testing.T) {
		t.Parallel()
		params := UpdateParamsFromTimeline("calculus", timeline.AllocationUpdate{
			RoomIDs:            []string{"hall-a", "hall-b"},
			Interval:           timeline.Interval{Start: clock(11, 0), End: clock(12, 0)},
			SeatsRequested:     20,
			ConfirmOverbooking: true,
			ConfirmedRoomID:    "hall-a",
		})
		if !params.Force || !slices.Equal(params.ForceRoomIDs, []string{"hall-a"}) {
			t.Fatalf("unexpected force scope: force=%v rooms=%v", params.Force, params.ForceRoomIDs)
		}

		params = UpdateParamsFromTimeline("calculus", timeline.AllocationUpdate{RoomIDs: []string{"hall-a"}})
		if params.Force || params.ForceRoomIDs != nil {
			t.Fatalf("unconfirmed commit must not force: %#v", params)
		}
	})

	t.Run("validates input", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput(nil, clock(11, 0), clock(10, 0), 0),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"room_ids", "ends_at", "seats_requested"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("expected field error for %s, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("rejects unknown rooms", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"annex"}, clock(8, 0), clock(9, 0), 20),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["room_ids"] == "" {
			t.Fatalf("expected room_ids validation error, got %v", err)
		}
	})

	t.Run("reports missing allocations", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "missing",
			Input:        moveInput([]string{"hall-a"}, clock(8, 0), clock(9, 0), 20),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("maps repository failures", func(t *testing.T) {
		t.Parallel()
		svc, store := newAllocationFixture(t)
		store.updateErr = persistence.ErrForeignKeyViolation

		_, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"hall-b"}, clock(8, 0), clock(9, 0), 20),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestAllocationServiceCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, store := newAllocationFixture(t)

	created, err := svc.CreateAllocation(ctx, CreateAllocationParams{
		ExamID: "exam-phys",
		Input:  moveInput([]string{" hall-b ", "hall-b"}, clock(13, 0), clock(15, 0), 60),
	})
	if err != nil {
		t.Fatalf("CreateAllocation failed: %v", err)
	}
	if created.ID != "alloc-new-1" || created.ExamTitle != "Physics I" || !slices.Equal(created.RoomIDs, []string{"hall-b"}) {
		t.Fatalf("unexpected allocation: %#v", created)
	}
	if _, ok := store.allocations["alloc-new-1"]; !ok {
		t.Fatalf("allocation not stored")
	}

	_, err = svc.CreateAllocation(ctx, CreateAllocationParams{
		ExamID: "exam-none",
		Input:  moveInput([]string{"hall-b"}, clock(13, 0), clock(15, 0), 60),
	})
	var vErr *ValidationError
	if !errors.As(err, &vErr) || vErr.FieldErrors["exam_id"] == "" {
		t.Fatalf("expected exam_id validation error, got %v", err)
	}
}

func TestAllocationServiceList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("filters by window and room", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		list, err := svc.ListAllocations(ctx, ListAllocationsParams{From: clock(9, 0), To: clock(20, 0), RoomID: "hall-a"})
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if len(list) != 1 || list[0].ID != "physics" {
			t.Fatalf("unexpected list: %#v", list)
		}
	})

	t.Run("rejects inverted windows", func(t *testing.T) {
		t.Parallel()
		svc, _ := newAllocationFixture(t)

		_, err := svc.ListAllocations(ctx, ListAllocationsParams{From: clock(12, 0), To: clock(12, 0)})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("caches listings until a write", func(t *testing.T) {
		t.Parallel()
		svc, store := newAllocationFixture(t, WithListCache(time.Minute, 8))
		params := ListAllocationsParams{From: clock(8, 0), To: clock(20, 0)}

		first, err := svc.ListAllocations(ctx, params)
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		first[0].RoomIDs[0] = "mutated"
		if _, err := svc.ListAllocations(ctx, params); err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if store.listCalls != 1 {
			t.Fatalf("expected one repository call, got %d", store.listCalls)
		}

		if _, err := svc.UpdateAllocation(ctx, UpdateAllocationParams{
			AllocationID: "calculus",
			Input:        moveInput([]string{"hall-b"}, clock(8, 0), clock(9, 0), 20),
		}); err != nil {
			t.Fatalf("UpdateAllocation failed: %v", err)
		}
		callsBefore := store.listCalls

		after, err := svc.ListAllocations(ctx, params)
		if err != nil {
			t.Fatalf("ListAllocations failed: %v", err)
		}
		if store.listCalls != callsBefore+1 {
			t.Fatalf("expected the write to purge the cache")
		}
		if after[0].RoomIDs[0] != "hall-b" {
			t.Fatalf("expected fresh data, got %#v", after[0])
		}
	})
}

func TestRoomService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemoryStore()
	ids := []string{"room-1", "room-2", "room-3"}
	next := 0
	svc := NewRoomService(store, func() string { id := ids[next]; next++; return id }, func() time.Time { return clock(7, 0) }, discardLogger())

	if _, err := svc.CreateRoom(ctx, RoomInput{Code: " B201 ", Name: "Hall B", Capacity: 80}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}
	if _, err := svc.CreateRoom(ctx, RoomInput{Code: "A101", Name: "Hall A", Capacity: 30}); err != nil {
		t.Fatalf("CreateRoom failed: %v", err)
	}

	_, err := svc.CreateRoom(ctx, RoomInput{Code: "A101", Name: "Copy", Capacity: 5})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	_, err = svc.CreateRoom(ctx, RoomInput{Name: "", Capacity: -1})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"code", "name", "capacity"} {
		if vErr.FieldErrors[field] == "" {
			t.Errorf("expected field error for %s, got %v", field, vErr.FieldErrors)
		}
	}

	rooms, err := svc.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	if len(rooms) != 2 || rooms[0].Code != "A101" || rooms[1].Code != "B201" {
		t.Fatalf("expected rooms ordered by code, got %#v", rooms)
	}

	if _, err := svc.GetRoom(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOperatorKey(t *testing.T) {
	t.Parallel()
	params := Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

	encoded, err := HashOperatorKey("s3cret", params)
	if err != nil {
		t.Fatalf("HashOperatorKey failed: %v", err)
	}
	if !IsOperatorKeyHash(encoded) {
		t.Fatalf("expected %q to be recognised as a hash", encoded)
	}
	if err := VerifyOperatorKey(encoded, "s3cret"); err != nil {
		t.Fatalf("expected key to verify, got %v", err)
	}
	if err := VerifyOperatorKey(encoded, "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := VerifyOperatorKey("plain", "plain"); !errors.Is(err, ErrInvalidKeyHash) {
		t.Fatalf("expected ErrInvalidKeyHash, got %v", err)
	}
	if _, err := HashOperatorKey("", params); err == nil {
		t.Fatalf("expected empty keys to be rejected")
	}
}

func TestWindowCache(t *testing.T) {
	t.Parallel()

	disabled := newWindowCache(0, 0)
	disabled.Store("k", []Allocation{{ID: "a"}})
	if _, ok := disabled.Get("k"); ok {
		t.Fatalf("expected a zero TTL to disable caching")
	}

	cache := newWindowCache(time.Minute, 1)
	cache.Store("first", []Allocation{{ID: "a"}})
	cache.Store("second", []Allocation{{ID: "b"}})
	if _, ok := cache.Get("first"); ok {
		t.Fatalf("expected the least recently used entry to be evicted")
	}
	if got, ok := cache.Get("second"); !ok || got[0].ID != "b" {
		t.Fatalf("expected second entry, got %#v", got)
	}
	cache.Invalidate()
	if cache.Len() != 0 {
		t.Fatalf("expected empty cache after invalidate")
	}

	key := buildWindowCacheKey(ListAllocationsParams{From: clock(8, 0), To: clock(20, 0), RoomID: "hall-a"})
	if key != "2024-03-04T08:00:00Z|2024-03-04T20:00:00Z|hall-a" {
		t.Fatalf("unexpected key %q", key)
	}
}
