package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/scheduler"
	"github.com/example/exam-timeline/internal/timeline"
)

var baseDay = time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return baseDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fakeRooms struct {
	rooms []application.Room
	err   error
}

func (f fakeRooms) ListRooms(context.Context) ([]application.Room, error) {
	return f.rooms, f.err
}

type fakeAllocations struct {
	mu         sync.Mutex
	items      map[string]application.Allocation
	updateErr  error
	lastList   application.ListAllocationsParams
	lastUpdate application.UpdateAllocationParams
}

func newFakeAllocations(items ...application.Allocation) *fakeAllocations {
	f := &fakeAllocations{items: map[string]application.Allocation{}}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

func (f *fakeAllocations) ListAllocations(_ context.Context, params application.ListAllocationsParams) ([]application.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = params
	var out []application.Allocation
	for _, item := range f.items {
		if params.RoomID != "" && !item.TimelineAllocation().HasRoom(params.RoomID) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeAllocations) GetAllocation(_ context.Context, id string) (application.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return application.Allocation{}, application.ErrNotFound
	}
	return item, nil
}

func (f *fakeAllocations) UpdateAllocation(_ context.Context, params application.UpdateAllocationParams) (application.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUpdate = params
	if f.updateErr != nil {
		return application.Allocation{}, f.updateErr
	}
	item, ok := f.items[params.AllocationID]
	if !ok {
		return application.Allocation{}, application.ErrNotFound
	}
	item.RoomIDs = params.Input.RoomIDs
	item.StartsAt = params.Input.StartsAt
	item.EndsAt = params.Input.EndsAt
	item.SeatsRequested = params.Input.SeatsRequested
	item.Notes = params.Input.Notes
	f.items[item.ID] = item
	return item, nil
}

func sampleRooms() []application.Room {
	return []application.Room{
		{ID: "room-a", Code: "A101", Name: "Hall A", Capacity: 100},
		{ID: "room-b", Code: "B201", Name: "Hall B", Capacity: 40},
	}
}

func sampleAllocation() application.Allocation {
	return application.Allocation{
		ID:             "alloc-1",
		ExamID:         "exam-1",
		ExamTitle:      "Calculus I",
		RoomIDs:        []string{"room-a"},
		StartsAt:       at(9, 0),
		EndsAt:         at(11, 0),
		SeatsRequested: 60,
	}
}

func newTestRouter(allocations *fakeAllocations, writeMiddleware ...Middleware) http.Handler {
	rooms := fakeRooms{rooms: sampleRooms()}
	return NewRouter(RouterConfig{
		Rooms:           NewRoomHandler(rooms, nil),
		Allocations:     NewAllocationHandler(allocations, nil),
		Timeline:        NewTimelineHandler(rooms, allocations, timeline.DefaultSnapPolicy(), nil),
		Health:          NewHealthHandler(nil, "test", nil),
		WriteMiddleware: writeMiddleware,
	})
}

func serve(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRoomHandlers(t *testing.T) {
	t.Parallel()

	t.Run("lists rooms", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodGet, "/rooms", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[listRoomsResponse](t, rec)
		require.Len(t, body.Rooms, 2)
		assert.Equal(t, "A101", body.Rooms[0].Code)
		assert.Equal(t, 40, body.Rooms[1].Capacity)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodPost, "/rooms", "{}")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	})
}

func TestAllocationHandlers(t *testing.T) {
	t.Parallel()

	t.Run("list passes the window and room filter", func(t *testing.T) {
		t.Parallel()
		allocations := newFakeAllocations(sampleAllocation())
		rec := serve(t, newTestRouter(allocations), http.MethodGet,
			"/allocations?from=2025-01-20T08:00:00Z&to=2025-01-20T20:00:00Z&room=room-a", "")
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode[listAllocationsResponse](t, rec)
		require.Len(t, body.Allocations, 1)
		assert.Equal(t, "2025-01-20T09:00:00Z", body.Allocations[0].StartsAt)
		assert.Equal(t, at(8, 0), allocations.lastList.From)
		assert.Equal(t, at(20, 0), allocations.lastList.To)
		assert.Equal(t, "room-a", allocations.lastList.RoomID)
	})

	t.Run("list rejects malformed timestamps", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodGet, "/allocations?from=yesterday", "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decode[errorResponse](t, rec)
		assert.Equal(t, codeValidation, body.ErrorCode)
		assert.Contains(t, body.Errors, "from")
	})

	t.Run("get returns 404 for unknown ids", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodGet, "/allocations/missing", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, codeNotFound, decode[errorResponse](t, rec).ErrorCode)
	})

	t.Run("update forwards the payload and confirmation flag", func(t *testing.T) {
		t.Parallel()
		allocations := newFakeAllocations(sampleAllocation())
		rec := serve(t, newTestRouter(allocations), http.MethodPut, "/allocations/alloc-1", `{
			"room_ids": ["room-b"],
			"starts_at": "2025-01-20T10:00:00Z",
			"ends_at": "2025-01-20T12:00:00Z",
			"seats_requested": 60,
			"confirm_overbooking": true,
			"confirmed_room_id": "room-b"
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[allocationResponse](t, rec)
		assert.Equal(t, []string{"room-b"}, body.Allocation.RoomIDs)
		assert.Equal(t, "2025-01-20T12:00:00Z", body.Allocation.EndsAt)
		assert.True(t, allocations.lastUpdate.Force)
		assert.Equal(t, []string{"room-b"}, allocations.lastUpdate.ForceRoomIDs)
		assert.Equal(t, "alloc-1", allocations.lastUpdate.AllocationID)
	})

	t.Run("update maps capacity conflicts to 409", func(t *testing.T) {
		t.Parallel()
		allocations := newFakeAllocations(sampleAllocation())
		allocations.updateErr = &application.CapacityConflictError{Conflicts: []scheduler.CapacityConflict{
			{RoomID: "room-b", Capacity: 40, ProjectedSeats: 60},
		}}
		rec := serve(t, newTestRouter(allocations), http.MethodPut, "/allocations/alloc-1",
			`{"room_ids":["room-b"],"starts_at":"2025-01-20T10:00:00Z","ends_at":"2025-01-20T12:00:00Z","seats_requested":60}`)
		require.Equal(t, http.StatusConflict, rec.Code)

		body := decode[errorResponse](t, rec)
		assert.Equal(t, codeCapacityConflict, body.ErrorCode)
		require.Len(t, body.Conflicts, 1)
		assert.Equal(t, 60, body.Conflicts[0].ProjectedSeats)
		assert.Contains(t, body.Message, "room-b")
	})

	t.Run("update localizes validation errors", func(t *testing.T) {
		t.Parallel()
		allocations := newFakeAllocations(sampleAllocation())
		allocations.updateErr = &application.ValidationError{FieldErrors: map[string]string{
			"ends_at":         "ends_at must be after starts_at",
			"seats_requested": "seats_requested must be greater than 0",
		}}
		rec := serve(t, newTestRouter(allocations), http.MethodPut, "/allocations/alloc-1", `{}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decode[errorResponse](t, rec)
		assert.Equal(t, "終了日時は開始日時より後である必要があります。", body.Errors["ends_at"])
		assert.Equal(t, "座席数は1以上で指定してください。", body.Errors["seats_requested"])
	})

	t.Run("update rejects malformed bodies", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations(sampleAllocation())), http.MethodPut, "/allocations/alloc-1", `{`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, codeBadRequest, decode[errorResponse](t, rec).ErrorCode)
	})

	t.Run("write middleware guards only updates", func(t *testing.T) {
		t.Parallel()
		deny := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})
		}
		router := newTestRouter(newFakeAllocations(sampleAllocation()), deny)

		assert.Equal(t, http.StatusOK, serve(t, router, http.MethodGet, "/allocations/alloc-1", "").Code)
		assert.Equal(t, http.StatusTeapot, serve(t, router, http.MethodPut, "/allocations/alloc-1", `{}`).Code)
	})

	t.Run("nested paths are not found", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodGet, "/allocations/a/b", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTimelineHandlers(t *testing.T) {
	t.Parallel()

	t.Run("resolve snaps a nudge", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodPost, "/timeline/resolve", `{
			"kind": "move",
			"starts_at": "2025-01-20T09:00:00Z",
			"ends_at": "2025-01-20T10:00:00Z",
			"from": "2025-01-20T08:00:00Z",
			"to": "2025-01-20T20:00:00Z",
			"delta_minutes": 7
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[resolveResponse](t, rec)
		assert.Equal(t, "2025-01-20T09:05:00Z", body.StartsAt)
		assert.Equal(t, "2025-01-20T10:05:00Z", body.EndsAt)
	})

	t.Run("resolve converts pixels", func(t *testing.T) {
		t.Parallel()
		// 1200px over 12h is 100px per hour.
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodPost, "/timeline/resolve", `{
			"kind": "resize-end",
			"starts_at": "2025-01-20T09:00:00Z",
			"ends_at": "2025-01-20T10:00:00Z",
			"from": "2025-01-20T08:00:00Z",
			"to": "2025-01-20T20:00:00Z",
			"delta_x": 50,
			"container_width": 1200
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "2025-01-20T10:30:00Z", decode[resolveResponse](t, rec).EndsAt)
	})

	t.Run("resolve rejects unknown kinds and inverted ranges", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodPost, "/timeline/resolve", `{
			"kind": "rotate",
			"starts_at": "2025-01-20T09:00:00Z",
			"ends_at": "2025-01-20T10:00:00Z",
			"from": "2025-01-20T20:00:00Z",
			"to": "2025-01-20T08:00:00Z",
			"delta_minutes": 5
		}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		body := decode[errorResponse](t, rec)
		assert.Contains(t, body.Errors, "kind")
		assert.Contains(t, body.Errors, "to")
	})

	t.Run("capacity sums overlapping allocations", func(t *testing.T) {
		t.Parallel()
		allocations := newFakeAllocations(sampleAllocation())
		rec := serve(t, newTestRouter(allocations), http.MethodPost, "/timeline/capacity", `{
			"allocation_id": "alloc-2",
			"room_id": "room-a",
			"starts_at": "2025-01-20T10:00:00Z",
			"ends_at": "2025-01-20T12:00:00Z",
			"seats_requested": 50
		}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		body := decode[capacityResponse](t, rec)
		assert.Equal(t, 100, body.Capacity)
		assert.Equal(t, 110, body.ProjectedSeats)
		assert.True(t, body.Overflow)
	})

	t.Run("capacity ignores the allocation being moved", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations(sampleAllocation())), http.MethodPost, "/timeline/capacity", `{
			"allocation_id": "alloc-1",
			"room_id": "room-a",
			"starts_at": "2025-01-20T10:00:00Z",
			"ends_at": "2025-01-20T12:00:00Z",
			"seats_requested": 60
		}`)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[capacityResponse](t, rec)
		assert.Equal(t, 60, body.ProjectedSeats)
		assert.False(t, body.Overflow)
	})

	t.Run("capacity rejects unknown rooms", func(t *testing.T) {
		t.Parallel()
		rec := serve(t, newTestRouter(newFakeAllocations()), http.MethodPost, "/timeline/capacity", `{
			"room_id": "room-z",
			"starts_at": "2025-01-20T10:00:00Z",
			"ends_at": "2025-01-20T12:00:00Z",
			"seats_requested": 1
		}`)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "指定された試験室は存在しません。", decode[errorResponse](t, rec).Errors["room_id"])
	})
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return assert.AnError }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	ok := NewRouter(RouterConfig{Health: NewHealthHandler(nil, "v1", nil)})
	rec := serve(t, ok, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", decode[healthResponse](t, rec).Version)

	down := NewRouter(RouterConfig{Health: NewHealthHandler(failingPinger{}, "v1", nil)})
	rec = serve(t, down, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
