package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/timeline"
)

type allocationLister interface {
	ListAllocations(ctx context.Context, params application.ListAllocationsParams) ([]application.Allocation, error)
}

// TimelineHandler exposes the resolver and the capacity estimator so thin
// clients can preview an edit before committing it.
type TimelineHandler struct {
	rooms       roomService
	allocations allocationLister
	policy      timeline.SnapPolicy
	responder   responder
	logger      *slog.Logger
}

func NewTimelineHandler(rooms roomService, allocations allocationLister, policy timeline.SnapPolicy, logger *slog.Logger) *TimelineHandler {
	base := defaultLogger(logger)
	return &TimelineHandler{
		rooms:       rooms,
		allocations: allocations,
		policy:      policy,
		responder:   newResponder(base),
		logger:      base,
	}
}

type resolveRequest struct {
	Kind           string    `json:"kind"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	DeltaMinutes   *int      `json:"delta_minutes,omitempty"`
	DeltaX         *float64  `json:"delta_x,omitempty"`
	ContainerWidth float64   `json:"container_width,omitempty"`
}

type resolveResponse struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

// Resolve serves POST /timeline/resolve.
func (h *TimelineHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	kind, err := timeline.ParseEditKind(req.Kind)
	if err != nil {
		vErr.FieldErrors["kind"] = "kind is required"
	}
	window := timeline.Range{From: req.From, To: req.To}
	if !window.Valid() {
		vErr.FieldErrors["to"] = "to must be after from"
	}
	if req.StartsAt.IsZero() {
		vErr.FieldErrors["starts_at"] = "starts_at is required"
	}
	if !req.EndsAt.After(req.StartsAt) {
		vErr.FieldErrors["ends_at"] = "ends_at must be after starts_at"
	}

	var delta time.Duration
	switch {
	case req.DeltaMinutes != nil:
		delta = timeline.Minutes(*req.DeltaMinutes)
	case req.DeltaX != nil && req.ContainerWidth > 0 && window.Valid():
		delta = timeline.PixelsToDuration(*req.DeltaX, req.ContainerWidth, window)
	case req.DeltaX != nil:
		vErr.FieldErrors["container_width"] = "container_width must be greater than 0"
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	out := h.policy.Resolve(timeline.ResolveInput{
		Interval: timeline.Interval{Start: req.StartsAt, End: req.EndsAt},
		Kind:     kind,
		Delta:    delta,
		Range:    window,
	})
	handlerLogger(r.Context(), h.logger, "TimelineHandler", "Resolve", "kind", kind.String()).
		DebugContext(r.Context(), "edit resolved", "interval", out.String())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resolveResponse{
		StartsAt: out.Start.UTC().Format(time.RFC3339),
		EndsAt:   out.End.UTC().Format(time.RFC3339),
	})
}

type capacityRequest struct {
	AllocationID   string    `json:"allocation_id"`
	RoomID         string    `json:"room_id"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	SeatsRequested int       `json:"seats_requested"`
}

type capacityResponse struct {
	RoomID         string `json:"room_id"`
	Capacity       int    `json:"capacity"`
	ProjectedSeats int    `json:"projected_seats"`
	Overflow       bool   `json:"overflow"`
}

// Capacity serves POST /timeline/capacity.
func (h *TimelineHandler) Capacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	if req.RoomID == "" {
		vErr.FieldErrors["room_id"] = "room_id is required"
	}
	if !req.EndsAt.After(req.StartsAt) {
		vErr.FieldErrors["ends_at"] = "ends_at must be after starts_at"
	}
	if req.SeatsRequested < 0 {
		vErr.FieldErrors["seats_requested"] = "seats_requested must not be negative"
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "TimelineHandler", "Capacity", "room_id", req.RoomID)
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "room listing failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	allocations, err := h.allocations.ListAllocations(r.Context(), application.ListAllocationsParams{
		From:   req.StartsAt,
		To:     req.EndsAt,
		RoomID: req.RoomID,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "allocation listing failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	estimate, ok := timeline.EstimateCapacity(timeline.CapacityQuery{
		AllocationID:   req.AllocationID,
		TargetRoomID:   req.RoomID,
		Interval:       timeline.Interval{Start: req.StartsAt, End: req.EndsAt},
		SeatsRequested: req.SeatsRequested,
	}, application.TimelineRooms(rooms), timeline.SegmentsOf(application.TimelineAllocations(allocations)))
	if !ok {
		h.responder.handleServiceError(r.Context(), w, &application.ValidationError{
			FieldErrors: map[string]string{"room_id": "room does not exist"},
		})
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, capacityResponse{
		RoomID:         req.RoomID,
		Capacity:       estimate.Capacity,
		ProjectedSeats: estimate.ProjectedSeats,
		Overflow:       estimate.Overflow,
	})
}
