package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/application"
)

type allocationService interface {
	ListAllocations(ctx context.Context, params application.ListAllocationsParams) ([]application.Allocation, error)
	GetAllocation(ctx context.Context, allocationID string) (application.Allocation, error)
	UpdateAllocation(ctx context.Context, params application.UpdateAllocationParams) (application.Allocation, error)
}

type AllocationHandler struct {
	service   allocationService
	responder responder
	logger    *slog.Logger
}

func NewAllocationHandler(service allocationService, logger *slog.Logger) *AllocationHandler {
	base := defaultLogger(logger)
	return &AllocationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AllocationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AllocationHandler", operation, attrs...)
}

// List serves GET /allocations?from=&to=&room=.
func (h *AllocationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	params := application.ListAllocationsParams{RoomID: strings.TrimSpace(query.Get("room"))}
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &params.From}, {"to", &params.To}} {
		raw := strings.TrimSpace(query.Get(p.name))
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			vErr.FieldErrors[p.name] = p.name + " must be an RFC3339 timestamp"
			continue
		}
		*p.dst = parsed
	}
	if vErr.HasErrors() {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	logger := h.log(r.Context(), "List", "room_id", params.RoomID)
	allocations, err := h.service.ListAllocations(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "allocation listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAllocationsResponse{Allocations: toAllocationDTOs(allocations)})
}

// Get serves GET /allocations/{id}.
func (h *AllocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	allocationID, ok := AllocationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(allocationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAllocationID)
		return
	}

	allocation, err := h.service.GetAllocation(r.Context(), allocationID)
	if err != nil {
		h.log(r.Context(), "Get", "allocation_id", allocationID).
			ErrorContext(r.Context(), "allocation lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, allocationResponse{Allocation: toAllocationDTO(allocation)})
}

// Update serves PUT /allocations/{id}.
func (h *AllocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	allocationID, ok := AllocationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(allocationID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing allocation id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidAllocationID)
		return
	}

	var req updateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "allocation_id", allocationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode allocation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "allocation_id", allocationID, "confirm_overbooking", req.ConfirmOverbooking)
	allocation, err := h.service.UpdateAllocation(r.Context(), application.UpdateAllocationParams{
		AllocationID: allocationID,
		Input:        req.toInput(),
		Force:        req.ConfirmOverbooking,
		ForceRoomIDs: req.forceRooms(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "allocation update rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "allocation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, allocationResponse{Allocation: toAllocationDTO(allocation)})
}

type updateAllocationRequest struct {
	RoomIDs            []string  `json:"room_ids"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	SeatsRequested     int       `json:"seats_requested"`
	Notes              string    `json:"notes"`
	ConfirmOverbooking bool      `json:"confirm_overbooking"`
	ConfirmedRoomID    string    `json:"confirmed_room_id,omitempty"`
}

func (r updateAllocationRequest) forceRooms() []string {
	if !r.ConfirmOverbooking || strings.TrimSpace(r.ConfirmedRoomID) == "" {
		return nil
	}
	return []string{strings.TrimSpace(r.ConfirmedRoomID)}
}

func (r updateAllocationRequest) toInput() application.AllocationInput {
	return application.AllocationInput{
		RoomIDs:        r.RoomIDs,
		StartsAt:       r.StartsAt,
		EndsAt:         r.EndsAt,
		SeatsRequested: r.SeatsRequested,
		Notes:          r.Notes,
	}
}

type allocationResponse struct {
	Allocation allocationDTO `json:"allocation"`
}

type listAllocationsResponse struct {
	Allocations []allocationDTO `json:"allocations"`
}

type allocationDTO struct {
	ID             string   `json:"id"`
	ExamID         string   `json:"exam_id"`
	ExamTitle      string   `json:"exam_title"`
	RoomIDs        []string `json:"room_ids"`
	StartsAt       string   `json:"starts_at"`
	EndsAt         string   `json:"ends_at"`
	SeatsRequested int      `json:"seats_requested"`
	Notes          string   `json:"notes,omitempty"`
	UpdatedAt      string   `json:"updated_at"`
}

func toAllocationDTO(allocation application.Allocation) allocationDTO {
	roomIDs := allocation.RoomIDs
	if roomIDs == nil {
		roomIDs = []string{}
	}
	return allocationDTO{
		ID:             allocation.ID,
		ExamID:         allocation.ExamID,
		ExamTitle:      allocation.ExamTitle,
		RoomIDs:        roomIDs,
		StartsAt:       allocation.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:         allocation.EndsAt.UTC().Format(time.RFC3339),
		SeatsRequested: allocation.SeatsRequested,
		Notes:          allocation.Notes,
		UpdatedAt:      allocation.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAllocationDTOs(allocations []application.Allocation) []allocationDTO {
	out := make([]allocationDTO, 0, len(allocations))
	for _, allocation := range allocations {
		out = append(out, toAllocationDTO(allocation))
	}
	return out
}
