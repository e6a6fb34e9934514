// Package client talks to the timeline HTTP API. Client satisfies both
// timeline.Directory and timeline.Updater so a remote editor can be wired the
// same way as a local one.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/exam-timeline/internal/timeline"
)

const defaultTimeout = 10 * time.Second

// Client is an HTTP client for the allocation endpoints.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	operatorKey string
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 10s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithOperatorKey sends key with every update.
func WithOperatorKey(key string) Option {
	return func(c *Client) { c.operatorKey = strings.TrimSpace(key) }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must use http or https", baseURL)
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "api_client"))
	return c, nil
}

type roomPayload struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

type allocationPayload struct {
	ID             string    `json:"id"`
	ExamID         string    `json:"exam_id"`
	ExamTitle      string    `json:"exam_title"`
	RoomIDs        []string  `json:"room_ids"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	SeatsRequested int       `json:"seats_requested"`
	Notes          string    `json:"notes"`
}

func (p allocationPayload) allocation() timeline.Allocation {
	return timeline.Allocation{
		ID:             p.ID,
		ExamID:         p.ExamID,
		ExamTitle:      p.ExamTitle,
		RoomIDs:        p.RoomIDs,
		Interval:       timeline.Interval{Start: p.StartsAt, End: p.EndsAt},
		SeatsRequested: p.SeatsRequested,
		Notes:          p.Notes,
	}
}

type updatePayload struct {
	RoomIDs            []string  `json:"room_ids"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	SeatsRequested     int       `json:"seats_requested"`
	Notes              string    `json:"notes"`
	ConfirmOverbooking bool      `json:"confirm_overbooking"`
	ConfirmedRoomID    string    `json:"confirmed_room_id,omitempty"`
}

type errorEnvelope struct {
	ErrorCode string            `json:"error_code"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors"`
}

// ListRooms fetches GET /rooms.
func (c *Client) ListRooms(ctx context.Context) ([]timeline.Room, error) {
	var body struct {
		Rooms []roomPayload `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, nil, &body); err != nil {
		return nil, err
	}
	rooms := make([]timeline.Room, 0, len(body.Rooms))
	for _, r := range body.Rooms {
		rooms = append(rooms, timeline.Room{ID: r.ID, Name: r.Name, Capacity: r.Capacity})
	}
	return rooms, nil
}

// ListAllocations fetches GET /allocations for window, optionally filtered
// to one room.
func (c *Client) ListAllocations(ctx context.Context, window timeline.Range, roomID string) ([]timeline.Allocation, error) {
	query := url.Values{}
	if !window.From.IsZero() {
		query.Set("from", window.From.UTC().Format(time.RFC3339))
	}
	if !window.To.IsZero() {
		query.Set("to", window.To.UTC().Format(time.RFC3339))
	}
	if roomID != "" {
		query.Set("room", roomID)
	}

	var body struct {
		Allocations []allocationPayload `json:"allocations"`
	}
	if err := c.do(ctx, http.MethodGet, "/allocations", query, nil, &body); err != nil {
		return nil, err
	}
	out := make([]timeline.Allocation, 0, len(body.Allocations))
	for _, a := range body.Allocations {
		out = append(out, a.allocation())
	}
	return out, nil
}

// UpdateAllocation sends PUT /allocations/{id}. Server rejections come back
// as *timeline.UpdateError and transport failures as *timeline.NetworkError.
func (c *Client) UpdateAllocation(ctx context.Context, id string, update timeline.AllocationUpdate) (timeline.Allocation, error) {
	payload := updatePayload{
		RoomIDs:            update.RoomIDs,
		StartsAt:           update.Interval.Start.UTC(),
		EndsAt:             update.Interval.End.UTC(),
		SeatsRequested:     update.SeatsRequested,
		Notes:              update.Notes,
		ConfirmOverbooking: update.ConfirmOverbooking,
		ConfirmedRoomID:    update.ConfirmedRoomID,
	}
	var body struct {
		Allocation allocationPayload `json:"allocation"`
	}
	if err := c.do(ctx, http.MethodPut, "/allocations/"+url.PathEscape(id), nil, payload, &body); err != nil {
		return timeline.Allocation{}, err
	}
	return body.Allocation.allocation(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := *c.baseURL
	target.Path += path
	target.RawQuery = query.Encode()

	var reader io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.operatorKey != "" && method != http.MethodGet {
		req.Header.Set("X-Operator-Key", c.operatorKey)
	}

	logger := c.logger.With("method", method, "path", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "request failed", "error", err)
		return &timeline.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rejection := decodeRejection(resp)
		logger.InfoContext(ctx, "request rejected", "status", resp.StatusCode, "error_code", rejection.Code)
		return rejection
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return &timeline.NetworkError{Err: err}
		}
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeRejection(resp *http.Response) *timeline.UpdateError {
	rejection := &timeline.UpdateError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		rejection.Message = http.StatusText(resp.StatusCode)
		return rejection
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		rejection.Message = strings.TrimSpace(string(raw))
		return rejection
	}
	rejection.Code = envelope.ErrorCode
	rejection.Message = envelope.Message
	rejection.Fields = envelope.Errors
	if rejection.Message == "" && len(envelope.Errors) > 0 {
		rejection.Message = firstFieldMessage(envelope.Errors)
	}
	return rejection
}

// firstFieldMessage picks a deterministic field message when the envelope
// carries no summary.
func firstFieldMessage(fields map[string]string) string {
	first := ""
	for field := range fields {
		if first == "" || field < first {
			first = field
		}
	}
	return fields[first]
}
