package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/exam-timeline/internal/application"
)

// Error codes carried in the error_code field.
const (
	codeBadRequest       = "bad_request"
	codeValidation       = "validation_error"
	codeNotFound         = "not_found"
	codeCapacityConflict = "capacity_conflict"
	codeUnauthorized     = "unauthorized"
	codeRateLimited      = "rate_limited"
	codeInternal         = "internal_error"
)

var (
	errBadRequestBody      = errors.New("無効なリクエスト形式です。")
	errInvalidAllocationID = errors.New("無効な割り当て ID です。")
	errMissingOperatorKey  = errors.New("オペレーターキーを指定してください。")
	errInvalidOperatorKey  = errors.New("オペレーターキーが正しくありません。")
	errRateLimited         = errors.New("リクエストが多すぎます。しばらくしてから再試行してください。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes the envelope for a transport level failure. err's text is
// used as the message when present.
func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		conflict *application.CapacityConflictError
		vErr     *application.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: codeCapacityConflict,
			Message:   capacityConflictMessage(conflict),
			Conflicts: toConflictDTOs(conflict),
		})
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: codeUnauthorized, Message: errInvalidOperatorKey.Error()})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{ErrorCode: codeNotFound, Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "already_exists", Message: "同じ識別子のリソースが既に存在します。"})
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: codeValidation,
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: codeInternal, Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return codeBadRequest
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusUnprocessableEntity:
		return codeValidation
	case http.StatusTooManyRequests:
		return codeRateLimited
	default:
		return codeInternal
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusUnauthorized:
		return "認証が必要です。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusTooManyRequests:
		return errRateLimited.Error()
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func capacityConflictMessage(conflict *application.CapacityConflictError) string {
	if conflict == nil || len(conflict.Conflicts) == 0 {
		return "収容人数を超えています。"
	}
	first := conflict.Conflicts[0]
	return fmt.Sprintf("試験室 %s の収容人数を超えています（%d / %d 席）。", first.RoomID, first.ProjectedSeats, first.Capacity)
}

var fieldLabels = map[string]string{
	"room_ids":        "試験室",
	"starts_at":       "開始日時",
	"ends_at":         "終了日時",
	"seats_requested": "座席数",
	"notes":           "備考",
	"exam_id":         "試験",
	"allocation_id":   "割り当て",
	"code":            "試験室コード",
	"name":            "試験室名",
	"campus":          "キャンパス",
	"capacity":        "収容人数",
	"from":            "表示開始",
	"to":              "表示終了",
	"kind":            "操作種別",
	"range":           "表示期間",
	"room_id":         "試験室",
	"container_width": "表示幅",
}

func fieldLabel(field string) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return field
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(field, msg)
	}
	return translated
}

func translateValidationMessage(field, message string) string {
	label := fieldLabel(field)
	rest := strings.TrimPrefix(message, field+" ")

	switch {
	case rest == "is required":
		return label + "は必須です。"
	case rest == "must be greater than 0":
		return label + "は1以上で指定してください。"
	case rest == "must not be negative":
		return label + "は0以上で指定してください。"
	case strings.HasPrefix(rest, "must be after "):
		other := strings.TrimPrefix(rest, "must be after ")
		return fmt.Sprintf("%sは%sより後である必要があります。", label, fieldLabel(other))
	case strings.HasPrefix(rest, "must be at most "):
		var n int
		if _, err := fmt.Sscanf(rest, "must be at most %d characters", &n); err == nil {
			return fmt.Sprintf("%sは%d文字以内で指定してください。", label, n)
		}
	case strings.HasPrefix(rest, "must contain at least "):
		return label + "を1件以上指定してください。"
	case message == "room does not exist":
		return "指定された試験室は存在しません。"
	case strings.HasPrefix(message, "room ") && strings.HasSuffix(message, " does not exist"):
		id := strings.TrimSuffix(strings.TrimPrefix(message, "room "), " does not exist")
		return "指定された試験室は存在しません: " + id
	case message == "exam does not exist":
		return "指定された試験は存在しません。"
	}
	return message
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
}

type conflictDTO struct {
	RoomID         string   `json:"room_id"`
	Capacity       int      `json:"capacity"`
	ProjectedSeats int      `json:"projected_seats"`
	WithIDs        []string `json:"with_allocation_ids,omitempty"`
}

func toConflictDTOs(conflict *application.CapacityConflictError) []conflictDTO {
	if conflict == nil {
		return nil
	}
	out := make([]conflictDTO, 0, len(conflict.Conflicts))
	for _, c := range conflict.Conflicts {
		out = append(out, conflictDTO{
			RoomID:         c.RoomID,
			Capacity:       c.Capacity,
			ProjectedSeats: c.ProjectedSeats,
			WithIDs:        c.WithBookingIDs,
		})
	}
	return out
}
