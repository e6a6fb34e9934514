package timeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommitPending is returned when an edit targets an allocation whose
	// previous update has not completed.
	ErrCommitPending = errors.New("timeline: commit pending for allocation")
	// ErrNoSelection is returned by Nudge when no segment is selected.
	ErrNoSelection = errors.New("timeline: no segment selected")
	// ErrUnknownSegment is returned when an (allocation, room) pair is not on
	// the timeline.
	ErrUnknownSegment = errors.New("timeline: unknown segment")
	// ErrDragInProgress is returned by BeginDrag while another gesture is active.
	ErrDragInProgress = errors.New("timeline: drag already in progress")
	// ErrNoDrag is returned by DragMove, Drop, and CancelDrag without an active gesture.
	ErrNoDrag = errors.New("timeline: no drag in progress")
	// ErrInvalidRange is returned for empty, unparsable, or inverted range drafts.
	ErrInvalidRange = errors.New("timeline: invalid range")
	// ErrUnknownRoom is reported when a commit targets a room missing from
	// the room list and unknown rooms are configured to block.
	ErrUnknownRoom = errors.New("timeline: unknown room")
)

// Error codes understood by ResolveErrorContent.
const (
	CodeCapacityConflict = "capacity_conflict"
	CodeValidation       = "validation_error"
	CodeNotFound         = "not_found"
)

// UpdateError is a rejection returned by the update collaborator.
type UpdateError struct {
	Code    string
	Message string
	Status  int
	Fields  map[string]string
}

func (e *UpdateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code == "" {
		return fmt.Sprintf("timeline: update rejected (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("timeline: update rejected [%s]: %s", e.Code, e.Message)
}

// NetworkError wraps transport failures so they can be told apart from
// server rejections.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "timeline: network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrorContent is the title and description of a failure notification.
type ErrorContent struct {
	Title       string
	Description string
}

var (
	networkContent = ErrorContent{
		Title:       "通信エラー",
		Description: "サーバーに接続できませんでした。ネットワーク接続を確認してください。",
	}
	unknownContent = ErrorContent{
		Title:       "保存に失敗しました",
		Description: "予期しないエラーが発生しました。時間をおいて再度お試しください。",
	}
	codeContent = map[string]ErrorContent{
		CodeCapacityConflict: {
			Title:       "収容人数を超えています",
			Description: "選択した教室の座席数が不足しています。",
		},
		CodeValidation: {
			Title:       "入力内容に誤りがあります",
			Description: "割り当て内容を確認してください。",
		},
		CodeNotFound: {
			Title:       "割り当てが見つかりません",
			Description: "対象の割り当ては既に削除された可能性があります。",
		},
	}
)

// ResolveErrorContent converts a commit failure into notification text.
// Known codes take their title from the catalogue; the server message, when
// present, replaces the catalogue description.
func ResolveErrorContent(err error) ErrorContent {
	if err == nil {
		return unknownContent
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return networkContent
	}

	var updErr *UpdateError
	if !errors.As(err, &updErr) {
		return unknownContent
	}

	detail := strings.TrimSpace(updErr.Message)
	if content, ok := codeContent[updErr.Code]; ok {
		if detail != "" {
			content.Description = detail
		}
		return content
	}
	if detail != "" {
		return ErrorContent{Title: unknownContent.Title, Description: detail}
	}
	return unknownContent
}
