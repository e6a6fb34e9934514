// Package tui hosts the timeline editor in a terminal: one lane per room,
// keyboard nudges for the selected segment and mouse drags for moves and
// resizes.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/example/exam-timeline/internal/timeline"
)

const (
	labelWidth = 14
	// laneTop is the screen row of the first room lane.
	laneTop = 2
)

// snapshotMsg and toastsMsg only signal a change. Handing the state itself
// across goroutines could deliver an older copy after a newer one.
type snapshotMsg struct{}

type toastsMsg struct{}

type confirmMsg struct{ req *ConfirmRequest }

type commitDoneMsg struct {
	result timeline.CommitResult
	err    error
}

type refreshDoneMsg struct{ err error }

type meterMsg struct {
	meter timeline.CapacityMeter
	ok    bool
	err   error
}

type mouseDrag struct {
	originX int
	kind    timeline.EditKind
}

// Model is the bubbletea model around a timeline.Editor.
type Model struct {
	ctx    context.Context
	editor *timeline.Editor
	toasts *timeline.ToastCenter
	logger *slog.Logger

	snapshot timeline.Snapshot
	notes    []timeline.Toast
	meter    *timeline.CapacityMeter
	confirm  *ConfirmRequest
	drag     *mouseDrag
	status   string

	width  int
	height int
	styles styles
	help   help.Model
}

// NewModel builds a model over editor. toasts may be nil.
func NewModel(ctx context.Context, editor *timeline.Editor, toasts *timeline.ToastCenter, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	m := Model{
		ctx:      ctx,
		editor:   editor,
		toasts:   toasts,
		logger:   logger.With(slog.String("component", "tui")),
		snapshot: editor.Snapshot(),
		styles:   defaultStyles(),
		help:     newHelp(),
	}
	if toasts != nil {
		m.notes = toasts.Toasts()
	}
	return m
}

// Init loads the first snapshot.
func (m Model) Init() tea.Cmd {
	return m.refresh()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.editor.SetContainerWidth(float64(m.laneWidth()))
		return m, nil

	case snapshotMsg:
		m.snapshot = m.editor.Snapshot()
		return m, nil

	case toastsMsg:
		if m.toasts != nil {
			m.notes = m.toasts.Toasts()
		}
		return m, nil

	case confirmMsg:
		m.confirm = msg.req
		return m, nil

	case refreshDoneMsg:
		m.snapshot = m.editor.Snapshot()
		if msg.err != nil {
			m.status = "再読み込みに失敗しました: " + msg.err.Error()
		}
		return m, nil

	case commitDoneMsg:
		m.snapshot = m.editor.Snapshot()
		m.status = commitStatus(msg.result, msg.err)
		m.meter = nil
		return m, nil

	case meterMsg:
		switch {
		case msg.err != nil:
			m.status = "使用状況を取得できませんでした: " + msg.err.Error()
		case !msg.ok:
			m.status = "試験室を選択してください"
		default:
			meter := msg.meter
			m.meter = &meter
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm != nil {
		switch {
		case msg.String() == "ctrl+c":
			m.confirm.Answer(false)
			return m, tea.Quit
		case key.Matches(msg, keys.Accept):
			m.confirm.Answer(true)
			m.confirm = nil
		case key.Matches(msg, keys.Decline):
			m.confirm.Answer(false)
			m.confirm = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Down):
		m.moveCursor(1)
	case key.Matches(msg, keys.Up):
		m.moveCursor(-1)
	case key.Matches(msg, keys.Earlier):
		return m, m.nudge(timeline.EditMove, -1)
	case key.Matches(msg, keys.Later):
		return m, m.nudge(timeline.EditMove, 1)
	case key.Matches(msg, keys.StartEarly):
		return m, m.nudge(timeline.EditResizeStart, -1)
	case key.Matches(msg, keys.StartLate):
		return m, m.nudge(timeline.EditResizeStart, 1)
	case key.Matches(msg, keys.EndEarly):
		return m, m.nudge(timeline.EditResizeEnd, -1)
	case key.Matches(msg, keys.EndLate):
		return m, m.nudge(timeline.EditResizeEnd, 1)
	case key.Matches(msg, keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, keys.Meter):
		return m, m.measure()
	case key.Matches(msg, keys.Cancel):
		if m.drag != nil {
			_ = m.editor.CancelDrag()
			m.drag = nil
		} else {
			m.editor.ClearSelection()
		}
		m.meter = nil
		m.status = ""
		m.snapshot = m.editor.Snapshot()
	case key.Matches(msg, keys.DismissNote):
		if len(m.notes) > 0 && m.toasts != nil {
			m.toasts.Dismiss(m.notes[0].ID)
		}
	}
	return m, nil
}

// nudge looks up the step for kind in the offered actions so the keys follow
// the configured nudge list.
func (m Model) nudge(kind timeline.EditKind, sign int) tea.Cmd {
	if m.snapshot.Selection == nil {
		return nil
	}
	minutes := 0
	for _, action := range timeline.NudgeActions() {
		if action.Kind == kind && action.Minutes*sign > 0 {
			minutes = action.Minutes
			break
		}
	}
	if minutes == 0 {
		return nil
	}
	editor, ctx := m.editor, m.ctx
	return func() tea.Msg {
		result, err := editor.Nudge(ctx, kind, minutes)
		return commitDoneMsg{result: result, err: err}
	}
}

func (m Model) refresh() tea.Cmd {
	editor, ctx := m.editor, m.ctx
	return func() tea.Msg {
		return refreshDoneMsg{err: editor.Refresh(ctx)}
	}
}

func (m Model) measure() tea.Cmd {
	editor, ctx := m.editor, m.ctx
	return func() tea.Msg {
		meter, ok, err := editor.CapacityMeter(ctx)
		return meterMsg{meter: meter, ok: ok, err: err}
	}
}

// ordered returns the segments sorted by room order, then start.
func (m Model) ordered() []timeline.SegmentView {
	rank := make(map[string]int, len(m.snapshot.Rooms))
	for i, r := range m.snapshot.Rooms {
		rank[r.ID] = i
	}
	out := append([]timeline.SegmentView(nil), m.snapshot.Segments...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank[out[i].RoomID], rank[out[j].RoomID]
		if ri != rj {
			return ri < rj
		}
		return out[i].Allocation.Interval.Start.Before(out[j].Allocation.Interval.Start)
	})
	return out
}

func (m *Model) moveCursor(step int) {
	segments := m.ordered()
	if len(segments) == 0 {
		return
	}
	current := -1
	if sel := m.snapshot.Selection; sel != nil {
		for i, s := range segments {
			if s.Allocation.ID == sel.AllocationID && s.RoomID == sel.RoomID {
				current = i
				break
			}
		}
	}
	next := 0
	if current >= 0 {
		next = (current + step + len(segments)) % len(segments)
	} else if step < 0 {
		next = len(segments) - 1
	}
	target := segments[next]
	if err := m.editor.Select(target.Allocation.ID, target.RoomID); err != nil {
		m.logger.Debug("select failed", "allocation_id", target.Allocation.ID, "error", err)
		return
	}
	m.meter = nil
	m.snapshot = m.editor.Snapshot()
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft || m.drag != nil {
			return m, nil
		}
		seg, kind, ok := m.hit(msg.X, msg.Y)
		if !ok {
			return m, nil
		}
		if err := m.editor.BeginDrag(kind, seg.Allocation.ID, seg.RoomID); err != nil {
			m.status = dragStatus(err)
			return m, nil
		}
		_ = m.editor.Select(seg.Allocation.ID, seg.RoomID)
		m.drag = &mouseDrag{originX: msg.X, kind: kind}
		m.snapshot = m.editor.Snapshot()

	case tea.MouseActionMotion:
		if m.drag == nil {
			return m, nil
		}
		if err := m.editor.DragMove(float64(msg.X - m.drag.originX)); err != nil {
			m.drag = nil
			return m, nil
		}
		m.snapshot = m.editor.Snapshot()

	case tea.MouseActionRelease:
		if m.drag == nil {
			return m, nil
		}
		m.drag = nil
		target := ""
		if room, ok := m.roomAt(msg.Y); ok {
			target = room.ID
		}
		editor, ctx := m.editor, m.ctx
		return m, func() tea.Msg {
			result, err := editor.Drop(ctx, target)
			return commitDoneMsg{result: result, err: err}
		}
	}
	return m, nil
}

func (m Model) roomAt(y int) (timeline.Room, bool) {
	idx := y - laneTop
	if idx < 0 || idx >= len(m.snapshot.Rooms) {
		return timeline.Room{}, false
	}
	return m.snapshot.Rooms[idx], true
}

// hit finds the segment under a screen cell. The outer cells of a segment
// three or more cells wide are its resize handles.
func (m Model) hit(x, y int) (timeline.SegmentView, timeline.EditKind, bool) {
	room, ok := m.roomAt(y)
	if !ok {
		return timeline.SegmentView{}, 0, false
	}
	col := x - labelWidth
	lane := m.laneWidth()
	if col < 0 || col >= lane {
		return timeline.SegmentView{}, 0, false
	}
	segments := m.snapshot.Segments
	// Later segments are drawn on top, so search from the end.
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg.RoomID != room.ID {
			continue
		}
		start, width := span(seg.Layout, lane)
		if col < start || col >= start+width {
			continue
		}
		kind := timeline.EditMove
		if width >= 3 {
			switch col {
			case start:
				kind = timeline.EditResizeStart
			case start + width - 1:
				kind = timeline.EditResizeEnd
			}
		}
		return seg, kind, true
	}
	return timeline.SegmentView{}, 0, false
}

func (m Model) laneWidth() int {
	w := m.width - labelWidth
	if w < 10 {
		return 10
	}
	return w
}

func commitStatus(result timeline.CommitResult, err error) string {
	if err != nil {
		return dragStatus(err)
	}
	switch result.Outcome {
	case timeline.OutcomeCommitted:
		return "保存しました: " + result.Allocation.ExamTitle
	case timeline.OutcomeCancelled:
		return "変更は保存されませんでした"
	case timeline.OutcomeRejected:
		return "保存に失敗しました"
	}
	return ""
}

func dragStatus(err error) string {
	switch {
	case errors.Is(err, timeline.ErrCommitPending):
		return "保存処理中です"
	case errors.Is(err, timeline.ErrNoSelection):
		return "試験を選択してください"
	case errors.Is(err, timeline.ErrDragInProgress):
		return "ドラッグ操作中です"
	default:
		return err.Error()
	}
}

func newHelp() help.Model {
	h := help.New()
	h.Styles.ShortDesc = defaultStyles().help
	return h
}
