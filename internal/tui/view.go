package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/example/exam-timeline/internal/timeline"
)

// span converts a layout to a start column and a width within a lane of
// lane cells. Segments never render narrower than one cell. MinWidthPixels
// is ignored: a cell is far wider than a pixel.
func span(layout timeline.SegmentLayout, lane int) (start, width int) {
	start = int(math.Round(layout.LeftPercent / 100 * float64(lane)))
	width = int(math.Round(layout.WidthPercent / 100 * float64(lane)))
	if width < 1 {
		width = 1
	}
	if start < 0 {
		width += start
		start = 0
	}
	if start+width > lane {
		width = lane - start
	}
	if width < 0 {
		width = 0
	}
	return start, width
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	lane := m.laneWidth()
	snap := m.snapshot

	title := fmt.Sprintf("試験室割当  %s - %s",
		snap.Range.From.Format("2006-01-02 15:04"), snap.Range.To.Format("2006-01-02 15:04"))
	b.WriteString(m.styles.title.Render(title))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(" ", labelWidth))
	b.WriteString(m.styles.tick.Render(m.tickRow(lane)))
	b.WriteByte('\n')

	for _, room := range snap.Rooms {
		b.WriteString(m.styles.roomLabel.Render(fit(fmt.Sprintf("%s (%d)", room.Name, room.Capacity), labelWidth)))
		b.WriteString(m.laneRow(room.ID, lane))
		b.WriteByte('\n')
	}
	if len(snap.Rooms) == 0 {
		b.WriteString(m.styles.help.Render("試験室がありません"))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if detail := m.selectionLine(); detail != "" {
		b.WriteString(detail)
		b.WriteByte('\n')
	}
	if m.meter != nil {
		b.WriteString(fmt.Sprintf("使用状況: 最大 %d / %d 席 (%.0f%%)", m.meter.Peak, m.meter.Capacity, m.meter.Percent))
		b.WriteByte('\n')
	}
	if snap.Warning != "" {
		b.WriteString(m.styles.warning.Render(snap.Warning))
		b.WriteByte('\n')
	}
	if m.confirm != nil {
		b.WriteString(m.styles.prompt.Render(m.confirm.Warning + " [y/n]"))
		b.WriteByte('\n')
	}
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteByte('\n')
	}
	for _, t := range m.notes {
		style := m.styles.toast
		if t.Variant == timeline.ToastDestructive {
			style = m.styles.destructive
		}
		body := t.Title
		if t.Description != "" {
			body += "\n" + t.Description
		}
		b.WriteString(style.Render(body))
		b.WriteByte('\n')
	}
	if m.confirm != nil {
		b.WriteString(m.help.View(promptKeys{}))
	} else {
		b.WriteString(m.help.View(keys))
	}
	return b.String()
}

func (m Model) tickRow(lane int) string {
	row := []rune(strings.Repeat(" ", lane))
	total := m.snapshot.Range.Duration()
	if total <= 0 {
		return string(row)
	}
	for _, tick := range timeline.HourTicks(m.snapshot.Range) {
		col := int(float64(tick.Sub(m.snapshot.Range.From)) / float64(total) * float64(lane))
		label := []rune(tick.Format("15"))
		if col+len(label) > lane {
			continue
		}
		copy(row[col:], label)
	}
	return string(row)
}

func (m Model) laneRow(roomID string, lane int) string {
	type cell struct {
		text  string
		style *lipgloss.Style
	}
	cells := make([]cell, lane)
	for i := range cells {
		cells[i] = cell{text: "·", style: &m.styles.lane}
	}

	dragging := ""
	if m.snapshot.Drag != nil {
		dragging = m.snapshot.Drag.AllocationID
	}
	for _, seg := range m.snapshot.Segments {
		if seg.RoomID != roomID {
			continue
		}
		style := &m.styles.segment
		switch {
		case seg.Pending:
			style = &m.styles.pending
		case seg.Allocation.ID == dragging:
			style = &m.styles.dragging
		case seg.Selected:
			style = &m.styles.selected
		}
		start, width := span(seg.Layout, lane)
		if width <= 0 {
			continue
		}
		for i, text := range labelCells(seg.Allocation.ExamTitle, width) {
			cells[start+i] = cell{text: text, style: style}
		}
	}

	var b strings.Builder
	for i := 0; i < len(cells); {
		j := i
		var run strings.Builder
		for j < len(cells) && cells[j].style == cells[i].style {
			run.WriteString(cells[j].text)
			j++
		}
		b.WriteString(cells[i].style.Render(run.String()))
		i = j
	}
	return b.String()
}

func (m Model) selectionLine() string {
	sel := m.snapshot.Selection
	if sel == nil {
		return ""
	}
	for _, seg := range m.snapshot.Segments {
		if seg.Allocation.ID == sel.AllocationID && seg.RoomID == sel.RoomID {
			return fmt.Sprintf("%s  %s - %s  %d 席",
				seg.Allocation.ExamTitle,
				seg.Interval.Start.Format("15:04"),
				seg.Interval.End.Format("15:04"),
				seg.Allocation.SeatsRequested)
		}
	}
	return ""
}

// fit pads or truncates s to exactly n terminal columns.
func fit(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, n, "…"), n)
}

// labelCells lays s out over n columns, one entry per column. A wide rune
// takes its column and leaves the next one empty.
func labelCells(s string, n int) []string {
	cells := make([]string, n)
	col := 0
	for _, r := range []rune(fit(s, n)) {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > n {
			break
		}
		cells[col] = string(r)
		col += w
	}
	for ; col < n; col++ {
		cells[col] = " "
	}
	return cells
}
