package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Directory supplies the read-only room and allocation snapshots.
type Directory interface {
	ListRooms(ctx context.Context) ([]Room, error)
	// ListAllocations returns allocations overlapping window. An empty roomID
	// means every room.
	ListAllocations(ctx context.Context, window Range, roomID string) ([]Allocation, error)
}

// Updater persists an edit. Rejections should be reported as *UpdateError and
// transport failures as *NetworkError.
type Updater interface {
	UpdateAllocation(ctx context.Context, id string, update AllocationUpdate) (Allocation, error)
}

// Confirmer asks the operator whether to save despite a capacity overflow.
// It blocks until the operator answers.
type Confirmer interface {
	ConfirmOverbooking(ctx context.Context, estimate CapacityEstimate, warning string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, estimate CapacityEstimate, warning string) bool

// ConfirmOverbooking implements Confirmer.
func (f ConfirmFunc) ConfirmOverbooking(ctx context.Context, estimate CapacityEstimate, warning string) bool {
	return f(ctx, estimate, warning)
}

// Phase is the coarse editor state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseDragging:
		return "dragging"
	case PhaseCommitting:
		return "committing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Outcome is how a drop or nudge ended.
type Outcome int

const (
	// OutcomeCommitted means the update operation accepted the edit.
	OutcomeCommitted Outcome = iota + 1
	// OutcomeCancelled means nothing was submitted.
	OutcomeCancelled
	// OutcomeRejected means the update operation failed and the edit was reverted.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeRejected:
		return "rejected"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// CommitResult reports the end of one edit.
type CommitResult struct {
	Outcome    Outcome
	Allocation Allocation
	Estimate   *CapacityEstimate
	Err        error
}

// NudgeAction is one discrete adjustment offered for the selected segment.
type NudgeAction struct {
	Name    string
	Kind    EditKind
	Minutes int
}

// NudgeActions lists the nudges offered for a selected segment.
func NudgeActions() []NudgeAction {
	return []NudgeAction{
		{Name: "move-earlier", Kind: EditMove, Minutes: -5},
		{Name: "move-later", Kind: EditMove, Minutes: 5},
		{Name: "start-earlier", Kind: EditResizeStart, Minutes: -15},
		{Name: "start-later", Kind: EditResizeStart, Minutes: 15},
		{Name: "end-earlier", Kind: EditResizeEnd, Minutes: -15},
		{Name: "end-later", Kind: EditResizeEnd, Minutes: 15},
	}
}

// SegmentView is a segment as it should currently be drawn.
type SegmentView struct {
	Segment
	// Interval is what to draw: the live drag or in-flight proposal when
	// present, otherwise the allocation's own interval.
	Interval Interval
	Layout   SegmentLayout
	Selected bool
	Pending  bool
}

// Snapshot is a consistent copy of the editor state.
type Snapshot struct {
	Phase     Phase
	Range     Range
	Rooms     []Room
	Segments  []SegmentView
	Selection *Selection
	Drag      *DragMetadata
	Warning   string
	Pending   []string
}

// Config wires an Editor to its collaborators.
type Config struct {
	Directory Directory
	Updater   Updater
	// Confirmer may be nil, in which case overflowing edits are cancelled.
	Confirmer Confirmer
	Notifier  Notifier
	Logger    *slog.Logger
	Policy    SnapPolicy
	Range     Range
	// BlockUnknownRoom rejects commits whose target room is missing from the
	// room list instead of submitting them without a capacity check.
	BlockUnknownRoom bool
}

type dragState struct {
	meta    DragMetadata
	deltaX  float64
	preview Interval
}

// Editor coordinates drags, nudges, capacity checks, and commits for one
// timeline. It is safe for concurrent use; collaborator calls run without the
// editor lock held.
type Editor struct {
	mu sync.Mutex

	directory    Directory
	updater      Updater
	confirmer    Confirmer
	notifier     Notifier
	logger       *slog.Logger
	policy       SnapPolicy
	blockUnknown bool

	rng         Range
	width       float64
	rooms       []Room
	allocations []Allocation
	selection   *Selection
	drag        *dragState
	pending     map[string]struct{}
	proposed    map[string]Interval
	warning     string

	listeners map[int]func(Snapshot)
	nextSub   int
}

// NewEditor validates cfg and constructs an Editor. Call Refresh to load data.
func NewEditor(cfg Config) (*Editor, error) {
	if cfg.Directory == nil {
		return nil, errors.New("timeline: directory is required")
	}
	if cfg.Updater == nil {
		return nil, errors.New("timeline: updater is required")
	}
	if !cfg.Range.Valid() {
		return nil, ErrInvalidRange
	}
	confirmer := cfg.Confirmer
	if confirmer == nil {
		confirmer = ConfirmFunc(func(context.Context, CapacityEstimate, string) bool { return false })
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = discardNotifier{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Editor{
		directory:    cfg.Directory,
		updater:      cfg.Updater,
		confirmer:    confirmer,
		notifier:     notifier,
		logger:       logger.With(slog.String("component", "timeline_editor")),
		policy:       cfg.Policy.normalized(),
		blockUnknown: cfg.BlockUnknownRoom,
		rng:          cfg.Range,
		pending:      make(map[string]struct{}),
		proposed:     make(map[string]Interval),
		listeners:    make(map[int]func(Snapshot)),
	}, nil
}

type discardNotifier struct{}

func (discardNotifier) Notify(Toast) string { return "" }

// Refresh reloads rooms and allocations for the current range. A selection
// whose segment disappeared is cleared along with its warning.
func (e *Editor) Refresh(ctx context.Context) error {
	e.mu.Lock()
	window := e.rng
	e.mu.Unlock()

	rooms, err := e.directory.ListRooms(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list rooms", "error", err)
		return fmt.Errorf("list rooms: %w", err)
	}
	allocations, err := e.directory.ListAllocations(ctx, window, "")
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to list allocations", "error", err)
		return fmt.Errorf("list allocations: %w", err)
	}

	e.mu.Lock()
	e.rooms = append([]Room(nil), rooms...)
	e.allocations = make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		e.allocations = append(e.allocations, a.clone())
	}
	if e.selection != nil {
		if _, ok := e.findSegmentLocked(e.selection.AllocationID, e.selection.RoomID); !ok {
			e.selection = nil
			e.warning = ""
		}
	}
	e.mu.Unlock()

	e.publish()
	return nil
}

// SetRange replaces the visible window. It does not refetch.
func (e *Editor) SetRange(r Range) error {
	if !r.Valid() {
		return ErrInvalidRange
	}
	e.mu.Lock()
	e.rng = r
	e.mu.Unlock()
	e.publish()
	return nil
}

// ApplyRangeDraft parses an operator-entered range, applies it, and
// refetches. Invalid drafts are reported through the notifier.
func (e *Editor) ApplyRangeDraft(ctx context.Context, from, to string) error {
	e.mu.Lock()
	loc := e.rng.From.Location()
	e.mu.Unlock()

	r, err := ParseRange(from, to, loc)
	if err != nil {
		e.notifier.Notify(Toast{
			Title:       "表示期間が不正です",
			Description: "開始日時と終了日時を正しく入力してください。",
			Variant:     ToastDestructive,
		})
		return err
	}
	if err := e.SetRange(r); err != nil {
		return err
	}
	return e.Refresh(ctx)
}

// SetContainerWidth records the lane width used to map pixels to time.
func (e *Editor) SetContainerWidth(width float64) {
	e.mu.Lock()
	e.width = width
	e.mu.Unlock()
	e.publish()
}

// Select focuses a segment for keyboard nudges.
func (e *Editor) Select(allocationID, roomID string) error {
	e.mu.Lock()
	if _, ok := e.findSegmentLocked(allocationID, roomID); !ok {
		e.mu.Unlock()
		return ErrUnknownSegment
	}
	e.selection = &Selection{AllocationID: allocationID, RoomID: roomID}
	e.mu.Unlock()
	e.publish()
	return nil
}

// ClearSelection drops the focused segment and any capacity warning.
func (e *Editor) ClearSelection() {
	e.mu.Lock()
	e.selection = nil
	e.warning = ""
	e.mu.Unlock()
	e.publish()
}

// BeginDrag starts a gesture on a segment handle.
func (e *Editor) BeginDrag(kind EditKind, allocationID, roomID string) error {
	e.mu.Lock()
	if e.drag != nil {
		e.mu.Unlock()
		return ErrDragInProgress
	}
	if _, busy := e.pending[allocationID]; busy {
		e.mu.Unlock()
		return ErrCommitPending
	}
	seg, ok := e.findSegmentLocked(allocationID, roomID)
	if !ok {
		e.mu.Unlock()
		return ErrUnknownSegment
	}
	switch kind {
	case EditMove, EditResizeStart, EditResizeEnd:
	default:
		e.mu.Unlock()
		panic(fmt.Sprintf("timeline: unhandled edit kind %v", kind))
	}
	e.drag = &dragState{
		meta: DragMetadata{
			Kind:         kind,
			AllocationID: allocationID,
			SourceRoomID: roomID,
			Original:     seg.Allocation.Interval,
		},
		preview: seg.Allocation.Interval,
	}
	e.mu.Unlock()
	e.publish()
	return nil
}

// DragMove updates the accumulated horizontal offset of the active gesture.
// It only changes the live preview.
func (e *Editor) DragMove(deltaX float64) error {
	e.mu.Lock()
	if e.drag == nil {
		e.mu.Unlock()
		return ErrNoDrag
	}
	e.drag.deltaX = deltaX
	e.drag.preview = e.resolveDragLocked(e.drag)
	e.mu.Unlock()
	e.publish()
	return nil
}

// CancelDrag abandons the active gesture without submitting anything.
func (e *Editor) CancelDrag() error {
	e.mu.Lock()
	if e.drag == nil {
		e.mu.Unlock()
		return ErrNoDrag
	}
	e.drag = nil
	e.mu.Unlock()
	e.publish()
	return nil
}

// Drop ends the active gesture over targetRoomID, or over the source room
// when targetRoomID is empty, and commits the resolved interval. The
// returned error reports misuse only; update failures are in the result.
func (e *Editor) Drop(ctx context.Context, targetRoomID string) (CommitResult, error) {
	e.mu.Lock()
	if e.drag == nil {
		e.mu.Unlock()
		return CommitResult{}, ErrNoDrag
	}
	drag := e.drag
	e.drag = nil
	if targetRoomID == "" {
		targetRoomID = drag.meta.SourceRoomID
	}
	alloc, ok := e.findAllocationLocked(drag.meta.AllocationID)
	if !ok {
		e.mu.Unlock()
		e.publish()
		return CommitResult{Outcome: OutcomeCancelled}, nil
	}
	plan, ok := e.planLocked(alloc, drag.meta.SourceRoomID, targetRoomID, e.resolveDragLocked(drag))
	e.mu.Unlock()
	e.publish()

	if !ok {
		return CommitResult{Outcome: OutcomeCancelled, Allocation: alloc}, nil
	}
	return e.commit(ctx, plan), nil
}

// Nudge applies a discrete adjustment to the selected segment and commits it
// through the same confirmation path as a drop.
func (e *Editor) Nudge(ctx context.Context, kind EditKind, minutes int) (CommitResult, error) {
	e.mu.Lock()
	if e.selection == nil {
		e.mu.Unlock()
		return CommitResult{}, ErrNoSelection
	}
	sel := *e.selection
	if _, busy := e.pending[sel.AllocationID]; busy {
		e.mu.Unlock()
		return CommitResult{}, ErrCommitPending
	}
	if e.drag != nil && e.drag.meta.AllocationID == sel.AllocationID {
		e.mu.Unlock()
		return CommitResult{}, ErrDragInProgress
	}
	alloc, ok := e.findAllocationLocked(sel.AllocationID)
	if !ok {
		e.mu.Unlock()
		return CommitResult{}, ErrUnknownSegment
	}
	next := e.policy.Resolve(ResolveInput{
		Interval: alloc.Interval,
		Kind:     kind,
		Delta:    Minutes(minutes),
		Range:    e.rng,
	})
	plan, ok := e.planLocked(alloc, sel.RoomID, sel.RoomID, next)
	e.mu.Unlock()
	e.publish()

	if !ok {
		return CommitResult{Outcome: OutcomeCancelled, Allocation: alloc}, nil
	}
	return e.commit(ctx, plan), nil
}

type commitPlan struct {
	alloc        Allocation
	targetRoomID string
	roomIDs      []string
	next         Interval
	estimate     CapacityEstimate
	known        bool
}

// planLocked marks alloc as in flight with its proposed interval. It reports
// false when the edit changes nothing.
func (e *Editor) planLocked(alloc Allocation, sourceRoomID, targetRoomID string, next Interval) (commitPlan, bool) {
	roomIDs := reassignRooms(alloc.RoomIDs, sourceRoomID, targetRoomID)
	if next.Equal(alloc.Interval) && sameRooms(roomIDs, alloc.RoomIDs) {
		return commitPlan{}, false
	}
	e.pending[alloc.ID] = struct{}{}
	e.proposed[alloc.ID] = next
	estimate, known := EstimateCapacity(CapacityQuery{
		AllocationID:   alloc.ID,
		TargetRoomID:   targetRoomID,
		Interval:       next,
		SeatsRequested: alloc.SeatsRequested,
	}, e.rooms, e.segmentsLocked())
	return commitPlan{
		alloc:        alloc,
		targetRoomID: targetRoomID,
		roomIDs:      roomIDs,
		next:         next,
		estimate:     estimate,
		known:        known,
	}, true
}

func (e *Editor) commit(ctx context.Context, plan commitPlan) CommitResult {
	alloc, estimate, known := plan.alloc, plan.estimate, plan.known
	logger := e.logger.With(
		slog.String("allocation_id", alloc.ID),
		slog.String("target_room_id", plan.targetRoomID),
	)

	result := CommitResult{Allocation: alloc}
	if known {
		result.Estimate = &estimate
	}

	if !known && e.blockUnknown {
		e.settle(alloc.ID, nil)
		logger.WarnContext(ctx, "commit blocked: unknown room")
		e.notifyFailure(ErrUnknownRoom)
		result.Outcome = OutcomeRejected
		result.Err = ErrUnknownRoom
		return result
	}

	if known && estimate.Overflow {
		warning := capacityWarning(estimate)
		e.setWarning(warning)
		if !e.confirmer.ConfirmOverbooking(ctx, estimate, warning) {
			e.settle(alloc.ID, nil)
			logger.InfoContext(ctx, "commit cancelled by operator", "projected_seats", estimate.ProjectedSeats, "capacity", estimate.Capacity)
			result.Outcome = OutcomeCancelled
			return result
		}
	} else {
		e.setWarning("")
	}

	update := AllocationUpdate{
		RoomIDs:            plan.roomIDs,
		Interval:           plan.next,
		SeatsRequested:     alloc.SeatsRequested,
		Notes:              alloc.Notes,
		ConfirmOverbooking: known && estimate.Overflow,
	}
	if update.ConfirmOverbooking {
		update.ConfirmedRoomID = plan.targetRoomID
	}
	saved, err := e.updater.UpdateAllocation(ctx, alloc.ID, update)
	if err != nil {
		e.settle(alloc.ID, nil)
		logger.ErrorContext(ctx, "allocation update failed", "error", err)
		e.notifyFailure(err)
		result.Outcome = OutcomeRejected
		result.Err = err
		return result
	}

	e.settle(alloc.ID, &saved)
	logger.InfoContext(ctx, "allocation updated", "start", saved.Interval.Start, "end", saved.Interval.End)
	e.notifier.Notify(Toast{Title: "保存しました", Variant: ToastDefault})
	if err := e.Refresh(ctx); err != nil {
		logger.WarnContext(ctx, "refetch after commit failed", "error", err)
	}

	result.Outcome = OutcomeCommitted
	result.Allocation = saved
	return result
}

// settle clears the in-flight marker for id and, when saved is non-nil,
// replaces the local copy with the server's version.
func (e *Editor) settle(id string, saved *Allocation) {
	e.mu.Lock()
	delete(e.pending, id)
	delete(e.proposed, id)
	if saved != nil {
		for i := range e.allocations {
			if e.allocations[i].ID == id {
				e.allocations[i] = saved.clone()
				break
			}
		}
	}
	e.mu.Unlock()
	e.publish()
}

func (e *Editor) setWarning(warning string) {
	e.mu.Lock()
	e.warning = warning
	e.mu.Unlock()
	e.publish()
}

func (e *Editor) notifyFailure(err error) {
	content := ResolveErrorContent(err)
	if errors.Is(err, ErrUnknownRoom) {
		content = ErrorContent{
			Title:       "教室が見つかりません",
			Description: "移動先の教室が一覧に存在しないため保存できません。",
		}
	}
	e.notifier.Notify(Toast{
		Title:       content.Title,
		Description: content.Description,
		Variant:     ToastDestructive,
	})
}

func capacityWarning(estimate CapacityEstimate) string {
	return fmt.Sprintf("収容人数を超えています（%d / %d 席）。このまま保存しますか？", estimate.ProjectedSeats, estimate.Capacity)
}

// CapacityMeter measures the selected segment's room across the visible
// range. ok is false without a selection or when the room is unknown.
func (e *Editor) CapacityMeter(ctx context.Context) (meter CapacityMeter, ok bool, err error) {
	e.mu.Lock()
	if e.selection == nil {
		e.mu.Unlock()
		return CapacityMeter{}, false, nil
	}
	roomID := e.selection.RoomID
	window := e.rng
	var room Room
	found := false
	for _, r := range e.rooms {
		if r.ID == roomID {
			room, found = r, true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return CapacityMeter{}, false, nil
	}

	allocations, err := e.directory.ListAllocations(ctx, window, roomID)
	if err != nil {
		return CapacityMeter{}, false, fmt.Errorf("list room allocations: %w", err)
	}
	return MeasureCapacity(room, allocations, window), true, nil
}

// Segments returns the segments as currently drawn.
func (e *Editor) Segments() []SegmentView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewsLocked()
}

// Snapshot returns a copy of the full editor state.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change. fn
// runs on the goroutine that made the change. The returned function removes
// the subscription.
func (e *Editor) Subscribe(fn func(Snapshot)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.listeners[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

func (e *Editor) publish() {
	e.mu.Lock()
	if len(e.listeners) == 0 {
		e.mu.Unlock()
		return
	}
	snap := e.snapshotLocked()
	listeners := make([]func(Snapshot), 0, len(e.listeners))
	for _, fn := range e.listeners {
		listeners = append(listeners, fn)
	}
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (e *Editor) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:    e.phaseLocked(),
		Range:    e.rng,
		Rooms:    append([]Room(nil), e.rooms...),
		Segments: e.viewsLocked(),
		Warning:  e.warning,
	}
	if e.selection != nil {
		sel := *e.selection
		snap.Selection = &sel
	}
	if e.drag != nil {
		meta := e.drag.meta
		snap.Drag = &meta
	}
	for id := range e.pending {
		snap.Pending = append(snap.Pending, id)
	}
	return snap
}

func (e *Editor) phaseLocked() Phase {
	switch {
	case e.drag != nil:
		return PhaseDragging
	case len(e.pending) > 0:
		return PhaseCommitting
	default:
		return PhaseIdle
	}
}

func (e *Editor) viewsLocked() []SegmentView {
	segments := e.segmentsLocked()
	views := make([]SegmentView, 0, len(segments))
	for _, seg := range segments {
		iv := seg.Allocation.Interval
		if proposed, ok := e.proposed[seg.Allocation.ID]; ok {
			iv = proposed
		}
		if e.drag != nil && e.drag.meta.AllocationID == seg.Allocation.ID {
			iv = e.drag.preview
		}
		_, pending := e.pending[seg.Allocation.ID]
		views = append(views, SegmentView{
			Segment:  seg,
			Interval: iv,
			Layout:   LayoutSegment(iv, e.rng, e.width),
			Selected: e.selection != nil && e.selection.AllocationID == seg.Allocation.ID && e.selection.RoomID == seg.RoomID,
			Pending:  pending,
		})
	}
	return views
}

func (e *Editor) segmentsLocked() []Segment {
	return SegmentsOf(e.allocations)
}

func (e *Editor) findSegmentLocked(allocationID, roomID string) (Segment, bool) {
	for _, a := range e.allocations {
		if a.ID == allocationID && a.HasRoom(roomID) {
			return Segment{Allocation: a.clone(), RoomID: roomID}, true
		}
	}
	return Segment{}, false
}

func (e *Editor) findAllocationLocked(id string) (Allocation, bool) {
	for _, a := range e.allocations {
		if a.ID == id {
			return a.clone(), true
		}
	}
	return Allocation{}, false
}

func (e *Editor) resolveDragLocked(drag *dragState) Interval {
	return e.policy.Resolve(ResolveInput{
		Interval: drag.meta.Original,
		Kind:     drag.meta.Kind,
		Delta:    PixelsToDuration(drag.deltaX, e.width, e.rng),
		Range:    e.rng,
	})
}

func sameRooms(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
