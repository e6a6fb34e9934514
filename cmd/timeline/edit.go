package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/example/exam-timeline/internal/application"
	"github.com/example/exam-timeline/internal/client"
	"github.com/example/exam-timeline/internal/logging"
	"github.com/example/exam-timeline/internal/timeline"
	"github.com/example/exam-timeline/internal/tui"
)

type editOptions struct {
	local        bool
	from         string
	to           string
	blockUnknown bool
	logFile      string
	operatorKey  string
}

func newEditCommand(c *cli) *cobra.Command {
	opts := &editOptions{}
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Open the timeline editor",
		Long: `Open the interactive timeline editor.

By default the editor talks to the API at api_base_url. With --local it
opens the SQLite database directly.

Keys:
  j/k      select the next or previous allocation
  h/l      move the selection 5 minutes earlier or later
  [ ]      move the start 15 minutes
  { }      move the end 15 minutes
  m        show room usage for the selection
  r        reload
  q        quit

Drag a segment with the mouse to move it, or drag its first or last cell to
resize it. Release over another room to reassign it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEdit(cmd.Context(), c, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.local, "local", false, "edit the SQLite database directly instead of using the API")
	cmd.Flags().StringVar(&opts.from, "from", "", "start of the visible range (default 08:00 today)")
	cmd.Flags().StringVar(&opts.to, "to", "", "end of the visible range (default 20:00 today)")
	cmd.Flags().BoolVar(&opts.blockUnknown, "block-unknown-room", false, "refuse to save into rooms missing from the room list")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file while the editor is open")
	cmd.Flags().StringVar(&opts.operatorKey, "operator-key", "", "operator key sent with updates (default from operator_key)")
	return cmd
}

func runEdit(ctx context.Context, c *cli, opts *editOptions) error {
	if err := requireTerminal(os.Stdout); err != nil {
		return err
	}

	// The editor owns the terminal, so logs go to a file or nowhere.
	logger := logging.Discard()
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logger = logging.New(c.cfg.LogFormat, c.cfg.LogLevel, f)
	}

	window, err := editRange(opts.from, opts.to, time.Now())
	if err != nil {
		return err
	}

	directory, updater, closer, err := editBackend(ctx, c, opts, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			logger.Error("failed to close backend", "error", cerr)
		}
	}()

	toasts := timeline.NewToastCenter()
	confirmer := tui.NewPromptConfirmer(nil)
	editor, err := timeline.NewEditor(timeline.Config{
		Directory:        directory,
		Updater:          updater,
		Confirmer:        confirmer,
		Notifier:         toasts,
		Logger:           logger,
		Policy:           c.cfg.SnapPolicy(),
		Range:            window,
		BlockUnknownRoom: opts.blockUnknown,
	})
	if err != nil {
		return err
	}
	return tui.Run(ctx, editor, toasts, confirmer, logger)
}

func requireTerminal(f *os.File) error {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return nil
	}
	return fmt.Errorf("edit needs an interactive terminal; %s is not one", f.Name())
}

func editRange(from, to string, now time.Time) (timeline.Range, error) {
	if from == "" && to == "" {
		return timeline.DefaultRange(now), nil
	}
	r, err := timeline.ParseRange(from, to, now.Location())
	if err != nil {
		return timeline.Range{}, fmt.Errorf("--from/--to: %w", err)
	}
	return r, nil
}

func editBackend(ctx context.Context, c *cli, opts *editOptions, logger *slog.Logger) (timeline.Directory, timeline.Updater, io.Closer, error) {
	if opts.local {
		svc, err := openServices(ctx, c.cfg, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return &localDirectory{rooms: svc.rooms, allocations: svc.allocations},
			&localUpdater{allocations: svc.allocations}, svc, nil
	}

	key := opts.operatorKey
	if key == "" && !application.IsOperatorKeyHash(c.cfg.OperatorKey) {
		key = c.cfg.OperatorKey
	}
	api, err := client.New(c.cfg.APIBaseURL, client.WithOperatorKey(key), client.WithLogger(logger))
	if err != nil {
		return nil, nil, nil, err
	}
	return api, api, io.NopCloser(nil), nil
}

type roomLister interface {
	ListRooms(ctx context.Context) ([]application.Room, error)
}

type allocationEditor interface {
	ListAllocations(ctx context.Context, params application.ListAllocationsParams) ([]application.Allocation, error)
	UpdateAllocation(ctx context.Context, params application.UpdateAllocationParams) (application.Allocation, error)
}

// localDirectory serves the editor straight from the application services.
type localDirectory struct {
	rooms       roomLister
	allocations allocationEditor
}

func (d *localDirectory) ListRooms(ctx context.Context) ([]timeline.Room, error) {
	rooms, err := d.rooms.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return application.TimelineRooms(rooms), nil
}

func (d *localDirectory) ListAllocations(ctx context.Context, window timeline.Range, roomID string) ([]timeline.Allocation, error) {
	allocations, err := d.allocations.ListAllocations(ctx, application.ListAllocationsParams{
		From:   window.From,
		To:     window.To,
		RoomID: roomID,
	})
	if err != nil {
		return nil, err
	}
	return application.TimelineAllocations(allocations), nil
}

// localUpdater reports service errors as the same rejections the API
// client produces.
type localUpdater struct {
	allocations allocationEditor
}

func (u *localUpdater) UpdateAllocation(ctx context.Context, id string, update timeline.AllocationUpdate) (timeline.Allocation, error) {
	saved, err := u.allocations.UpdateAllocation(ctx, application.UpdateParamsFromTimeline(id, update))
	if err != nil {
		return timeline.Allocation{}, toUpdateError(err)
	}
	return saved.TimelineAllocation(), nil
}

func toUpdateError(err error) error {
	var (
		conflict *application.CapacityConflictError
		vErr     *application.ValidationError
	)
	switch {
	case errors.As(err, &conflict):
		message := "収容人数を超えています。"
		if len(conflict.Conflicts) > 0 {
			first := conflict.Conflicts[0]
			message = fmt.Sprintf("試験室 %s の収容人数を超えています（%d / %d 席）。", first.RoomID, first.ProjectedSeats, first.Capacity)
		}
		return &timeline.UpdateError{Code: timeline.CodeCapacityConflict, Message: message, Status: http.StatusConflict}
	case errors.As(err, &vErr):
		return &timeline.UpdateError{
			Code:    timeline.CodeValidation,
			Message: firstFieldMessage(vErr.FieldErrors),
			Status:  http.StatusUnprocessableEntity,
			Fields:  vErr.FieldErrors,
		}
	case errors.Is(err, application.ErrNotFound):
		return &timeline.UpdateError{Code: timeline.CodeNotFound, Message: "指定された割当が見つかりません。", Status: http.StatusNotFound}
	}
	return err
}

// firstFieldMessage picks the message of the alphabetically first field so
// the notification is stable.
func firstFieldMessage(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return fields[keys[0]]
}
