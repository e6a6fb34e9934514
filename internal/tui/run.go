package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/example/exam-timeline/internal/timeline"
)

// Run loads the editor and blocks until the operator quits. confirmer must
// be the Confirmer the editor was built with.
func Run(ctx context.Context, editor *timeline.Editor, toasts *timeline.ToastCenter, confirmer *PromptConfirmer, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewModel(ctx, editor, toasts, logger),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Listeners run on whichever goroutine changed the state, including the
	// program's own update loop, and Send blocks until that loop reads the
	// message. Every send is therefore handed off.
	unsubscribe := editor.Subscribe(func(timeline.Snapshot) { go program.Send(snapshotMsg{}) })
	defer unsubscribe()
	if toasts != nil {
		stop := toasts.Subscribe(func([]timeline.Toast) { go program.Send(toastsMsg{}) })
		defer stop()
	}
	if confirmer != nil {
		confirmer.SetNotify(func(req *ConfirmRequest) { go program.Send(confirmMsg{req: req}) })
		defer confirmer.SetNotify(nil)
	}

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run timeline ui: %w", err)
	}
	return nil
}
