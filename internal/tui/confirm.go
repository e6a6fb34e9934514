package tui

import (
	"context"
	"sync"

	"github.com/example/exam-timeline/internal/timeline"
)

// ConfirmRequest is an overbooking question waiting for the operator.
type ConfirmRequest struct {
	Estimate timeline.CapacityEstimate
	Warning  string

	once  sync.Once
	reply chan bool
}

// Answer delivers the operator's decision. Only the first answer counts.
func (r *ConfirmRequest) Answer(ok bool) {
	r.once.Do(func() { r.reply <- ok })
}

// PromptConfirmer implements timeline.Confirmer by handing each question to
// the UI and blocking the committing goroutine until it is answered.
type PromptConfirmer struct {
	mu     sync.Mutex
	notify func(*ConfirmRequest)
}

// NewPromptConfirmer returns a confirmer that passes requests to notify.
// notify must not block.
func NewPromptConfirmer(notify func(*ConfirmRequest)) *PromptConfirmer {
	return &PromptConfirmer{notify: notify}
}

// SetNotify replaces the request sink. Run uses it to connect the confirmer
// to a program created after the editor.
func (c *PromptConfirmer) SetNotify(notify func(*ConfirmRequest)) {
	c.mu.Lock()
	c.notify = notify
	c.mu.Unlock()
}

// ConfirmOverbooking implements timeline.Confirmer. A cancelled context or a
// missing sink counts as a refusal.
func (c *PromptConfirmer) ConfirmOverbooking(ctx context.Context, estimate timeline.CapacityEstimate, warning string) bool {
	c.mu.Lock()
	notify := c.notify
	c.mu.Unlock()
	if notify == nil {
		return false
	}

	req := &ConfirmRequest{Estimate: estimate, Warning: warning, reply: make(chan bool, 1)}
	notify(req)
	select {
	case ok := <-req.reply:
		return ok
	case <-ctx.Done():
		return false
	}
}
