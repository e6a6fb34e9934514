package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultToastLimit is the number of notifications kept at once.
	DefaultToastLimit = 3
	// DefaultToastTTL is how long a notification stays before it is dismissed.
	DefaultToastTTL = 6 * time.Second
)

// ToastVariant distinguishes ordinary notifications from failures.
type ToastVariant string

const (
	ToastDefault     ToastVariant = "default"
	ToastDestructive ToastVariant = "destructive"
)

// Toast is a transient notification.
type Toast struct {
	ID          string
	Title       string
	Description string
	Variant     ToastVariant
	CreatedAt   time.Time
}

// Notifier receives notifications from the editor.
type Notifier interface {
	Notify(t Toast) string
}

type stopper interface {
	Stop() bool
}

// ToastCenter is an in-memory Notifier that keeps the newest toasts and
// dismisses them after a delay.
type ToastCenter struct {
	mu        sync.Mutex
	limit     int
	ttl       time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
	newID     func() string

	toasts    []Toast
	timers    map[string]stopper
	listeners map[int]func([]Toast)
	nextSub   int
}

// ToastOption customises a ToastCenter.
type ToastOption func(*ToastCenter)

// WithToastLimit overrides DefaultToastLimit.
func WithToastLimit(n int) ToastOption {
	return func(c *ToastCenter) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithToastTTL overrides DefaultToastTTL. Zero disables auto-dismissal.
func WithToastTTL(d time.Duration) ToastOption {
	return func(c *ToastCenter) {
		c.ttl = d
	}
}

// WithToastClock injects the time source and timer factory.
func WithToastClock(now func() time.Time, afterFunc func(time.Duration, func()) interface{ Stop() bool }) ToastOption {
	return func(c *ToastCenter) {
		if now != nil {
			c.now = now
		}
		if afterFunc != nil {
			c.afterFunc = func(d time.Duration, f func()) stopper { return afterFunc(d, f) }
		}
	}
}

// NewToastCenter constructs a ToastCenter with default limits.
func NewToastCenter(opts ...ToastOption) *ToastCenter {
	c := &ToastCenter{
		limit: DefaultToastLimit,
		ttl:   DefaultToastTTL,
		now:   time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		newID:     uuid.NewString,
		timers:    make(map[string]stopper),
		listeners: make(map[int]func([]Toast)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify records t, evicting the oldest toast once the limit is reached, and
// returns its identifier.
func (c *ToastCenter) Notify(t Toast) string {
	c.mu.Lock()
	if t.ID == "" {
		t.ID = c.newID()
	}
	if t.Variant == "" {
		t.Variant = ToastDefault
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = c.now()
	}

	c.toasts = append([]Toast{t}, c.toasts...)
	for len(c.toasts) > c.limit {
		evicted := c.toasts[len(c.toasts)-1]
		c.toasts = c.toasts[:len(c.toasts)-1]
		c.stopTimerLocked(evicted.ID)
	}

	if c.ttl > 0 {
		id := t.ID
		c.timers[id] = c.afterFunc(c.ttl, func() { c.Dismiss(id) })
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	publish(listeners, snapshot)
	return t.ID
}

// Dismiss removes the toast with id. Unknown ids are ignored.
func (c *ToastCenter) Dismiss(id string) {
	c.mu.Lock()
	idx := -1
	for i, t := range c.toasts {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return
	}
	c.toasts = append(c.toasts[:idx], c.toasts[idx+1:]...)
	c.stopTimerLocked(id)
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()

	publish(listeners, snapshot)
}

// Toasts returns the current toasts, newest first.
func (c *ToastCenter) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Toast(nil), c.toasts...)
}

// Subscribe registers fn to receive the toast list after every change. The
// returned function removes the subscription.
func (c *ToastCenter) Subscribe(fn func([]Toast)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *ToastCenter) stopTimerLocked(id string) {
	if timer, ok := c.timers[id]; ok {
		timer.Stop()
		delete(c.timers, id)
	}
}

func (c *ToastCenter) snapshotLocked() ([]Toast, []func([]Toast)) {
	snapshot := append([]Toast(nil), c.toasts...)
	listeners := make([]func([]Toast), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return snapshot, listeners
}

func publish(listeners []func([]Toast), toasts []Toast) {
	for _, fn := range listeners {
		fn(toasts)
	}
}
