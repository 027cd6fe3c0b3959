package ui

import (
	"sync"
	"time"

	"statwizard/domain/core"
	"statwizard/internal/wizard"
)

// ToastLevel maps to the toast colour.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastWarning ToastLevel = "warning"
	ToastInfo    ToastLevel = "info"
)

// Toast is one transient notification.
type Toast struct {
	Level   ToastLevel
	Title   string
	Message string
	At      time.Time
}

// ToastQueue keeps the undelivered toasts of every browser session. Each
// session holds at most limit toasts; older ones are dropped first.
type ToastQueue struct {
	limit int

	mu     sync.Mutex
	queues map[core.SessionID][]Toast
}

// NewToastQueue creates a queue holding up to limit toasts per session.
func NewToastQueue(limit int) *ToastQueue {
	if limit <= 0 {
		limit = 5
	}
	return &ToastQueue{limit: limit, queues: make(map[core.SessionID][]Toast)}
}

// Push appends a toast for a session.
func (q *ToastQueue) Push(id core.SessionID, t Toast) {
	if t.At.IsZero() {
		t.At = time.Now()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	list := append(q.queues[id], t)
	if len(list) > q.limit {
		list = list[len(list)-q.limit:]
	}
	q.queues[id] = list
}

// Drain returns and removes the pending toasts of a session.
func (q *ToastQueue) Drain(id core.SessionID) []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.queues[id]
	delete(q.queues, id)
	return list
}

// Observer returns a wizard observer that turns run outcomes into toasts.
func (q *ToastQueue) Observer(id core.SessionID, title string) wizard.Observer {
	return wizard.ObserverFunc(func(e wizard.Event) {
		t, ok := toastFor(e, title)
		if ok {
			q.Push(id, t)
		}
	})
}

func toastFor(e wizard.Event, title string) (Toast, bool) {
	t := Toast{Title: title, At: e.At}
	switch e.Kind {
	case wizard.EventRunSucceeded:
		t.Level = ToastSuccess
		t.Message = "Analysis complete in " + formatDuration(e.Duration) + "."
	case wizard.EventRunFailed:
		t.Level = ToastError
		t.Message = e.Message
	case wizard.EventRunBlocked:
		t.Level = ToastWarning
		t.Message = "Resolve the critical checks before running: " + e.Message
	case wizard.EventRunDiscarded:
		t.Level = ToastInfo
		t.Message = "The inputs changed while the analysis ran, so its result was dropped."
	default:
		return Toast{}, false
	}
	return t, true
}
