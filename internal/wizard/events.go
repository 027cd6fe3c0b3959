package wizard

import (
	"time"

	"statwizard/domain/core"
)

// EventKind names a controller notification.
type EventKind string

const (
	EventStepChanged   EventKind = "step_changed"
	EventRunStarted    EventKind = "run_started"
	EventRunSucceeded  EventKind = "run_succeeded"
	EventRunFailed     EventKind = "run_failed"
	EventRunBlocked    EventKind = "run_blocked"
	EventRunDiscarded  EventKind = "run_discarded"
	EventReset         EventKind = "reset"
	EventResultCleared EventKind = "result_cleared"
)

// Event is what observers receive after a state change has been applied.
type Event struct {
	Kind      EventKind
	Label     string
	DatasetID core.DatasetID
	Step      int
	Message   string
	Duration  time.Duration
	At        time.Time
}

// Observer is notified of controller events, outside the controller lock.
// Toasts, live updates and run history are observers.
type Observer interface {
	Notify(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Notify(e Event) { f(e) }
