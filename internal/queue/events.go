package queue

import (
	"context"
	"time"
)

// EventType names a committed change to a queue.
type EventType string

const (
	EventEntryAdded     EventType = "entry_added"
	EventEntryCalled    EventType = "entry_called"
	EventEntryCompleted EventType = "entry_completed"
	EventEntryCancelled EventType = "entry_cancelled"
	EventEntriesEvicted EventType = "entries_evicted"
	EventQueueClosed    EventType = "queue_closed"
	EventQueueToggled   EventType = "queue_toggled"
)

// Event is emitted after a change has been committed.
type Event struct {
	Type       EventType `json:"event_type"`
	QueueID    string    `json:"queue_id"`
	EntryIDs   []string  `json:"entry_ids,omitempty"`
	Position   int       `json:"position,omitempty"`
	QueueSize  int       `json:"queue_size"`
	IsActive   bool      `json:"is_active"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier receives committed events. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	ObserveOperation(op string, err error)
	ObserveConflict(op string)
	ObserveEvicted(n int)
}

// StaffCounter reports how many staff are currently serving a queue.
type StaffCounter interface {
	ActiveStaff(ctx context.Context, queueID string) (int, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, error) {}
func (nopRecorder) ObserveConflict(string)         {}
func (nopRecorder) ObserveEvicted(int)             {}

// FixedStaff is a StaffCounter that always reports the same number.
type FixedStaff int

func (f FixedStaff) ActiveStaff(context.Context, string) (int, error) {
	return int(f), nil
}
