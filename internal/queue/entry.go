package queue

import (
	"fmt"
	"time"
)

// Entry is one customer's slot in a Queue. Entries are created by
// Queue.AddCustomerToQueue and only change through Queue operations.
type Entry struct {
	ID              string
	QueueID         string
	Seq             int
	CustomerID      *string
	CustomerName    string
	Position        int
	Status          Status
	Source          Source
	AssignedStaffID *string
	CancelReason    string
	JoinedAt        time.Time
	CalledAt        *time.Time
	CompletedAt     *time.Time
	ExitedAt        *time.Time

	// set by transitions, cleared by Queue.Committed
	changed bool
}

func (e *Entry) IsActive() bool {
	return e.Status.IsActive()
}

func (e *Entry) call(staffID string, now time.Time) error {
	if err := e.guard(actionCall); err != nil {
		return err
	}
	e.Status = StatusCalled
	e.AssignedStaffID = &staffID
	e.CalledAt = timePtr(now)
	e.changed = true
	return nil
}

func (e *Entry) complete(now time.Time) error {
	if err := e.guard(actionComplete); err != nil {
		return err
	}
	e.Status = StatusCompleted
	e.CompletedAt = timePtr(now)
	e.changed = true
	e.Position = 0
	return nil
}

func (e *Entry) cancel(reason string, now time.Time) error {
	if err := e.guard(actionCancel); err != nil {
		return err
	}
	e.Status = StatusCancelled
	e.CancelReason = reason
	e.changed = true
	e.ExitedAt = timePtr(now)
	e.Position = 0
	return nil
}

func (e *Entry) evict(now time.Time) error {
	if err := e.guard(actionEvict); err != nil {
		return err
	}
	e.Status = StatusStale
	e.changed = true
	e.ExitedAt = timePtr(now)
	e.Position = 0
	return nil
}

func (e *Entry) guard(a action) error {
	if !canTransition(a, e.Status) {
		return fmt.Errorf("%w: cannot %s entry %s in status %s", ErrInvalidTransition, a, e.ID, e.Status)
	}
	return nil
}

// clone returns a deep copy of the entry.
func (e *Entry) clone() *Entry {
	c := *e
	c.CustomerID = stringPtrCopy(e.CustomerID)
	c.AssignedStaffID = stringPtrCopy(e.AssignedStaffID)
	c.CalledAt = timePtrCopy(e.CalledAt)
	c.CompletedAt = timePtrCopy(e.CompletedAt)
	c.ExitedAt = timePtrCopy(e.ExitedAt)
	return &c
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func timePtrCopy(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func stringPtrCopy(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
