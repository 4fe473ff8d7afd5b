package queue

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Cancellation reasons set by the engine itself.
const (
	ReasonLeft      = "left"
	ReasonDayClosed = "day_closed"
)

// MaxLateClientCapMinutes bounds LateClientCapTimeInMinutes to one year.
const MaxLateClientCapMinutes = 365 * 24 * 60

// Queue is the aggregate root for one location's waiting line. It owns its
// entries; all mutation goes through its methods, and each method either
// applies completely or leaves the queue untouched.
//
// Invariants after every operation:
//   - active (waiting/called) entries have unique positions 1..N
//   - N <= MaxSize
//   - at most one active entry per non-nil CustomerID
type Queue struct {
	ID                         string
	LocationID                 string
	Name                       string
	MaxSize                    int
	LateClientCapTimeInMinutes int
	IsActive                   bool
	Version                    int64
	CreatedAt                  time.Time
	Entries                    []*Entry
}

// NewQueueParams describes a queue to be created.
type NewQueueParams struct {
	ID                         string
	LocationID                 string
	Name                       string
	MaxSize                    int
	LateClientCapTimeInMinutes int
}

// New validates params and returns an enabled, empty queue.
func New(p NewQueueParams, now time.Time) (*Queue, error) {
	if strings.TrimSpace(p.LocationID) == "" {
		return nil, fmt.Errorf("%w: location id is required", ErrValidation)
	}
	if p.MaxSize <= 0 {
		return nil, fmt.Errorf("%w: max size must be positive, got %d", ErrValidation, p.MaxSize)
	}
	if p.LateClientCapTimeInMinutes < 0 || p.LateClientCapTimeInMinutes > MaxLateClientCapMinutes {
		return nil, fmt.Errorf("%w: late client cap must be between 0 and %d minutes, got %d",
			ErrValidation, MaxLateClientCapMinutes, p.LateClientCapTimeInMinutes)
	}
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: queue id %q is not a uuid", ErrValidation, p.ID)
	}
	return &Queue{
		ID:                         id,
		LocationID:                 p.LocationID,
		Name:                       strings.TrimSpace(p.Name),
		MaxSize:                    p.MaxSize,
		LateClientCapTimeInMinutes: p.LateClientCapTimeInMinutes,
		IsActive:                   true,
		CreatedAt:                  now,
	}, nil
}

// AdmitParams carries the customer data supplied by an admission channel.
type AdmitParams struct {
	CustomerID       *string
	CustomerName     string
	PreferredStaffID *string
	Source           Source
}

// AddCustomerToQueue appends a new waiting entry at the back of the queue.
func (q *Queue) AddCustomerToQueue(p AdmitParams, now time.Time) (*Entry, error) {
	name := strings.TrimSpace(p.CustomerName)
	if name == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	source := p.Source
	if source == "" {
		source = SourcePublic
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: unknown source %q", ErrValidation, source)
	}
	customerID := normalizeID(p.CustomerID)
	if !q.IsActive {
		return nil, fmt.Errorf("%w: queue %s", ErrQueueInactive, q.ID)
	}
	if customerID != nil {
		if existing := q.ActiveEntryFor(*customerID); existing != nil {
			return nil, fmt.Errorf("%w: customer %s holds entry %s", ErrDuplicateEntry, *customerID, existing.ID)
		}
	}
	active := q.ActiveCount()
	if active >= q.MaxSize {
		return nil, fmt.Errorf("%w: %d of %d places taken", ErrCapacityExceeded, active, q.MaxSize)
	}

	entry := &Entry{
		ID:              uuid.NewString(),
		QueueID:         q.ID,
		Seq:             len(q.Entries) + 1,
		CustomerID:      customerID,
		CustomerName:    name,
		Position:        active + 1,
		Status:          StatusWaiting,
		Source:          source,
		AssignedStaffID: normalizeID(p.PreferredStaffID),
		JoinedAt:        now,
		changed:         true,
	}
	q.Entries = append(q.Entries, entry)

	if err := q.CheckInvariants(); err != nil {
		q.Entries = q.Entries[:len(q.Entries)-1]
		return nil, err
	}
	return entry, nil
}

// CallNext moves the lowest-positioned waiting entry to called and assigns
// it to staffID.
func (q *Queue) CallNext(staffID string, now time.Time) (*Entry, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, fmt.Errorf("%w: staff id is required", ErrValidation)
	}
	var next *Entry
	for _, e := range q.Entries {
		if e.Status != StatusWaiting {
			continue
		}
		if next == nil || e.Position < next.Position {
			next = e
		}
	}
	if next == nil {
		return nil, ErrEmptyQueue
	}
	if err := next.call(staffID, now); err != nil {
		return nil, err
	}
	return next, nil
}

// CompleteEntry marks a called entry as served and closes the gap it leaves.
func (q *Queue) CompleteEntry(entryID string, now time.Time) (*Entry, error) {
	return q.remove(entryID, func(e *Entry) error { return e.complete(now) })
}

// CancelEntry cancels a waiting or called entry and closes the gap it leaves.
func (q *Queue) CancelEntry(entryID, reason string, now time.Time) (*Entry, error) {
	return q.remove(entryID, func(e *Entry) error { return e.cancel(strings.TrimSpace(reason), now) })
}

// remove applies transition and renumbers. If the result breaks an
// invariant the entry and all positions are restored.
func (q *Queue) remove(entryID string, transition func(*Entry) error) (*Entry, error) {
	e := q.Entry(entryID)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	before := *e
	positions := make([]int, len(q.Entries))
	for i, other := range q.Entries {
		positions[i] = other.Position
	}
	if err := transition(e); err != nil {
		return nil, err
	}
	q.renumber()
	if err := q.CheckInvariants(); err != nil {
		*e = before
		for i, other := range q.Entries {
			other.Position = positions[i]
		}
		return nil, err
	}
	return e, nil
}

// EvictStale marks as stale every waiting entry that joined more than
// LateClientCapTimeInMinutes before now. A cap of zero disables eviction,
// and so does a cap too large to express as a time.Duration.
// Called entries are never evicted. Returns the evicted entries.
func (q *Queue) EvictStale(now time.Time) []*Entry {
	if q.LateClientCapTimeInMinutes <= 0 || int64(q.LateClientCapTimeInMinutes) > int64(math.MaxInt64/time.Minute) {
		return nil
	}
	limit := time.Duration(q.LateClientCapTimeInMinutes) * time.Minute
	var evicted []*Entry
	for _, e := range q.Entries {
		if e.Status != StatusWaiting || now.Sub(e.JoinedAt) <= limit {
			continue
		}
		if err := e.evict(now); err == nil {
			evicted = append(evicted, e)
		}
	}
	if len(evicted) > 0 {
		q.renumber()
	}
	return evicted
}

// CloseDay cancels every remaining active entry, used when the location
// stops serving for the day.
func (q *Queue) CloseDay(now time.Time) []*Entry {
	var closed []*Entry
	for _, e := range q.Entries {
		if !e.IsActive() {
			continue
		}
		if err := e.cancel(ReasonDayClosed, now); err == nil {
			closed = append(closed, e)
		}
	}
	if len(closed) > 0 {
		q.renumber()
	}
	return closed
}

// SetActive toggles whether new admissions are accepted.
func (q *Queue) SetActive(active bool) {
	q.IsActive = active
}

// Pending returns the entries a repository has to write: every active entry
// plus every entry changed since the queue was loaded or last committed.
func (q *Queue) Pending() []*Entry {
	var pending []*Entry
	for _, e := range q.Entries {
		if e.IsActive() || e.changed {
			pending = append(pending, e)
		}
	}
	return pending
}

// Committed clears change tracking after a successful write.
func (q *Queue) Committed() {
	for _, e := range q.Entries {
		e.changed = false
	}
}

// Entry returns the entry with the given id, or nil.
func (q *Queue) Entry(id string) *Entry {
	for _, e := range q.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// ActiveEntryFor returns the customer's active entry, or nil.
func (q *Queue) ActiveEntryFor(customerID string) *Entry {
	for _, e := range q.Entries {
		if e.IsActive() && e.CustomerID != nil && *e.CustomerID == customerID {
			return e
		}
	}
	return nil
}

func (q *Queue) ActiveCount() int {
	n := 0
	for _, e := range q.Entries {
		if e.IsActive() {
			n++
		}
	}
	return n
}

// ActiveEntries returns active entries ordered by position.
func (q *Queue) ActiveEntries() []*Entry {
	active := make([]*Entry, 0, len(q.Entries))
	for _, e := range q.Entries {
		if e.IsActive() {
			active = append(active, e)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Position < active[j].Position })
	return active
}

// renumber assigns positions 1..N to active entries in admission order.
// Since positions are always handed out at the back, this is the same as
// decrementing every position above each removed one.
func (q *Queue) renumber() {
	pos := 0
	for _, e := range q.Entries {
		if e.IsActive() {
			pos++
			e.Position = pos
		} else {
			e.Position = 0
		}
	}
}

// CheckInvariants verifies ordering, capacity and uniqueness rules.
func (q *Queue) CheckInvariants() error {
	active := 0
	seen := make(map[int]bool)
	customers := make(map[string]bool)
	for _, e := range q.Entries {
		if !e.Status.Valid() {
			return fmt.Errorf("%w: entry %s has unknown status %q", ErrCorruptState, e.ID, e.Status)
		}
		if !e.IsActive() {
			continue
		}
		active++
		if seen[e.Position] {
			return fmt.Errorf("%w: position %d used twice", ErrCorruptState, e.Position)
		}
		seen[e.Position] = true
		if e.CustomerID != nil {
			if customers[*e.CustomerID] {
				return fmt.Errorf("%w: customer %s has two active entries", ErrCorruptState, *e.CustomerID)
			}
			customers[*e.CustomerID] = true
		}
	}
	for p := 1; p <= active; p++ {
		if !seen[p] {
			return fmt.Errorf("%w: positions are not dense, %d missing", ErrCorruptState, p)
		}
	}
	if active > q.MaxSize {
		return fmt.Errorf("%w: %d active entries exceed max size %d", ErrCorruptState, active, q.MaxSize)
	}
	return nil
}

// Clone returns a deep copy of the queue.
func (q *Queue) Clone() *Queue {
	c := *q
	c.Entries = make([]*Entry, len(q.Entries))
	for i, e := range q.Entries {
		c.Entries[i] = e.clone()
	}
	return &c
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	v := strings.TrimSpace(*id)
	if v == "" {
		return nil
	}
	return &v
}
