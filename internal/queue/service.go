package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// errNoChange aborts a mutation that found nothing to do, so no write is made.
var errNoChange = errors.New("no change")

// ServiceConfig contains configuration and collaborators for Service.
type ServiceConfig struct {
	// MaxAttempts bounds load-mutate-update cycles per operation (default: 3)
	MaxAttempts uint
	// RetryInterval is the pause before reloading after a conflict (default: 20ms)
	RetryInterval time.Duration
	// OperationTimeout bounds one operation including retries (0 = caller's context only)
	OperationTimeout time.Duration
	// AvgServiceMinutes feeds the wait time estimate (default: 30)
	AvgServiceMinutes int

	Estimate EstimateFunc
	Staff    StaffCounter
	Notifier Notifier
	Recorder Recorder
	Logger   *zap.Logger
}

// Service runs queue operations against a Repository under optimistic
// concurrency. It is safe for concurrent use.
type Service struct {
	repo          Repository
	maxAttempts   uint
	retryInterval time.Duration
	timeout       time.Duration
	avgService    int
	estimate      EstimateFunc
	staff         StaffCounter
	notifier      Notifier
	recorder      Recorder
	log           *zap.Logger
}

// NewService creates a new queue service
func NewService(repo Repository, cfg *ServiceConfig) *Service {
	s := &Service{
		repo:          repo,
		maxAttempts:   3,
		retryInterval: 20 * time.Millisecond,
		avgService:    DefaultAvgServiceMinutes,
		estimate:      Estimate,
		staff:         FixedStaff(1),
		notifier:      nopNotifier{},
		recorder:      nopRecorder{},
		log:           zap.NewNop(),
	}
	if cfg == nil {
		return s
	}
	if cfg.MaxAttempts > 0 {
		s.maxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryInterval > 0 {
		s.retryInterval = cfg.RetryInterval
	}
	if cfg.OperationTimeout > 0 {
		s.timeout = cfg.OperationTimeout
	}
	if cfg.AvgServiceMinutes > 0 {
		s.avgService = cfg.AvgServiceMinutes
	}
	if cfg.Estimate != nil {
		s.estimate = cfg.Estimate
	}
	if cfg.Staff != nil {
		s.staff = cfg.Staff
	}
	if cfg.Notifier != nil {
		s.notifier = cfg.Notifier
	}
	if cfg.Recorder != nil {
		s.recorder = cfg.Recorder
	}
	if cfg.Logger != nil {
		s.log = cfg.Logger
	}
	return s
}

// EntryView is an entry together with its estimated wait.
type EntryView struct {
	Entry
	EstimatedWaitMinutes int
}

// Snapshot is a read-only view of a queue and its active entries.
type Snapshot struct {
	QueueID     string
	LocationID  string
	Name        string
	IsActive    bool
	MaxSize     int
	ActiveStaff int
	Entries     []EntryView
}

// CreateQueue validates and stores a new queue.
func (s *Service) CreateQueue(ctx context.Context, capability Capability, p NewQueueParams, now time.Time) (*Queue, error) {
	const op = "create_queue"
	if err := capability.require(PermManage); err != nil {
		return nil, s.finish(op, err)
	}
	q, err := New(p, now)
	if err != nil {
		return nil, s.finish(op, err)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.repo.Add(ctx, q); err != nil {
		return nil, s.finish(op, err)
	}
	s.log.Info("queue created",
		zap.String("queue_id", q.ID),
		zap.String("location_id", q.LocationID),
		zap.Int("max_size", q.MaxSize))
	return q, s.finish(op, nil)
}

// AddCustomer admits a customer through a public channel (kiosk, QR, web).
func (s *Service) AddCustomer(ctx context.Context, queueID string, p AdmitParams, now time.Time) (*EntryView, error) {
	if p.Source == SourceStaff {
		return nil, fmt.Errorf("%w: staff admissions need a capability", ErrForbidden)
	}
	return s.admit(ctx, queueID, p, now)
}

// AddCustomerByStaff admits a customer on behalf of a staff member.
func (s *Service) AddCustomerByStaff(ctx context.Context, capability Capability, queueID string, p AdmitParams, now time.Time) (*EntryView, error) {
	if err := capability.require(PermAdmit); err != nil {
		return nil, s.finish("add_customer", err)
	}
	p.Source = SourceStaff
	return s.admit(ctx, queueID, p, now)
}

func (s *Service) admit(ctx context.Context, queueID string, p AdmitParams, now time.Time) (*EntryView, error) {
	const op = "add_customer"
	var entry *Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		var err error
		entry, err = q.AddCustomerToQueue(p, now)
		return err
	})
	if err != nil {
		return nil, s.finish(op, err)
	}
	s.publish(ctx, q, EventEntryAdded, now, entry)
	view := s.view(ctx, q, entry)
	return &view, s.finish(op, nil)
}

// CallNext calls the first waiting entry for the capability's staff member.
func (s *Service) CallNext(ctx context.Context, capability Capability, queueID string, now time.Time) (*Entry, error) {
	const op = "call_next"
	if err := capability.require(PermCall); err != nil {
		return nil, s.finish(op, err)
	}
	var entry *Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		var err error
		entry, err = q.CallNext(capability.StaffID, now)
		return err
	})
	if err != nil {
		return nil, s.finish(op, err)
	}
	s.publish(ctx, q, EventEntryCalled, now, entry)
	out := *entry
	return &out, s.finish(op, nil)
}

// CompleteEntry marks a called entry as served.
func (s *Service) CompleteEntry(ctx context.Context, capability Capability, queueID, entryID string, now time.Time) (*Entry, error) {
	const op = "complete_entry"
	if err := capability.require(PermComplete); err != nil {
		return nil, s.finish(op, err)
	}
	var entry *Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		var err error
		entry, err = q.CompleteEntry(entryID, now)
		return err
	})
	if err != nil {
		return nil, s.finish(op, err)
	}
	s.publish(ctx, q, EventEntryCompleted, now, entry)
	out := *entry
	return &out, s.finish(op, nil)
}

// CancelEntry cancels an entry on behalf of staff.
func (s *Service) CancelEntry(ctx context.Context, capability Capability, queueID, entryID, reason string, now time.Time) (*Entry, error) {
	if err := capability.require(PermCancel); err != nil {
		return nil, s.finish("cancel_entry", err)
	}
	return s.cancel(ctx, "cancel_entry", queueID, entryID, reason, now)
}

// Leave cancels an entry at the customer's own request.
func (s *Service) Leave(ctx context.Context, queueID, entryID string, now time.Time) (*Entry, error) {
	return s.cancel(ctx, "leave", queueID, entryID, ReasonLeft, now)
}

func (s *Service) cancel(ctx context.Context, op, queueID, entryID, reason string, now time.Time) (*Entry, error) {
	var entry *Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		var err error
		entry, err = q.CancelEntry(entryID, reason, now)
		return err
	})
	if err != nil {
		return nil, s.finish(op, err)
	}
	s.publish(ctx, q, EventEntryCancelled, now, entry)
	out := *entry
	return &out, s.finish(op, nil)
}

// EvictStale runs stale eviction on one queue and returns how many entries
// were evicted. Nothing is written when no entry is stale.
func (s *Service) EvictStale(ctx context.Context, queueID string, now time.Time) (int, error) {
	const op = "evict_stale"
	var evicted []*Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		evicted = q.EvictStale(now)
		if len(evicted) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, s.finish(op, nil)
	}
	if err != nil {
		return 0, s.finish(op, err)
	}
	s.recorder.ObserveEvicted(len(evicted))
	s.log.Info("stale entries evicted", zap.String("queue_id", queueID), zap.Int("count", len(evicted)))
	s.publish(ctx, q, EventEntriesEvicted, now, evicted...)
	return len(evicted), s.finish(op, nil)
}

// CloseDay cancels every active entry in the queue.
func (s *Service) CloseDay(ctx context.Context, queueID string, now time.Time) (int, error) {
	const op = "close_day"
	var closed []*Entry
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		closed = q.CloseDay(now)
		if len(closed) == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, s.finish(op, nil)
	}
	if err != nil {
		return 0, s.finish(op, err)
	}
	s.publish(ctx, q, EventQueueClosed, now, closed...)
	return len(closed), s.finish(op, nil)
}

// SetActive enables or disables admissions.
func (s *Service) SetActive(ctx context.Context, capability Capability, queueID string, active bool, now time.Time) (*Queue, error) {
	const op = "set_active"
	if err := capability.require(PermManage); err != nil {
		return nil, s.finish(op, err)
	}
	q, err := s.mutate(ctx, op, queueID, func(q *Queue) error {
		if q.IsActive == active {
			return errNoChange
		}
		q.SetActive(active)
		return nil
	})
	if errors.Is(err, errNoChange) {
		return q, s.finish(op, nil)
	}
	if err != nil {
		return nil, s.finish(op, err)
	}
	s.publish(ctx, q, EventQueueToggled, now)
	return q, s.finish(op, nil)
}

// Status returns the queue with every active entry and its estimate.
func (s *Service) Status(ctx context.Context, queueID string) (*Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.repo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	staff := s.activeStaff(ctx, queueID)
	snap := &Snapshot{
		QueueID:     q.ID,
		LocationID:  q.LocationID,
		Name:        q.Name,
		IsActive:    q.IsActive,
		MaxSize:     q.MaxSize,
		ActiveStaff: staff,
	}
	for _, e := range q.ActiveEntries() {
		snap.Entries = append(snap.Entries, EntryView{
			Entry:                *e,
			EstimatedWaitMinutes: s.estimate(q, e.ID, staff, s.avgService),
		})
	}
	return snap, nil
}

// EntryStatus returns a single entry with its estimate. Terminal entries are
// returned with UnknownWait.
func (s *Service) EntryStatus(ctx context.Context, queueID, entryID string) (*EntryView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	q, err := s.repo.GetByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	e := q.Entry(entryID)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	view := s.view(ctx, q, e)
	return &view, nil
}

// mutate loads the queue, applies fn and writes it back, reloading and
// reapplying fn when the write loses an optimistic concurrency race.
func (s *Service) mutate(ctx context.Context, op, queueID string, fn func(q *Queue) error) (*Queue, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var attempts uint
	q, err := backoff.Retry(ctx, func() (*Queue, error) {
		attempts++
		q, err := s.repo.GetByID(ctx, queueID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := fn(q); err != nil {
			if errors.Is(err, errNoChange) {
				return q, backoff.Permanent(err)
			}
			return nil, backoff.Permanent(err)
		}
		if err := s.repo.Update(ctx, q); err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				s.recorder.ObserveConflict(op)
				s.log.Debug("concurrent update, reloading",
					zap.String("op", op),
					zap.String("queue_id", queueID),
					zap.Uint("attempt", attempts))
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return q, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retryInterval)),
		backoff.WithMaxTries(s.maxAttempts),
	)
	if err == nil {
		return q, nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	switch {
	case errors.Is(err, ErrConcurrencyConflict):
		s.log.Warn("giving up after concurrent updates",
			zap.String("op", op),
			zap.String("queue_id", queueID),
			zap.Uint("attempts", attempts))
		return nil, fmt.Errorf("%w: gave up after %d attempts", ErrConcurrencyConflict, attempts)
	case errors.Is(err, ErrCorruptState):
		s.log.Error("queue invariant violated",
			zap.String("op", op),
			zap.String("queue_id", queueID),
			zap.Error(err))
	}
	return q, err
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

func (s *Service) finish(op string, err error) error {
	s.recorder.ObserveOperation(op, err)
	return err
}

func (s *Service) view(ctx context.Context, q *Queue, e *Entry) EntryView {
	staff := s.activeStaff(ctx, q.ID)
	return EntryView{
		Entry:                *e,
		EstimatedWaitMinutes: s.estimate(q, e.ID, staff, s.avgService),
	}
}

func (s *Service) activeStaff(ctx context.Context, queueID string) int {
	n, err := s.staff.ActiveStaff(ctx, queueID)
	if err != nil {
		s.log.Warn("active staff unavailable", zap.String("queue_id", queueID), zap.Error(err))
		return 0
	}
	return n
}

func (s *Service) publish(ctx context.Context, q *Queue, typ EventType, now time.Time, entries ...*Entry) {
	ev := Event{
		Type:       typ,
		QueueID:    q.ID,
		QueueSize:  q.ActiveCount(),
		IsActive:   q.IsActive,
		OccurredAt: now,
	}
	for _, e := range entries {
		ev.EntryIDs = append(ev.EntryIDs, e.ID)
	}
	if len(entries) == 1 {
		ev.Position = entries[0].Position
	}
	s.notifier.Notify(ctx, ev)
}
