package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"waitline/internal/queue"

	"github.com/pkg/errors"
)

// MemoryQueueRepository keeps queues in process memory. It honors the same
// version check as the SQL store, so it is usable for single-instance
// deployments and tests.
type MemoryQueueRepository struct {
	mu     sync.RWMutex
	queues map[string]*queue.Queue
}

func NewMemoryQueueRepository() *MemoryQueueRepository {
	return &MemoryQueueRepository{queues: make(map[string]*queue.Queue)}
}

func (r *MemoryQueueRepository) GetByID(ctx context.Context, id string) (*queue.Queue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[id]
	if !ok {
		return nil, fmt.Errorf("%w: queue %s", queue.ErrNotFound, id)
	}
	return q.Clone(), nil
}

func (r *MemoryQueueRepository) Add(ctx context.Context, q *queue.Queue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[q.ID]; ok {
		return errors.Errorf("storage: queue %s already exists", q.ID)
	}
	stored := q.Clone()
	stored.Committed()
	r.queues[q.ID] = stored
	q.Committed()
	return nil
}

func (r *MemoryQueueRepository) Update(ctx context.Context, q *queue.Queue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.queues[q.ID]
	if !ok {
		return fmt.Errorf("%w: queue %s", queue.ErrNotFound, q.ID)
	}
	if current.Version != q.Version {
		return fmt.Errorf("%w: queue %s version %d, stored %d", queue.ErrConcurrencyConflict, q.ID, q.Version, current.Version)
	}
	stored := q.Clone()
	stored.Version++
	stored.Committed()
	r.queues[q.ID] = stored
	q.Version = stored.Version
	q.Committed()
	return nil
}

func (r *MemoryQueueRepository) ListIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.queues))
	for id := range r.queues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryQueueRepository) FindActiveByCustomer(ctx context.Context, customerID string) ([]queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var entries []queue.Entry
	for _, q := range r.queues {
		if e := q.ActiveEntryFor(customerID); e != nil {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].JoinedAt.Before(entries[j].JoinedAt) })
	return entries, nil
}
