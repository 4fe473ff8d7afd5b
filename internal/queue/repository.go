package queue

import "context"

// Repository loads and stores whole Queue aggregates.
type Repository interface {
	// GetByID returns ErrNotFound when the queue does not exist.
	GetByID(ctx context.Context, id string) (*Queue, error)

	// Add stores a new queue.
	Add(ctx context.Context, q *Queue) error

	// Update stores q only if the stored version still equals q.Version,
	// otherwise it returns ErrConcurrencyConflict. On success q.Version is
	// advanced.
	Update(ctx context.Context, q *Queue) error
}

// Lister enumerates queues for maintenance jobs.
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// EntryFinder looks up active entries across queues.
type EntryFinder interface {
	FindActiveByCustomer(ctx context.Context, customerID string) ([]Entry, error)
}
