package metrics

import (
	"errors"
	"waitline/internal/queue"

	"github.com/prometheus/client_golang/prometheus"
)

// Prom records queue operation outcomes as prometheus metrics.
type Prom struct {
	operations *prometheus.CounterVec
	conflicts  *prometheus.CounterVec
	evicted    prometheus.Counter
}

// NewProm creates the collectors and registers them with reg.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitline_queue_operations_total",
			Help: "Queue operations by operation and result.",
		}, []string{"op", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "waitline_queue_conflicts_total",
			Help: "Optimistic concurrency conflicts that caused a reload.",
		}, []string{"op"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waitline_entries_evicted_total",
			Help: "Entries marked stale by the eviction sweep.",
		}),
	}
	reg.MustRegister(p.operations, p.conflicts, p.evicted)
	return p
}

func (p *Prom) ObserveOperation(op string, err error) {
	p.operations.WithLabelValues(op, result(err)).Inc()
}

func (p *Prom) ObserveConflict(op string) {
	p.conflicts.WithLabelValues(op).Inc()
}

func (p *Prom) ObserveEvicted(n int) {
	p.evicted.Add(float64(n))
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case queue.IsValidationError(err):
		return "invalid"
	case errors.Is(err, queue.ErrCapacityExceeded):
		return "full"
	case errors.Is(err, queue.ErrDuplicateEntry):
		return "duplicate"
	case errors.Is(err, queue.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, queue.ErrNotFound):
		return "not_found"
	case errors.Is(err, queue.ErrEmptyQueue):
		return "empty"
	case errors.Is(err, queue.ErrQueueInactive):
		return "inactive"
	case errors.Is(err, queue.ErrForbidden):
		return "forbidden"
	case queue.IsTransient(err):
		return "conflict"
	default:
		return "error"
	}
}
