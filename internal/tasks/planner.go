package tasks

import (
	"context"
	"errors"
	"time"
	"waitline/internal/config"
	"waitline/internal/queue"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper is the part of queue.Service the background jobs drive.
type Sweeper interface {
	EvictStale(ctx context.Context, queueID string, now time.Time) (int, error)
	CloseDay(ctx context.Context, queueID string, now time.Time) (int, error)
}

// Planner runs periodic maintenance over every stored queue.
type Planner struct {
	svc    Sweeper
	queues queue.Lister
	log    *zap.Logger
	now    func() time.Time
}

func NewPlanner(svc Sweeper, queues queue.Lister, log *zap.Logger) *Planner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{svc: svc, queues: queues, log: log, now: time.Now}
}

// SweepStale evicts stale entries from every queue and returns the total
// evicted. A failing queue does not stop the sweep.
func (p *Planner) SweepStale(ctx context.Context) (int, error) {
	return p.each(ctx, "stale sweep", p.svc.EvictStale)
}

// CloseDay cancels every active entry in every queue.
func (p *Planner) CloseDay(ctx context.Context) (int, error) {
	return p.each(ctx, "day close", p.svc.CloseDay)
}

func (p *Planner) each(ctx context.Context, job string, fn func(context.Context, string, time.Time) (int, error)) (int, error) {
	ids, err := p.queues.ListIDs(ctx)
	if err != nil {
		p.log.Error("list queues", zap.String("job", job), zap.Error(err))
		return 0, err
	}
	now := p.now()
	total := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := fn(ctx, id, now)
		if err != nil {
			p.log.Warn(job+" failed", zap.String("queue_id", id), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if total > 0 {
		p.log.Info(job+" finished", zap.Int("queues", len(ids)), zap.Int("entries", total))
	}
	return total, errors.Join(errs...)
}

// Start schedules the jobs described by cfg and starts the cron runner.
// Jobs run with ctx and stop being scheduled once the returned cron is
// stopped.
func (p *Planner) Start(ctx context.Context, cfg config.TasksConfig) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	if _, err := c.AddFunc(cfg.SweepSpec, func() { _, _ = p.SweepStale(ctx) }); err != nil {
		return nil, err
	}
	if cfg.CloseDaySpec != "" {
		if _, err := c.AddFunc(cfg.CloseDaySpec, func() { _, _ = p.CloseDay(ctx) }); err != nil {
			return nil, err
		}
	}

	c.Start()
	p.log.Info("scheduler started",
		zap.String("sweep", cfg.SweepSpec),
		zap.String("close_day", cfg.CloseDaySpec))
	return c, nil
}
