package command

import (
	"context"
	"waitline/internal/config"
	"waitline/internal/queue"
	"waitline/internal/storage"
	"waitline/internal/tasks"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Sweep runs one stale-entry sweep (or a day close) and exits. Useful when
// the scheduler is disabled and an external cron drives maintenance.
type Sweep struct {
	Logger *zap.Logger
}

func (cmd Sweep) Command(ctx context.Context, cfg *config.Config) *cobra.Command {
	var closeDay bool
	c := &cobra.Command{
		Use:   "sweep",
		Short: "evict stale entries from every queue once",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmd.main(ctx, cfg, closeDay)
		},
	}
	c.Flags().BoolVar(&closeDay, "close-day", false, "cancel every active entry instead of evicting stale ones")
	return c
}

func (cmd Sweep) main(ctx context.Context, cfg *config.Config, closeDay bool) error {
	db, err := connect(cfg, cmd.Logger)
	if err != nil {
		return err
	}
	// memory queues belong to a running server, a separate process cannot sweep them
	store := storage.NewGormQueueRepository(db)
	svc := queue.NewService(store, serviceConfig(cfg, cmd.Logger))
	planner := tasks.NewPlanner(svc, store, cmd.Logger)

	job, run := "sweep_stale", planner.SweepStale
	if closeDay {
		job, run = "close_day", planner.CloseDay
	}
	n, err := run(ctx)
	cmd.Logger.Info("job finished", zap.String("job", job), zap.Int("entries", n))
	return err
}
