package command

import (
	"waitline/internal/config"
	"waitline/internal/queue"
	"waitline/internal/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// queueStore is everything the commands need from a queue repository.
type queueStore interface {
	queue.Repository
	queue.Lister
	queue.EntryFinder
}

func connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	db, err := storage.ConnectDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("connected to postgresql", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
	return db, nil
}

// openQueueStore picks the queue repository. Staff accounts always live in
// PostgreSQL; QUEUE_STORE=memory only keeps queues in process memory, which
// is only correct for a single instance.
func openQueueStore(cfg *config.Config, db *gorm.DB, log *zap.Logger) queueStore {
	if cfg.Queue.Store == "memory" {
		log.Warn("queues are kept in memory and lost on restart")
		return storage.NewMemoryQueueRepository()
	}
	return storage.NewGormQueueRepository(db)
}

func serviceConfig(cfg *config.Config, log *zap.Logger) *queue.ServiceConfig {
	return &queue.ServiceConfig{
		MaxAttempts:       uint(cfg.Queue.MaxAttempts),
		RetryInterval:     cfg.Queue.RetryInterval,
		OperationTimeout:  cfg.Queue.OperationTimeout,
		AvgServiceMinutes: cfg.Queue.AvgServiceMinutes,
		Staff:             queue.FixedStaff(cfg.Queue.DefaultActiveStaff),
		Logger:            log,
	}
}
