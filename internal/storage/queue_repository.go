package storage

import (
	"context"
	"fmt"
	"time"
	"waitline/internal/models"
	"waitline/internal/queue"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormQueueRepository stores queue aggregates in PostgreSQL. Update is
// conditional on the version column.
type GormQueueRepository struct {
	db *gorm.DB
}

func NewGormQueueRepository(db *gorm.DB) *GormQueueRepository {
	return &GormQueueRepository{db: db}
}

func (r *GormQueueRepository) GetByID(ctx context.Context, id string) (*queue.Queue, error) {
	// ids are uuid columns; anything else can not exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: queue %s", queue.ErrNotFound, id)
	}
	var rec models.Queue
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: queue %s", queue.ErrNotFound, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "storage: load queue %s", id)
	}

	q := fromQueueRecord(rec)
	if err := q.CheckInvariants(); err != nil {
		return nil, errors.Wrapf(err, "storage: queue %s", id)
	}
	return q, nil
}

func (r *GormQueueRepository) Add(ctx context.Context, q *queue.Queue) error {
	rec := toQueueRecord(q)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return errors.Wrapf(err, "storage: create queue %s", q.ID)
	}
	q.Committed()
	return nil
}

// Update bumps the version only if it still matches q.Version, then upserts
// the active and changed entries in the same transaction. Untouched history
// rows are not rewritten.
func (r *GormQueueRepository) Update(ctx context.Context, q *queue.Queue) error {
	rec := toQueueRecord(q)
	pending := toEntryRecords(q.Pending())
	next := q.Version + 1

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Queue{}).
			Where("id = ? AND version = ?", q.ID, q.Version).
			Updates(map[string]interface{}{
				"name":                            rec.Name,
				"max_size":                        rec.MaxSize,
				"late_client_cap_time_in_minutes": rec.LateClientCapTimeInMinutes,
				"is_active":                       rec.IsActive,
				"version":                         next,
				"updated_at":                      time.Now(),
			})
		if res.Error != nil {
			return errors.Wrapf(res.Error, "storage: update queue %s", q.ID)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: queue %s version %d", queue.ErrConcurrencyConflict, q.ID, q.Version)
		}
		if len(pending) == 0 {
			return nil
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&pending).Error
		return errors.Wrapf(err, "storage: save entries of queue %s", q.ID)
	})
	if err != nil {
		return err
	}
	q.Version = next
	q.Committed()
	return nil
}

func (r *GormQueueRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&models.Queue{}).Order("created_at ASC").Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "storage: list queues")
	}
	return ids, nil
}

func (r *GormQueueRepository) FindActiveByCustomer(ctx context.Context, customerID string) ([]queue.Entry, error) {
	var recs []models.QueueEntry
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status IN ?", customerID, []string{string(queue.StatusWaiting), string(queue.StatusCalled)}).
		Order("joined_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrapf(err, "storage: entries of customer %s", customerID)
	}
	entries := make([]queue.Entry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, fromEntryRecord(rec))
	}
	return entries, nil
}
