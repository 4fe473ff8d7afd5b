// Package presence tracks which staff members are currently serving a queue.
// The count feeds the wait time estimate.
package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const keyPrefix = "waitline:presence:"

// RedisTracker stores heartbeats in one sorted set per queue, scored by the
// heartbeat time. A staff member counts as active until ttl passes without
// a new heartbeat.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl, now: time.Now}
}

func key(queueID string) string {
	return keyPrefix + queueID
}

// Heartbeat marks staffID as serving queueID.
func (t *RedisTracker) Heartbeat(ctx context.Context, queueID, staffID string) error {
	now := t.now()
	pipe := t.client.TxPipeline()
	pipe.ZAdd(ctx, key(queueID), &redis.Z{Score: float64(now.UnixMilli()), Member: staffID})
	pipe.Expire(ctx, key(queueID), 2*t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "presence: heartbeat")
	}
	return nil
}

// Leave removes staffID from the queue immediately.
func (t *RedisTracker) Leave(ctx context.Context, queueID, staffID string) error {
	if err := t.client.ZRem(ctx, key(queueID), staffID).Err(); err != nil {
		return errors.Wrap(err, "presence: leave")
	}
	return nil
}

// ActiveStaff implements queue.StaffCounter. Expired heartbeats are pruned
// on the way.
func (t *RedisTracker) ActiveStaff(ctx context.Context, queueID string) (int, error) {
	cutoff := t.now().Add(-t.ttl).UnixMilli()
	pipe := t.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key(queueID), "-inf", "("+strconv.FormatInt(cutoff, 10))
	count := pipe.ZCount(ctx, key(queueID), strconv.FormatInt(cutoff, 10), "+inf")
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "presence: count")
	}
	return int(count.Val()), nil
}
