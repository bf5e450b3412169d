package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examinator/internal/config"
	"github.com/stemsi/examinator/internal/model"
)

// JobQueue is the durable schedule drained by FinisherWorker.
type JobQueue interface {
	// Due returns up to limit raw jobs whose fire time is at or before now.
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Claim removes member and reports whether this caller removed it.
	Claim(ctx context.Context, member string) (bool, error)
	Schedule(ctx context.Context, fireAt time.Time, job model.FinisherJob) error
	DeadLetter(ctx context.Context, failed model.FailedFinisherJob) error
}

// RedisScheduler arms finisher jobs in a sorted set scored by fire time.
// Jobs survive restarts and are drained by FinisherWorker.
type RedisScheduler struct {
	rdb *redis.Client
}

// NewRedisScheduler creates a new RedisScheduler.
func NewRedisScheduler(rdb *redis.Client) *RedisScheduler {
	return &RedisScheduler{rdb: rdb}
}

// Schedule arms job to fire at or after fireAt.
func (s *RedisScheduler) Schedule(ctx context.Context, fireAt time.Time, job model.FinisherJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal finisher job: %w", err)
	}
	return s.rdb.ZAdd(ctx, config.WorkerKey.FinisherSchedule, redis.Z{
		Score:  float64(fireAt.Unix()),
		Member: raw,
	}).Err()
}

// Due lists due members in fire-time order.
func (s *RedisScheduler) Due(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, config.WorkerKey.FinisherSchedule, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
}

// Claim removes member with ZREM. Only one replica sees a removal count of 1.
func (s *RedisScheduler) Claim(ctx context.Context, member string) (bool, error) {
	n, err := s.rdb.ZRem(ctx, config.WorkerKey.FinisherSchedule, member).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeadLetter appends a failed job to the dead-letter list.
func (s *RedisScheduler) DeadLetter(ctx context.Context, failed model.FailedFinisherJob) error {
	raw, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal failed job: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.FinisherFailedQueue, raw).Err()
}
