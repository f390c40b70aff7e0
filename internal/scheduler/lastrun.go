package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LastRunStore remembers when each periodic task was last dispatched.
// Entries are overwritten on every dispatch and never deleted.
type LastRunStore interface {
	Get(ctx context.Context, task string) (time.Time, error)
	Set(ctx context.Context, task string, at time.Time) error
}

const lastRunKey = "fetcharr:scheduler:last_run"

// RedisLastRunStore keeps last-run timestamps in a shared hash so restarts
// and multiple daemons agree on periodic gating.
type RedisLastRunStore struct {
	rdb *redis.Client
}

func NewRedisLastRunStore(rdb *redis.Client) *RedisLastRunStore {
	return &RedisLastRunStore{rdb: rdb}
}

func (s *RedisLastRunStore) Get(ctx context.Context, task string) (time.Time, error) {
	raw, err := s.rdb.HGet(ctx, lastRunKey, task).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last run for %s: %w", task, err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last run for %s: %w", task, err)
	}
	return at, nil
}

func (s *RedisLastRunStore) Set(ctx context.Context, task string, at time.Time) error {
	if err := s.rdb.HSet(ctx, lastRunKey, task, at.Format(time.RFC3339Nano)).Err(); err != nil {
		return fmt.Errorf("store last run for %s: %w", task, err)
	}
	return nil
}

// MemoryLastRunStore is the in-process fallback used without Redis and in
// tests.
type MemoryLastRunStore struct {
	mu   sync.Mutex
	runs map[string]time.Time
}

func NewMemoryLastRunStore() *MemoryLastRunStore {
	return &MemoryLastRunStore{runs: make(map[string]time.Time)}
}

func (s *MemoryLastRunStore) Get(_ context.Context, task string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[task], nil
}

func (s *MemoryLastRunStore) Set(_ context.Context, task string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[task] = at
	return nil
}

var (
	_ LastRunStore = (*RedisLastRunStore)(nil)
	_ LastRunStore = (*MemoryLastRunStore)(nil)
)
