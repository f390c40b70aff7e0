package semaphore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fetcharr:slots:"

// acquireScript increments the counter unless it is already at the limit.
// The expiry is refreshed on every successful acquire.
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
if current and current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return 1
`)

// releaseScript decrements the counter, deleting the key when the last
// holder leaves so an abandoned queue never lingers in the store.
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]))
if not current then
	return 0
end
if current <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
redis.call('DECR', KEYS[1])
return 1
`)

// RedisStore is the production Store, shared by every daemon pointed at the
// same Redis instance.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Acquire(ctx context.Context, queue string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	ok, err := acquireScript.Run(ctx, s.rdb, []string{keyPrefix + queue}, limit, int(slotTTL.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("acquire slot %s: %w", queue, err)
	}
	return ok == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, queue string) (bool, error) {
	remaining, err := releaseScript.Run(ctx, s.rdb, []string{keyPrefix + queue}).Int()
	if err != nil {
		return false, fmt.Errorf("release slot %s: %w", queue, err)
	}
	return remaining == 1, nil
}

func (s *RedisStore) Count(ctx context.Context, queue string) (int, error) {
	count, err := s.rdb.Get(ctx, keyPrefix+queue).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read slot count %s: %w", queue, err)
	}
	return count, nil
}

var _ Store = (*RedisStore)(nil)
