package usage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/formloom/quota/pkg/plan"
)

// incrementIfBelowScript adds to a counter only if the result stays within the limit.
// KEYS[1] = counter key
// ARGV[1] = amount
// ARGV[2] = limit
// Returns {allowed, count}.
var incrementIfBelowScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

if current + amount > limit then
    return {0, current}
end

local updated = redis.call("INCRBY", KEYS[1], amount)
return {1, updated}
`)

// RedisStore keeps counters as plain Redis integers.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ ConditionalStore = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the default "quota:usage" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore creates a store on top of an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: "quota:usage"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// redisKey wraps the tenant in a hash tag so one tenant's counters share a cluster slot
// and MGET works across them.
func (s *RedisStore) redisKey(tenantID, period string, action plan.Action) string {
	return fmt.Sprintf("%s:{%s}:%s:%s", s.prefix, tenantID, period, action)
}

func (s *RedisStore) Increment(ctx context.Context, key Key, amount int64) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	count, err := s.client.IncrBy(ctx, s.redisKey(key.TenantID, key.Period, key.Action), amount).Result()
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return count, nil
}

func (s *RedisStore) IncrementIfBelow(ctx context.Context, key Key, limit, amount int64) (int64, bool, error) {
	if err := key.Validate(); err != nil {
		return 0, false, err
	}
	if amount <= 0 {
		return 0, false, ErrInvalidAmount
	}

	res, err := incrementIfBelowScript.Run(ctx, s.client,
		[]string{s.redisKey(key.TenantID, key.Period, key.Action)}, amount, limit).Int64Slice()
	if err != nil {
		return 0, false, errors.Join(ErrStoreFailure, err)
	}
	if len(res) != 2 {
		return 0, false, errors.Join(ErrStoreFailure, fmt.Errorf("unexpected script result %v", res))
	}

	return res[1], res[0] == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	count, err := s.client.Get(ctx, s.redisKey(key.TenantID, key.Period, key.Action)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Join(ErrStoreFailure, err)
	}
	return count, nil
}

func (s *RedisStore) GetMany(ctx context.Context, tenantID, period string, actions []plan.Action) (map[plan.Action]int64, error) {
	out := zeroSnapshot(actions)
	if len(actions) == 0 {
		return out, nil
	}

	keys := make([]string, len(actions))
	for i, a := range actions {
		keys[i] = s.redisKey(tenantID, period, a)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(str, &n); err != nil {
			return nil, errors.Join(ErrStoreFailure, fmt.Errorf("counter %s: %w", keys[i], err))
		}
		out[actions[i]] = n
	}
	return out, nil
}

func (s *RedisStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.redisKey(key.TenantID, key.Period, key.Action)).Err(); err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}
