// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis, for deployments running more than
// one proxy replica against a shared counter set. Each (scope, identifier,
// limitType, window) bucket is two Redis keys: a counter and its window-end
// timestamp, both carrying a TTL so expired buckets are reclaimed by Redis
// itself rather than requiring a sweep.
type RedisStore struct {
	rdb *redis.Client

	incrScript *redis.Script
	getScript  *redis.Script
}

// NewRedisStore creates a RedisStore connected to the given "host:port" address.
func NewRedisStore(addr string) *RedisStore {
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

// NewRedisStoreWithClient creates a RedisStore from an existing client, so
// callers can share a connection pool or pass options (TLS, auth, cluster)
// this package doesn't need to know about.
func NewRedisStoreWithClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		incrScript: redis.NewScript(incrementUsageScript),
		getScript:  redis.NewScript(getUsageScript),
	}
}

func bucketKeys(scope Scope, identifier string, limitType LimitType, window TimeWindow) (counterKey, endKey string) {
	base := fmt.Sprintf("ratelimit:%s:%s:%s:%s", scope, identifier, limitType, window)
	return base, base + ":end"
}

// getUsageScript returns {current, windowEndUnixMilli} without mutating state.
// If the bucket is missing or its window has elapsed, current is 0 and
// windowEndUnixMilli is a fresh now+duration.
const getUsageScript = `
local key = KEYS[1]
local endkey = KEYS[2]
local now = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])

local windowEnd = tonumber(redis.call('GET', endkey))
if (not windowEnd) or windowEnd <= now then
  return {0, now + duration}
end

local val = tonumber(redis.call('GET', key))
if not val then
  val = 0
end
return {val, windowEnd}
`

// incrementUsageScript atomically increments the bucket, rolling it over to a
// fresh window if the previous one has elapsed. Returns {newValue, windowEndUnixMilli}.
const incrementUsageScript = `
local key = KEYS[1]
local endkey = KEYS[2]
local now = tonumber(ARGV[1])
local duration = tonumber(ARGV[2])
local amount = tonumber(ARGV[3])

local windowEnd = tonumber(redis.call('GET', endkey))
if (not windowEnd) or windowEnd <= now then
  windowEnd = now + duration
  redis.call('SET', key, amount)
  redis.call('SET', endkey, windowEnd)
  local ttlSeconds = math.ceil(duration / 1000) + 1
  redis.call('EXPIRE', key, ttlSeconds)
  redis.call('EXPIRE', endkey, ttlSeconds)
  return {amount, windowEnd}
end

local newVal = redis.call('INCRBY', key, amount)
return {newVal, windowEnd}
`

func (s *RedisStore) GetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow) (int64, time.Time, error) {
	counterKey, endKey := bucketKeys(scope, identifier, limitType, window)
	now := time.Now()
	durationMs := window.Duration().Milliseconds()

	res, err := s.getScript.Run(ctx, s.rdb, []string{counterKey, endKey}, now.UnixMilli(), durationMs).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis get usage: %w", err)
	}

	current, windowEnd, err := parseUsageResult(res)
	if err != nil {
		return 0, time.Time{}, err
	}
	return current, windowEnd, nil
}

func (s *RedisStore) IncrementUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64) (int64, time.Time, error) {
	counterKey, endKey := bucketKeys(scope, identifier, limitType, window)
	now := time.Now()
	durationMs := window.Duration().Milliseconds()

	res, err := s.incrScript.Run(ctx, s.rdb, []string{counterKey, endKey}, now.UnixMilli(), durationMs, amount).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis increment usage: %w", err)
	}

	newVal, windowEnd, err := parseUsageResult(res)
	if err != nil {
		return 0, time.Time{}, err
	}
	return newVal, windowEnd, nil
}

func (s *RedisStore) SetUsage(ctx context.Context, scope Scope, identifier string, limitType LimitType, window TimeWindow, amount int64, windowEnd time.Time) error {
	counterKey, endKey := bucketKeys(scope, identifier, limitType, window)
	ttl := time.Until(windowEnd)
	if ttl <= 0 {
		ttl = time.Second
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, counterKey, amount, ttl)
	pipe.Set(ctx, endKey, windowEnd.UnixMilli(), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set usage: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteUsage(ctx context.Context, scope Scope, identifier string) error {
	pattern := fmt.Sprintf("ratelimit:%s:%s:*", scope, identifier)
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan for delete: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete usage: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op for RedisStore: every bucket key carries a TTL set
// at creation time, so Redis reclaims expired buckets on its own. The method
// exists only to satisfy the Store interface.
func (s *RedisStore) DeleteExpired(ctx context.Context, before time.Time) error {
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func parseUsageResult(res interface{}) (int64, time.Time, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected redis script result: %v", res)
	}

	current, err := toInt64(vals[0])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parsing usage value: %w", err)
	}
	endMs, err := toInt64(vals[1])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parsing window end: %w", err)
	}

	return current, time.UnixMilli(endMs), nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected int64, got %T", v)
	}
}
