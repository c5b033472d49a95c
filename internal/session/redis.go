package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces counter hashes.
const DefaultRedisPrefix = "naina:session:"

const (
	fieldCrisis   = "crisis_count"
	fieldNegative = "negative_streak"
	fieldLastSeen = "last_seen"
)

// adjustScript applies a delta to one counter field, floors it at zero, stamps
// last_seen, refreshes the key TTL and returns {crisis, negative, last_seen}.
// Running it server-side keeps the read-modify-write atomic across processes.
var adjustScript = redis.NewScript(`
local key = KEYS[1]
local field = ARGV[1]
local delta = tonumber(ARGV[2])
local now = ARGV[3]
local ttl = tonumber(ARGV[4])
local v = tonumber(redis.call('HGET', key, field) or '0') + delta
if v < 0 then v = 0 end
redis.call('HSET', key, field, v, 'last_seen', now)
if ttl > 0 then redis.call('EXPIRE', key, ttl) end
local c = tonumber(redis.call('HGET', key, 'crisis_count') or '0')
local n = tonumber(redis.call('HGET', key, 'negative_streak') or '0')
return {c, n, tonumber(now)}
`)

// evictIdleScript deletes the hash only if last_seen is older than the
// cutoff, so a concurrent increment either lands before the check or
// recreates the key afterwards. Returns 1 when the key was deleted.
var evictIdleScript = redis.NewScript(`
local seen = redis.call('HGET', KEYS[1], 'last_seen')
if not seen then return 0 end
if tonumber(seen) >= tonumber(ARGV[1]) then return 0 end
redis.call('DEL', KEYS[1])
return 1
`)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key. Defaults to DefaultRedisPrefix.
	Prefix string
	// TTL expires idle users server-side. Zero disables key expiry.
	TTL time.Duration
}

// RedisStore keeps counters in Redis hashes so several service instances can
// share them.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time

	// beforeEvict runs between SCAN and the idle check; tests use it to
	// interleave writes.
	beforeEvict func(key string)
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStoreWithClient(client, cfg), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + NormalizeUserID(userID)
}

func (s *RedisStore) Get(ctx context.Context, userID string) (Counters, error) {
	vals, err := s.client.HMGet(ctx, s.key(userID), fieldCrisis, fieldNegative, fieldLastSeen).Result()
	if err != nil {
		return Counters{}, Unavailable("get counters", err)
	}
	return Counters{
		CrisisCount:           int(parseRedisInt(vals[0])),
		NegativeEmotionStreak: int(parseRedisInt(vals[1])),
		LastSeen:              millisToTime(parseRedisInt(vals[2])),
	}, nil
}

func (s *RedisStore) IncrementCrisis(ctx context.Context, userID string) (Counters, error) {
	return s.adjust(ctx, "increment crisis", userID, fieldCrisis, 1)
}

func (s *RedisStore) IncrementNegative(ctx context.Context, userID string) (Counters, error) {
	return s.adjust(ctx, "increment negative", userID, fieldNegative, 1)
}

func (s *RedisStore) DecrementNegative(ctx context.Context, userID string) (Counters, error) {
	return s.adjust(ctx, "decrement negative", userID, fieldNegative, -1)
}

func (s *RedisStore) adjust(ctx context.Context, op, userID, field string, delta int) (Counters, error) {
	now := s.now().UTC().UnixMilli()
	ttl := int64(s.ttl / time.Second)
	vals, err := adjustScript.Run(ctx, s.client, []string{s.key(userID)}, field, delta, now, ttl).Int64Slice()
	if err != nil {
		return Counters{}, Unavailable(op, err)
	}
	if len(vals) != 3 {
		return Counters{}, Unavailable(op, fmt.Errorf("unexpected script reply length %d", len(vals)))
	}
	return Counters{
		CrisisCount:           int(vals[0]),
		NegativeEmotionStreak: int(vals[1]),
		LastSeen:              millisToTime(vals[2]),
	}, nil
}

func (s *RedisStore) Evict(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return Unavailable("evict", err)
	}
	return nil
}

func (s *RedisStore) EvictIdle(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().UTC().Add(-olderThan).UnixMilli()
	evicted := 0
	err := s.scan(ctx, func(key string) error {
		if s.beforeEvict != nil {
			s.beforeEvict(key)
		}
		n, err := evictIdleScript.Run(ctx, s.client, []string{key}, cutoff).Int()
		if err != nil {
			return err
		}
		evicted += n
		return nil
	})
	if err != nil {
		return evicted, Unavailable("evict idle", err)
	}
	return evicted, nil
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	if err := s.scan(ctx, func(string) error { n++; return nil }); err != nil {
		return 0, Unavailable("count sessions", err)
	}
	return n, nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := fn(k); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseRedisInt(v any) int64 {
	switch t := v.(type) {
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	case int64:
		return t
	default:
		return 0
	}
}

func millisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
