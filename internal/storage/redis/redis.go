// Package redis implements the relayer's transport-dedup cache and
// progress cursor on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"solana-bridge/internal/observability"
	"solana-bridge/internal/storage"
)

// Pool wraps redis.Pool for dependency injection.
type Pool struct {
	*redis.Pool
	prefix string
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// NewPool connects to addr and verifies the connection. Every key is
// namespaced under prefix.
func NewPool(ctx context.Context, addr, prefix string) (*Pool, error) {
	p := &Pool{
		Pool: &redis.Pool{
			MaxIdle:     5,
			IdleTimeout: 4 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr, timeoutDialOptions()...)
			},
		},
		prefix: prefix,
	}

	conn, err := p.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	defer conn.Close()
	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return p, nil
}

func (p *Pool) key(parts ...string) string {
	return p.prefix + ":" + strings.Join(parts, ":")
}

func (p *Pool) do(ctx context.Context, cmd string, args ...interface{}) (reply interface{}, err error) {
	defer func(start time.Time) {
		if errors.Is(err, redis.ErrNil) {
			observability.RecordDBQuery("redis", cmd, time.Since(start).Seconds(), nil)
			return
		}
		observability.RecordDBQuery("redis", cmd, time.Since(start).Seconds(), err)
	}(time.Now())

	conn, err := p.GetContext(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

// SeenCache implements storage.SeenCache with SET NX PX.
type SeenCache struct {
	pool *Pool
	ttl  time.Duration
}

// NewSeenCache creates a cache whose keys expire after ttl.
func NewSeenCache(pool *Pool, ttl time.Duration) *SeenCache {
	return &SeenCache{pool: pool, ttl: ttl}
}

// Compile-time interface check.
var _ storage.SeenCache = (*SeenCache)(nil)

// MarkSeen records key and reports whether this is its first sighting.
func (c *SeenCache) MarkSeen(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}

	args := []interface{}{c.pool.key("seen", key), 1, "NX"}
	if c.ttl > 0 {
		args = append(args, "PX", c.ttl.Milliseconds())
	}
	_, err := redis.String(c.pool.do(ctx, "SET", args...))
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis set %s: %w", key, err)
	}
	return true, nil
}

// Forget deletes key.
func (c *SeenCache) Forget(ctx context.Context, key string) error {
	if _, err := c.pool.do(ctx, "DEL", c.pool.key("seen", key)); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ProgressStore implements storage.ProgressStore as a single hash.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a Redis progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// progressScript writes the cursor unless it would move backwards.
var progressScript = redis.NewScript(1, `
local cur = redis.call('HGET', KEYS[1], 'slot')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'slot', ARGV[1], 'signature', ARGV[2])
return 1
`)

// GetLastProcessed returns the last processed slot and signature.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	values, err := redis.StringMap(s.pool.do(ctx, "HGETALL", s.pool.key("progress")))
	if err != nil {
		return nil, fmt.Errorf("redis hgetall progress: %w", err)
	}
	if len(values) == 0 {
		return nil, storage.ErrNotFound
	}
	slot, err := strconv.ParseUint(values["slot"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse progress slot: %w", err)
	}
	return &storage.Progress{Slot: slot, Signature: values["signature"]}, nil
}

// SetLastProcessed saves the last processed slot and signature.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if progress == nil {
		return storage.ErrInvalidInput
	}

	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = progressScript.DoContext(ctx, conn, s.pool.key("progress"), progress.Slot, progress.Signature)
	if err != nil {
		return fmt.Errorf("redis set progress: %w", err)
	}
	return nil
}
