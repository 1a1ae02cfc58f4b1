// Package cache stores computed statistics payloads as JSON, grouped in
// hashes so that everything derived from one session can be dropped at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache stores JSON payloads under key/field. Every Invalidate of a key bumps
// its generation; readers that compute a payload take Generation first and
// store it with SetIfGeneration, so a payload built from rows older than an
// invalidation is dropped.
type Cache interface {
	// Get decodes key/field into dst. A miss reports false with a nil error.
	Get(ctx context.Context, key, field string, dst any) (bool, error)
	Set(ctx context.Context, key, field string, v any) error
	Generation(ctx context.Context, key string) (int64, error)
	// SetIfGeneration stores v only while key is still at gen and reports
	// whether it did.
	SetIfGeneration(ctx context.Context, key, field string, gen int64, v any) (bool, error)
	Invalidate(ctx context.Context, keys ...string) error
}

func DashboardKey(sessionID uuid.UUID) string { return "tally:dashboard:" + sessionID.String() }
func DayReportKey(sessionID uuid.UUID) string { return "tally:dayreport:" + sessionID.String() }

// SessionKeys lists every key holding data derived from the session.
func SessionKeys(sessionID uuid.UUID) []string {
	return []string{DashboardKey(sessionID), DayReportKey(sessionID)}
}

type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Redis, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &Redis{Client: c, TTL: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key, field string, dst any) (bool, error) {
	raw, err := r.Client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, key, field, data)
	if r.TTL > 0 {
		pipe.Expire(ctx, key, r.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func genKey(key string) string { return key + ":gen" }

func (r *Redis) Generation(ctx context.Context, key string) (int64, error) {
	n, err := r.Client.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// SetIfGeneration watches the generation counter so that an Invalidate
// landing between the check and the write aborts the transaction.
func (r *Redis) SetIfGeneration(ctx context.Context, key, field string, gen int64, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	stored := false
	err = r.Client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(key)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, data)
			if r.TTL > 0 {
				pipe.Expire(ctx, key, r.TTL)
			}
			return nil
		})
		stored = err == nil
		return err
	}, genKey(key))
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return stored, err
}

func (r *Redis) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := r.Client.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, k := range keys {
		pipe.Incr(ctx, genKey(k))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Close() error { return r.Client.Close() }

// Memory is an in-process Cache for single-instance runs and tests.
// Entries do not expire.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
	gen  map[string]int64
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string][]byte{}, gen: map[string]int64{}}
}

func (m *Memory) Get(_ context.Context, key, field string, dst any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key][field]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *Memory) Set(_ context.Context, key, field string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, field, data)
	return nil
}

func (m *Memory) put(key, field string, data []byte) {
	if m.data[key] == nil {
		m.data[key] = map[string][]byte{}
	}
	m.data[key][field] = data
}

func (m *Memory) Generation(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen[key], nil
}

func (m *Memory) SetIfGeneration(_ context.Context, key, field string, gen int64, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen[key] != gen {
		return false, nil
	}
	m.put(key, field, data)
	return true, nil
}

func (m *Memory) Invalidate(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
		m.gen[k]++
	}
	return nil
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, string, any) error         { return nil }
func (Nop) Generation(context.Context, string) (int64, error)      { return 0, nil }
func (Nop) Invalidate(context.Context, ...string) error            { return nil }

func (Nop) SetIfGeneration(context.Context, string, string, int64, any) (bool, error) {
	return false, nil
}
