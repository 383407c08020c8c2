// Package cache stores serialized simulator responses keyed by request hash.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented key/value store
type Cache interface {
	// Get returns the stored value and whether it was found
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores a value
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is an in-process cache bounded by entry count.
// When full, the oldest inserted entry is evicted.
type Memory struct {
	mu      sync.RWMutex
	items   map[string][]byte
	order   []string
	maxSize int
}

// NewMemory creates a memory cache; maxSize <= 0 means unbounded
func NewMemory(maxSize int) *Memory {
	return &Memory{
		items:   make(map[string][]byte),
		order:   make([]string, 0),
		maxSize: maxSize,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	if _, exists := m.items[key]; !exists {
		m.order = append(m.order, key)
	}
	m.items[key] = stored

	for m.maxSize > 0 && len(m.order) > m.maxSize {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.items, oldest)
	}
	return nil
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Redis stores entries in a Redis instance shared between processes
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps an existing client. Keys are namespaced by prefix; ttl 0 keeps entries forever.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis creates a client for addr and verifies it with a ping
func DialRedis(ctx context.Context, addr, prefix string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb, prefix, ttl), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Close releases the underlying client
func (r *Redis) Close() error {
	return r.client.Close()
}

// Tiered reads through a fast local cache before a shared one and fills the local cache on hits
type Tiered struct {
	local  Cache
	shared Cache
}

// NewTiered creates a two-level cache
func NewTiered(local, shared Cache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.local.Get(ctx, key); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := t.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.local.Set(ctx, key, v)
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	if err := t.local.Set(ctx, key, value); err != nil {
		return err
	}
	return t.shared.Set(ctx, key, value)
}
