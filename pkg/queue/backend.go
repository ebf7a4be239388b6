package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrEmpty is returned by PopHead when the list has no entries.
var ErrEmpty = errors.New("queue: empty")

// Backend is the minimal list-store surface the priority queue needs. The
// production implementation is redis; the memory implementation serves
// development and tests.
type Backend interface {
	PushTail(ctx context.Context, key string, value []byte) error
	PopHead(ctx context.Context, key string) ([]byte, error)
	Length(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps a redis client as a queue backend.
func NewRedisBackend(client *redis.Client) Backend {
	return &redisBackend{client: client}
}

func (b *redisBackend) PushTail(ctx context.Context, key string, value []byte) error {
	return b.client.RPush(ctx, key, value).Err()
}

func (b *redisBackend) PopHead(ctx context.Context, key string) ([]byte, error) {
	value, err := b.client.LPop(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *redisBackend) Length(ctx context.Context, key string) (int64, error) {
	return b.client.LLen(ctx, key).Result()
}

func (b *redisBackend) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return b.client.SetNX(ctx, key, value, ttl).Result()
}

func (b *redisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

func (b *redisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryBackend struct {
	mu    sync.Mutex
	lists map[string][][]byte
	keys  map[string]memoryEntry
}

// NewMemoryBackend returns an in-process backend with the same semantics as
// the redis one, for development and tests.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		lists: make(map[string][][]byte),
		keys:  make(map[string]memoryEntry),
	}
}

func (b *memoryBackend) PushTail(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	copied := append([]byte(nil), value...)
	b.lists[key] = append(b.lists[key], copied)
	return nil
}

func (b *memoryBackend) PopHead(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.lists[key]
	if len(list) == 0 {
		return nil, ErrEmpty
	}
	head := list[0]
	b.lists[key] = list[1:]
	return head, nil
}

func (b *memoryBackend) Length(_ context.Context, key string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.lists[key])), nil
}

func (b *memoryBackend) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if entry, ok := b.keys[key]; ok {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			return false, nil
		}
	}
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	b.keys[key] = entry
	return true, nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keys, key)
	return nil
}

func (b *memoryBackend) Ping(context.Context) error {
	return nil
}
