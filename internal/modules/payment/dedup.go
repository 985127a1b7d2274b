package payment

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Dedup remembers which webhook event ids have been claimed for processing.
type Dedup interface {
	// Claim reports true if id was not already claimed within the window.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a redelivery is processed again.
	Release(ctx context.Context, id string) error
}

const redisKeyPrefix = "canteen42:stripe:event:"

type redisDedup struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisDedup shares claims across replicas through Redis.
func NewRedisDedup(rdb redis.Cmdable, ttl time.Duration) Dedup {
	return &redisDedup{rdb: rdb, ttl: ttl}
}

func (d *redisDedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, redisKeyPrefix+id, "1", d.ttl).Result()
}

func (d *redisDedup) Release(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, redisKeyPrefix+id).Err()
}

type memoryDedup struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewMemoryDedup keeps at most size claims for ttl each, in process memory.
func NewMemoryDedup(size int, ttl time.Duration) Dedup {
	return &memoryDedup{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (d *memoryDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen.Contains(id) {
		return false, nil
	}
	d.seen.Add(id, struct{}{})
	return true, nil
}

func (d *memoryDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(id)
	return nil
}
