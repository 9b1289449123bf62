// Package dedupe guards against reprocessing transport updates that get
// redelivered after a crash mid-batch. Keys are the transport's own update
// IDs, so marking is deterministic and safe to retry.
package dedupe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard records update IDs for a bounded window and answers whether an ID
// was seen before.
type Guard interface {
	// Seen marks the ID and reports whether it had already been marked.
	Seen(ctx context.Context, updateID int) bool
}

// RedisGuard stores marks in Redis so dedupe survives restarts.
// It fails open: if Redis is unreachable the update is processed, trading a
// rare duplicate side effect for availability.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(addr, password, prefix string, ttl time.Duration) *RedisGuard {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "animebot:update"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisGuard{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
		ttl:    ttl,
	}
}

func (g *RedisGuard) Seen(ctx context.Context, updateID int) bool {
	key := fmt.Sprintf("%s:%d", g.prefix, updateID)
	ok, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false
	}
	return !ok
}

// MemoryGuard is the in-process fallback for deployments without Redis.
type MemoryGuard struct {
	mu   sync.Mutex
	seen map[int]time.Time
	ttl  time.Duration
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryGuard{seen: make(map[int]time.Time), ttl: ttl}
}

func (g *MemoryGuard) Seen(_ context.Context, updateID int) bool {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, at := range g.seen {
		if now.Sub(at) > g.ttl {
			delete(g.seen, id)
		}
	}
	if _, ok := g.seen[updateID]; ok {
		return true
	}
	g.seen[updateID] = now
	return false
}
