package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"neuraslide/internal/types"
)

// Deduper guards against duplicate provider deliveries. Both Instagram and
// Stripe redeliver webhooks as normal behavior; marking an event id before
// executing side effects prevents double message writes and double reply
// posts.
type Deduper interface {
	// MarkSeen records the event id and reports whether it was seen before.
	// The first caller for a given id gets seen=false; every subsequent
	// caller within the retention window gets seen=true.
	MarkSeen(ctx context.Context, provider types.Provider, eventID string) (seen bool, err error)
}

// ---------------------------------------------------------------------------
// Redis-backed guard
// ---------------------------------------------------------------------------

// RedisDeduper implements Deduper with a SET NX EX per event id. The TTL
// bounds memory while comfortably exceeding both providers' retry horizons.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Deduper backed by the given redis client.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// MarkSeen implements Deduper.
func (d *RedisDeduper) MarkSeen(ctx context.Context, provider types.Provider, eventID string) (bool, error) {
	key := dedupKey(provider, eventID)
	set, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup mark %s: %w", key, err)
	}
	// SetNX returns true when the key was newly written, i.e. not seen before.
	return !set, nil
}

func dedupKey(provider types.Provider, eventID string) string {
	return fmt.Sprintf("dedup:%s:%s", provider, eventID)
}

// ---------------------------------------------------------------------------
// In-memory guard
// ---------------------------------------------------------------------------

// MemoryDeduper is a process-local Deduper for tests and single-process
// deployments without redis. Expired entries are swept at most once per TTL
// so the map stays bounded in long-lived processes.
type MemoryDeduper struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryDeduper creates an in-memory Deduper with the given retention.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryDeduper{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// MarkSeen implements Deduper.
func (d *MemoryDeduper) MarkSeen(_ context.Context, provider types.Provider, eventID string) (bool, error) {
	key := dedupKey(provider, eventID)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep(now)

	if at, ok := d.seen[key]; ok && now.Sub(at) < d.ttl {
		return true, nil
	}
	d.seen[key] = now
	return false, nil
}

// sweep drops expired entries. Runs under d.mu, at most once per TTL.
func (d *MemoryDeduper) sweep(now time.Time) {
	if now.Sub(d.lastSweep) < d.ttl {
		return
	}
	d.lastSweep = now
	for key, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, key)
		}
	}
}
