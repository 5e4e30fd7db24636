package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenCache is a best-effort Redis front for the ledger: consumers check
// it before opening a transaction so hot duplicates skip the database
// round trip entirely. Entries are written only after the ledger marker
// commits, so a cache miss is always resolved by the authoritative table
// and a cache outage only costs the fast path.
type SeenCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSeenCache(rdb *redis.Client, ttl time.Duration) *SeenCache {
	return &SeenCache{rdb: rdb, ttl: ttl}
}

func (c *SeenCache) key(service, eventID string) string {
	return fmt.Sprintf("seen:%s:%s", service, eventID)
}

// Seen reports whether the event was recently applied. Errors degrade to
// "not seen" so Redis unavailability never blocks processing.
func (c *SeenCache) Seen(ctx context.Context, service, eventID string) bool {
	n, err := c.rdb.Exists(ctx, c.key(service, eventID)).Result()
	return err == nil && n > 0
}

// Remember records an applied event. Call it after the transaction holding
// the ledger marker has committed.
func (c *SeenCache) Remember(ctx context.Context, service, eventID string) {
	_ = c.rdb.Set(ctx, c.key(service, eventID), "1", c.ttl).Err()
}
