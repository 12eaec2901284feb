package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// VerdictCache remembers domains that recently scanned clean so identical
// links in chatty rooms don't re-run the whole provider chain. Positive
// verdicts are never cached; a domain flagged once is always re-checked.
// A nil *VerdictCache is valid and disables caching.
type VerdictCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewVerdictCache connects to Redis at addr. ttl bounds how long a clean
// result is trusted.
func NewVerdictCache(addr string, ttl time.Duration) *VerdictCache {
	return &VerdictCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

func cleanKey(domain string) string { return "phishclaw:clean:" + domain }

// IsClean reports whether the domain scanned clean within the TTL.
// Cache errors count as a miss.
func (c *VerdictCache) IsClean(ctx context.Context, domain string) bool {
	if c == nil {
		return false
	}
	n, err := c.rdb.Exists(ctx, cleanKey(domain)).Result()
	if err != nil {
		slog.Warn("verdict cache read failed", "domain", domain, "error", err)
		return false
	}
	return n > 0
}

// MarkClean records a clean scan result. Best-effort.
func (c *VerdictCache) MarkClean(ctx context.Context, domain string) {
	if c == nil {
		return
	}
	if err := c.rdb.Set(ctx, cleanKey(domain), 1, c.ttl).Err(); err != nil {
		slog.Warn("verdict cache write failed", "domain", domain, "error", err)
	}
}

// Close releases the Redis connection.
func (c *VerdictCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
