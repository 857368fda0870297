package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/models"
)

// dedupTTL bounds how long a dedup key stays in the hot Redis path
// before falling back to the backing Store's own lookup. It only needs
// to comfortably exceed FRESH_MAX plus CLUSTER_EXPIRY so that reports
// about the same incident keep hitting the fast path for the duration
// they are actually useful for correlation.
const dedupTTL = 24 * time.Hour

// RedisDedupCache decorates a Store with a Redis-backed fast path for
// the dedup check, grounded on the TTL fingerprint-dedup pattern
// kubernaut's gateway uses in front of its CRD store, adapted here to
// spec.md §4.3 step 2's dedup key check.
type RedisDedupCache struct {
	Store
	client *redis.Client
}

// NewRedisDedupCache wraps backing with a Redis dedup accelerator.
func NewRedisDedupCache(backing Store, client *redis.Client) *RedisDedupCache {
	return &RedisDedupCache{Store: backing, client: client}
}

// PutReport records the report in the backing store, then marks its
// dedup key in the hot cache. A cache-write failure is logged and
// ignored: the backing store's own Seen check is still correct, just
// slower for this key until the cache recovers.
func (r *RedisDedupCache) PutReport(ctx context.Context, rep *models.Report) error {
	if err := r.Store.PutReport(ctx, rep); err != nil {
		return err
	}
	if err := r.client.Set(ctx, dedupRedisKey(rep.DedupKey), "1", dedupTTL).Err(); err != nil {
		logger.Warn("redis dedup cache write failed", "dedup_key", rep.DedupKey, "error", err)
	}
	return nil
}

// Seen checks the hot cache first; on a cache miss or error it falls
// back to the backing store so a key that aged out of Redis is still
// recognized.
func (r *RedisDedupCache) Seen(dedupKey string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	exists, err := r.client.Exists(ctx, dedupRedisKey(dedupKey)).Result()
	if err != nil {
		logger.Warn("redis dedup cache read failed, falling back to backing store", "error", err)
	} else if exists > 0 {
		return true
	}
	return r.Store.Seen(dedupKey)
}

func dedupRedisKey(dedupKey string) string {
	return "sentinel:dedup:" + dedupKey
}
