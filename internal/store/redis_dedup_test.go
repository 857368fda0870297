package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mplswatch/sentinel/internal/models"
)

func newTestRedisDedupCache(t *testing.T) (*RedisDedupCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	backing := NewMemoryStore()
	return NewRedisDedupCache(backing, client), mr
}

func TestRedisDedupCacheSeenHitsHotPath(t *testing.T) {
	cache, mr := newTestRedisDedupCache(t)
	ctx := context.Background()

	r := &models.Report{DedupKey: "microblog-firehose:1"}
	if err := cache.PutReport(ctx, r); err != nil {
		t.Fatalf("PutReport() error = %v", err)
	}
	if !mr.Exists("sentinel:dedup:microblog-firehose:1") {
		t.Fatal("expected the dedup key to be written to the hot cache")
	}
	if !cache.Seen("microblog-firehose:1") {
		t.Fatal("expected Seen() true via the hot cache")
	}
}

func TestRedisDedupCacheFallsBackToBackingStoreOnCacheMiss(t *testing.T) {
	cache, mr := newTestRedisDedupCache(t)
	ctx := context.Background()

	r := &models.Report{DedupKey: "news-rss:old-guid"}
	if err := cache.PutReport(ctx, r); err != nil {
		t.Fatalf("PutReport() error = %v", err)
	}
	// Simulate the hot-cache entry aging out while the backing store
	// still has the row.
	mr.Del("sentinel:dedup:news-rss:old-guid")

	if !cache.Seen("news-rss:old-guid") {
		t.Fatal("expected fallback to the backing store to still report seen")
	}
}

func TestRedisDedupCacheUnseenKeyIsUnseen(t *testing.T) {
	cache, _ := newTestRedisDedupCache(t)
	if cache.Seen("community-platform:never-seen") {
		t.Fatal("expected an unrecorded key to be unseen")
	}
}
