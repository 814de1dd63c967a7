package cachestore

import (
	"context"
	"time"

	"github.com/arran4/httpcore/cachepolicy"
)

// Entry is what cachestore persists: the cachepolicy.Response metadata
// cachepolicy.Factory.Get needs to re-run its decision, plus the body bytes
// that metadata describes. cachepolicy itself never sees a body — it is a
// pure header/timestamp decision function (spec §5) — so cachestore is the
// seam where persistence joins the policy.
type Entry struct {
	Response cachepolicy.Response
	Body     []byte
}

// ResponseStore persists cache entries keyed by cachepolicy.Key, the way
// chproxy's cache.Cache persists ClickHouse query results keyed by
// cache.Key. Implementations: MemoryStore (process-local) and RedisStore
// (SPEC_FULL domain stack, adapted from cache/redis_cache.go).
type ResponseStore interface {
	Get(ctx context.Context, key cachepolicy.Key) (Entry, bool, error)
	Put(ctx context.Context, key cachepolicy.Key, entry Entry, ttl time.Duration) error
	Delete(ctx context.Context, key cachepolicy.Key) error
	Close() error
}
