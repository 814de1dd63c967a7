package cachepolicy

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Key identifies a cache entry by the RFC 7234 primary cache key: method
// plus effective request URI. cachestore uses String() as its backing-store
// key (grounded on chproxy's cache.Key, which hashes a comparable tuple the
// same way).
type Key struct {
	Method string
	URL    *url.URL
}

func (k Key) String() string {
	u := ""
	if k.URL != nil {
		u = k.URL.String()
	}
	sum := sha256.Sum256([]byte(k.Method + " " + u))
	return hex.EncodeToString(sum[:16])
}
