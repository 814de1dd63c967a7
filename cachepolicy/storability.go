package cachepolicy

import "net/http"

// cacheableStatuses are unconditionally cacheable (subject to directives),
// per spec §4.3 "Storability".
var cacheableStatuses = map[int]bool{
	200: true, 203: true, 204: true, 300: true, 301: true,
	404: true, 405: true, 410: true, 414: true, 501: true, 308: true,
}

// conditionallyCacheableStatuses (302, 307) require an explicit freshness
// signal before they may be stored.
var conditionallyCacheableStatuses = map[int]bool{302: true, 307: true}

// IsCacheable implements spec §4.3 "Storability (isCacheable)": a no-store
// directive on either side forbids caching entirely; s-maxage is ignored
// because this is a private, not a shared, cache.
func IsCacheable(statusCode int, header http.Header, reqCC CacheControl) bool {
	respCC := ParseCacheControl(header)
	if reqCC.NoStore || respCC.NoStore {
		return false
	}

	if cacheableStatuses[statusCode] {
		return true
	}

	if conditionallyCacheableStatuses[statusCode] {
		if header.Get("Expires") != "" {
			return true
		}
		if respCC.MaxAge != unset || respCC.Public || respCC.Private {
			return true
		}
		return false
	}

	return false
}
