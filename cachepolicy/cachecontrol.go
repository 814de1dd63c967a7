// Package cachepolicy is the pure RFC 7234 decision function from spec
// §4.3: given (clock, request, cached response) it decides whether a call
// may be served from cache, must be revalidated conditionally, or must
// bypass the cache outright. It never performs I/O and is safe to
// construct on the stack and discard (spec §5).
package cachepolicy

import (
	"net/http"
	"strconv"
	"strings"
)

// unset is the sentinel spec §3 assigns to every integer CacheControl
// field that was not present in the header.
const unset = -1

// CacheControl is the parsed set of cache-control directives from spec §3
// and §6. Integer fields use unset (-1) when the directive was absent.
type CacheControl struct {
	NoCache        bool
	NoStore        bool
	MustRevalidate bool
	Public         bool
	Private        bool
	OnlyIfCached   bool
	Immutable      bool

	MaxAge   int
	SMaxAge  int
	MinFresh int
	MaxStale int
}

// ParseCacheControl parses every Cache-Control header line in h (there may
// be more than one; RFC 7230 §3.2.2 says repeated header fields combine as
// a comma-separated list, so http.Header.Values is consulted in full).
func ParseCacheControl(h http.Header) CacheControl {
	cc := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset}
	for _, line := range h.Values("Cache-Control") {
		for _, directive := range strings.Split(line, ",") {
			name, value, _ := strings.Cut(strings.TrimSpace(directive), "=")
			name = strings.ToLower(strings.TrimSpace(name))
			value = strings.Trim(strings.TrimSpace(value), `"`)
			applyDirective(&cc, name, value)
		}
	}
	return cc
}

func applyDirective(cc *CacheControl, name, value string) {
	switch name {
	case "no-cache":
		cc.NoCache = true
	case "no-store":
		cc.NoStore = true
	case "must-revalidate":
		cc.MustRevalidate = true
	case "public":
		cc.Public = true
	case "private":
		cc.Private = true
	case "only-if-cached":
		cc.OnlyIfCached = true
	case "immutable":
		cc.Immutable = true
	case "max-age":
		cc.MaxAge = parseSeconds(value)
	case "s-maxage":
		cc.SMaxAge = parseSeconds(value)
	case "min-fresh":
		cc.MinFresh = parseSeconds(value)
	case "max-stale":
		if value == "" {
			// A bare "max-stale" (no value) permits any amount of
			// staleness; represent that as a very large bound.
			cc.MaxStale = 1<<31 - 1
		} else {
			cc.MaxStale = parseSeconds(value)
		}
	}
}

func parseSeconds(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return unset
	}
	return n
}
