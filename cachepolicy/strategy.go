package cachepolicy

import "time"

// Kind tags which of the four outcomes spec §4.3's table describes a
// Decision represents. Using an explicit variant instead of two bare
// pointers (spec §9 Design Notes) makes the "caller must synthesize a 504"
// case impossible to silently drop.
type Kind int

const (
	// NetworkOnly: hit the network, nothing usable in cache.
	NetworkOnly Kind = iota
	// CacheOnly: serve the cached response, no network round trip.
	CacheOnly
	// Conditional: a conditional GET — hit the network with validators,
	// fall back to the cached response on 304.
	Conditional
	// Unsatisfiable: only-if-cached was requested and nothing usable is
	// cached; the caller must synthesize a 504.
	Unsatisfiable
)

// Decision is the CacheStrategy output from spec §4.3: NetworkRequest and
// CacheResponse are each independently optional, and the four combinations
// correspond 1:1 with Kind.
type Decision struct {
	Kind           Kind
	NetworkRequest *Request
	CacheResponse  *Response
}

// Factory resolves a Decision for a single (now, request, cached) triple.
// It is pure and cheap to construct on the stack per call (spec §5).
type Factory struct {
	// Now returns the current time. Defaults to time.Now if nil.
	Now func() time.Time
	// DateParser parses HTTP-date header values. Defaults to
	// DefaultDateParser if nil.
	DateParser DateParser
}

func (f Factory) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f Factory) dateParser() DateParser {
	if f.DateParser != nil {
		return f.DateParser
	}
	return DefaultDateParser
}

// Get implements spec §4.3's top-level entry point: it resolves
// getCandidate, then downgrades any network-bound outcome to Unsatisfiable
// when the request carries only-if-cached.
func (f Factory) Get(request Request, cached *Response) Decision {
	candidate := f.getCandidate(request, cached)

	if candidate.NetworkRequest != nil {
		reqCC := ParseCacheControl(request.Header)
		if reqCC.OnlyIfCached {
			return Decision{Kind: Unsatisfiable}
		}
	}

	return candidate
}

// getCandidate implements spec §4.3's algorithm; the first matching rule
// wins.
func (f Factory) getCandidate(request Request, cached *Response) Decision {
	// Rule 1: nothing cached.
	if cached == nil {
		return networkOnly(request)
	}

	// Rule 2: https request, cache entry recorded without a TLS handshake.
	if request.IsHTTPS() && !cached.TLSHandshake {
		return networkOnly(request)
	}

	reqCC := ParseCacheControl(request.Header)

	// Rule 3: the cached response is itself non-storable.
	if !IsCacheable(cached.StatusCode, cached.Header, reqCC) {
		return networkOnly(request)
	}

	// Supplemented: Vary mismatch makes the cached entry inapplicable to
	// this request regardless of freshness (see vary.go).
	if !varyMatches(*cached, request) {
		return networkOnly(request)
	}

	// Rule 4: request forces revalidation or already carries a
	// conditional validator — let the origin arbitrate.
	if reqCC.NoCache || request.Header.Get("If-Modified-Since") != "" || request.Header.Get("If-None-Match") != "" {
		return networkOnly(request)
	}

	respCC := ParseCacheControl(cached.Header)
	parseDate := f.dateParser()
	now := f.now()

	ageMillis := age(now, *cached, parseDate)
	freshMillis, heuristic := freshnessLifetime(*cached, parseDate)

	if reqCC.MaxAge != unset {
		if cap := time.Duration(reqCC.MaxAge) * time.Second; cap < freshMillis {
			freshMillis = cap
		}
	}

	minFreshMillis := time.Duration(0)
	if reqCC.MinFresh != unset {
		minFreshMillis = time.Duration(reqCC.MinFresh) * time.Second
	}

	maxStaleMillis := time.Duration(0)
	if !respCC.MustRevalidate && reqCC.MaxStale != unset {
		maxStaleMillis = time.Duration(reqCC.MaxStale) * time.Second
	}

	// Supplemented: Cache-Control: immutable short-circuits the
	// freshness test entirely (see SPEC_FULL.md) — an immutable response
	// is always servable until the caller evicts it, never revalidated.
	if respCC.Immutable && !respCC.NoCache {
		served := cached.clone()
		return Decision{Kind: CacheOnly, CacheResponse: &served}
	}

	// Rule 5: fresh enough (accounting for min-fresh/max-stale slack).
	if !respCC.NoCache && ageMillis+minFreshMillis < freshMillis+maxStaleMillis {
		served := cached.clone()
		addWarnings(&served, ageMillis, minFreshMillis, freshMillis, heuristic)
		return Decision{Kind: CacheOnly, CacheResponse: &served}
	}

	// Rule 6: conditional GET, preferring ETag, then Last-Modified, then
	// Date; no basis for one means plain network-only.
	condRequest := request.clone()
	switch {
	case cached.Header.Get("ETag") != "":
		condRequest.Header.Set("If-None-Match", cached.Header.Get("ETag"))
	case cached.Header.Get("Last-Modified") != "":
		condRequest.Header.Set("If-Modified-Since", cached.Header.Get("Last-Modified"))
	case cached.Header.Get("Date") != "":
		condRequest.Header.Set("If-Modified-Since", cached.Header.Get("Date"))
	default:
		return networkOnly(request)
	}

	return Decision{Kind: Conditional, NetworkRequest: &condRequest, CacheResponse: cached}
}

func networkOnly(request Request) Decision {
	return Decision{Kind: NetworkOnly, NetworkRequest: &request}
}

// addWarnings appends the RFC 7234 §5.5 warnings spec §6 names: 110 when
// the served response is already past its raw freshness window (only
// tolerable thanks to min-fresh/max-stale slack) and 113 when a
// heuristically-computed lifetime is being relied on past a day old.
func addWarnings(resp *Response, ageMillis, minFreshMillis, freshMillis time.Duration, heuristic bool) {
	if ageMillis+minFreshMillis >= freshMillis {
		resp.Header.Add("Warning", `110 httpcore "Response is stale"`)
	}
	if heuristic && ageMillis > 24*time.Hour {
		resp.Header.Add("Warning", `113 httpcore "Heuristic expiration"`)
	}
}
