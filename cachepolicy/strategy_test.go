package cachepolicy

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func header(pairs ...string) http.Header {
	h := make(http.Header)
	for i := 0; i+1 < len(pairs); i += 2 {
		h.Add(pairs[i], pairs[i+1])
	}
	return h
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// Scenario 4 (spec §8): fresh cached response, no request directives.
// Decision: cache only, no warnings.
func TestFactory_Fresh(t *testing.T) {
	now := time.Unix(1_000_000_000, 0).UTC()
	sent := now.Add(-31 * time.Second)
	received := now.Add(-30 * time.Second)

	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=60",
		),
		Sent:         sent,
		Received:     received,
		TLSHandshake: false,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/"), Header: header()}

	f := Factory{Now: fixedClock(now)}
	d := f.Get(req, cached)

	require.Equal(t, CacheOnly, d.Kind)
	require.NotNil(t, d.CacheResponse)
	assert.Nil(t, d.NetworkRequest)
	assert.Empty(t, d.CacheResponse.Header.Values("Warning"))
}

// Scenario 5 (spec §8): same response, but max-age=20 makes it stale ->
// conditional GET with If-None-Match (ETag wins).
func TestFactory_StaleToConditional_ETag(t *testing.T) {
	now := time.Unix(1_000_000_000, 0).UTC()
	sent := now.Add(-31 * time.Second)
	received := now.Add(-30 * time.Second)

	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=20",
			"ETag", `"abc123"`,
		),
		Sent:     sent,
		Received: received,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/"), Header: header()}

	f := Factory{Now: fixedClock(now)}
	d := f.Get(req, cached)

	require.Equal(t, Conditional, d.Kind)
	require.NotNil(t, d.NetworkRequest)
	assert.Equal(t, `"abc123"`, d.NetworkRequest.Header.Get("If-None-Match"))
	assert.Equal(t, cached, d.CacheResponse)
}

func TestFactory_StaleToConditional_LastModifiedFallback(t *testing.T) {
	now := time.Unix(1_000_000_000, 0).UTC()
	sent := now.Add(-31 * time.Second)
	received := now.Add(-30 * time.Second)
	lastModified := received.Add(-48 * time.Hour)

	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=20",
			"Last-Modified", lastModified.Format(http.TimeFormat),
		),
		Sent:     sent,
		Received: received,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/"), Header: header()}

	f := Factory{Now: fixedClock(now)}
	d := f.Get(req, cached)

	require.Equal(t, Conditional, d.Kind)
	assert.Equal(t, lastModified.Format(http.TimeFormat), d.NetworkRequest.Header.Get("If-Modified-Since"))
}

// Scenario 6 (spec §8): expired cache + only-if-cached -> (∅, ∅).
func TestFactory_OnlyIfCachedDenied(t *testing.T) {
	now := time.Unix(1_000_000_000, 0).UTC()
	received := now.Add(-1 * time.Hour)

	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=10",
		),
		Sent:     received.Add(-time.Second),
		Received: received,
	}
	req := Request{
		Method: "GET",
		URL:    mustURL(t, "http://example.com/"),
		Header: header("Cache-Control", "only-if-cached"),
	}

	f := Factory{Now: fixedClock(now)}
	d := f.Get(req, cached)

	assert.Equal(t, Unsatisfiable, d.Kind)
	assert.Nil(t, d.NetworkRequest)
	assert.Nil(t, d.CacheResponse)
}

func TestFactory_OnlyIfCachedSatisfiedFromFreshCache(t *testing.T) {
	now := time.Unix(1_000_000_000, 0).UTC()
	received := now.Add(-5 * time.Second)
	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=60",
		),
		Sent:     received.Add(-time.Second),
		Received: received,
	}
	req := Request{
		Method: "GET",
		URL:    mustURL(t, "http://example.com/"),
		Header: header("Cache-Control", "only-if-cached"),
	}
	f := Factory{Now: fixedClock(now)}
	d := f.Get(req, cached)
	assert.Equal(t, CacheOnly, d.Kind)
}

func TestFactory_NoCachedResponse(t *testing.T) {
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/"), Header: header()}
	f := Factory{}
	d := f.Get(req, nil)
	assert.Equal(t, NetworkOnly, d.Kind)
	assert.NotNil(t, d.NetworkRequest)
}

func TestFactory_HTTPSWithoutHandshakeForcesNetwork(t *testing.T) {
	now := time.Now()
	cached := &Response{
		StatusCode:   200,
		Header:       header("Cache-Control", "max-age=600"),
		Sent:         now.Add(-time.Second),
		Received:     now,
		TLSHandshake: false,
	}
	req := Request{Method: "GET", URL: mustURL(t, "https://example.com/"), Header: header()}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, NetworkOnly, d.Kind)
}

func TestFactory_NonStorableStatusForcesNetwork(t *testing.T) {
	now := time.Now()
	cached := &Response{
		StatusCode: 500,
		Header:     header("Cache-Control", "max-age=600"),
		Sent:       now.Add(-time.Second),
		Received:   now,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/"), Header: header()}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, NetworkOnly, d.Kind)
}

func TestFactory_RequestNoCacheForcesNetwork(t *testing.T) {
	now := time.Now()
	cached := &Response{
		StatusCode: 200,
		Header:     header("Cache-Control", "max-age=600"),
		Sent:       now.Add(-time.Second),
		Received:   now,
	}
	req := Request{
		Method: "GET", URL: mustURL(t, "http://example.com/"),
		Header: header("Cache-Control", "no-cache"),
	}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, NetworkOnly, d.Kind)
}

func TestFactory_RequestConditionalHeadersForceNetwork(t *testing.T) {
	now := time.Now()
	cached := &Response{
		StatusCode: 200,
		Header:     header("Cache-Control", "max-age=600"),
		Sent:       now.Add(-time.Second),
		Received:   now,
	}
	req := Request{
		Method: "GET", URL: mustURL(t, "http://example.com/"),
		Header: header("If-None-Match", `"x"`),
	}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, NetworkOnly, d.Kind)
}

func TestFactory_StaleWarning110(t *testing.T) {
	now := time.Unix(2_000_000_000, 0).UTC()
	received := now.Add(-100 * time.Second)
	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=60",
		),
		Sent:     received.Add(-time.Second),
		Received: received,
	}
	req := Request{
		Method: "GET", URL: mustURL(t, "http://example.com/"),
		Header: header("Cache-Control", "max-stale=1000"),
	}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	require.Equal(t, CacheOnly, d.Kind)
	assert.Contains(t, d.CacheResponse.Header.Values("Warning"), `110 httpcore "Response is stale"`)
}

func TestFactory_HeuristicWarning113(t *testing.T) {
	now := time.Unix(2_000_000_000, 0).UTC()
	received := now.Add(-2 * 24 * time.Hour)
	lastModified := received.Add(-200 * 24 * time.Hour)
	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Last-Modified", lastModified.Format(http.TimeFormat),
		),
		RequestURL: mustURL(t, "http://example.com/no-query"),
		Sent:       received.Add(-time.Second),
		Received:   received,
	}
	req := Request{
		Method: "GET", URL: mustURL(t, "http://example.com/no-query"),
		Header: header("Cache-Control", "max-stale=1000000"),
	}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	require.Equal(t, CacheOnly, d.Kind)
	assert.Contains(t, d.CacheResponse.Header.Values("Warning"), `113 httpcore "Heuristic expiration"`)
}

func TestFactory_HeuristicFreshnessSkippedWithQuery(t *testing.T) {
	now := time.Unix(2_000_000_000, 0).UTC()
	received := now.Add(-time.Hour)
	lastModified := received.Add(-200 * 24 * time.Hour)
	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Last-Modified", lastModified.Format(http.TimeFormat),
		),
		RequestURL: mustURL(t, "http://example.com/search?q=1"),
		Sent:       received.Add(-time.Second),
		Received:   received,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/search?q=1"), Header: header()}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	// With no heuristic freshness lifetime (query string present), the
	// response is already stale; ETag/Last-Modified conditional fires.
	require.Equal(t, Conditional, d.Kind)
}

func TestFactory_VaryMismatchForcesNetwork(t *testing.T) {
	now := time.Now()
	cached := &Response{
		StatusCode:    200,
		Header:        header("Cache-Control", "max-age=600", "Vary", "Accept-Encoding"),
		RequestHeader: header("Accept-Encoding", "gzip"),
		Sent:          now.Add(-time.Second),
		Received:      now,
	}
	req := Request{
		Method: "GET", URL: mustURL(t, "http://example.com/"),
		Header: header("Accept-Encoding", "identity"),
	}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, NetworkOnly, d.Kind)
}

func TestFactory_ImmutableServesWithoutRevalidation(t *testing.T) {
	now := time.Unix(2_000_000_000, 0).UTC()
	received := now.Add(-365 * 24 * time.Hour)
	cached := &Response{
		StatusCode: 200,
		Header: header(
			"Date", received.Format(http.TimeFormat),
			"Cache-Control", "max-age=60, immutable",
		),
		Sent:     received.Add(-time.Second),
		Received: received,
	}
	req := Request{Method: "GET", URL: mustURL(t, "http://example.com/asset.js"), Header: header()}
	d := Factory{Now: fixedClock(now)}.Get(req, cached)
	assert.Equal(t, CacheOnly, d.Kind)
}

func TestIsCacheable_StatusTable(t *testing.T) {
	cc := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset}
	for _, status := range []int{200, 203, 204, 300, 301, 404, 405, 410, 414, 501, 308} {
		assert.True(t, IsCacheable(status, header(), cc), "status %d", status)
	}
	for _, status := range []int{100, 201, 202, 303, 400, 500, 502} {
		assert.False(t, IsCacheable(status, header(), cc), "status %d", status)
	}
}

func TestIsCacheable_302RequiresFreshnessSignal(t *testing.T) {
	cc := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset}
	assert.False(t, IsCacheable(302, header(), cc))
	assert.True(t, IsCacheable(302, header("Expires", "Wed, 21 Oct 2026 07:28:00 GMT"), cc))
	assert.True(t, IsCacheable(302, header("Cache-Control", "max-age=10"), cc))
	assert.True(t, IsCacheable(302, header("Cache-Control", "public"), cc))
	assert.True(t, IsCacheable(307, header("Cache-Control", "private"), cc))
}

func TestIsCacheable_NoStoreWins(t *testing.T) {
	cc := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset, NoStore: true}
	assert.False(t, IsCacheable(200, header(), cc))

	reqCC := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset}
	assert.False(t, IsCacheable(200, header("Cache-Control", "no-store"), reqCC))
}

func TestIsCacheable_SMaxAgeIgnored(t *testing.T) {
	// s-maxage alone, on a 302, is not one of the recognized freshness
	// signals for a private cache (spec §4.3: "s-maxage is ignored").
	cc := CacheControl{MaxAge: unset, SMaxAge: unset, MinFresh: unset, MaxStale: unset}
	assert.False(t, IsCacheable(302, header("Cache-Control", "s-maxage=600"), cc))
}
