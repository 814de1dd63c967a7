package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arran4/httpcore/cachepolicy"
	"github.com/arran4/httpcore/httpmetrics"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(rt http.RoundTripper) *Client {
	c := New(nil)
	c.Transport = rt
	return c
}

func TestClient_NetworkOnly_StoresCacheableResponse(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Cache-Control": {"max-age=60"}},
			Body:       io.NopCloser(httptest.NewRecorder().Body),
			Request:    r,
		}, nil
	})
	c := newTestClient(rt)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/widgets", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, calls)

	entry, ok, err := c.Store.Get(req.Context(), cachepolicy.Key{Method: "GET", URL: req.URL})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 200, entry.Response.StatusCode)
}

func TestClient_CacheHitAvoidsNetwork(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		body := io.NopCloser(httptest.NewRecorder().Body)
		// The response carries a TLS state: an https:// request may only
		// reuse an entry recorded over a completed handshake.
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Cache-Control": {"max-age=3600"}},
			Body:       body,
			Request:    r,
			TLS:        &tls.ConnectionState{},
		}, nil
	})
	c := newTestClient(rt)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/widgets", nil)
	_, err := c.Do(req)
	require.NoError(t, err)

	req2 := httptest.NewRequest(http.MethodGet, "https://example.com/widgets", nil)
	resp2, err := c.Do(req2)
	require.NoError(t, err)
	assert.Equal(t, 200, resp2.StatusCode)
	assert.Equal(t, 1, calls, "second request should be served from cache without hitting the network")
}

func TestClient_OnlyIfCachedWithoutEntryReturns504(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatal("network must not be reached for only-if-cached without a cache entry")
		return nil, nil
	})
	c := newTestClient(rt)

	req := httptest.NewRequest(http.MethodGet, "https://example.com/widgets", nil)
	req.Header.Set("Cache-Control", "only-if-cached")

	resp, err := c.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}

func TestClient_Enqueue_InvokesResultCallback(t *testing.T) {
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Cache-Control": {"no-store"}},
			Body:       io.NopCloser(httptest.NewRecorder().Body),
			Request:    r,
		}, nil
	})
	c := newTestClient(rt)

	done := make(chan *http.Response, 1)
	req := httptest.NewRequest(http.MethodGet, "https://example.com/widgets", nil)
	c.Enqueue(req.Context(), req, func(resp *http.Response, err error) {
		require.NoError(t, err)
		done <- resp
	})

	resp := <-done
	assert.Equal(t, 200, resp.StatusCode)
}

// SetMetrics must reach every collaborator that records against a
// *httpmetrics.Metrics, not just Client.Metrics itself — otherwise the
// dispatcher and route layers, which New leaves without metrics, silently
// record nothing.
func TestClient_SetMetrics_FansOutToCollaborators(t *testing.T) {
	c := New(nil)
	m := httpmetrics.New("test_client_metrics")

	c.SetMetrics(m)

	assert.Same(t, m, c.Metrics)
	assert.NotNil(t, c.dialer)
	assert.Same(t, m, c.dialer.Metrics)
}
