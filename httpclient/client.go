// Package httpclient wires dispatch.Dispatcher, route.Selector,
// cachepolicy.Factory and cachestore.ResponseStore together into a usable
// http.RoundTripper, the way chproxy's reverseProxy (proxy.go) wires
// scope.Scopes, cache.Cache and the upstream http.Transport into one
// request path — generalized here from "reverse proxy in front of
// ClickHouse" to "caching client in front of arbitrary origins".
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arran4/httpcore/cachepolicy"
	"github.com/arran4/httpcore/cachestore"
	"github.com/arran4/httpcore/dispatch"
	"github.com/arran4/httpcore/httplog"
	"github.com/arran4/httpcore/httpmetrics"
	"github.com/arran4/httpcore/route"
)

// DefaultFreshnessCap is the store TTL maybeStore gives every cacheable
// entry it persists, whatever freshness lifetime the response declares, so
// a store never keeps an entry longer than this.
const DefaultFreshnessCap = 24 * time.Hour

// Client is the top-level entry point: one Dispatcher, one Database, one
// cachepolicy.Factory, and an optional cachestore.ResponseStore, composed
// into a single http.RoundTripper (spec §1's three subsystems acting as
// one client).
type Client struct {
	Dispatcher *dispatch.Dispatcher
	Database   *route.Database
	Policy     cachepolicy.Factory
	Store      cachestore.ResponseStore
	Metrics    *httpmetrics.Metrics

	// Transport performs the actual network round trip. Defaults to an
	// *http.Transport whose DialContext/DialTLSContext are a Dialer over
	// Database, so the route package actually governs connection
	// establishment.
	Transport http.RoundTripper

	// dialer is the Dialer backing the default Transport, kept so
	// SetMetrics can reach the route layer it owns. Nil when Transport has
	// been replaced with something other than New's default.
	dialer *Dialer
}

// New builds a Client ready for use. pool is passed to dispatch.New as-is
// (nil selects dispatch's own lazily-constructed default Pool).
func New(pool dispatch.WorkerPool) *Client {
	db := route.NewDatabase()
	dialer := NewDialer(db)
	return &Client{
		Dispatcher: dispatch.New(pool),
		Database:   db,
		Store:      cachestore.NewMemoryStore(),
		Transport: &http.Transport{
			DialContext:    dialer.DialContext,
			DialTLSContext: dialer.DialTLSContext,
		},
		dialer: dialer,
	}
}

// SetMetrics installs m across every collaborator that records against it:
// the Dispatcher's per-host running/queued gauges, the route Dialer's
// postponed/exhausted counters, and recordDecision's cache-decision
// counter. Call once, before the Client starts serving requests.
func (c *Client) SetMetrics(m *httpmetrics.Metrics) {
	c.Metrics = m
	c.Dispatcher.SetMetrics(m)
	if c.dialer != nil {
		c.dialer.Metrics = m
	}
}

// Do performs req synchronously: the calling goroutine blocks for the
// duration, registered with the Dispatcher only for bookkeeping (spec §3
// SyncCall — no admission limit applies).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	cl := &call{host: req.URL.Hostname()}
	c.Dispatcher.Executed(cl)
	defer c.Dispatcher.Finished(cl, false)

	return c.roundTrip(req)
}

// RoundTrip implements http.RoundTripper, so a Client can be dropped in
// wherever an *http.Client expects one — e.g. (&http.Client{Transport:
// client}).Get(url).
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	key := cachepolicy.Key{Method: req.Method, URL: req.URL}

	var cached *cachepolicy.Response
	var cachedBody []byte
	if c.Store != nil {
		entry, ok, err := c.Store.Get(req.Context(), key)
		if err != nil {
			httplog.Errorf("httpclient: cache lookup for %s failed: %s", key, err)
		} else if ok {
			cached = &entry.Response
			cachedBody = entry.Body
		}
	}

	policyReq := cachepolicy.Request{Method: req.Method, URL: req.URL, Header: req.Header}
	decision := c.Policy.Get(policyReq, cached)

	c.recordDecision(decision.Kind)

	switch decision.Kind {
	case cachepolicy.CacheOnly:
		return synthesizeResponse(req, *decision.CacheResponse, cachedBody), nil

	case cachepolicy.Unsatisfiable:
		return unsatisfiableResponse(req), nil

	case cachepolicy.Conditional:
		outgoing := applyPolicyRequest(req, decision.NetworkRequest)
		resp, err := c.Transport.RoundTrip(outgoing)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotModified {
			resp.Body.Close()
			merged := mergeValidators(*decision.CacheResponse, resp.Header)
			return synthesizeResponse(req, merged, cachedBody), nil
		}
		return c.maybeStore(req, key, resp)

	default: // cachepolicy.NetworkOnly
		outgoing := applyPolicyRequest(req, decision.NetworkRequest)
		resp, err := c.Transport.RoundTrip(outgoing)
		if err != nil {
			return nil, err
		}
		return c.maybeStore(req, key, resp)
	}
}

func (c *Client) recordDecision(kind cachepolicy.Kind) {
	if c.Metrics == nil {
		return
	}
	var label string
	switch kind {
	case cachepolicy.CacheOnly:
		label = "cache"
	case cachepolicy.Conditional:
		label = "conditional"
	case cachepolicy.Unsatisfiable:
		label = "unsatisfiable"
	default:
		label = "network"
	}
	c.Metrics.CacheDecisionsTotal.WithLabelValues(label).Inc()
}

// maybeStore reads resp's body fully (needed either way, to hand back an
// intact response), and — when IsCacheable says the status/headers allow it
// — persists it to Store keyed by key.
func (c *Client) maybeStore(req *http.Request, key cachepolicy.Key, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("httpclient: reading response body: %w", err)
	}

	now := time.Now()
	sent := now
	if c.Policy.Now != nil {
		sent = c.Policy.Now()
	}

	cacheResp := cachepolicy.Response{
		StatusCode:    resp.StatusCode,
		Header:        resp.Header,
		RequestMethod: req.Method,
		RequestURL:    req.URL,
		RequestHeader: req.Header,
		Sent:          sent,
		Received:      sent,
		TLSHandshake:  resp.TLS != nil,
	}

	if c.Store != nil && cachepolicy.IsCacheable(resp.StatusCode, resp.Header, cachepolicy.ParseCacheControl(req.Header)) {
		if err := c.Store.Put(req.Context(), key, cachestore.Entry{Response: cacheResp, Body: body}, DefaultFreshnessCap); err != nil {
			httplog.Errorf("httpclient: storing %s failed: %s", key, err)
		}
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func applyPolicyRequest(req *http.Request, policyReq *cachepolicy.Request) *http.Request {
	if policyReq == nil {
		return req
	}
	out := req.Clone(req.Context())
	out.Header = policyReq.Header
	return out
}

// mergeValidators applies a 304 response's updated headers onto the cached
// entry. Per RFC 7234 §4.3.4, a successful revalidation must not carry
// forward stale Warning entries from the prior response.
func mergeValidators(cached cachepolicy.Response, fresh http.Header) cachepolicy.Response {
	merged := cached
	merged.Header = cached.Header.Clone()
	merged.Header.Del("Warning")
	for k, v := range fresh {
		if k == "Warning" {
			continue
		}
		merged.Header[k] = v
	}
	return merged
}

func synthesizeResponse(req *http.Request, cached cachepolicy.Response, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    cached.StatusCode,
		Status:        fmt.Sprintf("%d %s", cached.StatusCode, http.StatusText(cached.StatusCode)),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        cached.Header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

func unsatisfiableResponse(req *http.Request) *http.Response {
	body := []byte("httpclient: only-if-cached and no usable cache entry\n")
	return &http.Response{
		StatusCode:    http.StatusGatewayTimeout,
		Status:        "504 Gateway Timeout",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// Enqueue schedules an asynchronous call through the Dispatcher's
// admission control (spec §3 AsyncCall). Once admitted, the request runs on
// the worker pool; when it completes the call is reported Finished, which
// frees the admission slot and promotes the next ready call, and then
// result is invoked with the response or error.
func (c *Client) Enqueue(ctx context.Context, req *http.Request, result func(*http.Response, error)) {
	ctx, cancelFn := context.WithCancel(ctx)
	req = req.WithContext(ctx)

	cl := &call{host: req.URL.Hostname(), cancel: cancelFn}
	c.Dispatcher.Enqueue(cl, func() {
		resp, err := c.roundTrip(req)
		c.Dispatcher.Finished(cl, true)
		result(resp, err)
	})
}
