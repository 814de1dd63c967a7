package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"

	"github.com/arran4/httpcore/httplog"
	"github.com/arran4/httpcore/httpmetrics"
	"github.com/arran4/httpcore/route"
)

// Dialer opens connections by walking a route.Selector instead of a single
// net.Dialer.DialContext call, so the Resolver's address order and the
// shared Database's postponement of failed routes decide which route gets
// tried, and in which order. The Address it builds carries no proxy or
// ProxySelector, so every route is direct. It is the http.Transport's
// DialContext/DialTLSContext hook (see New).
type Dialer struct {
	Database *route.Database
	Resolver route.DNS
	Metrics  *httpmetrics.Metrics

	net.Dialer
}

// NewDialer returns a Dialer sharing db across every Selector it builds, so
// a route that fails once is postponed on every later attempt for the
// lifetime of the Client (spec §6 RouteDatabase is process-wide).
func NewDialer(db *route.Database) *Dialer {
	return &Dialer{Database: db, Resolver: route.SystemDNS{}}
}

// DialTLSContext opens a connection through DialContext and completes a TLS
// handshake over it, using addr's host as the server name. Only direct TLS
// connections are made: no HTTP CONNECT tunnel is ever established.
func (d *Dialer) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, splitErr := net.SplitHostPort(addr)
	if splitErr != nil {
		host = addr
	}
	tlsConn := tls.Client(conn, &tls.Config{ServerName: host})
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

// DialContext enumerates routes for addr via a fresh route.Selector and
// tries each in turn, stopping at the first successful net.Dial. Each route
// is direct, so each attempt dials a resolved IP of addr's host; a failed
// attempt is reported through ConnectFailed before the next route is tried.
func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	u := &url.URL{Scheme: "http", Host: addr}

	selector, err := route.NewSelector(route.Address{
		URL: u,
		DNS: d.Resolver,
	}, d.Database)
	if err != nil {
		return nil, err
	}
	selector.Metrics = d.Metrics

	var lastErr error
	for selector.HasNext() {
		r, err := selector.Next(ctx)
		if err != nil {
			return nil, err
		}

		conn, dialErr := d.Dialer.DialContext(ctx, network, r.Addr())
		if dialErr == nil {
			return conn, nil
		}

		httplog.Debugf("httpclient: route %s failed: %s", r, dialErr)
		selector.ConnectFailed(r, dialErr)
		lastErr = dialErr
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("httpclient: no route available for %q", addr)
	}
	return nil, lastErr
}
