package route

import (
	"context"
	"net"
	"strconv"

	"github.com/arran4/httpcore/httplog"
	"github.com/arran4/httpcore/httpmetrics"
)

// inetCandidate is one (host-or-ip, port) pair produced while resolving the
// current proxy's hop.
type inetCandidate struct {
	host string
	ip   net.IP
	port int
}

// Selector enumerates routes for a single connection attempt: the
// cross-product of proxies (outer) and resolved IP:port pairs (inner),
// deferring any route RouteDatabase marks bad to a postponed buffer drained
// only once every fresh candidate has been produced. It is single-threaded
// and owned by exactly one connection attempt (spec §5).
type Selector struct {
	address  Address
	database *Database

	// Metrics, when set, receives postponed/exhausted counts for this
	// selector's attempts. Left nil by default; httpclient.Dialer installs
	// it on every Selector it constructs once a Client has metrics wired.
	Metrics *httpmetrics.Metrics

	proxies    []Proxy
	proxyIndex int

	candidates []inetCandidate
	inetIndex  int

	postponed []Route
}

// NewSelector builds a Selector for address, resolving the initial proxy
// list per spec §4.2 "resetNextProxy": an explicit address.Proxy wins
// outright (even if it is NoProxy); otherwise the ProxySelector is
// consulted, falling back to a singleton NoProxy list when it returns
// nothing. Every address therefore has at least one route.
func NewSelector(address Address, database *Database) (*Selector, error) {
	s := &Selector{address: address, database: database}
	if err := s.resetNextProxy(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Selector) resetNextProxy() error {
	switch {
	case s.address.Proxy != nil:
		s.proxies = []Proxy{*s.address.Proxy}
	case s.address.ProxySelector != nil:
		proxies, err := s.address.ProxySelector.Select(s.address.URL)
		if err != nil {
			return err
		}
		if len(proxies) > 0 {
			s.proxies = proxies
		} else {
			s.proxies = []Proxy{NoProxy}
		}
	default:
		s.proxies = []Proxy{NoProxy}
	}
	s.proxyIndex = 0
	return nil
}

// HasNext reports whether Next can produce another route: a resolved
// candidate for the current proxy, a not-yet-tried proxy, or a postponed
// route (spec §3 RouteSelector invariant).
func (s *Selector) HasNext() bool {
	return s.hasNextInetSocketAddress() || s.hasNextProxy() || len(s.postponed) > 0
}

func (s *Selector) hasNextInetSocketAddress() bool {
	return s.inetIndex < len(s.candidates)
}

func (s *Selector) hasNextProxy() bool {
	return s.proxyIndex < len(s.proxies)
}

// Next produces the next route in enumeration order, expressed as a
// bounded loop rather than the self-recursion spec §9 Design Notes warns
// against for pathological postpone sets: walk resolved candidates for the
// current proxy, resolving the next proxy's candidates when the current
// one is spent, and only once both are exhausted drain the postponed
// buffer FIFO. Returns ErrExhausted when nothing remains.
func (s *Selector) Next(ctx context.Context) (Route, error) {
	for {
		for s.hasNextInetSocketAddress() {
			c := s.candidates[s.inetIndex]
			s.inetIndex++
			r := Route{
				Address: s.address,
				Proxy:   s.proxies[s.proxyIndex-1],
				Host:    c.host,
				IP:      c.ip,
				Port:    c.port,
			}
			if s.database != nil && s.database.ShouldPostpone(r) {
				httplog.Debugf("route: postponing previously-failed route %s", r)
				if s.Metrics != nil {
					s.Metrics.RoutePostponedTotal.WithLabelValues(r.Proxy.Type.String()).Inc()
				}
				s.postponed = append(s.postponed, r)
				continue
			}
			return r, nil
		}

		if s.hasNextProxy() {
			if err := s.resolveNextProxy(ctx); err != nil {
				return Route{}, err
			}
			continue
		}

		break
	}

	if len(s.postponed) > 0 {
		r := s.postponed[0]
		s.postponed = s.postponed[1:]
		return r, nil
	}

	if s.Metrics != nil {
		s.Metrics.RouteExhaustedTotal.WithLabelValues(s.address.URL.Hostname()).Inc()
	}
	return Route{}, ErrExhausted
}

// resolveNextProxy advances to the next proxy in the list and resolves its
// hop into s.candidates, per spec §4.2 step 2.
func (s *Selector) resolveNextProxy(ctx context.Context) error {
	proxy := s.proxies[s.proxyIndex]
	s.proxyIndex++
	s.inetIndex = 0

	switch proxy.Type {
	case ProxyDirect, ProxySOCKS:
		host := s.address.URL.Hostname()
		portStr, err := defaultPort(s.address.URL)
		if err != nil {
			return err
		}
		port, err := parsePort(portStr)
		if err != nil {
			return err
		}

		if proxy.Type == ProxySOCKS {
			// DNS is the SOCKS proxy's own responsibility: emit a single
			// unresolved pair.
			s.candidates = []inetCandidate{{host: host, port: port}}
			return nil
		}

		ips, err := s.address.DNS.Lookup(ctx, host)
		if err != nil {
			return err
		}
		candidates := make([]inetCandidate, len(ips))
		for i, ip := range ips {
			candidates[i] = inetCandidate{host: host, ip: ip, port: port}
		}
		s.candidates = candidates
		return nil

	case ProxyHTTP:
		host, portStr, err := net.SplitHostPort(proxy.Addr)
		if err != nil {
			return ErrInvalidProxyAddress
		}
		port, err := parsePort(portStr)
		if err != nil {
			return err
		}
		ips, err := s.address.DNS.Lookup(ctx, host)
		if err != nil {
			return err
		}
		candidates := make([]inetCandidate, len(ips))
		for i, ip := range ips {
			candidates[i] = inetCandidate{host: host, ip: ip, port: port}
		}
		s.candidates = candidates
		return nil

	default:
		return ErrInvalidProxyAddress
	}
}

func parsePort(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidPort
	}
	if n < 1 || n > 65535 {
		return 0, ErrInvalidPort
	}
	return n, nil
}

// ConnectFailed reports that a connection attempt through route failed.
// Non-direct proxies are reported to the address's ProxySelector, and the
// route is always recorded in the RouteDatabase so future Selector passes
// postpone it. The Selector itself never reconsiders the failed route.
func (s *Selector) ConnectFailed(route Route, err error) {
	if route.Proxy.Type != ProxyDirect && s.address.ProxySelector != nil {
		s.address.ProxySelector.ConnectFailed(s.address.URL, route.Proxy.Addr, err)
	}
	if s.database != nil {
		s.database.Failed(route)
	}
}
