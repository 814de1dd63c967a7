package route

import (
	"errors"
	"fmt"
	"net"
)

// ErrInvalidProxyAddress is returned when an HTTP proxy's Addr is not a
// well-formed "host:port" string, or when a proxy has an unknown type. A
// SOCKS proxy's Addr is not parsed by the Selector.
var ErrInvalidProxyAddress = errors.New("route: proxy address is not a valid host:port")

// ErrInvalidPort is returned when a resolved port falls outside [1, 65535].
var ErrInvalidPort = errors.New("route: port out of range")

// ErrExhausted is returned by Selector.Next once every route — direct,
// proxied, and postponed — has been produced.
var ErrExhausted = errors.New("route: no more routes to try")

// Route is everything needed to open a socket for one connection attempt:
// the target Address, the Proxy hop chosen for it, and a resolved
// destination. For SOCKS proxies DNS resolution is the proxy's own
// responsibility, so IP is nil and Host carries the unresolved hostname
// instead.
type Route struct {
	Address Address
	Proxy   Proxy
	Host    string
	IP      net.IP
	Port    int
}

// Addr renders the destination as is customary for net.Dial: "ip:port" when
// resolved, "host:port" otherwise.
func (r Route) Addr() string {
	if r.IP != nil {
		return net.JoinHostPort(r.IP.String(), fmt.Sprint(r.Port))
	}
	return net.JoinHostPort(r.Host, fmt.Sprint(r.Port))
}

// Key is the canonical identity RouteDatabase uses to remember a failed
// route: the proxy hop plus the concrete destination, not the logical
// Address (two Addresses resolving to the same IP:port over the same proxy
// are the same Route for postponement purposes).
func (r Route) Key() string {
	return fmt.Sprintf("%d|%s|%s", r.Proxy.Type, r.Proxy.Addr, r.Addr())
}

func (r Route) String() string {
	return fmt.Sprintf("Route{proxy=%s, addr=%s}", r.Proxy, r.Addr())
}
