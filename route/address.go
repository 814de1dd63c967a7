package route

import (
	"net/url"
)

// ProxySelector is the collaborator from spec §6: Select proposes proxies
// for a URL (an empty/nil result means "let the caller fall back to
// direct"), and ConnectFailed reports that a route through a given proxy
// address failed, so the selector can adjust future proposals.
type ProxySelector interface {
	Select(u *url.URL) ([]Proxy, error)
	ConnectFailed(u *url.URL, proxyAddr string, err error)
}

// Address is the target identity a Selector enumerates routes for: scheme,
// host, port (via URL), the DNS and proxy-selection collaborators, and an
// optional fixed Proxy that overrides ProxySelector entirely.
type Address struct {
	URL *url.URL

	DNS           DNS
	ProxySelector ProxySelector

	// Proxy, if non-nil, is used verbatim instead of consulting
	// ProxySelector — even if it is the NoProxy sentinel.
	Proxy *Proxy
}

// defaultPort returns the address's port, falling back to the scheme's
// well-known port when the URL omits one.
func defaultPort(u *url.URL) (string, error) {
	if p := u.Port(); p != "" {
		return p, nil
	}
	switch u.Scheme {
	case "https", "wss":
		return "443", nil
	case "http", "ws", "":
		return "80", nil
	default:
		return "80", nil
	}
}
