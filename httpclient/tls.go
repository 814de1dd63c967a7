package httpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"regexp"

	"golang.org/x/crypto/acme/autocert"
)

// TLSServerConfig builds a server-side tls.Config backed by Let's Encrypt
// via autocert, the same pattern as chproxy's main.go startTLS: an
// autocert.Manager with AcceptTOS and a directory cache, gated by an
// optional host allowlist regexp. This is demo/cmd-binary scope — the
// Client itself never terminates TLS, it only originates requests.
func TLSServerConfig(certCacheDir, hostPolicyRegexp string) (*tls.Config, error) {
	cfg := &tls.Config{
		CurvePreferences: []tls.CurveID{
			tls.CurveP256,
			tls.X25519,
		},
	}

	var hostPolicy autocert.HostPolicy
	if hostPolicyRegexp != "" {
		re, err := regexp.Compile(hostPolicyRegexp)
		if err != nil {
			return nil, fmt.Errorf("httpclient: compiling host policy regexp: %w", err)
		}
		hostPolicy = func(_ context.Context, host string) error {
			if re.MatchString(host) {
				return nil
			}
			return fmt.Errorf("host %q doesn't match host policy %q", host, hostPolicyRegexp)
		}
	}

	m := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(certCacheDir),
		HostPolicy: hostPolicy,
	}
	cfg.GetCertificate = m.GetCertificate

	return cfg, nil
}
