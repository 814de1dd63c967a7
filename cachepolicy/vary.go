package cachepolicy

import "strings"

// varyMatches is a supplemented feature (see SPEC_FULL.md "SUPPLEMENTED
// FEATURES"): spec.md's distillation is silent on Vary, but RFC 7234 §4.1
// requires it for correctness, and the pack's mchtech-httpcache reference
// implements the identical check. A cached response naming header names in
// its Vary is only reusable when the new request agrees with the stored
// request on every one of those headers; Vary: * forbids reuse outright.
func varyMatches(cached Response, req Request) bool {
	for _, varyHeader := range cached.Header.Values("Vary") {
		for _, name := range strings.Split(varyHeader, ",") {
			name = strings.TrimSpace(name)
			if name == "*" {
				return false
			}
			if cached.RequestHeader.Get(name) != req.Header.Get(name) {
				return false
			}
		}
	}
	return true
}
