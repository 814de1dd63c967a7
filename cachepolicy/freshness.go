package cachepolicy

import (
	"net/http"
	"strconv"
	"time"
)

// DateParser is the HttpDate collaborator from spec §6: it parses an
// HTTP-date (RFC 1123, RFC 850, or asctime, per RFC 7231 §7.1.1.1) and
// reports whether parsing succeeded.
type DateParser func(s string) (time.Time, bool)

// DefaultDateParser delegates to net/http, whose http.ParseTime already
// implements all three HTTP-date grammars — the standard library's own
// parser matches the wire format exactly, so there is no third-party
// library to reach for here (see DESIGN.md).
func DefaultDateParser(s string) (time.Time, bool) {
	t, err := http.ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// servedAt returns the response's Date header if present and parseable,
// falling back to the instant it was received (spec §4.3 "Freshness
// lifetime" step 2).
func servedAt(resp Response, parseDate DateParser) time.Time {
	if d := resp.Header.Get("Date"); d != "" {
		if t, ok := parseDate(d); ok {
			return t
		}
	}
	return resp.Received
}

// freshnessLifetime implements spec §4.3 "Freshness lifetime", returning
// the lifetime and whether it was derived heuristically (case 3: 10% of
// served-minus-Last-Modified, only when the original request's URL carried
// no query string).
func freshnessLifetime(resp Response, parseDate DateParser) (lifetime time.Duration, heuristic bool) {
	respCC := ParseCacheControl(resp.Header)

	if respCC.MaxAge != unset {
		return time.Duration(respCC.MaxAge) * time.Second, false
	}

	if expiresHeader := resp.Header.Get("Expires"); expiresHeader != "" {
		expires, ok := parseDate(expiresHeader)
		if !ok {
			// An unparsable Expires value is already-expired per RFC 7234
			// §5.3: treat the lifetime as zero, not heuristic.
			return 0, false
		}
		delta := expires.Sub(servedAt(resp, parseDate))
		if delta < 0 {
			delta = 0
		}
		return delta, false
	}

	hasQuery := resp.RequestURL != nil && resp.RequestURL.RawQuery != ""
	if lm := resp.Header.Get("Last-Modified"); lm != "" && !hasQuery {
		lastModified, ok := parseDate(lm)
		if ok {
			delta := servedAt(resp, parseDate).Sub(lastModified) / 10
			if delta < 0 {
				delta = 0
			}
			return delta, true
		}
	}

	return 0, false
}

// age implements spec §4.3 "Age computation (RFC 2616 §13.2.3)".
func age(now time.Time, resp Response, parseDate DateParser) time.Duration {
	var apparentReceivedAge time.Duration
	if d := resp.Header.Get("Date"); d != "" {
		if dateHeader, ok := parseDate(d); ok {
			apparentReceivedAge = resp.Received.Sub(dateHeader)
			if apparentReceivedAge < 0 {
				apparentReceivedAge = 0
			}
		}
	}

	receivedAge := apparentReceivedAge
	if ageHeader := resp.Header.Get("Age"); ageHeader != "" {
		if secs, err := strconv.Atoi(ageHeader); err == nil && secs >= 0 {
			headerAge := time.Duration(secs) * time.Second
			if headerAge > receivedAge {
				receivedAge = headerAge
			}
		}
	}

	responseDuration := resp.Received.Sub(resp.Sent)
	if responseDuration < 0 {
		responseDuration = 0
	}

	residentDuration := now.Sub(resp.Received)
	if residentDuration < 0 {
		residentDuration = 0
	}

	return receivedAge + responseDuration + residentDuration
}
