package cachepolicy

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAge_NoDateOrAgeHeader(t *testing.T) {
	now := time.Unix(1000, 0)
	resp := Response{
		Header:   header(),
		Sent:     now.Add(-2 * time.Second),
		Received: now.Add(-1 * time.Second),
	}
	got := age(now, resp, DefaultDateParser)
	assert.Equal(t, 2*time.Second, got)
}

func TestAge_AgeHeaderWins(t *testing.T) {
	now := time.Unix(1000, 0)
	received := now.Add(-1 * time.Second)
	resp := Response{
		Header:   header("Date", received.Format(http.TimeFormat), "Age", "500"),
		Sent:     received.Add(-time.Second),
		Received: received,
	}
	got := age(now, resp, DefaultDateParser)
	assert.Equal(t, 500*time.Second+2*time.Second, got)
}

func TestFreshnessLifetime_MaxAgeWins(t *testing.T) {
	resp := Response{Header: header("Cache-Control", "max-age=30", "Expires", "Wed, 21 Oct 2026 07:28:00 GMT")}
	life, heuristic := freshnessLifetime(resp, DefaultDateParser)
	assert.Equal(t, 30*time.Second, life)
	assert.False(t, heuristic)
}

func TestFreshnessLifetime_ExpiresUsedWhenNoMaxAge(t *testing.T) {
	served := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := served.Add(2 * time.Hour)
	resp := Response{Header: header("Date", served.Format(http.TimeFormat), "Expires", expires.Format(http.TimeFormat))}
	life, heuristic := freshnessLifetime(resp, DefaultDateParser)
	assert.Equal(t, 2*time.Hour, life)
	assert.False(t, heuristic)
}

func TestFreshnessLifetime_NoSignalsIsZero(t *testing.T) {
	resp := Response{Header: header()}
	life, heuristic := freshnessLifetime(resp, DefaultDateParser)
	assert.Equal(t, time.Duration(0), life)
	assert.False(t, heuristic)
}
