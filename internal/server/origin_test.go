package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requestWithOrigin(origin string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

// TestOriginPolicyAllowList verifies matching against configured origins,
// including scheme/host case normalization.
func TestOriginPolicyAllowList(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", "HTTPS://Chat.Example"}, discardLogger())

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:8080", true},
		{"HTTP://LOCALHOST:8080", true},
		{"https://chat.example", true},
		{"http://evil.example", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := policy.check(requestWithOrigin(tt.origin)); got != tt.allowed {
			t.Errorf("check(origin=%q) = %v, expected %v", tt.origin, got, tt.allowed)
		}
	}
}

// TestOriginPolicyWildcard verifies "*" admits any well-formed origin but
// still rejects a missing or malformed header.
func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, discardLogger())

	if !policy.check(requestWithOrigin("http://anything.example")) {
		t.Error("wildcard policy rejected a valid origin")
	}
	if policy.check(requestWithOrigin("")) {
		t.Error("wildcard policy accepted a missing origin header")
	}
	if policy.check(requestWithOrigin("%%%")) {
		t.Error("wildcard policy accepted a malformed origin")
	}
}

// TestOriginPolicyIgnoresInvalidConfiguration verifies unusable configured
// entries are skipped rather than silently matched.
func TestOriginPolicyIgnoresInvalidConfiguration(t *testing.T) {
	policy := newOriginPolicy([]string{"", "   ", "no-scheme"}, discardLogger())

	if policy.check(requestWithOrigin("http://no-scheme")) {
		t.Error("invalid configured origin should not admit anything")
	}
}
