package kit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiter_Allow(t *testing.T) {
	l := NewIPRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if !l.Allow("10.0.0.1", now) || !l.Allow("10.0.0.1", now.Add(time.Second)) {
		t.Fatalf("first two hits must pass")
	}
	if l.Allow("10.0.0.1", now.Add(2*time.Second)) {
		t.Fatalf("third hit in window must be limited")
	}
	if !l.Allow("10.0.0.2", now.Add(2*time.Second)) {
		t.Fatalf("other ip must not be limited")
	}
	if !l.Allow("10.0.0.1", now.Add(61*time.Second)) {
		t.Fatalf("hit after window must pass")
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(1, time.Minute)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(xff string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do("1.2.3.4, 10.0.0.1"); code != http.StatusNoContent {
		t.Fatalf("status=%d", code)
	}
	if code := do("1.2.3.4"); code != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429", code)
	}
}

func TestMetricsAuth(t *testing.T) {
	h := MetricsAuth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tc := range []struct {
		authz string
		want  int
	}{
		{"", http.StatusForbidden},
		{"Bearer nope", http.StatusForbidden},
		{"Basic s3cret", http.StatusForbidden},
		{"Bearer s3cret", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		if tc.authz != "" {
			req.Header.Set("Authorization", tc.authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("authz=%q status=%d want %d", tc.authz, rec.Code, tc.want)
		}
	}
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("FOMO_TEST_DUR", "1500ms")
	if got := GetenvDuration("FOMO_TEST_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("got=%v", got)
	}

	t.Setenv("FOMO_TEST_DUR", "soon")
	if got := GetenvDuration("FOMO_TEST_DUR", time.Second); got != time.Second {
		t.Fatalf("got=%v want default", got)
	}

	t.Setenv("FOMO_TEST_INT", "12")
	if got := GetenvInt("FOMO_TEST_INT", 3); got != 12 {
		t.Fatalf("got=%d", got)
	}
}
