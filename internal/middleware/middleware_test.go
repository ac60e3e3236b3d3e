package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkdigital/servicehub/internal/logging"
)

func TestCORSMiddleware(t *testing.T) {
	handler := NewCORSMiddleware([]string{"http://localhost:3000"}).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	evil := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	evil.Header.Set("Origin", "http://evil-localhost:3000")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, evil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://any.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want 204", rec.Code)
	}
	if called {
		t.Error("preflight reached the handler")
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.Discard("test"))
	handler := rl.Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	other := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	other.RemoteAddr = "10.0.0.2:4000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
}

func TestRateLimiter_IgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	rl := NewRateLimiter(1, 2, logging.Discard("test"))
	handler := rl.Handler(okHandler())

	allowed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2", allowed)
	}
}

func TestRateLimiter_TrustedProxy(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard("test"))
	if err := rl.TrustProxies([]string{"192.168.0.0/16", "127.0.0.1"}); err != nil {
		t.Fatalf("TrustProxies: %v", err)
	}
	handler := rl.Handler(okHandler())

	send := func(fwd string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = "192.168.1.10:443"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("198.51.100.1"); code != http.StatusOK {
		t.Errorf("first client status = %d, want 200", code)
	}
	if code := send("198.51.100.2"); code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", code)
	}
	// A spoofed left-most hop does not change the key the proxy appended.
	if code := send("1.2.3.4, 198.51.100.1"); code != http.StatusTooManyRequests {
		t.Errorf("spoofed status = %d, want 429", code)
	}
}

func TestRateLimiter_TrustProxiesRejectsGarbage(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard("test"))
	if err := rl.TrustProxies([]string{"not-an-ip"}); err == nil {
		t.Error("expected error for invalid proxy")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1, logging.Discard("test"))
	rl.idle = 0
	rl.getLimiter("a")
	rl.Cleanup()
	if len(rl.limiters) != 0 {
		t.Errorf("limiters = %d, want 0", len(rl.limiters))
	}
}

func TestTracingMiddleware(t *testing.T) {
	var traceID string
	handler := NewTracingMiddleware(logging.Discard("test")).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = logging.GetTraceID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Trace-ID", "trace-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if traceID != "trace-abc" || rec.Header().Get("X-Trace-ID") != "trace-abc" {
		t.Errorf("trace id = %q, header = %q", traceID, rec.Header().Get("X-Trace-ID"))
	}
}

func TestRecover(t *testing.T) {
	handler := Recover(logging.Discard("test"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", rec.Code)
	}
}
