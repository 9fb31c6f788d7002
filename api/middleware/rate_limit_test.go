package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pharmadata/pharmadata-backend/pkg/config"
)

type stubLimiter struct {
	allowFn func(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	scopes  []string
}

func (s *stubLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	s.scopes = append(s.scopes, scope)
	if s.allowFn != nil {
		return s.allowFn(ctx, scope, limit, window)
	}
	return true, 1, nil
}

func limitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{PublicWindow: time.Hour, PublicIPLimit: 20}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPRateLimitAllowsUnderLimit(t *testing.T) {
	limiter := &stubLimiter{}
	handler := IPRateLimit(limitConfig(), limiter, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if len(limiter.scopes) != 1 || limiter.scopes[0] != "public:ip:203.0.113.9" {
		t.Fatalf("unexpected scopes %v", limiter.scopes)
	}
}

func TestIPRateLimitBlocksOverLimit(t *testing.T) {
	limiter := &stubLimiter{
		allowFn: func(context.Context, string, int64, time.Duration) (bool, int64, error) {
			return false, 21, nil
		},
	}
	handler := IPRateLimit(limitConfig(), limiter, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestIPRateLimitFailsOpenOnRedisError(t *testing.T) {
	limiter := &stubLimiter{
		allowFn: func(context.Context, string, int64, time.Duration) (bool, int64, error) {
			return false, 0, errors.New("redis down")
		},
	}
	handler := IPRateLimit(limitConfig(), limiter, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200 got %d", resp.Code)
	}
}

func TestIPRateLimitUsesForwardedForFirstHop(t *testing.T) {
	limiter := &stubLimiter{}
	handler := IPRateLimit(limitConfig(), limiter, testLogger())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if len(limiter.scopes) != 1 || limiter.scopes[0] != "public:ip:198.51.100.7" {
		t.Fatalf("unexpected scopes %v", limiter.scopes)
	}
}
