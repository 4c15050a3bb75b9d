package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/veldmed/practice-platform/pkg/logging"
)

func TestRateLimitAllowsWithinLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(redisClient, 3, logging.Default())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/prescriptions/email", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.7")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(redisClient, 2, logging.Default())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/prescriptions/email", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.7")
		rec := httptest.NewRecorder()
		mw(handler).ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on third request, got %d", last)
	}
}

func TestRateLimitIsolatesClients(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(redisClient, 1, logging.Default())

	first := httptest.NewRequest(http.MethodPost, "/prescriptions/email", nil)
	first.Header.Set("X-Real-Ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for first client, got %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodPost, "/prescriptions/email", nil)
	other.Header.Set("X-Real-Ip", "198.51.100.9")
	rec = httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unrelated client, got %d", rec.Code)
	}
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(redisClient, 1, logging.Default())

	req := httptest.NewRequest(http.MethodPost, "/prescriptions/email", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.7")
	rec := httptest.NewRecorder()
	mw(handler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", rec.Code)
	}
}
