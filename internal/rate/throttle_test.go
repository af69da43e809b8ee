package rate

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
)

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	calls      int
}

func (s *stubLimiter) Allow(context.Context, string, time.Time) (bool, time.Duration, error) {
	s.calls++
	return s.allowed, s.retryAfter, s.err
}

func throttleRouter(windows []Window) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	router := gin.New()
	router.Use(NewThrottle(windows, logger).Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func hit(router *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestThrottleChecksEveryWindow(t *testing.T) {
	short := &stubLimiter{allowed: true}
	long := &stubLimiter{allowed: true}
	router := throttleRouter([]Window{
		{Name: "short", Limiter: short},
		{Name: "long", Limiter: long},
	})

	if resp := hit(router); resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if short.calls != 1 || long.calls != 1 {
		t.Fatalf("expected each window checked once, got %d/%d", short.calls, long.calls)
	}
}

func TestThrottleRejectsWhenAnyWindowExceeded(t *testing.T) {
	router := throttleRouter([]Window{
		{Name: "short", Limiter: &stubLimiter{allowed: true}},
		{Name: "long", Limiter: &stubLimiter{allowed: false, retryAfter: 30 * time.Second}},
	})

	resp := hit(router)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestThrottleFailsOpenOnLimiterError(t *testing.T) {
	router := throttleRouter([]Window{
		{Name: "short", Limiter: &stubLimiter{err: errors.New("redis down")}},
	})

	if resp := hit(router); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on limiter error, got %d", resp.Code)
	}
}

func TestThrottleEndToEndWithMemoryWindows(t *testing.T) {
	router := throttleRouter([]Window{
		{Name: "short", Limiter: NewMemory(3, time.Second)},
	})

	for i := 0; i < 3; i++ {
		if resp := hit(router); resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, resp.Code)
		}
	}
	if resp := hit(router); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on fourth request, got %d", resp.Code)
	}
}
