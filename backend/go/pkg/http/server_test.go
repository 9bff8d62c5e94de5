package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"AIAssistant/backend/go/internal/config"
	"AIAssistant/backend/go/pkg/circuitbreaker"
	"AIAssistant/backend/go/pkg/logger"
)

func newTestConfig() *config.AppConfig {
	return &config.AppConfig{
		Middleware: config.MiddlewareConfig{
			RateLimiter: config.RateLimiterConfig{
				Enabled:     true,
				Algorithm:   "tokenBucket",
				TokenBucket: config.TokenBucketConfig{Rate: 10, Capacity: 5},
			},
			CircuitBreaker: config.CircuitBreakerConfig{
				Enabled:          true,
				FailureThreshold: 2,
				SuccessThreshold: 2,
				Timeout:          "10s",
			},
		},
	}
}

func TestNewServer_Address(t *testing.T) {
	cfg := newTestConfig()
	srv, err := NewServer(cfg, WithAddress(":9999"), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if srv.Addr() != ":9999" {
		t.Errorf("expected :9999, got %s", srv.Addr())
	}

	cfg.Server.Address = ":7070"
	srv, err = NewServer(cfg, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if srv.Addr() != ":7070" {
		t.Errorf("expected address from config, got %s", srv.Addr())
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	cfg := newTestConfig()
	cfg.Middleware.RateLimiter.TokenBucket.Capacity = 2
	cfg.Middleware.RateLimiter.TokenBucket.Rate = 1

	srv, err := NewServer(cfg, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	srv.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 on request %d, got %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("request 3 failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429 on request 3, got %d", resp.StatusCode)
	}
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	srv, err := NewServer(newTestConfig(), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	srv.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/fail")
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/fail")
	if err != nil {
		t.Fatalf("request 3 failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 on request 3, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Circuit Breaker is open") {
		t.Errorf("unexpected body %q", string(body))
	}
}

func TestNewRateLimiter_InvalidConfig(t *testing.T) {
	if _, err := NewRateLimiter(config.RateLimiterConfig{Algorithm: "unknown"}); err == nil {
		t.Error("expected error for unknown algorithm")
	}
	if _, err := NewRateLimiter(config.RateLimiterConfig{Algorithm: "fixedWindow", FixedWindow: config.FixedWindowConfig{Window: "soon"}}); err == nil {
		t.Error("expected error for invalid window")
	}
}

func TestClient_PostJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["q"]})
	}))
	defer ts.Close()

	c, err := NewClient("test", config.CircuitBreakerConfig{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := c.PostJSON(context.Background(), ts.URL, map[string]string{"Authorization": "Bearer k"}, map[string]string{"q": "hi"}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out["echo"] != "hi" {
		t.Errorf("expected echo hi, got %v", out)
	}

	err = c.PostJSON(context.Background(), ts.URL, nil, map[string]string{}, &out)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 StatusError, got %v", err)
	}
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, err := NewClient("test", config.CircuitBreakerConfig{Enabled: true, FailureThreshold: 1, SuccessThreshold: 1, Timeout: "1m"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.PostJSON(context.Background(), ts.URL, nil, struct{}{}, nil)
	err = c.PostJSON(context.Background(), ts.URL, nil, struct{}{}, nil)
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}
