package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront_go/internal/storage"
)

func newTestClient(t *testing.T, serverURL string, healthCheck bool) (*Client, storage.KeyValue) {
	t.Helper()
	kv := storage.NewMemoryStore()
	c := NewClient(Options{
		BaseURL:       serverURL,
		Timeout:       2 * time.Second,
		HealthTimeout: 500 * time.Millisecond,
		HealthCheck:   healthCheck,
		RateBurst:     100,
		RatePerSecond: 100,
	}, kv)
	return c, kv
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		w.Write([]byte(`{"orders":[]}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, false)
	data, err := c.Get(context.Background(), EndpointOrders)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(data) != `{"orders":[]}` {
		t.Errorf("body = %s", data)
	}
}

func TestClient_BearerTokenAttached(t *testing.T) {
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, kv := newTestClient(t, server.URL, false)
	ctx := context.Background()

	// Without a token: no header
	c.Get(ctx, EndpointProducts)
	if got := gotAuth.Load().(string); got != "" {
		t.Errorf("unexpected Authorization header %q", got)
	}

	// With a token: bearer header
	kv.Set(ctx, storage.KeyAuthToken, "tok-abc")
	c.Get(ctx, EndpointProducts)
	if got := gotAuth.Load().(string); got != "Bearer tok-abc" {
		t.Errorf("Authorization = %q, want Bearer tok-abc", got)
	}
}

func TestClient_RequireToken(t *testing.T) {
	c, kv := newTestClient(t, "http://unused", false)
	ctx := context.Background()

	if err := c.RequireToken(ctx); !errors.Is(err, ErrAuthRequired) {
		t.Errorf("RequireToken without token = %v, want ErrAuthRequired", err)
	}

	kv.Set(ctx, storage.KeyAuthToken, "tok")
	if err := c.RequireToken(ctx); err != nil {
		t.Errorf("RequireToken with token = %v", err)
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"order not found"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, false)
	_, err := c.Get(context.Background(), EndpointOrders+"/missing")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", httpErr.Status)
	}
	if msg := httpErr.Error(); msg != "server returned 404: order not found" {
		t.Errorf("message = %q", msg)
	}
}

func TestClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	kv := storage.NewMemoryStore()
	c := NewClient(Options{
		BaseURL:       server.URL,
		Timeout:       50 * time.Millisecond,
		RateBurst:     100,
		RatePerSecond: 100,
	}, kv)

	_, err := c.Delete(context.Background(), EndpointCart+"/p1")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestClient_HealthProbeFailFast(t *testing.T) {
	// Server answers everything except /health.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == EndpointHealth {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, true)
	_, err := c.Post(context.Background(), EndpointOrders, map[string]string{})
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Errorf("expected ErrNetworkUnreachable, got %v", err)
	}
}

func TestClient_HealthProbeCached(t *testing.T) {
	var healthCalls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == EndpointHealth {
			healthCalls.Add(1)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, true)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := c.Get(ctx, EndpointProducts); err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
	}

	if n := healthCalls.Load(); n != 1 {
		t.Errorf("health probed %d times for 5 requests, want 1", n)
	}
}

func TestClient_PostBodyAndHeaders(t *testing.T) {
	var gotBody atomic.Value
	var gotIdem atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody.Store(string(buf))
		gotIdem.Store(r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, false)
	data, err := c.Post(context.Background(), EndpointOrders,
		map[string]string{"payment_method": "cod"},
		WithHeader("Idempotency-Key", "key-1"))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if string(data) != `{"id":"42"}` {
		t.Errorf("response = %s", data)
	}
	if gotBody.Load().(string) != `{"payment_method":"cod"}` {
		t.Errorf("body = %s", gotBody.Load())
	}
	if gotIdem.Load().(string) != "key-1" {
		t.Errorf("idempotency key = %q", gotIdem.Load())
	}
}

func TestClient_GetRetriesTransportFailure(t *testing.T) {
	// Point at a closed port: every attempt fails, Get gives up after 3.
	c, _ := newTestClient(t, "http://127.0.0.1:1", false)

	start := time.Now()
	_, err := c.Get(context.Background(), EndpointProducts)
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("expected ErrNetworkUnreachable, got %v", err)
	}
	// Two backoff sleeps (1s + 2s) separate the three attempts.
	if elapsed := time.Since(start); elapsed < 3*time.Second {
		t.Errorf("retries finished too fast: %s", elapsed)
	}
}

func TestClient_NoRetryOnHTTPError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c, _ := newTestClient(t, server.URL, false)
	c.Get(context.Background(), EndpointProducts)

	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times for a 400, want 1", n)
	}
}
