package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"storefront_go/internal/infra"
	"storefront_go/internal/storage"
)

const userAgent = "storefront-sync/1.0"

// healthProbeInterval bounds how often the reachability probe actually runs;
// bursts of requests inside the interval share one probe result.
const healthProbeInterval = 30 * time.Second

// Client is the single point of outbound HTTP communication. It attaches
// bearer auth from the key-value store, enforces timeouts, retries idempotent
// reads and fails fast when the backend is unreachable.
type Client struct {
	baseURL string
	httpc   *http.Client
	healthc *http.Client
	kv      storage.KeyValue
	breaker *infra.CircuitBreaker
	limiter *infra.RateLimiter

	checkHealth  bool
	healthMu     sync.Mutex
	lastHealthOK time.Time
}

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL       string
	Timeout       time.Duration // default 120s: tolerate large uploads
	HealthTimeout time.Duration // default 5s
	HealthCheck   bool
	RateBurst     int
	RatePerSecond float64
}

// NewClient creates a client against the given base URL. kv supplies the
// bearer token under the auth_token key when one is present.
func NewClient(opts Options, kv storage.KeyValue) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 5 * time.Second
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 10
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}

	return &Client{
		baseURL:     opts.BaseURL,
		httpc:       &http.Client{Timeout: opts.Timeout},
		healthc:     &http.Client{Timeout: opts.HealthTimeout},
		kv:          kv,
		breaker:     infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("api")),
		limiter:     infra.NewRateLimiter(opts.RateBurst, opts.RatePerSecond),
		checkHealth: opts.HealthCheck,
	}
}

// ReqOption mutates the outgoing request before it is sent.
type ReqOption func(*http.Request)

// WithHeader sets a single request header.
func WithHeader(key, value string) ReqOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// RequireToken returns ErrAuthRequired when no token is stored. Called by
// authenticated collections before any network I/O.
func (c *Client) RequireToken(ctx context.Context) error {
	tok, err := c.kv.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to read auth token: %w", err)
	}
	if tok == "" {
		return ErrAuthRequired
	}
	return nil
}

// Get performs a GET with up to 3 attempts on transport failures.
func (c *Client) Get(ctx context.Context, endpoint string, opts ...ReqOption) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			delay := infra.CalculateBackoff(attempt - 1)
			select {
			case <-ctx.Done():
				return nil, classifyCtxErr(ctx.Err())
			case <-time.After(delay):
			}
			slog.Debug("Retrying request", slog.String("endpoint", endpoint), slog.Int("attempt", attempt))
		}

		data, err := c.do(ctx, http.MethodGet, endpoint, nil, opts...)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// Only transport-level failures are worth retrying; the server's
		// answer won't change for a 4xx.
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrNetworkUnreachable) {
			return nil, err
		}
	}
	return nil, lastErr
}

// Post performs a POST with a JSON body. Never retried: creates are not
// idempotent without an explicit idempotency key supplied by the caller.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...ReqOption) ([]byte, error) {
	r, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, endpoint, r, opts...)
}

// Put performs a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...ReqOption) ([]byte, error) {
	r, err := jsonBody(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, endpoint, r, opts...)
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...ReqOption) ([]byte, error) {
	return c.do(ctx, http.MethodDelete, endpoint, nil, opts...)
}

func jsonBody(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return bytes.NewReader(raw), nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, opts ...ReqOption) ([]byte, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("%w: circuit breaker open", ErrNetworkUnreachable)
	}
	if err := c.probeHealth(ctx); err != nil {
		return nil, err
	}
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.attachToken(ctx, req); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, classifyTransportErr(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The backend answered; only 5xx counts against the breaker.
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
		return nil, &HTTPError{Status: resp.StatusCode, Payload: payload}
	}

	c.breaker.RecordSuccess()
	return payload, nil
}

// attachToken adds the bearer header when a token is present. Absence is not
// an error here; endpoints that demand auth call RequireToken first.
func (c *Client) attachToken(ctx context.Context, req *http.Request) error {
	tok, err := c.kv.Get(ctx, storage.KeyAuthToken)
	if err != nil {
		return fmt.Errorf("failed to read auth token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return nil
}

// probeHealth fails fast with ErrNetworkUnreachable when the backend does not
// answer the short-deadline health endpoint. Probe results are shared for
// healthProbeInterval so request bursts don't double-probe.
func (c *Client) probeHealth(ctx context.Context) error {
	if !c.checkHealth {
		return nil
	}

	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	if time.Since(c.lastHealthOK) < healthProbeInterval {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+EndpointHealth, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.healthc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health probe failed: %v", ErrNetworkUnreachable, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health probe returned %d", ErrNetworkUnreachable, resp.StatusCode)
	}

	c.lastHealthOK = time.Now()
	return nil
}

func classifyTransportErr(err error) error {
	if terr, ok := err.(interface{ Timeout() bool }); ok && terr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
}

func classifyCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
