// Package consultapi is a client for the consultation backend REST API and
// its organization directory.
package consultapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maidige/consultation-admin/pkg/common"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

const (
	DefaultBaseURL    = "https://app-api.maidige.com:7443/api/consultation-backend"
	DefaultOrgBaseURL = "https://app-api.maidige.com:7443/api"
	DefaultTimeout    = 30 * time.Second
)

// TokenSource supplies the bearer token attached to every request. An empty
// token sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Config holds the client settings.
type Config struct {
	BaseURL    string
	OrgBaseURL string
	Timeout    time.Duration

	// RateLimit is the steady-state request rate per second. Zero disables
	// client-side limiting.
	RateLimit float64
	RateBurst int

	// MaxRetries bounds the retries of idempotent reads.
	MaxRetries uint64
	// RetryMaxElapsed bounds the total time spent retrying one read.
	RetryMaxElapsed time.Duration
}

// DefaultConfig returns the production endpoints and conservative limits.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		OrgBaseURL:      DefaultOrgBaseURL,
		Timeout:         DefaultTimeout,
		RateLimit:       5,
		RateBurst:       10,
		MaxRetries:      3,
		RetryMaxElapsed: 20 * time.Second,
	}
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithOnUnauthorized registers a hook run whenever the backend answers 401.
func WithOnUnauthorized(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// Client talks to the consultation backend. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	orgBaseURL *url.URL

	httpClient  *http.Client
	tokens      TokenSource
	rateLimiter *common.RateLimiter

	maxRetries      uint64
	retryMaxElapsed time.Duration

	onUnauthorized func(ctx context.Context)

	logger *logger.Logger
	tracer trace.Tracer
}

// New creates a Client. tokens may be nil for unauthenticated use such as
// logging in.
func New(
	cfg Config,
	tokens TokenSource,
	logger *logger.Logger,
	tracer trace.Tracer,
	opts ...Option,
) (*Client, error) {
	base, err := parseBase(cfg.BaseURL, DefaultBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	orgBase, err := parseBase(cfg.OrgBaseURL, DefaultOrgBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid organization base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if tokens == nil {
		tokens = StaticToken("")
	}

	c := &Client{
		baseURL:    base,
		orgBaseURL: orgBase,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tokens:          tokens,
		rateLimiter:     common.NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		maxRetries:      cfg.MaxRetries,
		retryMaxElapsed: cfg.RetryMaxElapsed,
		logger:          logger.With("component", "consultapi_client"),
		tracer:          tracer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func parseBase(raw, fallback string) (*url.URL, error) {
	if raw == "" {
		raw = fallback
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute url", raw)
	}
	return u, nil
}

// request describes one API call.
type request struct {
	op     string
	method string
	// org routes the call to the organization directory base.
	org   bool
	path  string
	query url.Values
	body  any
	// retry enables backoff retries. Only idempotent reads set it.
	retry bool
}

// do executes r and decodes a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	ctx, span := c.tracer.Start(ctx, "consultapi_client."+r.op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", r.method),
			attribute.String("api.path", r.path),
		))
	defer span.End()

	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to marshal request")
			return fmt.Errorf("failed to marshal %s request: %w", r.op, err)
		}
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := c.roundTrip(ctx, r, payload, out)
		if err == nil {
			return nil
		}
		if !r.retry || !isRetryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		c.logger.Debug(ctx, "Retrying backend request", "op", r.op, "attempt", attempts, "err", err)
		return err
	}

	var err error
	if r.retry && c.maxRetries > 0 {
		expBackoff := backoff.NewExponentialBackOff()
		expBackoff.InitialInterval = 250 * time.Millisecond
		if c.retryMaxElapsed > 0 {
			expBackoff.MaxElapsedTime = c.retryMaxElapsed
		}
		err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(expBackoff, c.maxRetries), ctx))
	} else {
		err = operation()
	}
	err = unwrapPermanent(err)

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return err
	}
	span.SetStatus(codes.Ok, "request completed")
	return nil
}

// roundTrip performs a single HTTP exchange.
func (c *Client) roundTrip(ctx context.Context, r request, payload []byte, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	u := c.endpoint(r.org, r.path, r.query)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "Backend request completed",
		"op", r.op,
		"method", r.method,
		"path", r.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	c.updateRateLimits(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp, r)
		if apiErr.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.op, err)
	}
	return nil
}

func (c *Client) endpoint(org bool, path string, query url.Values) string {
	base := c.baseURL
	if org {
		base = c.orgBaseURL
	}
	u := *base
	u.Path = base.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// decodeAPIError builds an *APIError from a non-2xx response, using the
// server message when the body carries one.
func decodeAPIError(resp *http.Response, r request) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode, Method: r.method, Path: r.path}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	apiErr.Message = eb.Message
	apiErr.Errors = eb.Errors
	apiErr.Code = eb.Error
	apiErr.FetchAttempts = eb.FetchAttempts
	apiErr.CanRetry = eb.CanRetry
	return apiErr
}

// updateRateLimits slows the limiter down when the backend reports a
// nearly exhausted quota, and pauses it when asked to retry later.
func (c *Client) updateRateLimits(headers http.Header) {
	if d := parseRetryAfter(headers.Get("Retry-After")); d > 0 {
		c.rateLimiter.PauseFor(d)
	}

	limit, err1 := strconv.ParseInt(headers.Get("X-RateLimit-Limit"), 10, 64)
	remaining, err2 := strconv.ParseInt(headers.Get("X-RateLimit-Remaining"), 10, 64)
	if err1 != nil || err2 != nil || limit <= 0 {
		return
	}

	// The backend's window is one minute. Spread what is left of it evenly,
	// using 90% of the allowance.
	rps := float64(remaining) / 60 * 0.9
	if rps <= 0 {
		c.rateLimiter.PauseFor(time.Second)
		return
	}
	if rps < c.rateLimiter.Limit() {
		c.rateLimiter.UpdateLimits(rps, 1)
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.retryable()
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func unwrapPermanent(err error) error {
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

// message is the envelope of endpoints that only return a message.
type message struct {
	Message string `json:"message"`
}
