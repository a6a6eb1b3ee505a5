package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/WessleyAI/carsearch/pkg/fn"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 16 << 20

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// ClientOpts configures an HTTPClient. Zero values take defaults.
type ClientOpts struct {
	RPS       float64
	Burst     int
	Retry     fn.RetryPolicy
	Timeout   time.Duration
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// HTTPClient is the JSON transport shared by adapters: rate limited, traced
// and retried with exponential backoff.
type HTTPClient struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	retry   fn.RetryPolicy
	log     *slog.Logger
}

// NewHTTPClient creates a client for the named provider.
func NewHTTPClient(name string, o ClientOpts) *HTTPClient {
	if o.RPS <= 0 {
		o.RPS = 2
	}
	if o.Burst <= 0 {
		o.Burst = 2
	}
	if o.Retry.MaxAttempts == 0 {
		o.Retry = fn.DefaultRetry
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.Transport == nil {
		o.Transport = http.DefaultTransport
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &HTTPClient{
		name: name,
		client: &http.Client{
			Timeout:   o.Timeout,
			Transport: otelhttp.NewTransport(o.Transport),
		},
		limiter: rate.NewLimiter(rate.Limit(o.RPS), o.Burst),
		retry:   o.Retry,
		log:     o.Logger.With("provider", name),
	}
}

// GetJSON fetches rawURL and decodes the JSON body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	return c.do(ctx, http.MethodGet, rawURL, header, nil, out)
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (c *HTTPClient) PostJSON(ctx context.Context, rawURL string, header http.Header, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", c.name, err)
	}
	return c.do(ctx, http.MethodPost, rawURL, header, data, out)
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, header http.Header, payload []byte, out any) error {
	attempt := 0
	res := fn.Retry(ctx, c.retry, func(ctx context.Context) fn.Result[[]byte] {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return fn.Err[[]byte](fn.Permanent(err))
		}
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return fn.Err[[]byte](fn.Permanent(err))
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return fn.Err[[]byte](fn.Permanent(ctx.Err()))
			}
			c.log.Warn("provider request failed", "attempt", attempt, "err", err)
			return fn.Err[[]byte](err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fn.Err[[]byte](err)
		}
		if resp.StatusCode >= 300 {
			se := &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 200)}
			if se.Retryable() {
				c.log.Warn("provider returned retryable status", "attempt", attempt, "status", resp.StatusCode)
				return fn.Err[[]byte](se)
			}
			return fn.Err[[]byte](fn.Permanent(se))
		}
		return fn.Ok(data)
	})

	data, err := res.Unwrap()
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
