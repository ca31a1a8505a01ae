package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// ErrExhaustedRetries matches every *ExhaustedRetriesError.
var ErrExhaustedRetries = errors.New("http: exhausted retries")

// ExhaustedRetriesError is returned when every attempt of a request failed.
type ExhaustedRetriesError struct {
	URL      string
	Attempts int
	Err      error // error of the last attempt
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("get %s: exhausted retries after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

func (e *ExhaustedRetriesError) Is(target error) bool { return target == ErrExhaustedRetries }

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds each individual attempt.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the number of retries after the first attempt.
	// Default: 3
	RetryAttempts int

	// RetryBackoff is the base delay. The delay before retry n is
	// RetryBackoff * 2^n.
	// Default: 500ms
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the delay between attempts. Zero means uncapped.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// RequestsPerSecond limits the request rate across all callers sharing
	// the client. Zero disables the limit.
	RequestsPerSecond float64

	// UserAgent is sent with every request when set.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:         30 * time.Second,
		RetryAttempts:   3,
		RetryBackoff:    500 * time.Millisecond,
		RetryMaxBackoff: 30 * time.Second,
	}
}

// Response is a raw upstream response. It is returned for every status code.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client fetches upstream pages with per-attempt timeouts and exponential
// backoff between attempts. It is safe for concurrent use.
type Client struct {
	rc     *resty.Client
	opts   Options
	tracer trace.Tracer

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	rc := resty.New()
	rc.SetTimeout(opts.Timeout)
	// Retries are ours; resty must not add its own.
	rc.SetRetryCount(0)
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		rc.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	rc.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		slog.DebugContext(res.Request.Context(), "upstream response",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"bytes", len(res.Body()),
			"elapsed", res.Time(),
		)
		return nil
	})

	return &Client{
		rc:     rc,
		opts:   opts,
		tracer: otel.Tracer("github.com/collegelist/aicte/internal/http"),
		sleep:  sleepContext,
	}
}

// Get fetches url, retrying on transport errors and timeouts. Any HTTP
// response, whatever its status, ends the loop; callers decide what a status
// means. When all attempts fail the error is an *ExhaustedRetriesError.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "upstream.get", trace.WithAttributes(
		attribute.String("http.url", url),
	))
	defer span.End()

	attempts := c.opts.RetryAttempts + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := c.rc.R().
			SetContext(ctx).
			SetHeaders(headers).
			Get(url)
		if err == nil {
			span.SetAttributes(
				attribute.Int("http.status_code", res.StatusCode()),
				attribute.Int("attempts", attempt),
			)
			return &Response{
				StatusCode: res.StatusCode(),
				Header:     res.Header(),
				Body:       res.Body(),
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}

		delay := c.Backoff(attempt)
		slog.WarnContext(ctx, "fetch attempt failed",
			"url", url,
			"attempt", attempt,
			"err", err,
			"retry_in", delay,
		)
		if err := c.sleep(ctx, delay); err != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}
	}

	exhausted := &ExhaustedRetriesError{URL: url, Attempts: attempts, Err: lastErr}
	span.RecordError(exhausted)
	span.SetStatus(codes.Error, "exhausted retries")
	return nil, exhausted
}

// Backoff returns the delay before retry n (n >= 1): RetryBackoff * 2^n,
// capped at RetryMaxBackoff when that is set.
func (c *Client) Backoff(n int) time.Duration {
	if n > 30 {
		n = 30
	}
	d := c.opts.RetryBackoff * time.Duration(1<<uint(n))
	if c.opts.RetryMaxBackoff > 0 && (d > c.opts.RetryMaxBackoff || d < 0) {
		d = c.opts.RetryMaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
