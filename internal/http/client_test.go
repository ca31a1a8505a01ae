package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// dropConn closes the connection without answering, which the client sees as
// a transport error.
func dropConn(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("response writer does not support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatalf("hijack: %v", err)
	}
	conn.Close()
}

// recordSleeps replaces the client's sleep with one that records the
// requested delays and returns immediately.
func recordSleeps(c *Client) *[]time.Duration {
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return &delays
}

func TestGetReturnsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("expected X-Requested-With header, got %q", r.Header.Get("X-Requested-With"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[["a","b"]]`))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	res, err := client.Get(context.Background(), server.URL, map[string]string{
		"X-Requested-With": "XMLHttpRequest",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, res.OK())
	require.Equal(t, `[["a","b"]]`, string(res.Body))
	require.Equal(t, "application/json", res.Header.Get("Content-Type"))
}

func TestGetDoesNotRetryOnStatus(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("<html>blocked</html>"))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	delays := recordSleeps(client)

	res, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.False(t, res.OK())
	require.Equal(t, "<html>blocked</html>", string(res.Body))
	require.Equal(t, int32(1), attempts.Load())
	require.Empty(t, *delays)
}

func TestGetRetriesTransportErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			dropConn(t, w)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	delays := recordSleeps(client)

	res, err := client.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	require.Equal(t, "[]", string(res.Body))
	require.Equal(t, int32(3), attempts.Load())
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestGetExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		dropConn(t, w)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RetryAttempts = 3
	client := NewClient(opts)
	delays := recordSleeps(client)

	_, err := client.Get(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExhaustedRetries))

	var exhausted *ExhaustedRetriesError
	require.True(t, errors.As(err, &exhausted))
	require.Equal(t, 4, exhausted.Attempts)
	require.Equal(t, server.URL, exhausted.URL)
	require.NotNil(t, exhausted.Err)

	require.Equal(t, int32(4), attempts.Load())

	// base * 2^n, strictly increasing, none after the last attempt
	require.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
	}, *delays)
}

func TestGetZeroRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		dropConn(t, w)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RetryAttempts = 0
	client := NewClient(opts)
	delays := recordSleeps(client)

	_, err := client.Get(context.Background(), server.URL, nil)
	require.ErrorIs(t, err, ErrExhaustedRetries)
	require.Equal(t, int32(1), attempts.Load())
	require.Empty(t, *delays)
}

func TestGetTimeoutCountsAsFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.Timeout = 20 * time.Millisecond
	opts.RetryAttempts = 1
	opts.RetryBackoff = time.Millisecond
	client := NewClient(opts)

	_, err := client.Get(context.Background(), server.URL, nil)
	require.ErrorIs(t, err, ErrExhaustedRetries)
	require.Equal(t, int32(2), attempts.Load())
}

func TestGetContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(DefaultOptions())
	_, err := client.Get(ctx, server.URL, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrExhaustedRetries), "cancellation is not retry exhaustion")
}

func TestBackoff(t *testing.T) {
	opts := DefaultOptions()
	opts.RetryBackoff = 500 * time.Millisecond
	opts.RetryMaxBackoff = 3 * time.Second
	c := NewClient(opts)

	require.Equal(t, time.Second, c.Backoff(1))
	require.Equal(t, 2*time.Second, c.Backoff(2))
	require.Equal(t, 3*time.Second, c.Backoff(3))
	require.Equal(t, 3*time.Second, c.Backoff(64))

	opts.RetryMaxBackoff = 0
	c = NewClient(opts)
	require.Equal(t, 8*time.Second, c.Backoff(4))
}

func TestRateLimit(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
	}))
	defer server.Close()

	opts := DefaultOptions()
	opts.RequestsPerSecond = 20
	client := NewClient(opts)

	start := time.Now()
	for i := 0; i < 25; i++ {
		_, err := client.Get(context.Background(), server.URL, nil)
		require.NoError(t, err)
	}
	// A burst of 20, then five more at 20/s.
	require.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	require.Equal(t, int32(25), attempts.Load())
}
