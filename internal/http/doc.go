// Package http provides the upstream HTTP client.
//
// This package handles:
//   - A hard timeout on every attempt
//   - Retry with exponential backoff on transport errors and timeouts
//   - An optional shared request-rate limit
//   - One trace span per logical request
//
// Status codes are not interpreted: a 403 block page is a response like any
// other, and deciding what it means is up to the caller.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Timeout:       30 * time.Second,
//	    RetryAttempts: 3,
//	    RetryBackoff:  500 * time.Millisecond,
//	})
//
//	res, err := client.Get(ctx, url, upstream.Headers)
//	var exhausted *http.ExhaustedRetriesError
//	if errors.As(err, &exhausted) {
//	    // every attempt failed
//	}
package http
