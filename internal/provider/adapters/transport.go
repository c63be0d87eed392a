// Package adapters contains the concrete vendor implementations of
// provider.Provider, plus the transport machinery they share.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/llmconsensus/internal/provider"
)

// Transport is the shared HTTP call machinery every adapter builds on:
// rate limiting, retry/backoff, deadline enforcement, and error
// classification. Adapters supply a request builder; Transport owns when
// and how often to call it.
//
// A global client.Timeout is deliberately not set: that would kill an
// in-flight attempt mid-retry-loop regardless of how much of the deadline
// remains. The per-attempt context, derived from the caller's deadline,
// handles cancellation instead.
type Transport struct {
	name       string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
}

// NewTransport builds a Transport for one adapter instance.
// requestsPerSecond bounds outbound call rate to the vendor.
func NewTransport(name string, maxRetries int, requestsPerSecond float64) *Transport {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	burst := int(requestsPerSecond) + 1
	return &Transport{
		name: name,
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 60 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		maxRetries: maxRetries,
	}
}

// RequestBuilder constructs a fresh *http.Request for one attempt. It is
// called once per attempt so bodies (which can only be read once) are
// rebuilt rather than reused.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// Do executes build against the vendor, retrying per the shared backoff
// policy (min(2^attempt + jitter, 60s), honoring Retry-After when the
// vendor sent one) until it succeeds, a non-retryable error occurs, or
// ctx's deadline would be exceeded by the next attempt.
func (t *Transport) Do(ctx context.Context, build RequestBuilder) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			backoff, ok := t.nextBackoff(ctx, attempt, lastErr)
			if !ok {
				return nil, lastErr
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, provider.NewError(t.name, provider.ErrTimeout, "deadline exceeded during backoff", ctx.Err())
			}
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return nil, provider.NewError(t.name, provider.ErrTimeout, "deadline exceeded waiting for rate limit", err)
		}

		req, err := build(ctx)
		if err != nil {
			return nil, provider.NewError(t.name, provider.ErrGeneric, "failed to build request", err)
		}

		body, callErr := t.doOnce(req)
		if callErr == nil {
			return body, nil
		}

		lastErr = callErr
		if pe, ok := callErr.(*provider.Error); ok && !pe.Kind.Retryable() {
			return nil, callErr
		}
	}

	return nil, lastErr
}

func (t *Transport) doOnce(req *http.Request) ([]byte, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, provider.NewError(t.name, provider.ErrTimeout, "request deadline exceeded", err)
		}
		return nil, provider.NewError(t.name, provider.ErrTransport, "transport error", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, provider.NewError(t.name, provider.ErrTransport, "failed reading response body", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, provider.NewError(t.name, provider.ErrAuthentication, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &provider.Error{
			Kind:       provider.ErrRateLimited,
			Provider:   t.name,
			Message:    "rate limited by vendor",
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, provider.NewError(t.name, provider.ErrGeneric, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return nil, provider.NewError(t.name, provider.ErrClientError, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	default:
		return nil, provider.NewError(t.name, provider.ErrGeneric, fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}
}

// nextBackoff computes the next backoff duration, or reports false if
// waiting that long would push past ctx's deadline.
func (t *Transport) nextBackoff(ctx context.Context, attempt int, lastErr error) (time.Duration, bool) {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(rand.Float64() * float64(time.Second))
	backoff := base + jitter
	if backoff > 60*time.Second {
		backoff = 60 * time.Second
	}

	if pe, ok := lastErr.(*provider.Error); ok && pe.Kind == provider.ErrRateLimited && pe.RetryAfter > 0 {
		if ra := time.Duration(pe.RetryAfter) * time.Second; ra > backoff {
			backoff = ra
		}
	}

	if deadline, has := ctx.Deadline(); has && time.Now().Add(backoff).After(deadline) {
		return 0, false
	}
	return backoff, true
}

func parseRetryAfter(h string) int {
	if h == "" {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}
