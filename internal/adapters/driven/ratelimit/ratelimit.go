// Package ratelimit throttles calls to remote AI providers.
//
// It combines proactive throttling (a token bucket) with reactive back-off
// driven by the provider's response headers.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Response headers understood by the limiter.
const (
	// HeaderRetryAfter is the standard retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"

	// HeaderRemainingRequests is the OpenAI-style remaining request count.
	HeaderRemainingRequests = "X-Ratelimit-Remaining-Requests"

	// HeaderResetRequests is the OpenAI-style reset delay, e.g. "1s" or "6m0s".
	HeaderResetRequests = "X-Ratelimit-Reset-Requests"
)

// maxBackoff caps how long a provider can make us wait.
const maxBackoff = 2 * time.Minute

// Limiter implements dual-strategy rate limiting for an HTTP API.
// A nil *Limiter never waits.
type Limiter struct {
	mu           sync.Mutex
	bucket       *rate.Limiter
	blockedUntil time.Time
	now          func() time.Time
}

// New creates a limiter allowing requestsPerSecond with a burst of one.
// Returns nil when requestsPerSecond <= 0, which disables throttling.
func New(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		now:    time.Now,
	}
}

// Wait blocks until it's safe to make a request or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	// 1. Proactive throttling.
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	// 2. Reactive back-off.
	l.mu.Lock()
	until := l.blockedUntil
	now := l.now()
	l.mu.Unlock()

	if !now.Before(until) {
		return nil
	}
	timer := time.NewTimer(until.Sub(now))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Observe updates the back-off window from a provider response.
func (l *Limiter) Observe(resp *http.Response) {
	if l == nil || resp == nil {
		return
	}

	var wait time.Duration
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait = parseRetryAfter(resp.Header.Get(HeaderRetryAfter))
		if wait == 0 {
			wait = time.Second
		}
	case resp.Header.Get(HeaderRemainingRequests) == "0":
		wait, _ = time.ParseDuration(strings.TrimSpace(resp.Header.Get(HeaderResetRequests)))
	}
	if wait <= 0 {
		return
	}
	if wait > maxBackoff {
		wait = maxBackoff
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(wait); until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
}

// BlockedUntil returns the end of the current back-off window.
func (l *Limiter) BlockedUntil() time.Time {
	if l == nil {
		return time.Time{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blockedUntil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}
