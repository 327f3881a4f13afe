package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"surveyor/internal/question"
)

// RetryPolicy controls attempt count and delays for structured queries.
// Transport failures back off exponentially from InitialBackoff up to
// MaxBackoff; parse failures wait a fixed ParseRetryDelay, since the
// remote may simply produce better-formed output on a fresh attempt.
type RetryPolicy struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	ParseRetryDelay time.Duration
}

// DefaultRetryPolicy returns the provider defaults: three attempts, a
// 1s/2s/4s transport backoff capped at 30s, and 1s between parse retries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialBackoff:  time.Second,
		MaxBackoff:      30 * time.Second,
		ParseRetryDelay: time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.ParseRetryDelay <= 0 {
		p.ParseRetryDelay = def.ParseRetryDelay
	}
	return p
}

// backoff returns the delay before the attempt after the given one.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff << uint(attempt)
	if d > p.MaxBackoff || d <= 0 {
		d = p.MaxBackoff
	}
	return d
}

// Do runs fn up to MaxAttempts times, classifying each returned error.
// ErrClientRequest fails immediately; ErrTransient sleeps with exponential
// backoff; anything else (ErrParse included) sleeps the fixed parse delay.
// Delays abort early when ctx is done, and ctx errors are returned as-is
// so callers can tell cancellation apart from query failure.
//
// The int result is the number of retries consumed: 0 when the first
// attempt settles things, MaxAttempts-1 when every attempt ran.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) (int, error) {
	p = p.normalized()
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return attempt, nil
		}
		if errors.Is(lastErr, ErrClientRequest) {
			return attempt, lastErr
		}
		if attempt == p.MaxAttempts-1 {
			break
		}
		delay := p.ParseRetryDelay
		if errors.Is(lastErr, ErrTransient) {
			delay = p.backoff(attempt)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
	return p.MaxAttempts - 1, lastErr
}

// timeouts picks the per-attempt timeout for a schema: the first query
// per schema name gets the cold value (providers are slower while they
// prepare a new grammar), every later one the warm value.
type timeouts struct {
	cold time.Duration
	warm time.Duration

	mu   sync.Mutex
	seen map[string]bool
}

func newTimeouts(cold, warm time.Duration) *timeouts {
	return &timeouts{cold: cold, warm: warm, seen: make(map[string]bool)}
}

func (t *timeouts) For(schema question.Schema) time.Duration {
	if schema.Empty() {
		return t.warm
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen[schema.Name] {
		return t.warm
	}
	t.seen[schema.Name] = true
	return t.cold
}

