package llm

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go"
)

// RetryProvider is a decorator that retries transient errors with
// exponential backoff and jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	invalidRetried := false

	err := retry.Do(
		func() error {
			var err error
			resp, err = r.inner.Generate(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.config.MaxAttempts),
		retry.Delay(r.config.InitialWait),
		retry.MaxDelay(r.config.MaxWait),
		retry.MaxJitter(r.config.MaxJitter),
		retry.DelayType(r.delay),
		retry.RetryIf(func(err error) bool { return shouldRetry(err, &invalidRetried) }),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// delay honors a provider supplied Retry-After, otherwise backs off
// exponentially with random jitter.
func (r *RetryProvider) delay(n uint, err error, cfg *retry.Config) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	if r.config.MaxJitter <= 0 {
		return retry.BackOffDelay(n, err, cfg)
	}
	return retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)(n, err, cfg)
}

// shouldRetry reports whether err is worth another attempt. An invalid
// response is retried once.
func shouldRetry(err error, invalidRetried *bool) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return false
	}

	var invResp *ErrInvalidResponse
	if errors.As(err, &invResp) {
		if *invalidRetried {
			return false
		}
		*invalidRetried = true
		return true
	}

	return retry.IsRecoverable(err)
}

// TimeoutProvider bounds every Generate call with a deadline.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p so each call is cancelled after d. A zero d
// returns p unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: d}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *TimeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
