package notify

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// RetryConfig bounds delivery retries for remote senders.
type RetryConfig struct {
	Attempts    uint          `mapstructure:"attempts"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
}

// DefaultRetryConfig returns three attempts with a 500ms base backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, InitialWait: 500 * time.Millisecond}
}

// deliver runs fn until it succeeds, fails permanently or attempts run
// out. Errors wrapped with retry.Unrecoverable stop immediately.
func deliver(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.InitialWait),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
