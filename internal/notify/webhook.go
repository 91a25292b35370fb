package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"
)

// WebhookConfig configures the push gateway.
type WebhookConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WebhookSender POSTs each message as JSON to a push gateway.
type WebhookSender struct {
	client *resty.Client
	url    string
	retry  RetryConfig
}

// NewWebhookSender creates a webhook sender. The token, when set, is sent
// as a bearer token.
func NewWebhookSender(cfg WebhookConfig, retryCfg RetryConfig) *WebhookSender {
	client := resty.New()
	client.SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &WebhookSender{client: client, url: cfg.URL, retry: retryCfg}
}

// Close releases the underlying HTTP client.
func (s *WebhookSender) Close() error {
	return s.client.Close()
}

func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	return deliver(ctx, s.retry, func() error {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(msg).
			Post(s.url)
		if err != nil {
			return fmt.Errorf("webhook post: %w", err)
		}
		if resp.IsError() {
			err := fmt.Errorf("webhook response error %d: %s", resp.StatusCode(), resp.String())
			if !retryableStatus(resp.StatusCode()) {
				return retry.Unrecoverable(err)
			}
			return err
		}
		return nil
	})
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
