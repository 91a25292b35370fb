package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Config selects delivery channels. The log channel is always on.
type Config struct {
	Email   *EmailConfig   `mapstructure:"email"`
	Webhook *WebhookConfig `mapstructure:"webhook"`
	Retry   RetryConfig    `mapstructure:"retry"`
}

// NewSender builds the sender for cfg: the log sender plus email and
// webhook when configured.
func NewSender(ctx context.Context, cfg Config, logger *slog.Logger) (Sender, error) {
	senders := MultiSender{NewLogSender(logger)}

	if cfg.Email != nil && cfg.Email.From != "" {
		email, err := NewEmailSender(ctx, *cfg.Email, cfg.Retry)
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		senders = append(senders, email)
	}
	if cfg.Webhook != nil && cfg.Webhook.URL != "" {
		senders = append(senders, NewWebhookSender(*cfg.Webhook, cfg.Retry))
	}

	if len(senders) == 1 {
		return senders[0], nil
	}
	return senders, nil
}
