package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// ErrNoRecipient is returned when a guardian has no email address.
var ErrNoRecipient = errors.New("notify: no email address for guardian")

// EmailConfig configures SES delivery.
type EmailConfig struct {
	Region   string `mapstructure:"region" validate:"required_with=From"`
	From     string `mapstructure:"from" validate:"omitempty,email"`
	FromName string `mapstructure:"from_name"`

	// Recipients maps guardian ids to email addresses. Keys loaded from
	// checkin.yaml are lowercased.
	Recipients map[string]string `mapstructure:"recipients"`
}

// SESClient is the subset of the SES v2 client used for delivery.
type SESClient interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailSender delivers messages through Amazon SES.
type EmailSender struct {
	client     SESClient
	from       string
	recipients map[string]string
	retry      RetryConfig
}

// NewEmailSender loads the default AWS configuration for cfg.Region and
// builds an SES-backed sender.
func NewEmailSender(ctx context.Context, cfg EmailConfig, retryCfg RetryConfig) (*EmailSender, error) {
	if cfg.From == "" {
		return nil, errors.New("notify: email sender requires a from address")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewEmailSenderWithClient(sesv2.NewFromConfig(awsCfg), cfg, retryCfg), nil
}

// NewEmailSenderWithClient builds a sender on an existing SES client.
func NewEmailSenderWithClient(client SESClient, cfg EmailConfig, retryCfg RetryConfig) *EmailSender {
	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &EmailSender{
		client:     client,
		from:       from,
		recipients: cfg.Recipients,
		retry:      retryCfg,
	}
}

func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	to, ok := s.recipients[msg.GuardianID]
	if !ok || to == "" {
		return fmt.Errorf("guardian %s: %w", msg.GuardianID, ErrNoRecipient)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Title),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}

	return deliver(ctx, s.retry, func() error {
		if _, err := s.client.SendEmail(ctx, input); err != nil {
			return fmt.Errorf("send email to %s: %w", to, err)
		}
		return nil
	})
}
