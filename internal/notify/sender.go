package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/abhisek/checkin/internal/domain"
)

//go:generate mockgen -source=sender.go -destination=../mocks/notify/mock_sender.go -package=mock_notify

// Message is a notification ready for delivery.
type Message struct {
	ID         string                  `json:"id"`
	GuardianID string                  `json:"guardian_id"`
	ChildID    string                  `json:"child_id"`
	SessionID  string                  `json:"session_id"`
	Type       domain.NotificationType `json:"type"`
	Title      string                  `json:"title"`
	Body       string                  `json:"body"`
}

// Sender delivers a message to a guardian over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to a structured logger. It never fails.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs at Info.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("guardian notification",
		"type", msg.Type,
		"guardian_id", msg.GuardianID,
		"child_id", msg.ChildID,
		"session_id", msg.SessionID,
		"title", msg.Title,
	)
	return nil
}

// MultiSender fans a message out to every sender. All senders are tried;
// the joined error reports each failure.
type MultiSender []Sender

func (m MultiSender) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sender that holds resources.
func (m MultiSender) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
