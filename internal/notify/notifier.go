// Package notify records guardian alerts and delivers them over the
// configured channels.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/store"
)

// Notification is an alert to be raised to a guardian.
type Notification struct {
	Type       domain.NotificationType
	GuardianID string
	ChildID    string
	SessionID  string
	Title      string
	Body       string
}

// ChildLocked builds the alert sent when a session escalates to full stop.
func ChildLocked(guardianID, childID, sessionID string) Notification {
	return Notification{
		Type:       domain.NotifyChildLocked,
		GuardianID: guardianID,
		ChildID:    childID,
		SessionID:  sessionID,
		Title:      "Device Locked",
		Body: fmt.Sprintf("Your child's device has been locked after 3 incorrect answers (session %s). Open Checkin to unlock.",
			sessionID),
	}
}

// SessionComplete builds the alert sent when a session closes.
func SessionComplete(guardianID, childID, sessionID string, wasLocked bool) Notification {
	body := fmt.Sprintf("Your child answered their check-in question correctly (session %s).", sessionID)
	if wasLocked {
		body = fmt.Sprintf("Your child watched the lesson and unlocked their device (session %s).", sessionID)
	}
	return Notification{
		Type:       domain.NotifySessionComplete,
		GuardianID: guardianID,
		ChildID:    childID,
		SessionID:  sessionID,
		Title:      "Check-in Complete",
		Body:       body,
	}
}

// Notifier appends alerts to the guardian log and hands them to a Sender.
type Notifier struct {
	repo   store.NotificationRepo
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

// NewNotifier creates a Notifier. A nil sender logs deliveries only.
func NewNotifier(repo store.NotificationRepo, sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Notifier{repo: repo, sender: sender, logger: logger, now: time.Now}
}

// Notify persists the alert and attempts delivery. Only the log write can fail;
// delivery errors are logged and leave the entry undelivered.
func (n *Notifier) Notify(ctx context.Context, note Notification) (*domain.NotificationLog, error) {
	entry := &domain.NotificationLog{
		ID:         uuid.NewString(),
		GuardianID: note.GuardianID,
		ChildID:    note.ChildID,
		SessionID:  note.SessionID,
		Type:       note.Type,
		Title:      note.Title,
		Body:       note.Body,
		SentAt:     n.now().UTC(),
	}
	if err := n.repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append notification: %w", err)
	}

	msg := Message{
		ID:         entry.ID,
		GuardianID: entry.GuardianID,
		ChildID:    entry.ChildID,
		SessionID:  entry.SessionID,
		Type:       entry.Type,
		Title:      entry.Title,
		Body:       entry.Body,
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.Warn("notification delivery failed",
			"notification_id", entry.ID, "type", entry.Type, "guardian_id", entry.GuardianID, "error", err)
		return entry, nil
	}

	if err := n.repo.MarkDelivered(ctx, entry.ID); err != nil {
		n.logger.Warn("mark notification delivered", "notification_id", entry.ID, "error", err)
		return entry, nil
	}
	entry.Delivered = true
	return entry, nil
}

// List returns a guardian's most recent alerts, newest first. A limit of
// zero returns all of them.
func (n *Notifier) List(ctx context.Context, guardianID string, limit int) ([]*domain.NotificationLog, error) {
	logs, err := n.repo.ListByGuardian(ctx, guardianID, store.QueryOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return logs, nil
}
