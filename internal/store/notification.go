package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/checkin/internal/domain"
)

type notificationRepo struct {
	s *Store
}

type notificationRow struct {
	ID         string         `db:"id"`
	GuardianID string         `db:"guardian_id"`
	ChildID    string         `db:"child_id"`
	SessionID  sql.NullString `db:"session_id"`
	Type       string         `db:"type"`
	Title      string         `db:"title"`
	Body       sql.NullString `db:"body"`
	SentAt     time.Time      `db:"sent_at"`
	Delivered  bool           `db:"delivered"`
}

var notificationColumns = []string{
	"id", "guardian_id", "child_id", "session_id", "type", "title", "body",
	"sent_at", "delivered",
}

func (r notificationRow) toDomain() *domain.NotificationLog {
	return &domain.NotificationLog{
		ID:         r.ID,
		GuardianID: r.GuardianID,
		ChildID:    r.ChildID,
		SessionID:  r.SessionID.String,
		Type:       domain.NotificationType(r.Type),
		Title:      r.Title,
		Body:       r.Body.String,
		SentAt:     r.SentAt,
		Delivered:  r.Delivered,
	}
}

func (r *notificationRepo) Append(ctx context.Context, n *domain.NotificationLog) error {
	q := r.s.builder().Insert(tableNotifications).
		Columns(notificationColumns...).
		Values(n.ID, n.GuardianID, n.ChildID, nullString(n.SessionID), string(n.Type),
			n.Title, n.Body, n.SentAt, n.Delivered)
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepo) MarkDelivered(ctx context.Context, id string) error {
	u := r.s.builder().Update(tableNotifications).
		Set("delivered", true).
		Where(entsql.EQ("id", id))
	n, err := r.s.exec(ctx, u)
	if err != nil {
		return fmt.Errorf("mark notification %s delivered: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepo) ListByGuardian(ctx context.Context, guardianID string, opts QueryOpts) ([]*domain.NotificationLog, error) {
	q := r.s.builder().Select(notificationColumns...).
		From(entsql.Table(tableNotifications)).
		Where(entsql.EQ("guardian_id", guardianID)).
		OrderBy(entsql.Desc("sent_at"))
	if !opts.From.IsZero() {
		q.Where(entsql.GTE("sent_at", opts.From))
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	var rows []notificationRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list notifications for %s: %w", guardianID, err)
	}
	out := make([]*domain.NotificationLog, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
