package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/checkin/internal/domain"
)

type lessonRepo struct {
	s *Store
}

type lessonRow struct {
	ID                string         `db:"id"`
	SessionID         string         `db:"session_id"`
	ChildID           string         `db:"child_id"`
	Topic             string         `db:"topic"`
	TriggerQuestionID sql.NullString `db:"trigger_question_id"`
	Title             string         `db:"title"`
	Description       sql.NullString `db:"description"`
	Objectives        sql.NullString `db:"objectives"`
	Activities        sql.NullString `db:"activities"`
	DurationSeconds   int            `db:"duration_seconds"`
	WatchCount        int            `db:"watch_count"`
	Source            string         `db:"source"`
	CreatedAt         time.Time      `db:"created_at"`
}

var lessonColumns = []string{
	"id", "session_id", "child_id", "topic", "trigger_question_id", "title",
	"description", "objectives", "activities", "duration_seconds",
	"watch_count", "source", "created_at",
}

func (r lessonRow) toDomain() *domain.Lesson {
	l := &domain.Lesson{
		ID:                r.ID,
		SessionID:         r.SessionID,
		ChildID:           r.ChildID,
		Topic:             r.Topic,
		TriggerQuestionID: r.TriggerQuestionID.String,
		Title:             r.Title,
		Description:       r.Description.String,
		Objectives:        decodeStrings(r.Objectives),
		DurationSeconds:   r.DurationSeconds,
		WatchCount:        r.WatchCount,
		Source:            domain.LessonSource(r.Source),
		CreatedAt:         r.CreatedAt,
	}
	if r.Activities.Valid && r.Activities.String != "" {
		_ = json.Unmarshal([]byte(r.Activities.String), &l.Activities)
	}
	return l
}

func (r *lessonRepo) Create(ctx context.Context, l *domain.Lesson) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	activities, err := json.Marshal(l.Activities)
	if err != nil {
		return fmt.Errorf("marshal activities: %w", err)
	}

	q := r.s.builder().Insert(tableLessons).
		Columns(lessonColumns...).
		Values(l.ID, l.SessionID, l.ChildID, l.Topic, nullString(l.TriggerQuestionID),
			l.Title, l.Description, encodeStrings(l.Objectives), string(activities),
			l.DurationSeconds, l.WatchCount, string(l.Source), l.CreatedAt)
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (r *lessonRepo) LatestForSession(ctx context.Context, sessionID string) (*domain.Lesson, error) {
	var row lessonRow
	q := r.s.builder().Select(lessonColumns...).
		From(entsql.Table(tableLessons)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)
	if err := r.s.getRow(ctx, &row, q); err != nil {
		return nil, fmt.Errorf("lesson for session %s: %w", sessionID, err)
	}
	return row.toDomain(), nil
}

func (r *lessonRepo) IncrementWatch(ctx context.Context, id string) error {
	u := r.s.builder().Update(tableLessons).
		Add("watch_count", 1).
		Where(entsql.EQ("id", id))
	n, err := r.s.exec(ctx, u)
	if err != nil {
		return fmt.Errorf("increment watch count of %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
