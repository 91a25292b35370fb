package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/abhisek/checkin/internal/domain"
)

type progressRepo struct {
	s *Store
}

type progressRow struct {
	ID                string    `db:"id"`
	ChildID           string    `db:"child_id"`
	Date              string    `db:"date"`
	TotalQuestions    int       `db:"total_questions"`
	CorrectAnswers    int       `db:"correct_answers"`
	IncorrectAnswers  int       `db:"incorrect_answers"`
	SessionsCompleted int       `db:"sessions_completed"`
	SessionsLockedOut int       `db:"sessions_locked_out"`
	TimeSpentSeconds  int       `db:"time_spent_seconds"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

var progressColumns = []string{
	"id", "child_id", "date", "total_questions", "correct_answers",
	"incorrect_answers", "sessions_completed", "sessions_locked_out",
	"time_spent_seconds", "created_at", "updated_at",
}

type topicRow struct {
	Date      string `db:"date"`
	Topic     string `db:"topic"`
	Correct   int    `db:"correct"`
	Incorrect int    `db:"incorrect"`
}

func (r progressRow) toDomain() *domain.ProgressRecord {
	return &domain.ProgressRecord{
		ID:                r.ID,
		ChildID:           r.ChildID,
		Date:              r.Date,
		TotalQuestions:    r.TotalQuestions,
		CorrectAnswers:    r.CorrectAnswers,
		IncorrectAnswers:  r.IncorrectAnswers,
		SessionsCompleted: r.SessionsCompleted,
		SessionsLockedOut: r.SessionsLockedOut,
		TimeSpentSeconds:  r.TimeSpentSeconds,
		TopicBreakdown:    map[string]domain.TopicCount{},
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func (r *progressRepo) Increment(ctx context.Context, childID, date string, d ProgressDelta) error {
	now := time.Now().UTC()

	// Lazily create the day's record. Losing the race to another writer is
	// fine: the row exists either way.
	ins := r.s.builder().Insert(tableProgress).
		Columns("id", "child_id", "date", "total_questions", "correct_answers",
			"incorrect_answers", "sessions_completed", "sessions_locked_out",
			"time_spent_seconds", "created_at", "updated_at").
		Values(uuid.NewString(), childID, date, 0, 0, 0, 0, 0, 0, now, now).
		OnConflict(entsql.ConflictColumns("child_id", "date"), entsql.DoNothing())
	if _, err := r.s.exec(ctx, ins); err != nil {
		return fmt.Errorf("ensure progress %s/%s: %w", childID, date, err)
	}

	u := r.s.builder().Update(tableProgress).
		Set("updated_at", now).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("date", date),
		))
	addNonZero(u, "total_questions", d.TotalQuestions)
	addNonZero(u, "correct_answers", d.CorrectAnswers)
	addNonZero(u, "incorrect_answers", d.IncorrectAnswers)
	addNonZero(u, "sessions_completed", d.SessionsCompleted)
	addNonZero(u, "sessions_locked_out", d.SessionsLockedOut)
	addNonZero(u, "time_spent_seconds", d.TimeSpentSeconds)
	if _, err := r.s.exec(ctx, u); err != nil {
		return fmt.Errorf("increment progress %s/%s: %w", childID, date, err)
	}

	if d.Topic == "" || (d.TopicCorrect == 0 && d.TopicIncorrect == 0) {
		return nil
	}

	ins = r.s.builder().Insert(tableProgressTopic).
		Columns("id", "child_id", "date", "topic", "correct", "incorrect").
		Values(uuid.NewString(), childID, date, d.Topic, 0, 0).
		OnConflict(entsql.ConflictColumns("child_id", "date", "topic"), entsql.DoNothing())
	if _, err := r.s.exec(ctx, ins); err != nil {
		return fmt.Errorf("ensure topic %s: %w", d.Topic, err)
	}

	u = r.s.builder().Update(tableProgressTopic).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("date", date),
			entsql.EQ("topic", d.Topic),
		))
	addNonZero(u, "correct", d.TopicCorrect)
	addNonZero(u, "incorrect", d.TopicIncorrect)
	if _, err := r.s.exec(ctx, u); err != nil {
		return fmt.Errorf("increment topic %s: %w", d.Topic, err)
	}
	return nil
}

func addNonZero(u *entsql.UpdateBuilder, column string, v int) {
	if v != 0 {
		u.Add(column, v)
	}
}

func (r *progressRepo) Range(ctx context.Context, childID, start, end string) ([]*domain.ProgressRecord, error) {
	between := entsql.And(
		entsql.EQ("child_id", childID),
		entsql.GTE("date", start),
		entsql.LTE("date", end),
	)

	var rows []progressRow
	q := r.s.builder().Select(progressColumns...).
		From(entsql.Table(tableProgress)).
		Where(between).
		OrderBy(entsql.Asc("date"))
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("progress range for %s: %w", childID, err)
	}

	var topics []topicRow
	tq := r.s.builder().Select("date", "topic", "correct", "incorrect").
		From(entsql.Table(tableProgressTopic)).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.GTE("date", start),
			entsql.LTE("date", end),
		))
	if err := r.s.selectRows(ctx, &topics, tq); err != nil {
		return nil, fmt.Errorf("topic range for %s: %w", childID, err)
	}

	out := make([]*domain.ProgressRecord, len(rows))
	byDate := make(map[string]*domain.ProgressRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
		byDate[row.Date] = out[i]
	}
	for _, t := range topics {
		if rec, ok := byDate[t.Date]; ok {
			rec.TopicBreakdown[t.Topic] = domain.TopicCount{Correct: t.Correct, Incorrect: t.Incorrect}
		}
	}
	return out, nil
}
