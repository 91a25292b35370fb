package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/checkin/internal/domain"
)

type questionRepo struct {
	s *Store
}

type questionRow struct {
	ID            string         `db:"id"`
	SessionID     string         `db:"session_id"`
	ChildID       string         `db:"child_id"`
	Topic         string         `db:"topic"`
	Text          sql.NullString `db:"text"`
	Options       sql.NullString `db:"options"`
	CorrectAnswer string         `db:"correct_answer"`
	ChildAnswer   sql.NullString `db:"child_answer"`
	IsCorrect     sql.NullBool   `db:"is_correct"`
	AnsweredAt    sql.NullTime   `db:"answered_at"`
	AttemptNumber int            `db:"attempt_number"`
	Source        string         `db:"source"`
	Status        sql.NullString `db:"status"`
	CreatedAt     time.Time      `db:"created_at"`
}

var questionColumns = []string{
	"id", "session_id", "child_id", "topic", "text", "options",
	"correct_answer", "child_answer", "is_correct", "answered_at",
	"attempt_number", "source", "status", "created_at",
}

func (r questionRow) toDomain() *domain.Question {
	q := &domain.Question{
		ID:            r.ID,
		SessionID:     r.SessionID,
		ChildID:       r.ChildID,
		Topic:         r.Topic,
		Text:          r.Text.String,
		Options:       decodeStrings(r.Options),
		CorrectAnswer: r.CorrectAnswer,
		ChildAnswer:   r.ChildAnswer.String,
		AnsweredAt:    timePtr(r.AnsweredAt),
		AttemptNumber: r.AttemptNumber,
		Source:        domain.QuestionSource(r.Source),
		Status:        domain.QuestionStatus(r.Status.String),
		CreatedAt:     r.CreatedAt,
	}
	if r.IsCorrect.Valid {
		v := r.IsCorrect.Bool
		q.IsCorrect = &v
	}
	return q
}

func questionValues(q *domain.Question) []any {
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	var isCorrect sql.NullBool
	if q.IsCorrect != nil {
		isCorrect = sql.NullBool{Bool: *q.IsCorrect, Valid: true}
	}
	return []any{
		q.ID, q.SessionID, q.ChildID, q.Topic, q.Text, encodeStrings(q.Options),
		q.CorrectAnswer, nullString(q.ChildAnswer), isCorrect, nullTime(q.AnsweredAt),
		q.AttemptNumber, string(q.Source), nullString(string(q.Status)), q.CreatedAt,
	}
}

func (r *questionRepo) Create(ctx context.Context, q *domain.Question) error {
	ins := r.s.builder().Insert(tableQuestions).
		Columns(questionColumns...).
		Values(questionValues(q)...)
	if _, err := r.s.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (r *questionRepo) CreateBatch(ctx context.Context, qs []*domain.Question, batchSize int) error {
	if batchSize <= 0 {
		batchSize = len(qs)
	}
	for start := 0; start < len(qs); start += batchSize {
		end := min(start+batchSize, len(qs))
		ins := r.s.builder().Insert(tableQuestions).Columns(questionColumns...)
		for _, q := range qs[start:end] {
			ins.Values(questionValues(q)...)
		}
		if _, err := r.s.exec(ctx, ins); err != nil {
			return fmt.Errorf("insert question batch at %d: %w", start, err)
		}
	}
	return nil
}

func (r *questionRepo) Get(ctx context.Context, id string) (*domain.Question, error) {
	var row questionRow
	q := r.s.builder().Select(questionColumns...).
		From(entsql.Table(tableQuestions)).
		Where(entsql.EQ("id", id))
	if err := r.s.getRow(ctx, &row, q); err != nil {
		return nil, fmt.Errorf("get question %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *questionRepo) ListReady(ctx context.Context, childID string, limit int) ([]*domain.Question, error) {
	q := r.s.builder().Select(questionColumns...).
		From(entsql.Table(tableQuestions)).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("status", string(domain.QuestionReady)),
		)).
		OrderBy(entsql.Asc("created_at"), entsql.Asc("id"))
	if limit > 0 {
		q.Limit(limit)
	}

	var rows []questionRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list ready questions for %s: %w", childID, err)
	}
	return questionsFromRows(rows), nil
}

func (r *questionRepo) CountReady(ctx context.Context, childID string) (int, error) {
	q := r.s.builder().Select(entsql.Count("*")).
		From(entsql.Table(tableQuestions)).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("status", string(domain.QuestionReady)),
		))
	query, args := q.Query()
	var n int
	if err := r.s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count ready questions for %s: %w", childID, err)
	}
	return n, nil
}

func (r *questionRepo) Claim(ctx context.Context, id, sessionID string, attempt int) error {
	u := r.s.builder().Update(tableQuestions).
		Set("status", string(domain.QuestionUsed)).
		Set("session_id", sessionID).
		Set("attempt_number", attempt).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(domain.QuestionReady)),
		))
	n, err := r.s.exec(ctx, u)
	if err != nil {
		return fmt.Errorf("claim question %s: %w", id, err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *questionRepo) RecordAnswer(ctx context.Context, id, answer string, correct bool, at time.Time) error {
	u := r.s.builder().Update(tableQuestions).
		Set("child_answer", answer).
		Set("is_correct", correct).
		Set("answered_at", at).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.IsNull("is_correct"),
		))
	n, err := r.s.exec(ctx, u)
	if err != nil {
		return fmt.Errorf("record answer on %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func (r *questionRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.Question, error) {
	q := r.s.builder().Select(questionColumns...).
		From(entsql.Table(tableQuestions)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Asc("attempt_number"), entsql.Asc("created_at"))

	var rows []questionRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list questions for session %s: %w", sessionID, err)
	}
	return SortByAnswerOrder(questionsFromRows(rows)), nil
}

func questionsFromRows(rows []questionRow) []*domain.Question {
	out := make([]*domain.Question, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}
