package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/checkin/internal/domain"
)

type sessionRepo struct {
	s *Store
}

type sessionRow struct {
	ID                string         `db:"id"`
	ChildID           string         `db:"child_id"`
	GuardianID        string         `db:"guardian_id"`
	Status            string         `db:"status"`
	Stage             string         `db:"stage"`
	IncorrectStreak   int            `db:"incorrect_streak"`
	TotalIncorrect    int            `db:"total_incorrect"`
	CurrentQuestionID sql.NullString `db:"current_question_id"`
	TriggerType       string         `db:"trigger_type"`
	StartedAt         time.Time      `db:"started_at"`
	LockedAt          sql.NullTime   `db:"locked_at"`
	UnlockedAt        sql.NullTime   `db:"unlocked_at"`
	CompletedAt       sql.NullTime   `db:"completed_at"`
	UnlockedBy        sql.NullString `db:"unlocked_by"`
}

var sessionColumns = []string{
	"id", "child_id", "guardian_id", "status", "stage", "incorrect_streak",
	"total_incorrect", "current_question_id", "trigger_type", "started_at",
	"locked_at", "unlocked_at", "completed_at", "unlocked_by",
}

// nonTerminal lists the statuses that count against the one-session rule.
var nonTerminal = []any{
	string(domain.StatusActive),
	string(domain.StatusRemediation),
	string(domain.StatusFullStop),
}

func (r sessionRow) toDomain() *domain.Session {
	return &domain.Session{
		ID:                r.ID,
		ChildID:           r.ChildID,
		GuardianID:        r.GuardianID,
		Status:            domain.SessionStatus(r.Status),
		Stage:             domain.Stage(r.Stage),
		IncorrectStreak:   r.IncorrectStreak,
		TotalIncorrect:    r.TotalIncorrect,
		CurrentQuestionID: r.CurrentQuestionID.String,
		TriggerType:       domain.TriggerType(r.TriggerType),
		StartedAt:         r.StartedAt,
		LockedAt:          timePtr(r.LockedAt),
		UnlockedAt:        timePtr(r.UnlockedAt),
		CompletedAt:       timePtr(r.CompletedAt),
		UnlockedBy:        domain.UnlockedBy(r.UnlockedBy.String),
	}
}

func (r *sessionRepo) Acquire(ctx context.Context, childID, sessionID string) error {
	now := time.Now().UTC()
	q := r.s.builder().Insert(tableSessionLocks).
		Columns("child_id", "session_id", "acquired_at").
		Values(childID, sessionID, now).
		OnConflict(entsql.ConflictColumns("child_id"), entsql.DoNothing())
	n, err := r.s.exec(ctx, q)
	if err != nil {
		return fmt.Errorf("acquire session lock: %w", err)
	}
	if n > 0 {
		return nil
	}
	return r.takeOver(ctx, childID, sessionID, now)
}

type lockRow struct {
	ChildID    string    `db:"child_id"`
	SessionID  string    `db:"session_id"`
	AcquiredAt time.Time `db:"acquired_at"`
}

// takeOver replaces a stale holder. The update is conditioned on the
// holder read here, so of two contenders only one wins.
func (r *sessionRepo) takeOver(ctx context.Context, childID, sessionID string, now time.Time) error {
	var holder lockRow
	sel := r.s.builder().Select("child_id", "session_id", "acquired_at").
		From(entsql.Table(tableSessionLocks)).
		Where(entsql.EQ("child_id", childID))
	switch err := r.s.getRow(ctx, &holder, sel); {
	case errors.Is(err, ErrNotFound):
		// Released since the insert; the caller may retry.
		return ErrConflict
	case err != nil:
		return fmt.Errorf("read session lock: %w", err)
	}

	exists := true
	var row sessionRow
	get := r.s.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", holder.SessionID))
	switch err := r.s.getRow(ctx, &row, get); {
	case errors.Is(err, ErrNotFound):
		exists = false
	case err != nil:
		return fmt.Errorf("read lock holder: %w", err)
	}
	if !LockIsStale(exists, domain.SessionStatus(row.Status), holder.AcquiredAt, now) {
		return ErrConflict
	}

	upd := r.s.builder().Update(tableSessionLocks).
		Set("session_id", sessionID).
		Set("acquired_at", now).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("session_id", holder.SessionID),
		))
	n, err := r.s.exec(ctx, upd)
	if err != nil {
		return fmt.Errorf("take over session lock: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

func (r *sessionRepo) Release(ctx context.Context, childID, sessionID string) error {
	q := r.s.builder().Delete(tableSessionLocks).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.EQ("session_id", sessionID),
		))
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

func (r *sessionRepo) Create(ctx context.Context, sess *domain.Session) error {
	q := r.s.builder().Insert(tableSessions).
		Columns(sessionColumns...).
		Values(sess.ID, sess.ChildID, sess.GuardianID, string(sess.Status),
			string(sess.Stage), sess.IncorrectStreak, sess.TotalIncorrect,
			nullString(sess.CurrentQuestionID), string(sess.TriggerType),
			sess.StartedAt, nullTime(sess.LockedAt), nullTime(sess.UnlockedAt),
			nullTime(sess.CompletedAt), nullString(string(sess.UnlockedBy)))
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	var row sessionRow
	q := r.s.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id))
	if err := r.s.getRow(ctx, &row, q); err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *sessionRepo) Update(ctx context.Context, id string, expected domain.SessionStatus, p SessionPatch) error {
	if p.Empty() {
		return nil
	}

	u := r.s.builder().Update(tableSessions).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("status", string(expected)),
		))
	if p.Status != nil {
		u.Set("status", string(*p.Status))
	}
	if p.Stage != nil {
		u.Set("stage", string(*p.Stage))
	}
	if p.IncorrectStreak != nil {
		u.Set("incorrect_streak", *p.IncorrectStreak)
	}
	if p.TotalIncorrect != nil {
		u.Set("total_incorrect", *p.TotalIncorrect)
	}
	if p.CurrentQuestionID != nil {
		u.Set("current_question_id", *p.CurrentQuestionID)
	}
	if p.LockedAt != nil {
		u.Set("locked_at", *p.LockedAt)
	}
	if p.UnlockedAt != nil {
		u.Set("unlocked_at", *p.UnlockedAt)
	}
	if p.CompletedAt != nil {
		u.Set("completed_at", *p.CompletedAt)
	}
	if p.UnlockedBy != nil {
		u.Set("unlocked_by", string(*p.UnlockedBy))
	}

	n, err := r.s.exec(ctx, u)
	if err != nil {
		return fmt.Errorf("update session %s: %w", id, err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: tell a missing row apart from a lost race.
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

func (r *sessionRepo) Active(ctx context.Context, childID string) (*domain.Session, error) {
	var rows []sessionRow
	q := r.s.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.And(
			entsql.EQ("child_id", childID),
			entsql.In("status", nonTerminal...),
		)).
		OrderBy(entsql.Desc("started_at")).
		Limit(1)
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("active session for %s: %w", childID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

func (r *sessionRepo) ListByChild(ctx context.Context, childID string, opts QueryOpts) ([]*domain.Session, error) {
	q := r.s.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("child_id", childID)).
		OrderBy(entsql.Desc("started_at"))
	if !opts.From.IsZero() {
		q.Where(entsql.GTE("started_at", opts.From))
	}
	if !opts.To.IsZero() {
		q.Where(entsql.LTE("started_at", opts.To))
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	var rows []sessionRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list sessions for %s: %w", childID, err)
	}
	out := make([]*domain.Session, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}
