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

type childRepo struct {
	s *Store
}

type childRow struct {
	ID            string         `db:"id"`
	GuardianID    string         `db:"guardian_id"`
	Name          string         `db:"name"`
	AgeGroup      string         `db:"age_group"`
	LearningFocus sql.NullString `db:"learning_focus"`
	Interests     sql.NullString `db:"interests"`
	Active        bool           `db:"active"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

var childColumns = []string{
	"id", "guardian_id", "name", "age_group", "learning_focus",
	"interests", "active", "created_at", "updated_at",
}

func (r childRow) toDomain() *domain.ChildProfile {
	return &domain.ChildProfile{
		ID:            r.ID,
		GuardianID:    r.GuardianID,
		Name:          r.Name,
		AgeGroup:      domain.AgeGroup(r.AgeGroup),
		LearningFocus: decodeStrings(r.LearningFocus),
		Interests:     decodeStrings(r.Interests),
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (r *childRepo) Create(ctx context.Context, c *domain.ChildProfile) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	q := r.s.builder().Insert(tableChildren).
		Columns(childColumns...).
		Values(c.ID, c.GuardianID, c.Name, string(c.AgeGroup),
			encodeStrings(c.LearningFocus), encodeStrings(c.Interests),
			c.Active, c.CreatedAt, c.UpdatedAt)
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("insert child: %w", err)
	}
	return nil
}

func (r *childRepo) Get(ctx context.Context, id string) (*domain.ChildProfile, error) {
	var row childRow
	q := r.s.builder().Select(childColumns...).
		From(entsql.Table(tableChildren)).
		Where(entsql.EQ("id", id))
	if err := r.s.getRow(ctx, &row, q); err != nil {
		return nil, fmt.Errorf("get child %s: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *childRepo) List(ctx context.Context, guardianID string) ([]*domain.ChildProfile, error) {
	q := r.s.builder().Select(childColumns...).
		From(entsql.Table(tableChildren)).
		OrderBy(entsql.Asc("created_at"))
	if guardianID != "" {
		q.Where(entsql.EQ("guardian_id", guardianID))
	}

	var rows []childRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	out := make([]*domain.ChildProfile, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// encodeStrings stores a string list as a JSON array.
func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func decodeStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
