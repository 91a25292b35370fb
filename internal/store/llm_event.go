package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// llmEventRepo implements LLMEventRepo. IDs come from the table's
// auto-increment key.
type llmEventRepo struct {
	s *Store
}

type llmEventRow struct {
	ID           int            `db:"id"`
	Timestamp    time.Time      `db:"timestamp"`
	Provider     string         `db:"provider"`
	Model        string         `db:"model"`
	Purpose      string         `db:"purpose"`
	InputTokens  int            `db:"input_tokens"`
	OutputTokens int            `db:"output_tokens"`
	LatencyMs    int64          `db:"latency_ms"`
	Success      bool           `db:"success"`
	ErrorMessage sql.NullString `db:"error_message"`
	RequestBody  sql.NullString `db:"request_body"`
	ResponseBody sql.NullString `db:"response_body"`
}

var llmEventColumns = []string{
	"id", "timestamp", "provider", "model", "purpose", "input_tokens",
	"output_tokens", "latency_ms", "success", "error_message",
	"request_body", "response_body",
}

func (r llmEventRow) toEvent() LLMRequestEvent {
	return LLMRequestEvent{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		LLMRequestEventData: LLMRequestEventData{
			Provider:     r.Provider,
			Model:        r.Model,
			Purpose:      r.Purpose,
			InputTokens:  r.InputTokens,
			OutputTokens: r.OutputTokens,
			LatencyMs:    r.LatencyMs,
			Success:      r.Success,
			ErrorMessage: r.ErrorMessage.String,
			RequestBody:  r.RequestBody.String,
			ResponseBody: r.ResponseBody.String,
		},
	}
}

func (r *llmEventRepo) AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error {
	q := r.s.builder().Insert(tableLLMEvents).
		Columns(llmEventColumns[1:]...).
		Values(time.Now().UTC(), data.Provider, data.Model, data.Purpose,
			data.InputTokens, data.OutputTokens, data.LatencyMs, data.Success,
			nullString(data.ErrorMessage), nullString(data.RequestBody),
			nullString(data.ResponseBody))
	if _, err := r.s.exec(ctx, q); err != nil {
		return fmt.Errorf("save LLM request event: %w", err)
	}
	return nil
}

func (r *llmEventRepo) QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error) {
	q := r.s.builder().Select(llmEventColumns...).
		From(entsql.Table(tableLLMEvents)).
		OrderBy(entsql.Desc("id"))
	if !opts.From.IsZero() {
		q.Where(entsql.GTE("timestamp", opts.From))
	}
	if !opts.To.IsZero() {
		q.Where(entsql.LTE("timestamp", opts.To))
	}
	if opts.Limit > 0 {
		q.Limit(opts.Limit)
	}

	var rows []llmEventRow
	if err := r.s.selectRows(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("query LLM events: %w", err)
	}
	out := make([]LLMRequestEvent, len(rows))
	for i, row := range rows {
		out[i] = row.toEvent()
	}
	return out, nil
}

func (r *llmEventRepo) GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error) {
	var row llmEventRow
	q := r.s.builder().Select(llmEventColumns...).
		From(entsql.Table(tableLLMEvents)).
		Where(entsql.EQ("id", id))
	err := r.s.getRow(ctx, &row, q)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get LLM event %d: %w", id, err)
	}
	e := row.toEvent()
	return &e, nil
}
