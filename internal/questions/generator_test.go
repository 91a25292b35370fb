package questions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/llm"
	"github.com/abhisek/checkin/internal/store/memstore"
)

func batchJSON(t *testing.T, qs ...Generated) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(batchOutput{Questions: qs})
	require.NoError(t, err)
	return raw
}

func goodQuestion(topic string) Generated {
	return Generated{
		Topic:   topic,
		Text:    "What is 6 x 7?",
		Options: []string{"36", "42", "48", "54"},
		Answer:  "42",
	}
}

func TestLLMGenerator_DropsInvalidCandidates(t *testing.T) {
	bad := goodQuestion("math")
	bad.Answer = "41"
	offTopic := goodQuestion("history")

	mock := llm.NewMockProvider(llm.MockResponse{Content: batchJSON(t, goodQuestion("MATH "), bad, offTopic)})
	g := NewLLMGenerator(mock, DefaultGeneratorConfig(), nil)

	got, err := g.Generate(context.Background(), GenerateInput{
		AgeGroup: domain.AgeGroup9to12,
		Topics:   []string{"math"},
		Count:    5,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "math", got[0].Topic)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, BatchSchema, calls[0].Schema)
	assert.Contains(t, calls[0].Messages[0].Content, "Age group: 9-12")
	assert.Contains(t, calls[0].Messages[0].Content, "Already in stock:\nNone")
}

func TestLLMGenerator_CapsAtCount(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: batchJSON(t, goodQuestion("math"), goodQuestion("math"), goodQuestion("math")),
	})
	g := NewLLMGenerator(mock, DefaultGeneratorConfig(), nil)

	got, err := g.Generate(context.Background(), GenerateInput{Topics: []string{"math"}, Count: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLLMGenerator_ProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	g := NewLLMGenerator(mock, DefaultGeneratorConfig(), nil)

	_, err := g.Generate(context.Background(), GenerateInput{Count: 1})
	var unavail *llm.ErrProviderUnavailable
	require.True(t, errors.As(err, &unavail))
}

func TestLLMGenerator_SchemaViolation(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`{"items":[]}`)})
	g := NewLLMGenerator(mock, DefaultGeneratorConfig(), nil)

	_, err := g.Generate(context.Background(), GenerateInput{Count: 1})
	var inv *llm.ErrInvalidResponse
	require.True(t, errors.As(err, &inv))
}

func TestBuildUserMessage_LimitsAvoidList(t *testing.T) {
	avoid := []string{"q1", "q2", "q3", "q4"}
	msg := buildUserMessage(GenerateInput{
		AgeGroup:  domain.AgeGroup6to8,
		Topics:    []string{"math", "general"},
		Interests: []string{"dinosaurs"},
		Count:     3,
		Avoid:     avoid,
	}, GeneratorConfig{MaxAvoid: 2})

	assert.Contains(t, msg, "Topics: math, general")
	assert.Contains(t, msg, "Interests: dinosaurs")
	assert.Contains(t, msg, "1. q3\n2. q4")
	assert.NotContains(t, msg, "q1")
}

func TestValidators(t *testing.T) {
	in := GenerateInput{Topics: []string{"math"}}
	tests := []struct {
		name      string
		mutate    func(*Generated)
		validator string
	}{
		{"valid", func(*Generated) {}, ""},
		{"empty text", func(q *Generated) { q.Text = "" }, "structural"},
		{"long text", func(q *Generated) { q.Text = strings.Repeat("a", 301) }, "structural"},
		{"empty answer", func(q *Generated) { q.Answer = "" }, "structural"},
		{"unrequested topic", func(q *Generated) { q.Topic = "art" }, "structural"},
		{"three options", func(q *Generated) { q.Options = q.Options[:3] }, "choices"},
		{"duplicate options", func(q *Generated) { q.Options = []string{"42", "42", "48", "54"} }, "choices"},
		{"answer missing", func(q *Generated) { q.Answer = "43" }, "choices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := goodQuestion("math")
			tt.mutate(&q)
			var verr *ValidationError
			for _, v := range DefaultGeneratorConfig().Validators {
				if verr = v.Validate(&q, in); verr != nil {
					break
				}
			}
			if tt.validator == "" {
				assert.Nil(t, verr)
				return
			}
			require.NotNil(t, verr)
			assert.Equal(t, tt.validator, verr.Validator)
		})
	}
}

type stubGenerator struct {
	input GenerateInput
	out   []Generated
	err   error
}

func (s *stubGenerator) Generate(_ context.Context, in GenerateInput) ([]Generated, error) {
	s.input = in
	return s.out, s.err
}

func TestRefill_InsertsAIGeneratedStock(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	addChild(t, ms, "c1", domain.AgeGroup9to12, "science", "math")

	gen := &stubGenerator{out: []Generated{goodQuestion("math"), goodQuestion("general")}}
	ranker := func(context.Context, string) ([]string, error) {
		return []string{"languages", "math", "general", "phonetics"}, nil
	}
	p := newTestProvider(t, ms, WithGenerator(gen), WithTopicRanker(ranker))
	require.NoError(t, p.Seed(ctx, "c1", domain.AgeGroup9to12, []string{"math"}))

	n, err := p.Refill(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, []string{"languages", "math", "general"}, gen.input.Topics)
	assert.Equal(t, 2, gen.input.Count)
	assert.Len(t, gen.input.Avoid, 10)

	count, err := ms.QuestionRepo().CountReady(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	q, err := p.Next(ctx, "c1", "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAIGenerated, q.Source)
}

func TestRefill_Errors(t *testing.T) {
	ctx := context.Background()
	ms := memstore.New()
	addChild(t, ms, "c1", domain.AgeGroup6to8)

	_, err := newTestProvider(t, ms).Refill(ctx, "c1", 3)
	assert.ErrorIs(t, err, ErrNoGenerator)

	p := newTestProvider(t, ms, WithGenerator(&stubGenerator{err: errors.New("llm down")}))
	_, err = p.Refill(ctx, "c1", 3)
	assert.Error(t, err)

	_, err = p.Refill(ctx, "missing", 3)
	assert.Error(t, err)

	n, err := p.Refill(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
