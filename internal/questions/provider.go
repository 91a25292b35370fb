// Package questions supplies check-in questions. Stock is seeded from
// static banks or generated by the LLM ahead of time; a session claims
// stock when it can and otherwise gets a question synthesized on the spot.
package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/store"
)

const (
	// SeedBatchSize is the number of rows written per insert statement.
	SeedBatchSize = 25

	// ReadyWindow bounds how much stock Next inspects.
	ReadyWindow = 50
)

// Provider selects, claims and synthesizes questions.
type Provider struct {
	questions store.QuestionRepo
	children  store.ChildRepo
	generator Generator
	ranker    TopicRanker
	logger    *slog.Logger
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Provider.
type Option func(*Provider)

// WithRand sets the random source used for synthesis.
func WithRand(r *rand.Rand) Option {
	return func(p *Provider) { p.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithGenerator enables Refill.
func WithGenerator(g Generator) Option {
	return func(p *Provider) { p.generator = g }
}

// WithTopicRanker supplies weak topics to target during Refill.
func WithTopicRanker(r TopicRanker) Option {
	return func(p *Provider) { p.ranker = r }
}

// NewProvider creates a Provider over the given repositories.
func NewProvider(questions store.QuestionRepo, children store.ChildRepo, opts ...Option) *Provider {
	p := &Provider{
		questions: questions,
		children:  children,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewPCG(uint64(p.now().UnixNano()), 0x9e3779b97f4a7c15))
	}
	return p
}

// Seed inserts ready stock for a new child from the static bank for its age
// group, one run of questions per resolved focus topic.
func (p *Provider) Seed(ctx context.Context, childID string, age domain.AgeGroup, focus []string) error {
	b := ageBank(age)
	now := p.now().UTC()

	var items []*domain.Question
	for _, topic := range SeedTopics(focus) {
		for _, it := range b.itemsFor(topic) {
			items = append(items, &domain.Question{
				ID:            uuid.NewString(),
				SessionID:     domain.StockSessionID,
				ChildID:       childID,
				Topic:         topic,
				Text:          it.Text,
				Options:       append([]string(nil), it.Options...),
				CorrectAnswer: it.Answer,
				Source:        domain.SourceDefault,
				Status:        domain.QuestionReady,
				CreatedAt:     now,
			})
		}
	}
	if len(items) == 0 {
		return nil
	}
	if err := p.questions.CreateBatch(ctx, items, SeedBatchSize); err != nil {
		return fmt.Errorf("seed questions for %s: %w", childID, err)
	}
	p.logger.Debug("seeded question stock", "child_id", childID, "count", len(items))
	return nil
}

// Next returns the question for a session attempt. Ready stock is
// preferred, AI-generated first; when the chosen question is claimed by
// someone else a question is synthesized instead.
func (p *Provider) Next(ctx context.Context, childID, sessionID string, attempt int) (*domain.Question, error) {
	ready, err := p.questions.ListReady(ctx, childID, ReadyWindow)
	if err != nil {
		return nil, fmt.Errorf("list ready questions: %w", err)
	}
	if len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool {
			return ready[i].Source == domain.SourceAIGenerated && ready[j].Source != domain.SourceAIGenerated
		})
		q := ready[0]
		switch err := p.Claim(ctx, q.ID, sessionID, attempt); {
		case err == nil:
			q.SessionID = sessionID
			q.AttemptNumber = attempt
			q.Status = domain.QuestionUsed
			return q, nil
		case errors.Is(err, store.ErrConflict):
			p.logger.Debug("stock question already claimed", "question_id", q.ID, "session_id", sessionID)
		default:
			return nil, err
		}
	}
	return p.synthesize(ctx, childID, sessionID, attempt)
}

// Claim binds a ready question to a session. It returns store.ErrConflict
// when the question has already been used.
func (p *Provider) Claim(ctx context.Context, questionID, sessionID string, attempt int) error {
	if err := p.questions.Claim(ctx, questionID, sessionID, attempt); err != nil {
		return fmt.Errorf("claim question %s: %w", questionID, err)
	}
	return nil
}

func (p *Provider) synthesize(ctx context.Context, childID, sessionID string, attempt int) (*domain.Question, error) {
	var focus []string
	child, err := p.children.Get(ctx, childID)
	switch {
	case err == nil:
		focus = child.LearningFocus
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("load child %s: %w", childID, err)
	}

	p.rngMu.Lock()
	topic := Pick(focus, p.rng)
	items := fallbackBank.itemsFor(topic)
	item := items[p.rng.IntN(len(items))]
	p.rngMu.Unlock()

	q := &domain.Question{
		ID:            uuid.NewString(),
		SessionID:     sessionID,
		ChildID:       childID,
		Topic:         topic,
		Text:          item.Text,
		Options:       append([]string(nil), item.Options...),
		CorrectAnswer: item.Answer,
		AttemptNumber: attempt,
		Source:        domain.SourceDefault,
		CreatedAt:     p.now().UTC(),
	}
	if err := p.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("persist synthesized question: %w", err)
	}
	return q, nil
}

// FailedTopics returns the distinct topics of the session's incorrectly
// answered questions, in the order they were answered.
func (p *Provider) FailedTopics(ctx context.Context, sessionID string) ([]string, error) {
	qs, err := p.questions.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}
	return failedTopics(qs), nil
}

func failedTopics(qs []*domain.Question) []string {
	seen := map[string]bool{}
	var out []string
	for _, q := range store.SortByAnswerOrder(qs) {
		if q.IsCorrect == nil || *q.IsCorrect || seen[q.Topic] {
			continue
		}
		seen[q.Topic] = true
		out = append(out, q.Topic)
	}
	return out
}

// Pick chooses a topic uniformly from topics, or general when empty.
func Pick(topics []string, rng *rand.Rand) string {
	if len(topics) == 0 {
		return TopicGeneral
	}
	return topics[rng.IntN(len(topics))]
}
