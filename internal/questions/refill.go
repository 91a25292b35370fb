package questions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/abhisek/checkin/internal/domain"
)

// TopicRanker returns a child's topics weakest first.
type TopicRanker func(ctx context.Context, childID string) ([]string, error)

// ErrNoGenerator is returned by Refill when no generator is configured.
var ErrNoGenerator = errors.New("questions: no generator configured")

// maxWeakTopics caps how many weak topics a refill targets.
const maxWeakTopics = 3

// Refill asks the generator for n questions targeting the child's weak
// topics and learning focus, and stores the valid ones as AI-generated
// ready stock. It returns the number inserted.
func (p *Provider) Refill(ctx context.Context, childID string, n int) (int, error) {
	if p.generator == nil {
		return 0, ErrNoGenerator
	}
	if n <= 0 {
		return 0, nil
	}

	child, err := p.children.Get(ctx, childID)
	if err != nil {
		return 0, fmt.Errorf("load child %s: %w", childID, err)
	}

	topics, err := p.refillTopics(ctx, child)
	if err != nil {
		return 0, err
	}

	stock, err := p.questions.ListReady(ctx, childID, ReadyWindow)
	if err != nil {
		return 0, fmt.Errorf("list ready questions: %w", err)
	}

	generated, err := p.generator.Generate(ctx, GenerateInput{
		AgeGroup:  child.AgeGroup,
		Topics:    topics,
		Interests: child.Interests,
		Count:     n,
		Avoid:     lo.Map(stock, func(q *domain.Question, _ int) string { return q.Text }),
	})
	if err != nil {
		return 0, err
	}
	if len(generated) == 0 {
		return 0, nil
	}

	now := p.now().UTC()
	items := lo.Map(generated, func(g Generated, _ int) *domain.Question {
		return &domain.Question{
			ID:            uuid.NewString(),
			SessionID:     domain.StockSessionID,
			ChildID:       child.ID,
			Topic:         g.Topic,
			Text:          g.Text,
			Options:       g.Options,
			CorrectAnswer: g.Answer,
			Source:        domain.SourceAIGenerated,
			Status:        domain.QuestionReady,
			CreatedAt:     now,
		}
	})
	if err := p.questions.CreateBatch(ctx, items, SeedBatchSize); err != nil {
		return 0, fmt.Errorf("insert generated questions: %w", err)
	}
	p.logger.Info("refilled question stock", "child_id", child.ID, "count", len(items), "topics", topics)
	return len(items), nil
}

// refillTopics orders the weakest known topics ahead of the learning focus.
func (p *Provider) refillTopics(ctx context.Context, child *domain.ChildProfile) ([]string, error) {
	var weak []string
	if p.ranker != nil {
		ranked, err := p.ranker(ctx, child.ID)
		if err != nil {
			return nil, fmt.Errorf("rank topics: %w", err)
		}
		weak = lo.Slice(ranked, 0, maxWeakTopics)
	}
	return lo.Uniq(append(weak, SeedTopics(child.LearningFocus)...)), nil
}
