package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/llm"
)

// Generator produces multiple-choice stock questions.
type Generator interface {
	// Generate returns up to input.Count validated questions. Candidates
	// failing validation are dropped rather than failing the batch.
	Generate(ctx context.Context, input GenerateInput) ([]Generated, error)
}

// GenerateInput is the context sent to the generator.
type GenerateInput struct {
	AgeGroup  domain.AgeGroup
	Topics    []string
	Interests []string
	Count     int

	// Avoid lists question texts the child already has in stock.
	Avoid []string
}

// Generated is one validated question from the generator.
type Generated struct {
	Topic   string   `json:"topic"`
	Text    string   `json:"question_text"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// GeneratorConfig controls the LLMGenerator.
type GeneratorConfig struct {
	// Validators run in order on every candidate; the first failure drops it.
	Validators  []Validator
	MaxTokens   int
	Temperature float64
	MaxAvoid    int
}

// DefaultGeneratorConfig returns the standard validator chain and limits.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Validators:  []Validator{&StructuralValidator{}, &ChoiceValidator{}},
		MaxTokens:   2048,
		Temperature: 0.7,
		MaxAvoid:    20,
	}
}

// LLMGenerator implements Generator with an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
	config   GeneratorConfig
	logger   *slog.Logger
}

// NewLLMGenerator creates a generator. A nil logger uses slog.Default.
func NewLLMGenerator(provider llm.Provider, cfg GeneratorConfig, logger *slog.Logger) *LLMGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMGenerator{provider: provider, config: cfg, logger: logger}
}

type batchOutput struct {
	Questions []Generated `json:"questions"`
}

func (g *LLMGenerator) Generate(ctx context.Context, input GenerateInput) ([]Generated, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeQuestions)

	req := llm.UserPrompt(generatorSystemPrompt, buildUserMessage(input, g.config))
	req.Schema = BatchSchema
	req.MaxTokens = g.config.MaxTokens
	req.Temperature = g.config.Temperature

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM generation failed: %w", err)
	}

	var out batchOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	var kept []Generated
	for _, q := range out.Questions {
		q.Topic = strings.ToLower(strings.TrimSpace(q.Topic))
		if verr := g.validate(&q, input); verr != nil {
			g.logger.Warn("dropping generated question", "validator", verr.Validator, "reason", verr.Message)
			continue
		}
		kept = append(kept, q)
		if input.Count > 0 && len(kept) == input.Count {
			break
		}
	}
	return kept, nil
}

func (g *LLMGenerator) validate(q *Generated, input GenerateInput) *ValidationError {
	for _, v := range g.config.Validators {
		if verr := v.Validate(q, input); verr != nil {
			return verr
		}
	}
	return nil
}

// BatchSchema constrains generator output.
var BatchSchema = &llm.Schema{
	Name:        "checkin-question-batch",
	Description: "A batch of multiple-choice check-in questions for a child",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"topic": map[string]any{
							"type":        "string",
							"description": "One of the requested topics",
						},
						"question_text": map[string]any{
							"type":        "string",
							"description": "The question shown on the lock screen",
						},
						"options": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"description": "Exactly 4 options, one of which is the answer",
						},
						"answer": map[string]any{
							"type":        "string",
							"description": "The correct option, copied exactly",
						},
					},
					"required":             []any{"topic", "question_text", "options", "answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

const generatorSystemPrompt = `You write short multiple-choice questions that a child must answer to unlock their device.

Rules:
- Each question is answerable in under 30 seconds without pen and paper.
- Match the difficulty to the age group.
- Give exactly 4 distinct options; exactly one is correct and "answer" repeats it character for character.
- Distractors should reflect common mistakes, not random values.
- Only use the requested topics and label each question with its topic.
- Where it fits, theme questions around the child's interests.
- Do not repeat any question from the "already in stock" list.`

func buildUserMessage(input GenerateInput, cfg GeneratorConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age group: %s\n", input.AgeGroup)
	fmt.Fprintf(&b, "Topics: %s\n", strings.Join(input.Topics, ", "))
	if len(input.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(input.Interests, ", "))
	}
	fmt.Fprintf(&b, "Number of questions: %d\n", input.Count)

	b.WriteString("\nAlready in stock:\n")
	b.WriteString(numberedList(input.Avoid, cfg.MaxAvoid))
	return b.String()
}

// numberedList formats the last max items, or "None".
func numberedList(items []string, max int) string {
	if len(items) == 0 {
		return "None"
	}
	if max > 0 && len(items) > max {
		items = items[len(items)-max:]
	}
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, it)
	}
	return strings.TrimRight(b.String(), "\n")
}
