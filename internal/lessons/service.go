// Package lessons builds the remediation lesson shown while a session is
// locked, and tracks how often it was watched.
package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/llm"
	"github.com/abhisek/checkin/internal/store"
)

// ErrNoLesson is returned by MarkWatched when the session has no lesson.
var ErrNoLesson = errors.New("lessons: no lesson for session")

// Service generates and stores remediation lessons.
type Service struct {
	provider llm.Provider
	lessons  store.LessonRepo
	children store.ChildRepo
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a lesson service. provider may be nil, in which case
// every lesson is the templated fallback.
func NewService(provider llm.Provider, lessons store.LessonRepo, children store.ChildRepo, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		lessons:  lessons,
		children: children,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ForSession builds and persists the lesson for a locked session. LLM
// failures fall back to the templated lesson; only store failures are
// returned.
func (s *Service) ForSession(ctx context.Context, input LessonInput) (*domain.Lesson, error) {
	lesson, err := s.generate(ctx, input)
	if err != nil {
		s.logger.Warn("lesson generation failed, using template",
			"session_id", input.SessionID, "topic", input.Topic, "error", err)
		lesson = Fallback(input.Topic)
	}

	lesson.ID = uuid.NewString()
	lesson.SessionID = input.SessionID
	lesson.ChildID = input.ChildID
	lesson.Topic = input.Topic
	if input.Trigger != nil {
		lesson.TriggerQuestionID = input.Trigger.ID
	}
	lesson.CreatedAt = s.now().UTC()

	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, fmt.Errorf("store lesson: %w", err)
	}
	return lesson, nil
}

func (s *Service) generate(ctx context.Context, input LessonInput) (*domain.Lesson, error) {
	if s.provider == nil {
		return nil, errors.New("no LLM provider configured")
	}
	ctx = llm.WithPurpose(ctx, llm.PurposeLesson)

	var child *domain.ChildProfile
	if s.children != nil {
		c, err := s.children.Get(ctx, input.ChildID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("load child: %w", err)
		}
		child = c
	}

	req := llm.UserPrompt(lessonSystemPrompt, buildLessonUserMessage(input, child))
	req.Schema = LessonSchema
	req.MaxTokens = s.cfg.MaxTokens
	req.Temperature = s.cfg.Temperature

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lesson generation: %w", err)
	}

	var out lessonOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse lesson response: %w", err)
	}
	if len(out.Activities) == 0 {
		return nil, errors.New("lesson has no activities")
	}

	return &domain.Lesson{
		Title:       out.Title,
		Description: out.Description,
		Objectives:  out.Objectives,
		Activities: lo.Map(out.Activities, func(a activityOutput, _ int) domain.Activity {
			return domain.Activity{Type: a.Type, Content: a.Content, Analogy: a.Analogy}
		}),
		DurationSeconds: out.DurationMinutes * 60,
		Source:          domain.LessonAIGenerated,
	}, nil
}

// Fallback is the templated lesson used when no generated content is
// available.
func Fallback(topic string) *domain.Lesson {
	return &domain.Lesson{
		Title:           "Remedial: " + topic,
		Description:     fmt.Sprintf("A quick refresher on %s.", topic),
		Objectives:      []string{"Review " + topic},
		Activities:      []domain.Activity{{Type: "review", Content: fmt.Sprintf("Review %s concepts", topic)}},
		DurationSeconds: FallbackDurationSeconds,
		Source:          domain.LessonTemplate,
	}
}

// MarkWatched bumps the watch count of the session's latest lesson.
func (s *Service) MarkWatched(ctx context.Context, sessionID string) error {
	lesson, err := s.lessons.LatestForSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoLesson
	}
	if err != nil {
		return fmt.Errorf("load lesson: %w", err)
	}
	if err := s.lessons.IncrementWatch(ctx, lesson.ID); err != nil {
		return fmt.Errorf("increment watch count: %w", err)
	}
	return nil
}

// Latest returns the session's most recent lesson.
func (s *Service) Latest(ctx context.Context, sessionID string) (*domain.Lesson, error) {
	lesson, err := s.lessons.LatestForSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoLesson
	}
	return lesson, err
}
