// Package session implements the check-in state machine: a child answers
// questions until one is correct, and three consecutive wrong answers lock
// the session until a remediation lesson is watched and the triggering
// question is answered, or a guardian unlocks it.
//
// The engine holds no state between calls. Every operation re-reads the
// session, and every session write is conditional on the status read at
// the start of the operation. Multi-record side effects run in a fixed
// order (question, progress, session, notification) with no rollback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/abhisek/checkin/internal/domain"
	apperrors "github.com/abhisek/checkin/internal/errors"
	"github.com/abhisek/checkin/internal/lessons"
	"github.com/abhisek/checkin/internal/notify"
	"github.com/abhisek/checkin/internal/store"
)

// FallbackTopic is the remediation topic when no failed topic is known.
const FallbackTopic = "general"

// QuestionSource supplies session questions.
type QuestionSource interface {
	Next(ctx context.Context, childID, sessionID string, attempt int) (*domain.Question, error)
	FailedTopics(ctx context.Context, sessionID string) ([]string, error)
}

// ProgressSink receives answer and close-out statistics.
type ProgressSink interface {
	RecordAnswer(ctx context.Context, childID string, correct bool, topic string) error
	RecordSessionComplete(ctx context.Context, childID string, wasLocked bool, spent time.Duration) error
}

// LessonSource builds remediation lessons and tracks watches.
type LessonSource interface {
	ForSession(ctx context.Context, input lessons.LessonInput) (*domain.Lesson, error)
	MarkWatched(ctx context.Context, sessionID string) error
}

// Notifier raises guardian alerts.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) (*domain.NotificationLog, error)
}

// Deps are the engine's collaborators. Notifier is optional.
type Deps struct {
	Sessions  store.SessionRepo
	Questions store.QuestionRepo
	Provider  QuestionSource
	Progress  ProgressSink
	Lessons   LessonSource
	Notifier  Notifier
}

// Result is the outcome of an answer.
type Result string

const (
	ResultCorrect   Result = "correct"
	ResultIncorrect Result = "incorrect"
	ResultLocked    Result = "locked"
)

// Opened is returned by Open.
type Opened struct {
	Session  *domain.Session
	Question *domain.Question
}

// AnswerResult is returned by SubmitAnswer. Session reflects the state
// after the answer.
type AnswerResult struct {
	Result           Result
	SessionComplete  bool
	NextQuestion     *domain.Question
	StrikesRemaining int
	Lesson           *domain.Lesson
	Session          *domain.Session
}

// RemediationResult is returned by SubmitRemediationAnswer.
type RemediationResult struct {
	Result          Result
	SessionComplete bool
	RewatchRequired bool
	Session         *domain.Session
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for non-fatal failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTracer overrides the tracer, which defaults to the global provider's.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine runs the session state machine.
type Engine struct {
	sessions  store.SessionRepo
	questions store.QuestionRepo
	provider  QuestionSource
	progress  ProgressSink
	lessons   LessonSource
	notifier  Notifier

	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer
}

// NewEngine creates an engine over deps.
func NewEngine(deps Deps, opts ...Option) *Engine {
	e := &Engine{
		sessions:  deps.Sessions,
		questions: deps.Questions,
		provider:  deps.Provider,
		progress:  deps.Progress,
		lessons:   deps.Lessons,
		notifier:  deps.Notifier,
		logger:    slog.Default(),
		now:       time.Now,
		tracer:    otel.Tracer("checkin/session"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Open starts a session for a child. It fails with a conflict when the
// child already has a non-terminal session.
func (e *Engine) Open(ctx context.Context, childID, guardianID string, trigger domain.TriggerType) (_ *Opened, err error) {
	ctx, span := e.tracer.Start(ctx, "session.Open", trace.WithAttributes(
		attribute.String("child.id", childID),
		attribute.String("trigger", string(trigger)),
	))
	defer func() { endSpan(span, err) }()

	if childID == "" || guardianID == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "child and guardian are required")
	}
	switch trigger {
	case "":
		trigger = domain.TriggerManual
	case domain.TriggerManual, domain.TriggerSchedule:
	default:
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown trigger type",
			map[string]string{"trigger": string(trigger)})
	}

	id := uuid.NewString()
	span.SetAttributes(attribute.String("session.id", id))

	if err := e.sessions.Acquire(ctx, childID, id); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, &apperrors.Error{
				Code:     apperrors.CodeConflict,
				Message:  "child already has an active session",
				Metadata: map[string]string{"child_id": childID},
				Err:      err,
			}
		}
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}

	opened, err := e.create(ctx, id, childID, guardianID, trigger)
	if err != nil {
		if rerr := e.sessions.Release(ctx, childID, id); rerr != nil {
			e.logger.Warn("release session lock after failed open",
				"session_id", id, "child_id", childID, "error", rerr)
		}
		return nil, err
	}

	e.logger.Debug("session opened", "session_id", id, "child_id", childID, "question_id", opened.Question.ID)
	return opened, nil
}

func (e *Engine) create(ctx context.Context, id, childID, guardianID string, trigger domain.TriggerType) (*Opened, error) {
	q, err := e.provider.Next(ctx, childID, id, 1)
	if err != nil {
		return nil, fmt.Errorf("first question: %w", err)
	}

	s := &domain.Session{
		ID:                id,
		ChildID:           childID,
		GuardianID:        guardianID,
		Status:            domain.StatusActive,
		Stage:             domain.StageQuestioning,
		CurrentQuestionID: q.ID,
		TriggerType:       trigger,
		StartedAt:         e.now().UTC(),
	}
	if err := e.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Opened{Session: s, Question: q}, nil
}

// SubmitAnswer answers the session's current question.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, questionID, answer string) (_ *AnswerResult, err error) {
	ctx, span := e.tracer.Start(ctx, "session.SubmitAnswer", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("question.id", questionID),
	))
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusActive {
		return nil, invalidState("session is not accepting answers", s)
	}
	if questionID != s.CurrentQuestionID {
		return nil, invalidState("question is not the session's current question", s)
	}

	q, err := e.questions.Get(ctx, questionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidState("question does not belong to session", s)
	}
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	if q.SessionID != s.ID {
		return nil, invalidState("question does not belong to session", s)
	}

	correct := q.CorrectAnswer == answer
	now := e.now().UTC()
	span.SetAttributes(attribute.Bool("answer.correct", correct))

	if err := e.questions.RecordAnswer(ctx, q.ID, answer, correct, now); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, invalidState("question already answered", s)
		}
		return nil, fmt.Errorf("record answer: %w", err)
	}
	if err := e.progress.RecordAnswer(ctx, s.ChildID, correct, q.Topic); err != nil {
		return nil, fmt.Errorf("record progress: %w", err)
	}

	counters := Counters{Streak: s.IncorrectStreak, Total: s.TotalIncorrect}.Apply(correct)

	switch {
	case correct:
		return e.complete(ctx, s, counters, now)
	case counters.Escalates():
		return e.escalate(ctx, s, q, counters, now)
	}

	next, err := e.provider.Next(ctx, s.ChildID, s.ID, counters.Total+1)
	if err != nil {
		return nil, fmt.Errorf("next question: %w", err)
	}

	patch := store.SessionPatch{
		IncorrectStreak:   lo.ToPtr(counters.Streak),
		TotalIncorrect:    lo.ToPtr(counters.Total),
		CurrentQuestionID: lo.ToPtr(next.ID),
	}
	if err := e.update(ctx, s, patch); err != nil {
		return nil, err
	}

	return &AnswerResult{
		Result:           ResultIncorrect,
		NextQuestion:     next,
		StrikesRemaining: counters.StrikesRemaining(),
		Session:          s,
	}, nil
}

func (e *Engine) complete(ctx context.Context, s *domain.Session, c Counters, now time.Time) (*AnswerResult, error) {
	patch := store.SessionPatch{
		Status:          lo.ToPtr(domain.StatusCompleted),
		Stage:           lo.ToPtr(domain.StageDone),
		IncorrectStreak: lo.ToPtr(c.Streak),
		CompletedAt:     &now,
	}
	if err := e.update(ctx, s, patch); err != nil {
		return nil, err
	}
	if err := e.closeOut(ctx, s, false, now); err != nil {
		return nil, err
	}
	return &AnswerResult{Result: ResultCorrect, SessionComplete: true, Session: s}, nil
}

func (e *Engine) escalate(ctx context.Context, s *domain.Session, trigger *domain.Question, c Counters, now time.Time) (*AnswerResult, error) {
	topics, err := e.provider.FailedTopics(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed topics: %w", err)
	}
	topic := FallbackTopic
	if len(topics) > 0 {
		topic = topics[0]
	}

	lesson, err := e.lessons.ForSession(ctx, lessons.LessonInput{
		SessionID: s.ID,
		ChildID:   s.ChildID,
		Topic:     topic,
		Trigger:   trigger,
	})
	if err != nil {
		return nil, fmt.Errorf("remediation lesson: %w", err)
	}

	patch := store.SessionPatch{
		Status:          lo.ToPtr(domain.StatusFullStop),
		Stage:           lo.ToPtr(domain.StageRemediationVideo),
		IncorrectStreak: lo.ToPtr(c.Streak),
		TotalIncorrect:  lo.ToPtr(c.Total),
		LockedAt:        &now,
	}
	if err := e.update(ctx, s, patch); err != nil {
		return nil, err
	}

	e.logger.Info("session locked", "session_id", s.ID, "child_id", s.ChildID,
		"topic", topic, "total_incorrect", c.Total)
	e.notify(ctx, notify.ChildLocked(s.GuardianID, s.ChildID, s.ID))

	return &AnswerResult{Result: ResultLocked, Lesson: lesson, Session: s}, nil
}

// MarkVideoComplete records that the remediation lesson was watched and
// moves the session on to the remediation question.
func (e *Engine) MarkVideoComplete(ctx context.Context, sessionID string) (err error) {
	ctx, span := e.tracer.Start(ctx, "session.MarkVideoComplete",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status != domain.StatusFullStop {
		return invalidState("session is not locked", s)
	}

	if err := e.lessons.MarkWatched(ctx, s.ID); err != nil {
		if !errors.Is(err, lessons.ErrNoLesson) {
			return fmt.Errorf("mark lesson watched: %w", err)
		}
		e.logger.Warn("no lesson to mark watched", "session_id", s.ID)
	}

	return e.update(ctx, s, store.SessionPatch{Stage: lo.ToPtr(domain.StageRemediationQuestion)})
}

// SubmitRemediationAnswer answers the question that locked the session.
// A wrong answer sends the child back to the lesson; counters are left
// alone.
func (e *Engine) SubmitRemediationAnswer(ctx context.Context, sessionID, answer string) (_ *RemediationResult, err error) {
	ctx, span := e.tracer.Start(ctx, "session.SubmitRemediationAnswer",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.StatusFullStop {
		return nil, invalidState("session is not locked", s)
	}
	if s.CurrentQuestionID == "" {
		return nil, invalidState("session has no trigger question", s)
	}

	q, err := e.questions.Get(ctx, s.CurrentQuestionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, invalidState("session has no trigger question", s)
	}
	if err != nil {
		return nil, fmt.Errorf("load trigger question: %w", err)
	}

	if q.CorrectAnswer != answer {
		if err := e.update(ctx, s, store.SessionPatch{Stage: lo.ToPtr(domain.StageRemediationVideo)}); err != nil {
			return nil, err
		}
		return &RemediationResult{Result: ResultIncorrect, RewatchRequired: true, Session: s}, nil
	}

	now := e.now().UTC()
	patch := store.SessionPatch{
		Status:      lo.ToPtr(domain.StatusCompleted),
		Stage:       lo.ToPtr(domain.StageDone),
		UnlockedAt:  &now,
		UnlockedBy:  lo.ToPtr(domain.UnlockedByChild),
		CompletedAt: &now,
	}
	if err := e.update(ctx, s, patch); err != nil {
		return nil, err
	}
	if err := e.closeOut(ctx, s, true, now); err != nil {
		return nil, err
	}
	return &RemediationResult{Result: ResultCorrect, SessionComplete: true, Session: s}, nil
}

// GuardianOverride lets the owning guardian unlock a locked session.
func (e *Engine) GuardianOverride(ctx context.Context, guardianID, sessionID string) (_ *domain.Session, err error) {
	ctx, span := e.tracer.Start(ctx, "session.GuardianOverride", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("guardian.id", guardianID),
	))
	defer func() { endSpan(span, err) }()

	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.GuardianID != guardianID {
		return nil, apperrors.WithMetadata(apperrors.CodeForbidden, "guardian does not own this session",
			map[string]string{"session_id": s.ID, "guardian_id": guardianID})
	}
	if s.Status != domain.StatusFullStop && s.Status != domain.StatusRemediation {
		return nil, invalidState("session is not locked", s)
	}

	now := e.now().UTC()
	patch := store.SessionPatch{
		Status:      lo.ToPtr(domain.StatusParentUnlocked),
		Stage:       lo.ToPtr(domain.StageDone),
		UnlockedAt:  &now,
		UnlockedBy:  lo.ToPtr(domain.UnlockedByParent),
		CompletedAt: &now,
	}
	if err := e.update(ctx, s, patch); err != nil {
		return nil, err
	}
	if err := e.closeOut(ctx, s, true, now); err != nil {
		return nil, err
	}
	return s, nil
}

// Active returns the child's non-terminal session, or nil.
func (e *Engine) Active(ctx context.Context, childID string) (*domain.Session, error) {
	s, err := e.sessions.Active(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return s, nil
}

// Get returns a session by id.
func (e *Engine) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.load(ctx, sessionID)
}

// Summary returns display statistics for a session.
func (e *Engine) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	s, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	qs, err := e.questions.ListBySession(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}
	return BuildSummary(s, qs, e.now()), nil
}

func (e *Engine) load(ctx context.Context, id string) (*domain.Session, error) {
	s, err := e.sessions.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &apperrors.Error{
			Code:     apperrors.CodeNotFound,
			Message:  "session not found",
			Metadata: map[string]string{"session_id": id},
			Err:      err,
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return s, nil
}

// update writes p conditioned on the status s was read with, then applies
// it to s.
func (e *Engine) update(ctx context.Context, s *domain.Session, p store.SessionPatch) error {
	err := e.sessions.Update(ctx, s.ID, s.Status, p)
	switch {
	case errors.Is(err, store.ErrConflict):
		return &apperrors.Error{
			Code:     apperrors.CodeConflict,
			Message:  "session changed concurrently",
			Metadata: map[string]string{"session_id": s.ID, "status": string(s.Status)},
			Err:      err,
		}
	case err != nil:
		return fmt.Errorf("update session: %w", err)
	}
	p.Apply(s)
	return nil
}

// closeOut releases the child's lock and records completion statistics
// for a session that just reached a terminal status. Unlocks by the child
// or a guardian count as locked-then-recovered completions.
//
// A failed release is only logged: the session is already terminal, and
// the next Acquire takes over a lock held by a terminal session.
func (e *Engine) closeOut(ctx context.Context, s *domain.Session, wasLocked bool, now time.Time) error {
	if err := e.sessions.Release(ctx, s.ChildID, s.ID); err != nil {
		e.logger.Warn("session lock not released", "child_id", s.ChildID, "session_id", s.ID, "error", err)
	}
	if err := e.progress.RecordSessionComplete(ctx, s.ChildID, wasLocked, now.Sub(s.StartedAt)); err != nil {
		return fmt.Errorf("record session complete: %w", err)
	}
	e.notify(ctx, notify.SessionComplete(s.GuardianID, s.ChildID, s.ID, wasLocked))
	return nil
}

func (e *Engine) notify(ctx context.Context, n notify.Notification) {
	if e.notifier == nil {
		return
	}
	if _, err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("guardian notification failed",
			"session_id", n.SessionID, "type", n.Type, "error", err)
	}
}

func invalidState(msg string, s *domain.Session) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidState, msg, map[string]string{
		"session_id": s.ID,
		"status":     string(s.Status),
		"stage":      string(s.Stage),
	})
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
