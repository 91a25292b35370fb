package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/abhisek/checkin/internal/domain"
)

var (
	// ErrNotFound is returned when a point lookup matches no record.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a conditional write loses: the row was
	// not in the expected state, or a unique key is already held.
	ErrConflict = errors.New("store: conditional write failed")
)

// QueryOpts configures list queries with pagination.
type QueryOpts struct {
	Limit int       // max results (0 = unlimited)
	From  time.Time // timestamp >= From
	To    time.Time // timestamp <= To
}

// ChildRepo manages child profiles. Profiles are owned by the profile
// component; the engine only reads them.
type ChildRepo interface {
	// Create stores a new profile.
	Create(ctx context.Context, c *domain.ChildProfile) error

	// Get returns the profile, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ChildProfile, error)

	// List returns profiles for a guardian, or all profiles when
	// guardianID is empty, ordered by creation time.
	List(ctx context.Context, guardianID string) ([]*domain.ChildProfile, error)
}

// SessionPatch is a partial session update. Nil fields are left unchanged.
type SessionPatch struct {
	Status            *domain.SessionStatus
	Stage             *domain.Stage
	IncorrectStreak   *int
	TotalIncorrect    *int
	CurrentQuestionID *string
	LockedAt          *time.Time
	UnlockedAt        *time.Time
	CompletedAt       *time.Time
	UnlockedBy        *domain.UnlockedBy
}

// Empty reports whether the patch changes nothing.
func (p SessionPatch) Empty() bool {
	return p == SessionPatch{}
}

// Apply copies the set fields onto s. Fakes use it to mirror the SQL update.
func (p SessionPatch) Apply(s *domain.Session) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.Stage != nil {
		s.Stage = *p.Stage
	}
	if p.IncorrectStreak != nil {
		s.IncorrectStreak = *p.IncorrectStreak
	}
	if p.TotalIncorrect != nil {
		s.TotalIncorrect = *p.TotalIncorrect
	}
	if p.CurrentQuestionID != nil {
		s.CurrentQuestionID = *p.CurrentQuestionID
	}
	if p.LockedAt != nil {
		t := *p.LockedAt
		s.LockedAt = &t
	}
	if p.UnlockedAt != nil {
		t := *p.UnlockedAt
		s.UnlockedAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		s.CompletedAt = &t
	}
	if p.UnlockedBy != nil {
		s.UnlockedBy = *p.UnlockedBy
	}
}

// LockGracePeriod is how long a lock whose session row does not exist yet
// is honoured. It covers the window between Acquire and Create.
const LockGracePeriod = time.Minute

// LockIsStale reports whether a lock holder no longer blocks new sessions:
// its session ended, or it was never created and the grace period passed.
func LockIsStale(exists bool, status domain.SessionStatus, acquiredAt, now time.Time) bool {
	if !exists {
		return now.Sub(acquiredAt) > LockGracePeriod
	}
	return status.Terminal()
}

// SessionRepo manages check-in sessions and the per-child lock that keeps
// at most one of them non-terminal.
type SessionRepo interface {
	// Acquire takes the child's session lock for sessionID. It returns
	// ErrConflict if another session already holds it, unless that holder
	// is stale (see LockIsStale), in which case the lock is taken over.
	Acquire(ctx context.Context, childID, sessionID string) error

	// Release drops the child's lock if sessionID holds it. Releasing a
	// lock that is not held is a no-op.
	Release(ctx context.Context, childID, sessionID string) error

	// Create stores a new session.
	Create(ctx context.Context, s *domain.Session) error

	// Get returns the session, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update applies p only if the session's status still equals expected.
	// It returns ErrConflict when the status moved on and ErrNotFound when
	// the session does not exist.
	Update(ctx context.Context, id string, expected domain.SessionStatus, p SessionPatch) error

	// Active returns the child's non-terminal session, or nil if none.
	Active(ctx context.Context, childID string) (*domain.Session, error)

	// ListByChild returns the child's sessions, newest first.
	ListByChild(ctx context.Context, childID string, opts QueryOpts) ([]*domain.Session, error)
}

// QuestionRepo manages question stock and the questions shown in sessions.
type QuestionRepo interface {
	// CreateBatch inserts questions in chunks of at most batchSize rows.
	CreateBatch(ctx context.Context, qs []*domain.Question, batchSize int) error

	// Create inserts a single question.
	Create(ctx context.Context, q *domain.Question) error

	// Get returns the question, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Question, error)

	// ListReady returns up to limit ready stock questions for a child,
	// oldest first.
	ListReady(ctx context.Context, childID string, limit int) ([]*domain.Question, error)

	// CountReady returns the number of ready stock questions for a child.
	CountReady(ctx context.Context, childID string) (int, error)

	// Claim flips a ready question to used and binds it to the session.
	// It returns ErrConflict if the question is no longer ready.
	Claim(ctx context.Context, id, sessionID string, attempt int) error

	// RecordAnswer stores the child's answer once. A second call returns
	// ErrConflict.
	RecordAnswer(ctx context.Context, id, answer string, correct bool, at time.Time) error

	// ListBySession returns the session's questions in answer order,
	// unanswered ones last.
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Question, error)
}

// ProgressDelta is an additive change to a daily record. Topic counters are
// only touched when Topic is set.
type ProgressDelta struct {
	TotalQuestions    int
	CorrectAnswers    int
	IncorrectAnswers  int
	SessionsCompleted int
	SessionsLockedOut int
	TimeSpentSeconds  int

	Topic          string
	TopicCorrect   int
	TopicIncorrect int
}

// ProgressRepo manages the per-child daily statistics ledger.
type ProgressRepo interface {
	// Increment lazily creates the (child, date) record and adds d to it
	// with column increments.
	Increment(ctx context.Context, childID, date string, d ProgressDelta) error

	// Range returns records with start <= date <= end, ascending by date.
	Range(ctx context.Context, childID, start, end string) ([]*domain.ProgressRecord, error)
}

// LessonRepo manages remediation lessons.
type LessonRepo interface {
	// Create stores a new lesson.
	Create(ctx context.Context, l *domain.Lesson) error

	// LatestForSession returns the newest lesson of a session, or ErrNotFound.
	LatestForSession(ctx context.Context, sessionID string) (*domain.Lesson, error)

	// IncrementWatch bumps the lesson's watch counter.
	IncrementWatch(ctx context.Context, id string) error
}

// NotificationRepo is the append-only guardian alert log.
type NotificationRepo interface {
	// Append stores a new log entry.
	Append(ctx context.Context, n *domain.NotificationLog) error

	// MarkDelivered flags an entry once a sender accepted it.
	MarkDelivered(ctx context.Context, id string) error

	// ListByGuardian returns a guardian's alerts, newest first.
	ListByGuardian(ctx context.Context, guardianID string, opts QueryOpts) ([]*domain.NotificationLog, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMRequestEvent is a stored LLM request event.
type LLMRequestEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// LLMEventRepo records LLM API calls.
type LLMEventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMRequestEvent, error)

	// GetLLMEvent returns one event, or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMRequestEvent, error)
}

// SortByAnswerOrder orders questions by when they were answered, oldest
// first. Unanswered questions keep their relative order at the end.
func SortByAnswerOrder(qs []*domain.Question) []*domain.Question {
	slices.SortStableFunc(qs, func(a, b *domain.Question) int {
		switch {
		case a.AnsweredAt == nil && b.AnsweredAt == nil:
			return 0
		case a.AnsweredAt == nil:
			return 1
		case b.AnsweredAt == nil:
			return -1
		}
		return a.AnsweredAt.Compare(*b.AnsweredAt)
	})
	return qs
}
