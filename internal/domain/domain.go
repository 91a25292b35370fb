// Package domain holds the entity types shared by the check-in engine,
// its collaborators and the store.
package domain

import "time"

// AgeGroup is a child's age bracket. It selects the static question bank.
type AgeGroup string

const (
	AgeGroup6to8   AgeGroup = "6-8"
	AgeGroup9to12  AgeGroup = "9-12"
	AgeGroup13to15 AgeGroup = "13-15"
)

// Valid reports whether g is one of the known brackets.
func (g AgeGroup) Valid() bool {
	switch g {
	case AgeGroup6to8, AgeGroup9to12, AgeGroup13to15:
		return true
	}
	return false
}

// ChildProfile is owned by the profile component; the engine reads it only.
type ChildProfile struct {
	ID            string
	GuardianID    string
	Name          string
	AgeGroup      AgeGroup
	LearningFocus []string
	Interests     []string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SessionStatus is the coarse lifecycle state of a session.
type SessionStatus string

const (
	StatusActive         SessionStatus = "active"
	StatusRemediation    SessionStatus = "remediation"
	StatusFullStop       SessionStatus = "full_stop"
	StatusCompleted      SessionStatus = "completed"
	StatusParentUnlocked SessionStatus = "parent_unlocked"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusParentUnlocked
}

// Stage is the UI-facing phase, orthogonal to SessionStatus.
type Stage string

const (
	StageQuestioning         Stage = "questioning"
	StageRemediationVideo    Stage = "remediation_video"
	StageRemediationQuestion Stage = "remediation_question"
	StageDone                Stage = "done"
)

// TriggerType records what opened a session.
type TriggerType string

const (
	TriggerSchedule TriggerType = "schedule"
	TriggerManual   TriggerType = "manual"
)

// UnlockedBy records how a locked or active session was resolved.
type UnlockedBy string

const (
	UnlockedByChild  UnlockedBy = "child_correct"
	UnlockedByParent UnlockedBy = "parent_override"
)

// Session is one check-in cycle from trigger to terminal resolution.
type Session struct {
	ID                string
	ChildID           string
	GuardianID        string
	Status            SessionStatus
	Stage             Stage
	IncorrectStreak   int
	TotalIncorrect    int
	CurrentQuestionID string
	TriggerType       TriggerType
	StartedAt         time.Time
	LockedAt          *time.Time
	UnlockedAt        *time.Time
	CompletedAt       *time.Time
	UnlockedBy        UnlockedBy
}

// WasLocked reports whether the session ever reached full_stop.
func (s *Session) WasLocked() bool {
	return s.LockedAt != nil
}

// QuestionSource tells pre-generated AI stock apart from the static bank.
type QuestionSource string

const (
	SourceDefault     QuestionSource = "default"
	SourceAIGenerated QuestionSource = "ai_generated"
)

// QuestionStatus is only set on pre-generated stock. Questions synthesized
// for a session carry the empty status.
type QuestionStatus string

const (
	QuestionReady QuestionStatus = "ready"
	QuestionUsed  QuestionStatus = "used"
)

// StockSessionID marks a question that has not been assigned to a session.
const StockSessionID = "PRE-GEN"

// Question is one question instance, either stock or shown in a session.
type Question struct {
	ID            string
	SessionID     string
	ChildID       string
	Topic         string
	Text          string
	Options       []string
	CorrectAnswer string
	ChildAnswer   string
	IsCorrect     *bool
	AnsweredAt    *time.Time
	AttemptNumber int
	Source        QuestionSource
	Status        QuestionStatus
	CreatedAt     time.Time
}

// Answered reports whether an outcome has been recorded.
func (q *Question) Answered() bool {
	return q.IsCorrect != nil
}

// TopicCount is the per-topic tally kept in a daily record.
type TopicCount struct {
	Correct   int
	Incorrect int
}

// ProgressRecord is the per-child, per-UTC-day statistics ledger.
type ProgressRecord struct {
	ID                string
	ChildID           string
	Date              string // YYYY-MM-DD, UTC
	TotalQuestions    int
	CorrectAnswers    int
	IncorrectAnswers  int
	SessionsCompleted int
	SessionsLockedOut int
	TimeSpentSeconds  int
	TopicBreakdown    map[string]TopicCount
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LessonSource distinguishes LLM content from the templated fallback.
type LessonSource string

const (
	LessonAIGenerated LessonSource = "ai_generated"
	LessonTemplate    LessonSource = "template"
)

// Activity is one step of a remediation lesson.
type Activity struct {
	Type    string `json:"type"` // "explanation", "practice", "review"
	Content string `json:"content"`
	Analogy string `json:"analogy,omitempty"`
}

// Lesson is the remediation content shown while a session is locked.
type Lesson struct {
	ID                string
	SessionID         string
	ChildID           string
	Topic             string
	TriggerQuestionID string
	Title             string
	Description       string
	Objectives        []string
	Activities        []Activity
	DurationSeconds   int
	WatchCount        int
	Source            LessonSource
	CreatedAt         time.Time
}

// NotificationType classifies guardian alerts.
type NotificationType string

const (
	NotifyChildLocked     NotificationType = "child_locked"
	NotifySessionComplete NotificationType = "session_complete"
	NotifyDailySummary    NotificationType = "daily_summary"
)

// NotificationLog is an append-only record of an alert raised to a guardian.
type NotificationLog struct {
	ID         string
	GuardianID string
	ChildID    string
	SessionID  string
	Type       NotificationType
	Title      string
	Body       string
	SentAt     time.Time
	Delivered  bool
}

// DayKey formats t as the UTC calendar day used to key progress records.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
