package lessons

import "github.com/abhisek/checkin/internal/domain"

// LessonInput is what a remediation lesson is built from.
type LessonInput struct {
	SessionID string
	ChildID   string
	Topic     string

	// Trigger is the question the child must answer after the lesson.
	Trigger *domain.Question
}

type activityOutput struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Analogy string `json:"analogy"`
}

type lessonOutput struct {
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Objectives      []string         `json:"objectives"`
	DurationMinutes int              `json:"duration_minutes"`
	Activities      []activityOutput `json:"activities"`
}
