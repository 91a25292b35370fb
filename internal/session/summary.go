package session

import (
	"time"

	"github.com/abhisek/checkin/internal/domain"
)

// Summary describes a session for display.
type Summary struct {
	Session        *domain.Session
	Duration       time.Duration
	TotalQuestions int
	Answered       int
	TotalCorrect   int
	Accuracy       float64
	Topics         []string
}

// BuildSummary derives display statistics from a session and its
// questions. Duration runs to completion, or to now for open sessions.
func BuildSummary(s *domain.Session, qs []*domain.Question, now time.Time) *Summary {
	sum := &Summary{Session: s, TotalQuestions: len(qs)}

	end := now
	if s.CompletedAt != nil {
		end = *s.CompletedAt
	}
	sum.Duration = end.Sub(s.StartedAt)

	seen := make(map[string]bool)
	for _, q := range qs {
		if !seen[q.Topic] {
			seen[q.Topic] = true
			sum.Topics = append(sum.Topics, q.Topic)
		}
		if !q.Answered() {
			continue
		}
		sum.Answered++
		if *q.IsCorrect {
			sum.TotalCorrect++
		}
	}

	if sum.Answered > 0 {
		sum.Accuracy = float64(sum.TotalCorrect) / float64(sum.Answered)
	}
	return sum
}
