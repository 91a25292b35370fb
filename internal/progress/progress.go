// Package progress keeps the per-child daily statistics ledger and the
// aggregates guardians see on the dashboard.
package progress

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/abhisek/checkin/internal/domain"
	apperrors "github.com/abhisek/checkin/internal/errors"
	"github.com/abhisek/checkin/internal/store"
)

// WeakTopicWindowDays is how far back WeakTopics looks.
const WeakTopicWindowDays = 30

// Windows are the summary ranges offered to guardians, in days.
var Windows = []int{7, 30, 90}

// Recorder writes answer and session outcomes into daily records.
type Recorder struct {
	repo store.ProgressRepo
	now  func() time.Time
}

// NewRecorder creates a Recorder. A nil clock uses time.Now.
func NewRecorder(repo store.ProgressRepo, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{repo: repo, now: now}
}

func (r *Recorder) today() string {
	return domain.DayKey(r.now())
}

// RecordAnswer counts one answered question against today's record.
func (r *Recorder) RecordAnswer(ctx context.Context, childID string, correct bool, topic string) error {
	d := store.ProgressDelta{TotalQuestions: 1, Topic: topic}
	if correct {
		d.CorrectAnswers, d.TopicCorrect = 1, 1
	} else {
		d.IncorrectAnswers, d.TopicIncorrect = 1, 1
	}
	if err := r.repo.Increment(ctx, childID, r.today(), d); err != nil {
		return fmt.Errorf("record answer progress: %w", err)
	}
	return nil
}

// RecordSessionComplete counts a resolved session. wasLocked marks a
// session that reached full stop before it was resolved; spent is added
// to the day's time on task.
func (r *Recorder) RecordSessionComplete(ctx context.Context, childID string, wasLocked bool, spent time.Duration) error {
	d := store.ProgressDelta{
		SessionsCompleted: 1,
		TimeSpentSeconds:  int(max(spent, 0) / time.Second),
	}
	if wasLocked {
		d.SessionsLockedOut = 1
	}
	if err := r.repo.Increment(ctx, childID, r.today(), d); err != nil {
		return fmt.Errorf("record session progress: %w", err)
	}
	return nil
}

// Range returns the daily records between start and end inclusive
// (YYYY-MM-DD), ascending.
func (r *Recorder) Range(ctx context.Context, childID, start, end string) ([]*domain.ProgressRecord, error) {
	if start > end {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("start %s is after end %s", start, end))
	}
	recs, err := r.repo.Range(ctx, childID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load progress %s..%s: %w", start, end, err)
	}
	return recs, nil
}

// TopicAccuracy is one topic's aggregate over a window.
type TopicAccuracy struct {
	Topic    string
	Correct  int
	Total    int
	Accuracy float64
}

// WeakTopics aggregates the last 30 days per topic, weakest first. Ties
// are ordered by topic name.
func (r *Recorder) WeakTopics(ctx context.Context, childID string) ([]TopicAccuracy, error) {
	end := r.now().UTC()
	recs, err := r.Range(ctx, childID, domain.DayKey(end.AddDate(0, 0, -WeakTopicWindowDays)), domain.DayKey(end))
	if err != nil {
		return nil, err
	}
	return weakTopics(recs), nil
}

func weakTopics(recs []*domain.ProgressRecord) []TopicAccuracy {
	agg := map[string]*TopicAccuracy{}
	for _, rec := range recs {
		for topic, tc := range rec.TopicBreakdown {
			a, ok := agg[topic]
			if !ok {
				a = &TopicAccuracy{Topic: topic}
				agg[topic] = a
			}
			a.Correct += tc.Correct
			a.Total += tc.Correct + tc.Incorrect
		}
	}

	out := lo.MapToSlice(agg, func(_ string, a *TopicAccuracy) TopicAccuracy {
		if a.Total > 0 {
			a.Accuracy = float64(a.Correct) / float64(a.Total)
		}
		return *a
	})
	slices.SortFunc(out, func(a, b TopicAccuracy) int {
		return cmp.Or(cmp.Compare(a.Accuracy, b.Accuracy), strings.Compare(a.Topic, b.Topic))
	})
	return out
}

// WeakTopicNames returns just the topic names of WeakTopics.
func (r *Recorder) WeakTopicNames(ctx context.Context, childID string) ([]string, error) {
	ts, err := r.WeakTopics(ctx, childID)
	if err != nil {
		return nil, err
	}
	return lo.Map(ts, func(t TopicAccuracy, _ int) string { return t.Topic }), nil
}

// Totals sums the counters of a set of daily records.
type Totals struct {
	TotalQuestions    int
	CorrectAnswers    int
	IncorrectAnswers  int
	SessionsCompleted int
	SessionsLockedOut int
	TimeSpentSeconds  int
}

// Summary is the dashboard view over a window of days.
type Summary struct {
	ChildID    string
	Days       int
	Start, End string
	Totals     Totals
	Daily      []*domain.ProgressRecord
	WeakTopics []TopicAccuracy
}

// Summary totals the last days days of records and attaches weak topics.
func (r *Recorder) Summary(ctx context.Context, childID string, days int) (*Summary, error) {
	if days <= 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("window must be positive, got %d", days))
	}
	end := r.now().UTC()
	s := &Summary{
		ChildID: childID,
		Days:    days,
		Start:   domain.DayKey(end.AddDate(0, 0, -days)),
		End:     domain.DayKey(end),
	}

	recs, err := r.Range(ctx, childID, s.Start, s.End)
	if err != nil {
		return nil, err
	}
	s.Daily = recs
	s.Totals = lo.Reduce(recs, func(t Totals, rec *domain.ProgressRecord, _ int) Totals {
		t.TotalQuestions += rec.TotalQuestions
		t.CorrectAnswers += rec.CorrectAnswers
		t.IncorrectAnswers += rec.IncorrectAnswers
		t.SessionsCompleted += rec.SessionsCompleted
		t.SessionsLockedOut += rec.SessionsLockedOut
		t.TimeSpentSeconds += rec.TimeSpentSeconds
		return t
	}, Totals{})

	if s.WeakTopics, err = r.WeakTopics(ctx, childID); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseWindow accepts "7d", "30d" or "90d" (or the bare number).
func ParseWindow(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "d"))
	if err != nil || !slices.Contains(Windows, n) {
		return 0, apperrors.New(apperrors.CodeInvalidArgument, fmt.Sprintf("unsupported range %q, want one of 7d, 30d, 90d", s))
	}
	return n, nil
}
