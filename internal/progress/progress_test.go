package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/checkin/internal/domain"
	apperrors "github.com/abhisek/checkin/internal/errors"
	"github.com/abhisek/checkin/internal/store/memstore"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newRecorder(t *testing.T) (*Recorder, *memstore.Store, *fakeClock) {
	t.Helper()
	ms := memstore.New()
	clock := &fakeClock{t: time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)}
	return NewRecorder(ms.ProgressRepo(), clock.now), ms, clock
}

func TestRecordAnswer_CreatesAndIncrements(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRecorder(t)

	require.NoError(t, r.RecordAnswer(ctx, "c1", false, "math"))
	require.NoError(t, r.RecordAnswer(ctx, "c1", false, "math"))
	require.NoError(t, r.RecordAnswer(ctx, "c1", true, "general"))

	recs, err := r.Range(ctx, "c1", "2026-05-20", "2026-05-20")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, 3, rec.TotalQuestions)
	assert.Equal(t, 1, rec.CorrectAnswers)
	assert.Equal(t, 2, rec.IncorrectAnswers)
	assert.Equal(t, domain.TopicCount{Incorrect: 2}, rec.TopicBreakdown["math"])
	assert.Equal(t, domain.TopicCount{Correct: 1}, rec.TopicBreakdown["general"])
}

func TestRecordAnswer_UsesUTCDay(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newRecorder(t)
	loc := time.FixedZone("UTC+10", 10*60*60)
	clock.t = time.Date(2026, 5, 21, 8, 0, 0, 0, loc) // 2026-05-20 22:00 UTC

	require.NoError(t, r.RecordAnswer(ctx, "c1", true, "math"))
	recs, err := r.Range(ctx, "c1", "2026-05-20", "2026-05-20")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRecordSessionComplete(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRecorder(t)

	require.NoError(t, r.RecordSessionComplete(ctx, "c1", false, 90*time.Second))
	require.NoError(t, r.RecordSessionComplete(ctx, "c1", true, 4*time.Minute+500*time.Millisecond))
	require.NoError(t, r.RecordSessionComplete(ctx, "c1", false, -time.Second))

	recs, err := r.Range(ctx, "c1", "2026-05-20", "2026-05-20")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].SessionsCompleted)
	assert.Equal(t, 1, recs[0].SessionsLockedOut)
	assert.Equal(t, 330, recs[0].TimeSpentSeconds)
	assert.Zero(t, recs[0].TotalQuestions)
}

func TestRecord_StoreFailurePropagates(t *testing.T) {
	r, ms, _ := newRecorder(t)
	ms.Fail = func(string) error { return errors.New("io") }

	assert.Error(t, r.RecordAnswer(context.Background(), "c1", true, "math"))
	assert.Error(t, r.RecordSessionComplete(context.Background(), "c1", true, 0))
}

func TestRecordAnswer_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newRecorder(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RecordAnswer(ctx, "c1", i%2 == 0, "math")
		}()
	}
	wg.Wait()

	recs, err := r.Range(ctx, "c1", "2026-05-20", "2026-05-20")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 20, recs[0].TotalQuestions)
	assert.Equal(t, domain.TopicCount{Correct: 10, Incorrect: 10}, recs[0].TopicBreakdown["math"])
}

func TestRange_InclusiveAscending(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newRecorder(t)
	for _, day := range []int{22, 18, 20, 19} {
		clock.t = time.Date(2026, 5, day, 12, 0, 0, 0, time.UTC)
		require.NoError(t, r.RecordAnswer(ctx, "c1", true, "math"))
	}
	require.NoError(t, r.RecordAnswer(ctx, "c2", true, "math"))

	recs, err := r.Range(ctx, "c1", "2026-05-18", "2026-05-20")
	require.NoError(t, err)
	var days []string
	for _, rec := range recs {
		days = append(days, rec.Date)
	}
	assert.Equal(t, []string{"2026-05-18", "2026-05-19", "2026-05-20"}, days)

	_, err = r.Range(ctx, "c1", "2026-05-21", "2026-05-20")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArgument))
}

func TestWeakTopics(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newRecorder(t)

	record := func(day time.Time, topic string, correct, incorrect int) {
		clock.t = day
		for range correct {
			require.NoError(t, r.RecordAnswer(ctx, "c1", true, topic))
		}
		for range incorrect {
			require.NoError(t, r.RecordAnswer(ctx, "c1", false, topic))
		}
	}
	today := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	record(today, "math", 1, 3)
	record(today.AddDate(0, 0, -10), "math", 1, 0)
	record(today, "languages", 3, 1)
	record(today, "phonetics", 0, 2)
	record(today, "general", 1, 1)
	record(today, "art", 1, 1)
	// Outside the window.
	record(today.AddDate(0, 0, -31), "phonetics", 10, 0)
	clock.t = today

	got, err := r.WeakTopics(ctx, "c1")
	require.NoError(t, err)

	var names []string
	for _, ta := range got {
		names = append(names, ta.Topic)
	}
	assert.Equal(t, []string{"phonetics", "math", "art", "general", "languages"}, names)
	assert.Equal(t, TopicAccuracy{Topic: "math", Correct: 2, Total: 5, Accuracy: 0.4}, got[1])
	assert.Zero(t, got[0].Accuracy)

	names, err = r.WeakTopicNames(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "phonetics", names[0])
}

func TestWeakTopics_ZeroTotal(t *testing.T) {
	got := weakTopics([]*domain.ProgressRecord{{
		TopicBreakdown: map[string]domain.TopicCount{"math": {}, "general": {Correct: 1}},
	}})
	require.Len(t, got, 2)
	assert.Equal(t, "math", got[0].Topic)
	assert.Zero(t, got[0].Accuracy)
	assert.Equal(t, 1.0, got[1].Accuracy)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newRecorder(t)
	today := clock.t

	clock.t = today.AddDate(0, 0, -3)
	require.NoError(t, r.RecordAnswer(ctx, "c1", true, "math"))
	require.NoError(t, r.RecordSessionComplete(ctx, "c1", false, time.Minute))
	clock.t = today.AddDate(0, 0, -20)
	require.NoError(t, r.RecordAnswer(ctx, "c1", false, "math"))
	require.NoError(t, r.RecordSessionComplete(ctx, "c1", true, 2*time.Minute))
	clock.t = today

	s7, err := r.Summary(ctx, "c1", 7)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-13", s7.Start)
	assert.Equal(t, "2026-05-20", s7.End)
	assert.Equal(t, Totals{TotalQuestions: 1, CorrectAnswers: 1, SessionsCompleted: 1, TimeSpentSeconds: 60}, s7.Totals)
	assert.Len(t, s7.Daily, 1)

	s30, err := r.Summary(ctx, "c1", 30)
	require.NoError(t, err)
	assert.Equal(t, Totals{
		TotalQuestions: 2, CorrectAnswers: 1, IncorrectAnswers: 1,
		SessionsCompleted: 2, SessionsLockedOut: 1, TimeSpentSeconds: 180,
	}, s30.Totals)
	require.Len(t, s30.WeakTopics, 1)
	assert.Equal(t, 0.5, s30.WeakTopics[0].Accuracy)

	_, err = r.Summary(ctx, "c1", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArgument))
}

func TestParseWindow(t *testing.T) {
	for in, want := range map[string]int{"7d": 7, "30d": 30, " 90d ": 90, "7": 7} {
		got, err := ParseWindow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "14d", "abc"} {
		_, err := ParseWindow(in)
		assert.Error(t, err, in)
	}
}
