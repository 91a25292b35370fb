package lessons

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/checkin/internal/domain"
	"github.com/abhisek/checkin/internal/llm"
	"github.com/abhisek/checkin/internal/store/memstore"
)

func validLesson() lessonOutput {
	return lessonOutput{
		Title:           "Adding Big Numbers",
		Description:     "Learn to carry when adding.",
		Objectives:      []string{"Carry tens", "Check your sum"},
		DurationMinutes: 7,
		Activities: []activityOutput{
			{Type: "explanation", Content: "Carrying is like packing ten rocks into a bag.", Analogy: "rock collecting"},
			{Type: "practice", Content: "Try 27 + 15.", Analogy: "dinosaur eggs"},
			{Type: "review", Content: "Say the steps out loud.", Analogy: ""},
		},
	}
}

func setup(t *testing.T, provider llm.Provider) (*Service, *memstore.Store) {
	t.Helper()
	ms := memstore.New()
	require.NoError(t, ms.ChildRepo().Create(context.Background(), &domain.ChildProfile{
		ID: "c1", GuardianID: "g1", Name: "Ada", AgeGroup: domain.AgeGroup6to8,
		Interests: []string{"dinosaurs", "war games", "rocks"}, Active: true,
	}))
	return NewService(provider, ms.LessonRepo(), ms.ChildRepo(), DefaultConfig(), nil), ms
}

func TestForSession_Generated(t *testing.T) {
	mock := llm.NewMockProvider()
	require.NoError(t, mock.AddJSON(validLesson()))
	svc, ms := setup(t, mock)

	trigger := &domain.Question{ID: "q9", Text: "What is 27 + 15?", Options: []string{"42", "32", "41", "52"}}
	lesson, err := svc.ForSession(context.Background(), LessonInput{
		SessionID: "s1", ChildID: "c1", Topic: "math", Trigger: trigger,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LessonAIGenerated, lesson.Source)
	assert.Equal(t, "Adding Big Numbers", lesson.Title)
	assert.Equal(t, 420, lesson.DurationSeconds)
	assert.Len(t, lesson.Activities, 3)
	assert.Equal(t, "q9", lesson.TriggerQuestionID)
	assert.NotEmpty(t, lesson.ID)

	stored, err := ms.LessonRepo().LatestForSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, lesson.ID, stored.ID)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, LessonSchema, calls[0].Schema)
	msg := calls[0].Messages[0].Content
	assert.Contains(t, msg, "Topic: math")
	assert.Contains(t, msg, "Age group: 6-8")
	assert.Contains(t, msg, "What is 27 + 15?")
	assert.Contains(t, msg, "dinosaurs")
	assert.NotContains(t, msg, "war")
}

func TestForSession_FallbackOnProviderError(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrRateLimit{}})
	svc, _ := setup(t, mock)

	lesson, err := svc.ForSession(context.Background(), LessonInput{SessionID: "s1", ChildID: "c1", Topic: "phonetics"})
	require.NoError(t, err)

	assert.Equal(t, domain.LessonTemplate, lesson.Source)
	assert.Equal(t, "Remedial: phonetics", lesson.Title)
	assert.Equal(t, []string{"Review phonetics"}, lesson.Objectives)
	assert.Equal(t, FallbackDurationSeconds, lesson.DurationSeconds)
	require.Len(t, lesson.Activities, 1)
	assert.Equal(t, "review", lesson.Activities[0].Type)
	assert.Equal(t, "Review phonetics concepts", lesson.Activities[0].Content)
}

func TestForSession_FallbackOnSchemaViolation(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: []byte(`{"title":"x"}`)})
	svc, _ := setup(t, mock)

	lesson, err := svc.ForSession(context.Background(), LessonInput{SessionID: "s1", ChildID: "c1", Topic: "math"})
	require.NoError(t, err)
	assert.Equal(t, domain.LessonTemplate, lesson.Source)
}

func TestForSession_NoProvider(t *testing.T) {
	svc, _ := setup(t, nil)

	lesson, err := svc.ForSession(context.Background(), LessonInput{SessionID: "s1", ChildID: "c1", Topic: "general"})
	require.NoError(t, err)
	assert.Equal(t, domain.LessonTemplate, lesson.Source)
	assert.Equal(t, "Remedial: general", lesson.Title)
}

func TestForSession_StoreFailure(t *testing.T) {
	svc, ms := setup(t, nil)
	ms.Fail = func(op string) error {
		if op == "lesson.create" {
			return errors.New("disk full")
		}
		return nil
	}

	_, err := svc.ForSession(context.Background(), LessonInput{SessionID: "s1", ChildID: "c1", Topic: "math"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestMarkWatched(t *testing.T) {
	svc, ms := setup(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, svc.MarkWatched(ctx, "s1"), ErrNoLesson)

	_, err := svc.ForSession(ctx, LessonInput{SessionID: "s1", ChildID: "c1", Topic: "math"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkWatched(ctx, "s1"))
	require.NoError(t, svc.MarkWatched(ctx, "s1"))

	lesson, err := ms.LessonRepo().LatestForSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, lesson.WatchCount)
}

func TestSanitizeInterests(t *testing.T) {
	got := sanitizeInterests([]string{"Dinosaurs", "WAR games", "gun", "space, rockets"})
	assert.Equal(t, []string{"Dinosaurs", "games", "space, rockets"}, got)
}

func TestBuildLessonUserMessage_DefaultInterests(t *testing.T) {
	msg := buildLessonUserMessage(LessonInput{Topic: "math"}, &domain.ChildProfile{Interests: []string{"knife"}})
	assert.True(t, strings.Contains(msg, "Interests: learning and exploring"))
	assert.Contains(t, msg, "Age group: 9-12")
}
