package lessons

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/checkin/internal/llm"
)

func TestLessonSchema(t *testing.T) {
	good, err := json.Marshal(validLesson())
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid lesson", string(good), false},
		{"duration too long", `{"title":"t","description":"d","objectives":["o"],"duration_minutes":11,"activities":[]}`, true},
		{"unknown activity type", `{"title":"t","description":"d","objectives":["o"],"duration_minutes":5,"activities":[{"type":"video","content":"c","analogy":""}]}`, true},
		{"activity missing analogy", `{"title":"t","description":"d","objectives":["o"],"duration_minutes":5,"activities":[{"type":"review","content":"c"}]}`, true},
		{"missing objectives", `{"title":"t","description":"d","duration_minutes":5,"activities":[]}`, true},
		{"extra field", `{"title":"t","description":"d","objectives":[],"duration_minutes":5,"activities":[],"video_url":"x"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(tt.raw)})
			_, err := p.Generate(context.Background(), llm.Request{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "lesson"}},
				Schema:   LessonSchema,
			})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var invErr *llm.ErrInvalidResponse
			assert.True(t, errors.As(err, &invErr), "err = %v", err)
		})
	}
}
