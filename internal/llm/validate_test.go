package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

// answerSchema has the shape of a graded check-in answer.
func answerSchema() *Schema {
	return &Schema{
		Name:        "checkin-answer",
		Description: "A graded check-in answer",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"question_id": map[string]any{"type": "string"},
				"attempt":     map[string]any{"type": "integer", "minimum": 1},
				"outcome":     map[string]any{"type": "string", "enum": []any{"correct", "incorrect", "locked"}},
				"topics": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "string"},
				},
			},
			"required":             []any{"question_id", "attempt"},
			"additionalProperties": false,
		},
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"complete", `{"question_id":"q1","attempt":2,"outcome":"locked","topics":["math"]}`, false},
		{"optional fields omitted", `{"question_id":"q1","attempt":1}`, false},
		{"missing required", `{"question_id":"q1"}`, true},
		{"wrong type", `{"question_id":"q1","attempt":"two"}`, true},
		{"below minimum", `{"question_id":"q1","attempt":0}`, true},
		{"unknown enum", `{"question_id":"q1","attempt":1,"outcome":"skipped"}`, true},
		{"extra property", `{"question_id":"q1","attempt":1,"hint":"x"}`, true},
		{"wrong item type", `{"question_id":"q1","attempt":1,"topics":[3]}`, true},
		{"malformed", `{not json}`, true},
		{"empty", ``, true},
	}
	for _, tt := range tests {
		err := validateResponse(answerSchema(), json.RawMessage(tt.raw))
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil {
			continue
		}
		var invErr *ErrInvalidResponse
		if !errors.As(err, &invErr) {
			t.Errorf("%s: error type = %T, want *ErrInvalidResponse", tt.name, err)
		}
	}
}

func TestValidateResponse_NilSchema(t *testing.T) {
	if err := validateResponse(nil, json.RawMessage(`{"anything":"goes"}`)); err != nil {
		t.Fatalf("expected no error with nil schema, got: %v", err)
	}
}

func TestCompileSchema_CachedByName(t *testing.T) {
	s := &Schema{Name: "checkin-cached", Definition: map[string]any{"type": "object"}}
	first, err := compileSchema(s)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := compileSchema(s)
	if err != nil {
		t.Fatalf("compile again: %v", err)
	}
	if first != second {
		t.Error("schema compiled twice for the same name")
	}
}

func TestValidateResponse_BadDefinition(t *testing.T) {
	s := &Schema{Name: "checkin-bad-definition", Definition: map[string]any{"type": 42}}
	err := validateResponse(s, json.RawMessage(`{}`))
	var invErr *ErrInvalidResponse
	if !errors.As(err, &invErr) {
		t.Fatalf("err = %v, want *ErrInvalidResponse", err)
	}
}
