package lessons

import "github.com/abhisek/checkin/internal/llm"

// LessonSchema defines the JSON schema for remediation lesson generation.
var LessonSchema = &llm.Schema{
	Name:        "remedial-lesson",
	Description: "A short remediation lesson plan for a child who got stuck on a topic",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short title for the lesson (3-8 words)",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "One sentence telling the child what they will learn",
			},
			"objectives": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "1-3 learning objectives",
			},
			"duration_minutes": map[string]any{
				"type":    "integer",
				"minimum": 1,
				"maximum": 10,
			},
			"activities": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []any{"explanation", "practice", "review"},
						},
						"content": map[string]any{
							"type":        "string",
							"description": "What the child reads or does in this step",
						},
						"analogy": map[string]any{
							"type":        "string",
							"description": "Analogy drawn from the child's interests, or empty",
						},
					},
					"required":             []any{"type", "content", "analogy"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"title", "description", "objectives", "duration_minutes", "activities"},
		"additionalProperties": false,
	},
}
