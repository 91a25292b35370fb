package questions

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Validator checks a generated question.
type Validator interface {
	Name() string
	Validate(q *Generated, input GenerateInput) *ValidationError
}

// ValidationError describes why a question was rejected.
type ValidationError struct {
	Validator string
	Message   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validator %q: %s", e.Validator, e.Message)
}

// StructuralValidator checks required fields, lengths and the topic.
type StructuralValidator struct{}

func (v *StructuralValidator) Name() string { return "structural" }

func (v *StructuralValidator) Validate(q *Generated, input GenerateInput) *ValidationError {
	fail := func(msg string) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: msg}
	}
	switch {
	case q.Text == "":
		return fail("question_text is empty")
	case len(q.Text) > 300:
		return fail("question_text exceeds 300 characters")
	case q.Answer == "":
		return fail("answer is empty")
	case q.Topic == "":
		return fail("topic is empty")
	case len(input.Topics) > 0 && !slices.Contains(input.Topics, q.Topic):
		return fail(fmt.Sprintf("topic %q was not requested", q.Topic))
	}
	return nil
}

// ChoiceValidator checks the options: four distinct values, one of which
// is exactly the answer.
type ChoiceValidator struct{}

func (v *ChoiceValidator) Name() string { return "choices" }

func (v *ChoiceValidator) Validate(q *Generated, _ GenerateInput) *ValidationError {
	fail := func(msg string) *ValidationError {
		return &ValidationError{Validator: v.Name(), Message: msg}
	}
	if len(q.Options) != 4 {
		return fail(fmt.Sprintf("expected 4 options, got %d", len(q.Options)))
	}
	if len(lo.Uniq(q.Options)) != len(q.Options) {
		return fail("options are not distinct")
	}
	if lo.Count(q.Options, q.Answer) != 1 {
		return fail("answer is not one of the options")
	}
	return nil
}
