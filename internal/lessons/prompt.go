package lessons

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/abhisek/checkin/internal/domain"
)

const lessonSystemPrompt = `You are a friendly tutor. A child answered three check-in questions wrong in a row and their device is locked until they watch a short lesson and answer one more question. Keep the tone warm and encouraging, never scolding.`

// interestBlocklist keeps unsuitable words out of the prompt.
var interestBlocklist = map[string]bool{
	"kill": true, "death": true, "gun": true, "weapon": true, "drug": true,
	"blood": true, "violence": true, "hate": true, "fight": true, "war": true,
	"knife": true, "bomb": true, "suicide": true,
}

func sanitizeInterests(interests []string) []string {
	return lo.FilterMap(interests, func(s string, _ int) (string, bool) {
		words := lo.Filter(strings.Fields(s), func(w string, _ int) bool {
			return !interestBlocklist[strings.ToLower(strings.Trim(w, ",.!?"))]
		})
		out := strings.Join(words, " ")
		return out, out != ""
	})
}

func buildLessonUserMessage(input LessonInput, child *domain.ChildProfile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", input.Topic)

	age := domain.AgeGroup9to12
	var interests []string
	if child != nil {
		if child.AgeGroup.Valid() {
			age = child.AgeGroup
		}
		interests = sanitizeInterests(child.Interests)
	}
	fmt.Fprintf(&b, "Age group: %s\n", age)
	if len(interests) == 0 {
		b.WriteString("Interests: learning and exploring\n")
	} else {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(interests, ", "))
	}

	if q := input.Trigger; q != nil {
		fmt.Fprintf(&b, "\nThe question they will answer next:\n%s\n", q.Text)
		if len(q.Options) > 0 {
			fmt.Fprintf(&b, "Options: %s\n", strings.Join(q.Options, " | "))
		}
	}

	b.WriteString(`
Instructions:
1. Plan a lesson of 5-10 minutes on the topic, pitched at the age group.
2. Use 2-4 activities: start with an explanation, include one practice step, end with a review.
3. Use at least two analogies from the child's interests.
4. Prepare the child for the next question without giving away its answer.`)

	return b.String()
}
