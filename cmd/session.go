package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
	"github.com/abhisek/checkin/internal/domain"
	apperrors "github.com/abhisek/checkin/internal/errors"
	"github.com/abhisek/checkin/internal/lessons"
	"github.com/abhisek/checkin/internal/session"
	"github.com/abhisek/checkin/internal/ui/theme"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Run check-in sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <child-id>",
	Short: "Open a check-in session for a child",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		trigger, _ := cmd.Flags().GetString("trigger")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			child, err := a.Store.ChildRepo().Get(ctx, args[0])
			if err != nil {
				return err
			}
			opened, err := a.Engine.Open(ctx, child.ID, child.GuardianID, domain.TriggerType(trigger))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSession(out, opened.Session)
			fmt.Fprintln(out)
			printQuestion(out, opened.Question)
			return nil
		})
	},
}

var sessionAnswerCmd = &cobra.Command{
	Use:   "answer <session-id> <answer>",
	Short: "Answer the session's current question",
	Long:  "Answer the session's current question. The answer may be the option text or its letter.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetString("question")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			q, err := currentQuestion(ctx, a, args[0], questionID)
			if err != nil {
				return err
			}
			res, err := a.Engine.SubmitAnswer(ctx, args[0], q.ID, resolveAnswer(q, args[1]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printOutcome(out, res.Result)
			switch {
			case res.SessionComplete:
				lipgloss.Fprintln(out, theme.Hint.Render("Session complete. Enjoy!"))
			case res.Lesson != nil:
				fmt.Fprintln(out)
				printLesson(out, res.Lesson)
				lipgloss.Fprintln(out, theme.Hint.Render(fmt.Sprintf("Run `checkin session watched %s` after the lesson.", res.Session.ID)))
			case res.NextQuestion != nil:
				lipgloss.Fprintln(out, theme.Field("Strikes", theme.Strikes(res.StrikesRemaining, session.StrikeThreshold)))
				fmt.Fprintln(out)
				printQuestion(out, res.NextQuestion)
			}
			return nil
		})
	},
}

var sessionWatchedCmd = &cobra.Command{
	Use:   "watched <session-id>",
	Short: "Record that the remediation lesson was watched",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Engine.MarkVideoComplete(ctx, args[0]); err != nil {
				return err
			}
			q, err := currentQuestion(ctx, a, args[0], "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			lipgloss.Fprintln(out, theme.Hint.Render("Lesson watched. Try the question again:"))
			printQuestion(out, q)
			return nil
		})
	},
}

var sessionRemediateCmd = &cobra.Command{
	Use:   "remediate <session-id> <answer>",
	Short: "Answer the remediation question of a locked session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			q, err := currentQuestion(ctx, a, args[0], "")
			if err != nil {
				return err
			}
			res, err := a.Engine.SubmitRemediationAnswer(ctx, args[0], resolveAnswer(q, args[1]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printOutcome(out, res.Result)
			if res.RewatchRequired {
				lipgloss.Fprintln(out, theme.Hint.Render("Watch the lesson again before the next try."))
			}
			if res.SessionComplete {
				lipgloss.Fprintln(out, theme.Hint.Render("Device unlocked."))
			}
			return nil
		})
	},
}

var sessionUnlockCmd = &cobra.Command{
	Use:   "unlock <session-id>",
	Short: "Guardian override: unlock a locked session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guardian, _ := cmd.Flags().GetString("guardian")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			s, err := a.Engine.GuardianOverride(ctx, guardian, args[0])
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session with its question history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Engine.Summary(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printSession(out, sum.Session)
			lipgloss.Fprintln(out, theme.Field("Duration", sum.Duration.Round(time.Second).String()))
			lipgloss.Fprintln(out, theme.Field("Answered", fmt.Sprintf("%d/%d (%d correct, %.0f%%)",
				sum.Answered, sum.TotalQuestions, sum.TotalCorrect, sum.Accuracy*100)))
			lipgloss.Fprintln(out, theme.Field("Topics", strings.Join(sum.Topics, ", ")))

			if sum.Session.Status == domain.StatusFullStop {
				l, err := a.Lessons.Latest(ctx, sum.Session.ID)
				if err != nil && !errors.Is(err, lessons.ErrNoLesson) {
					return err
				}
				if l != nil {
					fmt.Fprintln(out)
					printLesson(out, l)
				}
			}
			if !sum.Session.Status.Terminal() && sum.Session.CurrentQuestionID != "" {
				q, err := a.Store.QuestionRepo().Get(ctx, sum.Session.CurrentQuestionID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				printQuestion(out, q)
			}
			return nil
		})
	},
}

var sessionActiveCmd = &cobra.Command{
	Use:   "active <child-id>",
	Short: "Show the child's open session, if any",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			s, err := a.Engine.Active(ctx, args[0])
			if err != nil {
				return err
			}
			if s == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No open session.")
				return nil
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		})
	},
}

func init() {
	sessionStartCmd.Flags().String("trigger", string(domain.TriggerManual), "What opened the session: manual or schedule")
	sessionAnswerCmd.Flags().String("question", "", "Question ID (default: the session's current question)")
	sessionUnlockCmd.Flags().StringP("guardian", "g", "", "Guardian ID (required)")
	_ = sessionUnlockCmd.MarkFlagRequired("guardian")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionAnswerCmd)
	sessionCmd.AddCommand(sessionWatchedCmd)
	sessionCmd.AddCommand(sessionRemediateCmd)
	sessionCmd.AddCommand(sessionUnlockCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionActiveCmd)
}

// currentQuestion loads questionID, or the session's current question when
// it is empty.
func currentQuestion(ctx context.Context, a *app.App, sessionID, questionID string) (*domain.Question, error) {
	if questionID == "" {
		s, err := a.Engine.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if s.CurrentQuestionID == "" {
			return nil, apperrors.New(apperrors.CodeInvalidState, "session has no current question")
		}
		questionID = s.CurrentQuestionID
	}
	return a.Store.QuestionRepo().Get(ctx, questionID)
}

// resolveAnswer maps an option letter onto the option text. Anything else
// is passed through unchanged.
func resolveAnswer(q *domain.Question, input string) string {
	if len(input) == 1 {
		i := int(strings.ToLower(input)[0] - 'a')
		if i >= 0 && i < len(q.Options) {
			return q.Options[i]
		}
	}
	return input
}
