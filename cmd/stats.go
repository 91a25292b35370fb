package cmd

import (
	"context"
	"fmt"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
	"github.com/abhisek/checkin/internal/progress"
	"github.com/abhisek/checkin/internal/ui/theme"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
}

var statsProgressCmd = &cobra.Command{
	Use:   "progress <child-id>",
	Short: "Summarize a child's progress over 7, 30 or 90 days",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetString("range")
		days, err := progress.ParseWindow(window)
		if err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			sum, err := a.Progress.Summary(ctx, args[0], days)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			t := sum.Totals

			lipgloss.Fprintln(out, theme.Title.Render(fmt.Sprintf("Last %d days (%s → %s)", sum.Days, sum.Start, sum.End)))
			lipgloss.Fprintln(out, theme.Field("Questions", fmt.Sprintf("%d (%d correct, %d incorrect)",
				t.TotalQuestions, t.CorrectAnswers, t.IncorrectAnswers)))
			lipgloss.Fprintln(out, theme.Field("Sessions", fmt.Sprintf("%d completed, %d locked out",
				t.SessionsCompleted, t.SessionsLockedOut)))
			lipgloss.Fprintln(out, theme.Field("Time", (time.Duration(t.TimeSpentSeconds)*time.Second).String()))

			if len(sum.Daily) > 0 {
				fmt.Fprintln(out)
				lipgloss.Fprintln(out, theme.Header.Render(fmt.Sprintf("%-10s  %6s  %7s  %9s  %8s  %6s",
					"Date", "Asked", "Correct", "Incorrect", "Sessions", "Locked")))
				lipgloss.Fprintln(out, theme.Rule(56))
				for _, d := range sum.Daily {
					fmt.Fprintf(out, "%-10s  %6d  %7d  %9d  %8d  %6d\n",
						d.Date, d.TotalQuestions, d.CorrectAnswers, d.IncorrectAnswers,
						d.SessionsCompleted, d.SessionsLockedOut)
				}
			}
			if len(sum.WeakTopics) > 0 {
				fmt.Fprintln(out)
				printWeakTopics(cmd, sum.WeakTopics)
			}
			return nil
		})
	},
}

var statsWeakCmd = &cobra.Command{
	Use:   "weak <child-id>",
	Short: "List topics by accuracy over the last 30 days, weakest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			topics, err := a.Progress.WeakTopics(ctx, args[0])
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No answers recorded yet.")
				return nil
			}
			printWeakTopics(cmd, topics)
			return nil
		})
	},
}

func printWeakTopics(cmd *cobra.Command, topics []progress.TopicAccuracy) {
	out := cmd.OutOrStdout()
	lipgloss.Fprintln(out, theme.Header.Render(fmt.Sprintf("%-16s  %7s  %5s  %8s", "Topic", "Correct", "Total", "Accuracy")))
	lipgloss.Fprintln(out, theme.Rule(42))
	for _, t := range topics {
		acc := fmt.Sprintf("%7.0f%%", t.Accuracy*100)
		if t.Accuracy < 0.5 {
			acc = theme.Incorrect.Render(acc)
		}
		lipgloss.Fprintf(out, "%-16s  %7d  %5d  %s\n", truncate(t.Topic, 16), t.Correct, t.Total, acc)
	}
}

func init() {
	statsProgressCmd.Flags().StringP("range", "r", "7d", "Window: 7d, 30d or 90d")

	statsCmd.AddCommand(statsProgressCmd)
	statsCmd.AddCommand(statsWeakCmd)
}
