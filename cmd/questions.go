package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Manage a child's question stock",
}

var questionsRefillCmd = &cobra.Command{
	Use:   "refill <child-id>",
	Short: "Generate AI questions targeting the child's weak topics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, _ := cmd.Flags().GetInt("count")
			if !cmd.Flags().Changed("count") {
				n = a.Config.Questions.RefillCount
			}

			added, err := a.Questions.Refill(ctx, args[0], n)
			if err != nil {
				return err
			}
			ready, err := a.Store.QuestionRepo().CountReady(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d questions, %d ready.\n", added, ready)
			return nil
		})
	},
}

func init() {
	questionsRefillCmd.Flags().IntP("count", "n", 10, "Number of questions to request (default from config)")

	questionsCmd.AddCommand(questionsRefillCmd)
}
