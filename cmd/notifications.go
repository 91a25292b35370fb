package cmd

import (
	"context"
	"fmt"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
	"github.com/abhisek/checkin/internal/ui/theme"
)

var notificationsCmd = &cobra.Command{
	Use:   "notifications <guardian-id>",
	Short: "List a guardian's alerts, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			logs, err := a.Notifier.List(ctx, args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintln(out, "No notifications.")
				return nil
			}
			for _, n := range logs {
				delivered := theme.Correct.Render("✓")
				if !n.Delivered {
					delivered = theme.Incorrect.Render("✗")
				}
				lipgloss.Fprintf(out, "%s  %s  %s  %s\n",
					n.SentAt.Local().Format(timeLayout), delivered,
					theme.Header.Render(fmt.Sprintf("%-16s", n.Type)), n.Title)
				lipgloss.Fprintln(out, theme.Hint.Render("    "+n.Body))
			}
			return nil
		})
	},
}

func init() {
	notificationsCmd.Flags().IntP("limit", "n", 20, "Number of notifications to show")
}
