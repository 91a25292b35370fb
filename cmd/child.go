package cmd

import (
	"context"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
	"github.com/abhisek/checkin/internal/domain"
	apperrors "github.com/abhisek/checkin/internal/errors"
	"github.com/abhisek/checkin/internal/ui/theme"
)

var childCmd = &cobra.Command{
	Use:   "child",
	Short: "Manage child profiles",
}

var childAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a child profile and seed its question stock",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		guardian, _ := cmd.Flags().GetString("guardian")
		age, _ := cmd.Flags().GetString("age")
		focus, _ := cmd.Flags().GetStringSlice("focus")
		interests, _ := cmd.Flags().GetStringSlice("interests")

		child := &domain.ChildProfile{
			ID:            uuid.NewString(),
			GuardianID:    guardian,
			Name:          args[0],
			AgeGroup:      domain.AgeGroup(age),
			LearningFocus: focus,
			Interests:     interests,
			Active:        true,
		}
		if !child.AgeGroup.Valid() {
			return apperrors.New(apperrors.CodeInvalidArgument,
				fmt.Sprintf("unknown age group %q, want 6-8, 9-12 or 13-15", age))
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Store.ChildRepo().Create(ctx, child); err != nil {
				return err
			}
			if err := a.Questions.Seed(ctx, child.ID, child.AgeGroup, child.LearningFocus); err != nil {
				return err
			}
			n, err := a.Store.QuestionRepo().CountReady(ctx, child.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lipgloss.Fprintln(out, theme.Title.Render("Added "+child.Name))
			lipgloss.Fprintln(out, theme.Field("ID", child.ID))
			lipgloss.Fprintln(out, theme.Field("Questions", fmt.Sprintf("%d ready", n)))
			return nil
		})
	},
}

var childListCmd = &cobra.Command{
	Use:   "list",
	Short: "List child profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		guardian, _ := cmd.Flags().GetString("guardian")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			children, err := a.Store.ChildRepo().List(ctx, guardian)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(children) == 0 {
				fmt.Fprintln(out, "No children found.")
				return nil
			}

			lipgloss.Fprintln(out, theme.Header.Render(fmt.Sprintf("%-36s  %-16s  %-6s  %-16s  %s",
				"ID", "Name", "Age", "Guardian", "Focus")))
			lipgloss.Fprintln(out, theme.Rule(96))
			for _, c := range children {
				fmt.Fprintf(out, "%-36s  %-16s  %-6s  %-16s  %s\n",
					c.ID, truncate(c.Name, 16), c.AgeGroup, truncate(c.GuardianID, 16),
					strings.Join(c.LearningFocus, ","))
			}
			return nil
		})
	},
}

func init() {
	childAddCmd.Flags().StringP("guardian", "g", "", "Guardian ID (required)")
	childAddCmd.Flags().StringP("age", "a", string(domain.AgeGroup9to12), "Age group: 6-8, 9-12 or 13-15")
	childAddCmd.Flags().StringSlice("focus", nil, "Learning focus topics (math, languages, phonetics, general)")
	childAddCmd.Flags().StringSlice("interests", nil, "Interests used to personalize lessons")
	_ = childAddCmd.MarkFlagRequired("guardian")

	childListCmd.Flags().StringP("guardian", "g", "", "Only list this guardian's children")

	childCmd.AddCommand(childAddCmd)
	childCmd.AddCommand(childListCmd)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
