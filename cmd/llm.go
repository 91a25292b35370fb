package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
	"github.com/abhisek/checkin/internal/store"
	"github.com/abhisek/checkin/internal/ui/theme"
)

var llmCmd = &cobra.Command{
	Use:   "llm",
	Short: "Inspect LLM request/response events",
}

var llmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent LLM events",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		purpose, _ := cmd.Flags().GetString("purpose")

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			opts := store.QueryOpts{Limit: limit}
			if purpose != "" {
				// The filter runs after the query; widen it so the limit
				// still applies to matching rows.
				opts.Limit = 0
			}
			events, err := a.Store.LLMEventRepo().QueryLLMEvents(ctx, opts)
			if err != nil {
				return fmt.Errorf("query events: %w", err)
			}

			out := cmd.OutOrStdout()
			shown := 0
			for _, e := range events {
				if purpose != "" && e.Purpose != purpose {
					continue
				}
				if shown == 0 {
					lipgloss.Fprintln(out, theme.Header.Render(fmt.Sprintf("%-5s  %-19s  %-14s  %-10s  %-28s  %-6s  %-6s  %-7s  %s",
						"ID", "Timestamp", "Purpose", "Provider", "Model", "In", "Out", "Ms", "OK")))
					lipgloss.Fprintln(out, theme.Rule(112))
				}
				if limit > 0 && shown == limit {
					break
				}
				shown++

				ok := theme.Correct.Render("✓")
				if !e.Success {
					ok = theme.Incorrect.Render("✗")
				}
				lipgloss.Fprintf(out, "%-5d  %-19s  %-14s  %-10s  %-28s  %-6d  %-6d  %-7d  %s\n",
					e.ID,
					e.Timestamp.Local().Format(timeLayout),
					e.Purpose,
					e.Provider,
					truncate(e.Model, 28),
					e.InputTokens,
					e.OutputTokens,
					e.LatencyMs,
					ok,
				)
			}
			if shown == 0 {
				fmt.Fprintln(out, "No LLM events found.")
			}
			return nil
		})
	},
}

var llmViewCmd = &cobra.Command{
	Use:   "view <id>",
	Short: "View full request/response for an LLM event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid ID %q: %w", args[0], err)
		}

		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			e, err := a.Store.LLMEventRepo().GetLLMEvent(ctx, id)
			if err != nil {
				return fmt.Errorf("get event: %w", err)
			}
			if e == nil {
				return fmt.Errorf("event %d not found", id)
			}

			out := cmd.OutOrStdout()
			lipgloss.Fprintln(out, theme.Field("ID", strconv.Itoa(e.ID)))
			lipgloss.Fprintln(out, theme.Field("Time", e.Timestamp.Local().Format(timeLayout)))
			lipgloss.Fprintln(out, theme.Field("Provider", e.Provider))
			lipgloss.Fprintln(out, theme.Field("Model", e.Model))
			lipgloss.Fprintln(out, theme.Field("Purpose", e.Purpose))
			lipgloss.Fprintln(out, theme.Field("Tokens", fmt.Sprintf("%d in / %d out", e.InputTokens, e.OutputTokens)))
			lipgloss.Fprintln(out, theme.Field("Latency", fmt.Sprintf("%dms", e.LatencyMs)))
			lipgloss.Fprintln(out, theme.Field("Success", strconv.FormatBool(e.Success)))
			if e.ErrorMessage != "" {
				lipgloss.Fprintln(out, theme.Field("Error", theme.Incorrect.Render(e.ErrorMessage)))
			}

			for _, part := range []struct{ name, body string }{
				{"REQUEST", e.RequestBody},
				{"RESPONSE", e.ResponseBody},
			} {
				fmt.Fprintln(out)
				lipgloss.Fprintln(out, theme.Header.Render(part.name))
				lipgloss.Fprintln(out, theme.Rule(60))
				if strings.TrimSpace(part.body) == "" {
					lipgloss.Fprintln(out, theme.Hint.Render("(not captured)"))
					continue
				}
				fmt.Fprintln(out, part.body)
			}
			return nil
		})
	},
}

func init() {
	llmListCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	llmListCmd.Flags().StringP("purpose", "p", "", "Filter by purpose (question-gen, lesson)")

	llmCmd.AddCommand(llmListCmd)
	llmCmd.AddCommand(llmViewCmd)
}
