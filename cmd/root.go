package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/checkin/internal/app"
)

var rootCmd = &cobra.Command{
	Use:          "checkin",
	Short:        "Solve-to-continue check-ins for kids",
	Long:         "Checkin interrupts screen time with a short question session and locks the device after repeated wrong answers until a lesson is watched or a guardian unlocks it.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to checkin.yaml (default: ./checkin.yaml or ~/.config/checkin/checkin.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Database DSN or SQLite file path (overrides CHECKIN_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite, postgres or mysql")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write logs to stderr")

	rootCmd.AddCommand(childCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(questionsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// withApp builds the services from flags and configuration, runs fn and
// closes everything afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	opts := app.Options{}
	opts.ConfigFile, _ = cmd.Flags().GetString("config")
	opts.DSN, _ = cmd.Flags().GetString("db")
	opts.Driver, _ = cmd.Flags().GetString("driver")
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.LogOutput = os.Stderr
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, opts)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			fmt.Fprintln(os.Stderr, "warning: shutdown:", err)
		}
	}()

	return fn(ctx, a)
}
