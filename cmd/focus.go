package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"focusd/internal/models"
	"focusd/internal/output"
	"focusd/internal/timeutil"
)

var (
	startAt          int64
	startAgo         time.Duration
	startSinceActive bool

	stopAt  int64
	stopAgo time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a focus session",
	Long: `Start a focus session.

Without flags the session starts now. Use --at or --ago to back-date
the start, or --since-active to start from the last recorded activity.
Starting while already focused is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		start := explicitMillis(startAt, startAgo)
		state, err := m.EnterFocus(context.Background(), start, startSinceActive)
		if err != nil {
			return err
		}

		ui.Success("Focus started at %s", formatClock(*state.FocusStart))
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the focus session and archive it",
	Long: `Stop the running focus session and archive it to history.

Use --at or --ago to back-date the stop; it must be after the session
start. Stopping while not focused is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		ctx := context.Background()

		before, err := m.State(ctx)
		if err != nil {
			return err
		}
		if !before.InFocus {
			ui.Info("Not in focus")
			return nil
		}

		stop := explicitMillis(stopAt, stopAgo)
		if _, err := m.LeaveFocus(ctx, stop); err != nil {
			return err
		}

		stats, err := m.TodayStats(ctx)
		if err != nil {
			return err
		}
		ui.Success("Session archived; %s focused today", output.Timer(stats.FocusMillis))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the most recently finished session",
	Long: `Resume the most recently finished focus session.

The newest history entry is removed and the session restarts at that
entry's original start time, as if it had never been stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		state, err := m.ResumeFocus(context.Background())
		if err != nil {
			return err
		}

		ui.Success("Focus resumed from %s", formatClock(*state.FocusStart))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session and today's totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

var noteCmd = &cobra.Command{
	Use:   "note [text]",
	Short: "Set or clear the session notes",
	Long: `Set the notes attached to the current session. Notes are archived with
the session when it stops. Run without arguments to clear them.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		notes := ""
		if len(args) == 1 {
			notes = args[0]
		}
		if _, err := m.SetNotes(context.Background(), notes); err != nil {
			return err
		}

		if notes == "" {
			ui.Success("Notes cleared")
		} else {
			ui.Success("Notes set")
		}
		return nil
	},
}

func init() {
	startCmd.Flags().Int64Var(&startAt, "at", 0, "Start time as unix milliseconds")
	startCmd.Flags().DurationVar(&startAgo, "ago", 0, "Start this long ago (e.g. 10m)")
	startCmd.Flags().BoolVar(&startSinceActive, "since-active", false, "Start from the last recorded activity")

	stopCmd.Flags().Int64Var(&stopAt, "at", 0, "Stop time as unix milliseconds")
	stopCmd.Flags().DurationVar(&stopAgo, "ago", 0, "Stop this long ago (e.g. 5m)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(noteCmd)
}

// explicitMillis resolves the --at / --ago flag pair. --at wins.
func explicitMillis(at int64, ago time.Duration) *int64 {
	if at > 0 {
		return &at
	}
	if ago > 0 {
		return models.Millis(time.Now().Add(-ago).UnixMilli())
	}
	return nil
}

func formatClock(millis int64) string {
	return time.UnixMilli(millis).Format("15:04:05")
}

func statusRun() error {
	m, err := getManager()
	if err != nil {
		return err
	}
	ctx := context.Background()

	state, err := m.State(ctx)
	if err != nil {
		return err
	}
	stats, err := m.TodayStats(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	ui.Info("State: %s", output.FocusColor(state.InFocus))
	if state.InFocus {
		ui.Info("Current session: %s (since %s)",
			output.Timer(now-*state.FocusStart), formatClock(*state.FocusStart))
		if state.NextAlarm != nil && *state.NextAlarm > now {
			ui.Info("Goal reached in: %s", timeutil.FormatTimer(*state.NextAlarm-now, false))
		}
	}
	if state.Notes != "" {
		ui.Info("Notes: %s", state.Notes)
	}
	ui.Info("Today: %s focused, %s paused",
		output.Timer(stats.FocusMillis), output.Timer(stats.PauseMillis))
	return nil
}
