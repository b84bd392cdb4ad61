package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show or change user options",
	Long: `Show or change the persisted user options.

Running bare 'focusd options' is the same as 'focusd options show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return optionsShowRun()
	},
}

var optionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current options",
	RunE: func(cmd *cobra.Command, args []string) error {
		return optionsShowRun()
	},
}

var optionsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change options",
	Long: `Change one or more options. Flags not given keep their current value.
The whole update is rejected if any value is out of range.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return optionsSetRun(cmd)
	},
}

func init() {
	optionsSetCmd.Flags().Int("goal", 0, "Focus goal in minutes (1-240)")
	optionsSetCmd.Flags().Int("snooze", 0, "Goal snooze length in minutes (1-60)")
	optionsSetCmd.Flags().Int("idle", 0, "Idle threshold in seconds (15-1800)")
	optionsSetCmd.Flags().Int("spillover", 0, "Hours after midnight counting toward the previous day (0-23)")
	optionsSetCmd.Flags().Bool("badge", true, "Show the elapsed-time badge")
	optionsSetCmd.Flags().Bool("notifications", true, "Raise goal and idle notifications")

	optionsCmd.AddCommand(optionsShowCmd)
	optionsCmd.AddCommand(optionsSetCmd)
	rootCmd.AddCommand(optionsCmd)
}

func optionsShowRun() error {
	m, err := getManager()
	if err != nil {
		return err
	}

	opts, err := m.Options(context.Background())
	if err != nil {
		return err
	}

	table := ui.Table([]string{"OPTION", "VALUE"})
	table.Append([]string{"focusGoalMinutes", strconv.Itoa(opts.FocusGoalMinutes)})
	table.Append([]string{"snoozeMinutes", strconv.Itoa(opts.SnoozeMinutes)})
	table.Append([]string{"idleDetectionSeconds", strconv.Itoa(opts.IdleDetectionSeconds)})
	table.Append([]string{"spilloverHours", strconv.Itoa(opts.SpilloverHours)})
	table.Append([]string{"showBadgeText", strconv.FormatBool(opts.ShowBadgeText)})
	table.Append([]string{"showNotifications", strconv.FormatBool(opts.ShowNotifications)})
	return table.Render()
}

func optionsSetRun(cmd *cobra.Command) error {
	m, err := getManager()
	if err != nil {
		return err
	}
	ctx := context.Background()

	current, err := m.Options(ctx)
	if err != nil {
		return err
	}

	candidate := *current
	changed := false
	if cmd.Flags().Changed("goal") {
		candidate.FocusGoalMinutes, _ = cmd.Flags().GetInt("goal")
		changed = true
	}
	if cmd.Flags().Changed("snooze") {
		candidate.SnoozeMinutes, _ = cmd.Flags().GetInt("snooze")
		changed = true
	}
	if cmd.Flags().Changed("idle") {
		candidate.IdleDetectionSeconds, _ = cmd.Flags().GetInt("idle")
		changed = true
	}
	if cmd.Flags().Changed("spillover") {
		candidate.SpilloverHours, _ = cmd.Flags().GetInt("spillover")
		changed = true
	}
	if cmd.Flags().Changed("badge") {
		candidate.ShowBadgeText, _ = cmd.Flags().GetBool("badge")
		changed = true
	}
	if cmd.Flags().Changed("notifications") {
		candidate.ShowNotifications, _ = cmd.Flags().GetBool("notifications")
		changed = true
	}
	if !changed {
		return fmt.Errorf("no options given; see 'focusd options set --help'")
	}

	if _, err := m.SetOptions(ctx, candidate); err != nil {
		return err
	}
	ui.Success("Options updated")
	return optionsShowRun()
}
