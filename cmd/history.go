package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"focusd/internal/models"
	"focusd/internal/output"
	"focusd/internal/timeutil"
)

var (
	historyFrom  int64
	historyUntil int64
	historyToday bool

	historyAddStart int64
	historyAddStop  int64
	historyAddNotes string

	historyEditVersion int64
	historyEditStart   int64
	historyEditStop    int64
	historyEditNotes   string

	historyRmVersion int64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and edit archived focus sessions",
	Long: `List and edit the history ledger of archived focus sessions.

Running bare 'focusd history' is the same as 'focusd history list'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a past session to the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		entry, err := m.AddHistoryEntry(context.Background(), historyAddStart, historyAddStop, historyAddNotes)
		if err != nil {
			return err
		}
		ui.Success("Added entry %d (%s)", entry.ID, output.Timer(entry.Duration()))
		return nil
	},
}

var historyEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a ledger entry",
	Long: `Edit a ledger entry. Requires --version with the entry's current
version; the edit is rejected if the entry changed in the meantime.
Omitted fields keep their value.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry id: %s", args[0])
		}

		var start, stop *int64
		var notes *string
		if cmd.Flags().Changed("start") {
			start = &historyEditStart
		}
		if cmd.Flags().Changed("stop") {
			stop = &historyEditStop
		}
		if cmd.Flags().Changed("notes") {
			notes = &historyEditNotes
		}

		entry, err := m.UpdateHistoryEntry(context.Background(), id, historyEditVersion, start, stop, notes)
		if err != nil {
			return err
		}
		ui.Success("Updated entry %d (now version %d)", entry.ID, entry.Version)
		return nil
	},
}

var historyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a ledger entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry id: %s", args[0])
		}

		if err := m.DeleteHistoryEntry(context.Background(), id, historyRmVersion); err != nil {
			return err
		}
		ui.Success("Removed entry %d", id)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().Int64Var(&historyFrom, "from", 0, "Range start as unix milliseconds")
	historyCmd.PersistentFlags().Int64Var(&historyUntil, "until", 0, "Range end as unix milliseconds")
	historyCmd.PersistentFlags().BoolVar(&historyToday, "today", false, "Only the current logical day")

	historyAddCmd.Flags().Int64Var(&historyAddStart, "start", 0, "Session start as unix milliseconds")
	historyAddCmd.Flags().Int64Var(&historyAddStop, "stop", 0, "Session stop as unix milliseconds")
	historyAddCmd.Flags().StringVar(&historyAddNotes, "notes", "", "Notes for the entry")
	_ = historyAddCmd.MarkFlagRequired("start")
	_ = historyAddCmd.MarkFlagRequired("stop")

	historyEditCmd.Flags().Int64Var(&historyEditVersion, "version", 0, "Current version of the entry")
	historyEditCmd.Flags().Int64Var(&historyEditStart, "start", 0, "New start as unix milliseconds")
	historyEditCmd.Flags().Int64Var(&historyEditStop, "stop", 0, "New stop as unix milliseconds")
	historyEditCmd.Flags().StringVar(&historyEditNotes, "notes", "", "New notes")
	_ = historyEditCmd.MarkFlagRequired("version")

	historyRmCmd.Flags().Int64Var(&historyRmVersion, "version", 0, "Current version of the entry")
	_ = historyRmCmd.MarkFlagRequired("version")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAddCmd)
	historyCmd.AddCommand(historyEditCmd)
	historyCmd.AddCommand(historyRmCmd)
	rootCmd.AddCommand(historyCmd)
}

func historyListRun() error {
	m, err := getManager()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var from, until *int64
	if historyToday {
		opts, err := m.Options(ctx)
		if err != nil {
			return err
		}
		from = models.Millis(timeutil.StartOfDay(time.Now(), opts.SpilloverHours).UnixMilli())
	} else {
		if historyFrom > 0 {
			from = &historyFrom
		}
		if historyUntil > 0 {
			until = &historyUntil
		}
	}

	entries, err := m.ListHistory(ctx, from, until)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No sessions recorded")
		return nil
	}

	table := ui.Table([]string{"ID", "VER", "START", "STOP", "DURATION", "NOTES"})
	for _, e := range entries {
		table.Append([]string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.Version, 10),
			time.UnixMilli(e.Start).Format("2006-01-02 15:04"),
			time.UnixMilli(e.Stop).Format("15:04"),
			output.Timer(e.Duration()),
			e.Notes,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	stats := timeutil.CalcHistoryStats(entries)
	fmt.Fprintln(ui.Out)
	ui.Info("%d sessions, %s focused, %s paused",
		len(entries), output.Timer(stats.FocusMillis), output.Timer(stats.PauseMillis))
	return nil
}
