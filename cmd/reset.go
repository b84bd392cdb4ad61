package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all state, history, and options",
	Long: `Wipe the entire database: session state, the history ledger, and
options all return to their defaults. This cannot be undone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			return fmt.Errorf("refusing to wipe all data without --force")
		}

		m, err := getManager()
		if err != nil {
			return err
		}
		if err := m.ResetStorage(context.Background()); err != nil {
			return err
		}
		ui.Success("All data wiped; defaults restored")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm wiping all data")
	rootCmd.AddCommand(resetCmd)
}
