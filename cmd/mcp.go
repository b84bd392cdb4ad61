package cmd

import (
	"github.com/spf13/cobra"

	"focusd/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets LLM assistants drive the timer natively: start and stop
sessions, edit history, and read stats. Configure with:

  {
    "mcpServers": {
      "focusd": { "command": "focusd", "args": ["mcp"] }
    }
  }

Available tools: focus_get_state, focus_start, focus_stop, focus_resume,
focus_set_notes, focus_list_history, focus_add_history,
focus_update_history, focus_delete_history, focus_get_options,
focus_set_options, focus_stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := getManager()
		if err != nil {
			return err
		}
		return mcp.NewServer(m).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
