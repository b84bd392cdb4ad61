// Package mcp exposes the session core as MCP tools so LLM assistants
// can drive the timer over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"focusd/internal/models"
	"focusd/internal/session"
)

// Server wraps the session manager and exposes it as MCP tools.
type Server struct {
	manager *session.Manager
}

// NewServer creates the MCP server wrapper.
func NewServer(m *session.Manager) *Server {
	return &Server{manager: m}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("focusd", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.getStateTool())
	srv.AddTool(s.startTool())
	srv.AddTool(s.stopTool())
	srv.AddTool(s.resumeTool())
	srv.AddTool(s.setNotesTool())
	srv.AddTool(s.listHistoryTool())
	srv.AddTool(s.addHistoryTool())
	srv.AddTool(s.updateHistoryTool())
	srv.AddTool(s.deleteHistoryTool())
	srv.AddTool(s.getOptionsTool())
	srv.AddTool(s.setOptionsTool())
	srv.AddTool(s.statsTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func resultJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// optionalMillis reads an optional numeric argument. JSON numbers arrive
// as float64; absent keys stay nil.
func optionalMillis(request mcp.CallToolRequest, name string) *int64 {
	args := request.GetArguments()
	raw, ok := args[name]
	if !ok {
		return nil
	}
	f, ok := raw.(float64)
	if !ok {
		return nil
	}
	v := int64(f)
	return &v
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// focus_get_state
func (s *Server) getStateTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_get_state",
		mcp.WithDescription("Get the current focus session state: whether a session is running, its start timestamp, the next goal alarm, notes, and the next history entry id. Timestamps are unix milliseconds."),
	)
	return tool, s.handleGetState
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.manager.State(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read state: %v", err)), nil
	}
	return resultJSON(state)
}

// focus_start
func (s *Server) startTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_start",
		mcp.WithDescription("Start a focus session. Without arguments the session starts now. Pass start_timestamp to back-date it, or since_active=true to start from the last recorded activity. Starting while already in focus is a no-op."),
		mcp.WithNumber("start_timestamp", mcp.Description("Explicit start time in unix milliseconds")),
		mcp.WithBoolean("since_active", mcp.Description("Start from the last recorded user activity")),
	)
	return tool, s.handleStart
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := optionalMillis(request, "start_timestamp")
	sinceActive := request.GetBool("since_active", false)

	state, err := s.manager.EnterFocus(ctx, start, sinceActive)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start focus: %v", err)), nil
	}
	return resultJSON(state)
}

// focus_stop
func (s *Server) stopTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_stop",
		mcp.WithDescription("Stop the running focus session and archive it to history. Pass stop_timestamp to back-date the stop; it must be after the session start. Stopping while not in focus is a no-op."),
		mcp.WithNumber("stop_timestamp", mcp.Description("Explicit stop time in unix milliseconds")),
	)
	return tool, s.handleStop
}

func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stop := optionalMillis(request, "stop_timestamp")

	state, err := s.manager.LeaveFocus(ctx, stop)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop focus: %v", err)), nil
	}
	return resultJSON(state)
}

// focus_resume
func (s *Server) resumeTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_resume",
		mcp.WithDescription("Resume the most recently finished focus session: removes its history entry and restarts the session at that entry's original start time. Fails if history is empty; no-op while already in focus."),
	)
	return tool, s.handleResume
}

func (s *Server) handleResume(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.manager.ResumeFocus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resume focus: %v", err)), nil
	}
	return resultJSON(state)
}

// focus_set_notes
func (s *Server) setNotesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_set_notes",
		mcp.WithDescription("Set the notes attached to the current session. Notes are archived with the session when it stops."),
		mcp.WithString("notes", mcp.Required(), mcp.Description("Notes text; an empty string clears them")),
	)
	return tool, s.handleSetNotes
}

func (s *Server) handleSetNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := request.RequireString("notes")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: notes"), nil
	}

	state, err := s.manager.SetNotes(ctx, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set notes: %v", err)), nil
	}
	return resultJSON(state)
}

// focus_list_history
func (s *Server) listHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_list_history",
		mcp.WithDescription("List archived focus sessions sorted by start time, optionally restricted to a time range. Entries overlapping the range are included. Each entry has id, version, startTimestamp, stopTimestamp, and notes."),
		mcp.WithNumber("from", mcp.Description("Range start in unix milliseconds")),
		mcp.WithNumber("until", mcp.Description("Range end in unix milliseconds")),
	)
	return tool, s.handleListHistory
}

func (s *Server) handleListHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := optionalMillis(request, "from")
	until := optionalMillis(request, "until")

	entries, err := s.manager.ListHistory(ctx, from, until)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list history: %v", err)), nil
	}
	return resultJSON(entries)
}

// focus_add_history
func (s *Server) addHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_add_history",
		mcp.WithDescription("Add a history entry for a past focus session. Returns the created entry including its id and version."),
		mcp.WithNumber("start_timestamp", mcp.Required(), mcp.Description("Session start in unix milliseconds")),
		mcp.WithNumber("stop_timestamp", mcp.Required(), mcp.Description("Session stop in unix milliseconds; must be after start")),
		mcp.WithString("notes", mcp.Description("Notes for the entry")),
	)
	return tool, s.handleAddHistory
}

func (s *Server) handleAddHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start := optionalMillis(request, "start_timestamp")
	stop := optionalMillis(request, "stop_timestamp")
	if start == nil || stop == nil {
		return mcp.NewToolResultError("missing required parameters: start_timestamp, stop_timestamp"), nil
	}
	notes := request.GetString("notes", "")

	entry, err := s.manager.AddHistoryEntry(ctx, *start, *stop, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add history entry: %v", err)), nil
	}
	return resultJSON(entry)
}

// focus_update_history
func (s *Server) updateHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_update_history",
		mcp.WithDescription("Update a history entry. Requires the entry's current version; the update is rejected with a conflict if someone changed the entry in the meantime. Omitted fields keep their value."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("History entry id")),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("The entry version this update is based on")),
		mcp.WithNumber("start_timestamp", mcp.Description("New start in unix milliseconds")),
		mcp.WithNumber("stop_timestamp", mcp.Description("New stop in unix milliseconds")),
		mcp.WithString("notes", mcp.Description("New notes text")),
	)
	return tool, s.handleUpdateHistory
}

func (s *Server) handleUpdateHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := optionalMillis(request, "id")
	version := optionalMillis(request, "version")
	if id == nil || version == nil {
		return mcp.NewToolResultError("missing required parameters: id, version"), nil
	}

	start := optionalMillis(request, "start_timestamp")
	stop := optionalMillis(request, "stop_timestamp")
	var notes *string
	if raw, ok := request.GetArguments()["notes"]; ok {
		if v, ok := raw.(string); ok {
			notes = &v
		}
	}

	entry, err := s.manager.UpdateHistoryEntry(ctx, *id, *version, start, stop, notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update history entry: %v", err)), nil
	}
	return resultJSON(entry)
}

// focus_delete_history
func (s *Server) deleteHistoryTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_delete_history",
		mcp.WithDescription("Delete a history entry. Requires the entry's current version; rejected with a conflict on mismatch."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("History entry id")),
		mcp.WithNumber("version", mcp.Required(), mcp.Description("The entry version this delete is based on")),
	)
	return tool, s.handleDeleteHistory
}

func (s *Server) handleDeleteHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := optionalMillis(request, "id")
	version := optionalMillis(request, "version")
	if id == nil || version == nil {
		return mcp.NewToolResultError("missing required parameters: id, version"), nil
	}

	if err := s.manager.DeleteHistoryEntry(ctx, *id, *version); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete history entry: %v", err)), nil
	}
	return resultJSON(map[string]any{"deleted": *id})
}

// focus_get_options
func (s *Server) getOptionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_get_options",
		mcp.WithDescription("Get the current user options: focus goal, snooze length, idle detection threshold, day spillover, and notification toggles."),
	)
	return tool, s.handleGetOptions
}

func (s *Server) handleGetOptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := s.manager.Options(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read options: %v", err)), nil
	}
	return resultJSON(opts)
}

// focus_set_options
func (s *Server) setOptionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_set_options",
		mcp.WithDescription("Update user options. Omitted fields keep their current value. The whole update is rejected if any field is out of range."),
		mcp.WithNumber("focus_goal_minutes", mcp.Description("Focus goal in minutes (1-240)")),
		mcp.WithNumber("snooze_minutes", mcp.Description("Goal snooze length in minutes (1-60)")),
		mcp.WithNumber("idle_detection_seconds", mcp.Description("Idle threshold in seconds (15-1800)")),
		mcp.WithNumber("spillover_hours", mcp.Description("Hours after midnight that still count as the previous day (0-23)")),
		mcp.WithBoolean("show_badge_text", mcp.Description("Show the elapsed-time badge")),
		mcp.WithBoolean("show_notifications", mcp.Description("Raise goal and idle notifications")),
	)
	return tool, s.handleSetOptions
}

func (s *Server) handleSetOptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	current, err := s.manager.Options(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read options: %v", err)), nil
	}

	candidate := *current
	args := request.GetArguments()
	if v, ok := args["focus_goal_minutes"].(float64); ok {
		candidate.FocusGoalMinutes = int(v)
	}
	if v, ok := args["snooze_minutes"].(float64); ok {
		candidate.SnoozeMinutes = int(v)
	}
	if v, ok := args["idle_detection_seconds"].(float64); ok {
		candidate.IdleDetectionSeconds = int(v)
	}
	if v, ok := args["spillover_hours"].(float64); ok {
		candidate.SpilloverHours = int(v)
	}
	if v, ok := args["show_badge_text"].(bool); ok {
		candidate.ShowBadgeText = v
	}
	if v, ok := args["show_notifications"].(bool); ok {
		candidate.ShowNotifications = v
	}

	opts, err := s.manager.SetOptions(ctx, candidate)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set options: %v", err)), nil
	}
	return resultJSON(opts)
}

// focus_stats
func (s *Server) statsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("focus_stats",
		mcp.WithDescription("Aggregate focus and pause time over archived sessions. Without arguments the current logical day is aggregated, honoring the spillover option."),
		mcp.WithNumber("from", mcp.Description("Range start in unix milliseconds")),
		mcp.WithNumber("until", mcp.Description("Range end in unix milliseconds")),
	)
	return tool, s.handleStats
}

func (s *Server) handleStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from := optionalMillis(request, "from")
	until := optionalMillis(request, "until")

	var stats models.HistoryStats
	var err error
	if from == nil && until == nil {
		stats, err = s.manager.TodayStats(ctx)
	} else {
		stats, err = s.manager.Stats(ctx, from, until)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
	}
	return resultJSON(stats)
}
