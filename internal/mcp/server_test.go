package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/models"
	"focusd/internal/session"
	"focusd/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "focusd.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(session.NewManager(st, nil, nil, nil, nil, nil))
	require.NotNil(t, srv)
	return srv
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// decodeResult parses the text result as JSON into the provided target.
func decodeResult(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

func TestHandleGetState_Initial(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGetState(ctx, callToolReq("focus_get_state", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var state models.SessionState
	decodeResult(t, result, &state)
	assert.False(t, state.InFocus)
	assert.Equal(t, int64(1), state.NextHistoryID)
}

func TestHandleStartAndStop(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleStart(ctx, callToolReq("focus_start",
		map[string]any{"start_timestamp": float64(1000)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var state models.SessionState
	decodeResult(t, result, &state)
	assert.True(t, state.InFocus)
	require.NotNil(t, state.FocusStart)
	assert.Equal(t, int64(1000), *state.FocusStart)

	result, err = srv.handleStop(ctx, callToolReq("focus_stop",
		map[string]any{"stop_timestamp": float64(5000)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	decodeResult(t, result, &state)
	assert.False(t, state.InFocus)

	result, err = srv.handleListHistory(ctx, callToolReq("focus_list_history", nil))
	require.NoError(t, err)
	var entries []models.HistoryEntry
	decodeResult(t, result, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1000), entries[0].Start)
	assert.Equal(t, int64(5000), entries[0].Stop)
}

func TestHandleStop_BadOrdering(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.handleStart(ctx, callToolReq("focus_start",
		map[string]any{"start_timestamp": float64(5000)}))
	require.NoError(t, err)

	result, err := srv.handleStop(ctx, callToolReq("focus_stop",
		map[string]any{"stop_timestamp": float64(4000)}))
	require.NoError(t, err, "handler should not return Go error; should wrap in result")
	assert.True(t, result.IsError)
}

func TestHandleResume(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, err := srv.handleAddHistory(ctx, callToolReq("focus_add_history",
		map[string]any{"start_timestamp": float64(1000), "stop_timestamp": float64(2000)}))
	require.NoError(t, err)

	result, err := srv.handleResume(ctx, callToolReq("focus_resume", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var state models.SessionState
	decodeResult(t, result, &state)
	assert.True(t, state.InFocus)
	require.NotNil(t, state.FocusStart)
	assert.Equal(t, int64(1000), *state.FocusStart, "resume restarts at the archived start")

	result, err = srv.handleListHistory(ctx, callToolReq("focus_list_history", nil))
	require.NoError(t, err)
	var entries []models.HistoryEntry
	decodeResult(t, result, &entries)
	assert.Empty(t, entries, "resumed entry leaves the ledger")
}

func TestHandleResume_EmptyHistory(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleResume(context.Background(), callToolReq("focus_resume", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSetNotes(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleSetNotes(ctx, callToolReq("focus_set_notes",
		map[string]any{"notes": "reading papers"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var state models.SessionState
	decodeResult(t, result, &state)
	assert.Equal(t, "reading papers", state.Notes)
}

func TestHandleSetNotes_Missing(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleSetNotes(context.Background(), callToolReq("focus_set_notes", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleHistoryUpdateAndDelete(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleAddHistory(ctx, callToolReq("focus_add_history",
		map[string]any{"start_timestamp": float64(1000), "stop_timestamp": float64(2000), "notes": "deep work"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var created models.HistoryEntry
	decodeResult(t, result, &created)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, int64(0), created.Version)

	result, err = srv.handleUpdateHistory(ctx, callToolReq("focus_update_history",
		map[string]any{"id": float64(created.ID), "version": float64(0), "stop_timestamp": float64(2500)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var updated models.HistoryEntry
	decodeResult(t, result, &updated)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, int64(2500), updated.Stop)
	assert.Equal(t, "deep work", updated.Notes, "omitted notes keep their value")

	// Stale version gets a conflict.
	result, err = srv.handleUpdateHistory(ctx, callToolReq("focus_update_history",
		map[string]any{"id": float64(created.ID), "version": float64(0), "stop_timestamp": float64(9000)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "conflict")

	result, err = srv.handleDeleteHistory(ctx, callToolReq("focus_delete_history",
		map[string]any{"id": float64(created.ID), "version": float64(1)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = srv.handleListHistory(ctx, callToolReq("focus_list_history", nil))
	require.NoError(t, err)
	var entries []models.HistoryEntry
	decodeResult(t, result, &entries)
	assert.Empty(t, entries)
}

func TestHandleUpdateHistory_MissingVersion(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleUpdateHistory(context.Background(), callToolReq("focus_update_history",
		map[string]any{"id": float64(1)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleOptions(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleGetOptions(ctx, callToolReq("focus_get_options", nil))
	require.NoError(t, err)
	var opts models.Options
	decodeResult(t, result, &opts)
	assert.Equal(t, *models.DefaultOptions(), opts)

	result, err = srv.handleSetOptions(ctx, callToolReq("focus_set_options",
		map[string]any{"focus_goal_minutes": float64(25)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	decodeResult(t, result, &opts)
	assert.Equal(t, 25, opts.FocusGoalMinutes)
	assert.Equal(t, 5, opts.SnoozeMinutes, "omitted fields keep their value")

	result, err = srv.handleSetOptions(ctx, callToolReq("focus_set_options",
		map[string]any{"snooze_minutes": float64(0)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleStats_Range(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for _, span := range [][2]float64{{0, 1000}, {2000, 3000}, {5000, 6000}} {
		_, err := srv.handleAddHistory(ctx, callToolReq("focus_add_history",
			map[string]any{"start_timestamp": span[0], "stop_timestamp": span[1]}))
		require.NoError(t, err)
	}

	result, err := srv.handleStats(ctx, callToolReq("focus_stats",
		map[string]any{"from": float64(0), "until": float64(6000)}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var stats models.HistoryStats
	decodeResult(t, result, &stats)
	assert.Equal(t, int64(3000), stats.FocusMillis)
	assert.Equal(t, int64(3000), stats.PauseMillis)
}
