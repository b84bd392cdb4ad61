package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusd/internal/models"
	"focusd/internal/session"
	"focusd/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "focusd.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))
	t.Cleanup(func() { _ = st.Close() })

	manager := session.NewManager(st, nil, nil, nil, nil, nil)
	srv := httptest.NewServer(NewServer(manager, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetState_InitiallyIdle(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/state")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	state := decode[models.SessionState](t, resp)
	assert.False(t, state.InFocus)
	assert.Equal(t, int64(1), state.NextHistoryID)
}

func TestFocusLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/focus",
		map[string]any{"startTimestamp": 1000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[models.SessionState](t, resp)
	assert.True(t, state.InFocus)
	require.NotNil(t, state.FocusStart)
	assert.Equal(t, int64(1000), *state.FocusStart)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/focus",
		map[string]any{"stopTimestamp": 5000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state = decode[models.SessionState](t, resp)
	assert.False(t, state.InFocus)

	resp, err := http.Get(srv.URL + "/api/v1/history")
	require.NoError(t, err)
	entries := decode[[]models.HistoryEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1000), entries[0].Start)
	assert.Equal(t, int64(5000), entries[0].Stop)
}

func TestEnterFocus_RejectsUnknownStartEvent(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/focus",
		map[string]any{"startEvent": "bogus"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeaveFocus_BadStopReturns400(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/focus",
		map[string]any{"startTimestamp": 5000})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/focus",
		map[string]any{"stopTimestamp": 4000})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistoryCRUD(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/history",
		map[string]any{"startTimestamp": 1000, "stopTimestamp": 2000, "notes": "deep work"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.HistoryEntry](t, resp)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, int64(0), created.Version)

	url := fmt.Sprintf("%s/api/v1/history/%d", srv.URL, created.ID)

	resp = doJSON(t, http.MethodPut, url,
		map[string]any{"version": 0, "stopTimestamp": 2500})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.HistoryEntry](t, resp)
	assert.Equal(t, int64(1), updated.Version)
	assert.Equal(t, int64(2500), updated.Stop)
	assert.Equal(t, "deep work", updated.Notes)

	// Stale version: conflict, not overwrite.
	resp = doJSON(t, http.MethodPut, url,
		map[string]any{"version": 0, "stopTimestamp": 9000})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, url+"?version=1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, url+"?version=1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUpdateHistory_RequiresVersion(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/history",
		map[string]any{"startTimestamp": 1000, "stopTimestamp": 2000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.HistoryEntry](t, resp)

	resp = doJSON(t, http.MethodPut,
		fmt.Sprintf("%s/api/v1/history/%d", srv.URL, created.ID),
		map[string]any{"notes": "no version"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListHistory_RangeFilter(t *testing.T) {
	srv := newTestServer(t)

	for _, span := range [][2]int64{{0, 1000}, {2000, 3000}, {5000, 6000}} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/history",
			map[string]any{"startTimestamp": span[0], "stopTimestamp": span[1]})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/v1/history?from=1500&until=3500")
	require.NoError(t, err)
	entries := decode[[]models.HistoryEntry](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2000), entries[0].Start)
}

func TestOptions_GetAndSet(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/options")
	require.NoError(t, err)
	opts := decode[models.Options](t, resp)
	assert.Equal(t, *models.DefaultOptions(), opts)

	opts.FocusGoalMinutes = 25
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/options", opts)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.Options](t, resp)
	assert.Equal(t, 25, got.FocusGoalMinutes)

	opts.SnoozeMinutes = 0
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/v1/options", opts)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStats_Range(t *testing.T) {
	srv := newTestServer(t)

	for _, span := range [][2]int64{{0, 1000}, {2000, 3000}, {5000, 6000}} {
		resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/history",
			map[string]any{"startTimestamp": span[0], "stopTimestamp": span[1]})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		_ = resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/api/v1/stats?from=0&until=6000")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Stats models.HistoryStats `json:"stats"`
	}](t, resp)
	assert.Equal(t, int64(3000), body.Stats.FocusMillis)
	assert.Equal(t, int64(3000), body.Stats.PauseMillis)
}

func TestReset(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/history",
		map[string]any{"startTimestamp": 1000, "stopTimestamp": 2000})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/reset", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/v1/history")
	require.NoError(t, err)
	entries := decode[[]models.HistoryEntry](t, resp)
	assert.Empty(t, entries)

	resp, err = http.Get(srv.URL + "/api/v1/state")
	require.NoError(t, err)
	state := decode[models.SessionState](t, resp)
	assert.Equal(t, int64(1), state.NextHistoryID, "reset rewinds the entry counter")
}

func TestSetNotes(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, http.MethodPut, srv.URL+"/api/v1/state/notes",
		map[string]any{"notes": "reading papers"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[models.SessionState](t, resp)
	assert.Equal(t, "reading papers", state.Notes)
}

func TestNotificationAction(t *testing.T) {
	srv := newTestServer(t)

	// An id the coordinator never issued is a contract breach, not bad
	// user input.
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/v1/notifications/bogus/actions",
		map[string]any{"button": 0})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/v1/notifications/focus-goal/actions", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "button is required")
	_ = resp.Body.Close()
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/state", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
