package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mattjoyce/relaycmd/internal/auth"
	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/events"
	"github.com/mattjoyce/relaycmd/internal/log"
	"github.com/mattjoyce/relaycmd/internal/progress"
	"github.com/mattjoyce/relaycmd/internal/registry"
)

const (
	adminKey    = "admin-key"
	readerToken = "reader-token"
	writerToken = "writer-token"
	eventsToken = "events-token"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	goleak.VerifyTestMain(m)
}

type fixture struct {
	handler  http.Handler
	registry *registry.Registry
	hub      *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hub := events.NewHub(64)
	reg, err := registry.New([]config.CommandConfig{
		{Name: "save", Description: "save the document"},
		{Name: "refresh", Duration: 50 * time.Millisecond, Async: true, DisableWhileExecuting: true},
		{Name: "export", StartDisabled: true},
	}, progress.NewTracker(progress.WithHub(hub)), hub)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	srv := New(Config{
		APIKey: adminKey,
		Tokens: []auth.TokenConfig{
			{Token: readerToken, Scopes: []string{auth.ScopeCommandsRead}},
			{Token: writerToken, Scopes: []string{auth.ScopeCommandsWrite}},
			{Token: eventsToken, Scopes: []string{auth.ScopeEventsRead}},
		},
		MaxWait: 5 * time.Second,
	}, reg, hub, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return &fixture{handler: srv.Handler(), registry: reg, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthz_NoAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthzResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Commands)
	assert.Equal(t, 0, resp.ActiveProgress)
}

func TestAuth(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"missing token", http.MethodGet, "/commands", "", http.StatusUnauthorized},
		{"wrong token", http.MethodGet, "/commands", "nope", http.StatusUnauthorized},
		{"reader lists", http.MethodGet, "/commands", readerToken, http.StatusOK},
		{"reader cannot execute", http.MethodPost, "/commands/save/execute", readerToken, http.StatusForbidden},
		{"reader cannot disable", http.MethodPost, "/commands/save/disable", readerToken, http.StatusForbidden},
		{"writer reads", http.MethodGet, "/progress", writerToken, http.StatusOK},
		{"events token cannot list", http.MethodGet, "/commands", eventsToken, http.StatusForbidden},
		{"admin lists", http.MethodGet, "/commands", adminKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestListAndGetCommands(t *testing.T) {
	f := newFixture(t)

	list := decode[CommandListResponse](t, f.do(t, http.MethodGet, "/commands", readerToken))
	require.Len(t, list.Commands, 3)
	assert.Equal(t, "save", list.Commands[0].Name)
	assert.True(t, list.Commands[0].CanExecute)
	assert.Equal(t, "export", list.Commands[2].Name)
	assert.False(t, list.Commands[2].CanExecute)
	assert.Equal(t, "user_disabled", list.Commands[2].State)

	rec := f.do(t, http.MethodGet, "/commands/save", readerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "save the document", decode[registry.View](t, rec).Description)

	rec = f.do(t, http.MethodGet, "/commands/missing", readerToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "command not found")
}

func TestExecute_Sync(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/commands/save/execute", writerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ExecuteResponse](t, rec)
	assert.NotEmpty(t, resp.ExecutionID)
	assert.Equal(t, "save", resp.Command)
	assert.Equal(t, StatusCompleted, resp.Status)
}

func TestExecute_AsyncAccepted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/commands/refresh/execute", writerToken)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, StatusRunning, decode[ExecuteResponse](t, rec).Status)

	// Disabled while executing.
	rec = f.do(t, http.MethodPost, "/commands/refresh/execute", writerToken)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExecute_AsyncWait(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/commands/refresh/execute?wait=true", writerToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, StatusCompleted, decode[ExecuteResponse](t, rec).Status)
}

func TestExecute_Errors(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/commands/export/execute", writerToken).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/commands/missing/execute", writerToken).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/commands/save/execute?wait=maybe", writerToken).Code)
}

func TestEnableDisable(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/commands/export/enable", writerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[registry.View](t, rec).CanExecute)

	rec = f.do(t, http.MethodPost, "/commands/save/disable", writerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[registry.View](t, rec)
	assert.False(t, v.CanExecute)
	assert.Equal(t, "user_disabled", v.State)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/commands/missing/enable", writerToken).Code)
}

func TestProgress(t *testing.T) {
	f := newFixture(t)

	resp := decode[ProgressResponse](t, f.do(t, http.MethodGet, "/progress", readerToken))
	assert.False(t, resp.Active)
	assert.Empty(t, resp.Progress)

	save, err := f.registry.Get("save")
	require.NoError(t, err)
	f.registry.Tracker().StartIndeterminateProgress(save.ProgressKey)
	defer f.registry.Tracker().StopIndeterminateProgress(save.ProgressKey)

	resp = decode[ProgressResponse](t, f.do(t, http.MethodGet, "/progress", readerToken))
	assert.True(t, resp.Active)
	require.Len(t, resp.Progress, 1)
	assert.Equal(t, "save", resp.Progress[0].Command)
	assert.Equal(t, save.ProgressKey.String(), resp.Progress[0].Key)
}

func TestEvents_ReplaysSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Disable("save"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+eventsToken)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "event: "+events.CommandChanged)
	assert.Contains(t, body, `"subject":"save"`)
	assert.True(t, strings.HasPrefix(body, "id: 1\n"), body)
}

func TestEvents_LastEventID(t *testing.T) {
	f := newFixture(t)
	f.hub.Publish(events.CommandChanged, "save", nil)
	f.hub.Publish(events.CommandChanged, "export", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+adminKey)
	req.Header.Set("Last-Event-ID", "1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.NotContains(t, body, `"subject":"save"`)
	assert.Contains(t, body, `"subject":"export"`)
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("abc"))
	assert.Equal(t, int64(0), parseLastEventID("-4"))
	assert.Equal(t, int64(12), parseLastEventID("12"))
}

func TestOpenAPI(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "3.1.0", doc["openapi"])
	paths := doc["paths"].(map[string]any)
	assert.Len(t, paths, 3)

	post := paths["/commands/save/execute"].(map[string]any)["post"].(map[string]any)
	assert.Equal(t, "save__execute", post["operationId"])
	assert.Equal(t, "save the document", post["summary"])

	post = paths["/commands/export/execute"].(map[string]any)["post"].(map[string]any)
	assert.Equal(t, "execute export", post["summary"])
}
