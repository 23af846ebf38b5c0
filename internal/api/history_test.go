package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/relaycmd/internal/config"
	"github.com/mattjoyce/relaycmd/internal/registry"
	"github.com/mattjoyce/relaycmd/internal/state"
	"github.com/mattjoyce/relaycmd/internal/storage"
)

func TestHistory_WithoutRecorder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/commands/save/history", readerToken)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HistoryResponse](t, rec)
	assert.Equal(t, "save", resp.Command)
	assert.Empty(t, resp.Executions)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/commands/missing/history", readerToken).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/commands/save/history?limit=0", readerToken).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/commands/save/history?limit=ten", readerToken).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/commands/save/history", "").Code)
}

func TestHistory_RecordedExecutions(t *testing.T) {
	db, err := storage.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	reg, err := registry.New([]config.CommandConfig{{Name: "save"}}, nil, nil,
		registry.WithRecorder(state.NewStore(db)))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	f := &fixture{
		handler:  New(Config{APIKey: adminKey}, reg, nil, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler(),
		registry: reg,
	}

	for range 3 {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/commands/save/execute", adminKey).Code)
	}

	var resp HistoryResponse
	assert.Eventually(t, func() bool {
		resp = decode[HistoryResponse](t, f.do(t, http.MethodGet, "/commands/save/history?limit=2", adminKey))
		if len(resp.Executions) != 2 {
			return false
		}
		for _, e := range resp.Executions {
			if e.Status != state.StatusSucceeded {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, resp.Executions[0].StartedAt.Before(resp.Executions[1].StartedAt))
}
