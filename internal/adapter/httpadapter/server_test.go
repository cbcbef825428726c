package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/adapter/httpadapter"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

var started = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(readyErr error) (*httpadapter.Server, *httpadapter.RunStatus) {
	status := httpadapter.NewRunStatus("download", started)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, status, logger), status
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)
}

func TestReadyz(t *testing.T) {
	ready, _ := newTestServer(nil)
	assert.Equal(t, http.StatusOK, get(t, ready, "/readyz").Code)

	notReady, _ := newTestServer(errors.New("scan directory missing"))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, notReady, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(nil)
	rec := get(t, srv, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestStatusEndpoint(t *testing.T) {
	srv, status := newTestServer(nil)
	status.SetPhase("download", "run-42")
	status.SetCounts(map[string]int{"downloaded": 3, "not_found": 1})

	rec := get(t, srv, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body httpadapter.StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "download", body.Command)
	assert.Equal(t, "download", body.Phase)
	assert.Equal(t, "run-42", body.RunID)
	assert.Equal(t, 3, body.Counts["downloaded"])
	assert.True(t, started.Equal(body.StartedAt))
}

func TestRunStatus_SnapshotIsCopy(t *testing.T) {
	status := httpadapter.NewRunStatus("prepare", started)
	status.SetCounts(map[string]int{"rendered": 1})

	snap := status.Snapshot()
	snap.Counts["rendered"] = 99

	assert.Equal(t, 1, status.Snapshot().Counts["rendered"])
	assert.Equal(t, "starting", status.Snapshot().Phase)

	status.SetPhase("render", "")
	assert.Equal(t, "render", status.Snapshot().Phase)
	assert.Empty(t, status.Snapshot().RunID)
}
