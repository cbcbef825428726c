package observability

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "info", "json").Info("hello", "scan", "KOKX20130721_093320_V06")
	assert.Contains(t, buf.String(), `"scan":"KOKX20130721_093320_V06"`)

	buf.Reset()
	NewLogger(&buf, "info", "text").Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", "json")
	l.Info("dropped")
	assert.Empty(t, buf.String())
	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()
	a.ScanOutcomes.WithLabelValues("download", "downloaded").Inc()
	b.ScanOutcomes.WithLabelValues("download", "downloaded").Add(2)
	assert.NotSame(t, a.ScanOutcomes, b.ScanOutcomes)
}

func TestPushFrom(t *testing.T) {
	var gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "test_total"})
	reg.MustRegister(c)
	c.Inc()

	require.NoError(t, PushFrom(reg, srv.URL, "wsrdata_download", "run-1"))
	assert.Equal(t, "/metrics/job/wsrdata_download/run_id/run-1", gotPath)
	assert.NotEmpty(t, gotBody)
}

func TestPushFrom_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PushFrom(prometheus.NewRegistry(), srv.URL, "job", "")
	assert.Error(t, err)
}
