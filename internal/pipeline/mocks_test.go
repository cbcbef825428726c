package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
	"github.com/wsrdata/wsrdata/internal/pipeline"
)

// --- mocks ---

type fakeArchive struct {
	mu        sync.Mutex
	objects   map[string]string // key → body
	failures  map[string]error  // key → error other than not-found
	listErr   error
	listed    []string
	downloads []string
}

func newFakeArchive(keys ...string) *fakeArchive {
	a := &fakeArchive{objects: map[string]string{}, failures: map[string]error{}}
	for _, k := range keys {
		a.objects[k] = "volume:" + k
	}
	return a
}

func (a *fakeArchive) List(_ context.Context, prefix string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listed = append(a.listed, prefix)
	if a.listErr != nil {
		return nil, a.listErr
	}
	var keys []string
	for k := range a.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (a *fakeArchive) Download(_ context.Context, key, dst string) error {
	a.mu.Lock()
	a.downloads = append(a.downloads, key)
	body, ok := a.objects[key]
	failure := a.failures[key]
	a.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !ok {
		return fmt.Errorf("get %s: %w", key, domain.ErrNotFoundUpstream)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(body), 0o644)
}

type fakeRenderer struct {
	mu    sync.Mutex
	fail  map[string]bool // dst base name → fail
	calls []string
}

func (r *fakeRenderer) Render(_ context.Context, _ string, cfg domain.RenderConfig, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, filepath.Base(dst))
	if r.fail[filepath.Base(dst)] {
		return errors.New("renderer exited with status 1")
	}
	return os.WriteFile(dst, []byte(strings.Join(cfg.Fields, ",")), 0o644)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.ScanEvent
}

func (p *fakePublisher) Publish(_ context.Context, events ...domain.ScanEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *fakePublisher) outcomes(stage domain.Stage) map[domain.Outcome]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[domain.Outcome]int{}
	for _, e := range p.events {
		if e.Stage == stage {
			out[e.Outcome]++
		}
	}
	return out
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func openBatch(t *testing.T) *pipeline.BatchLog {
	t.Helper()
	b, err := pipeline.OpenBatchLog(discardLogger(), filepath.Join(t.TempDir(), "logs", "test.log"), "test.txt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func keyOf(t *testing.T, scan string) string {
	t.Helper()
	k, err := domain.DeriveKey(scan)
	require.NoError(t, err)
	return k
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}
