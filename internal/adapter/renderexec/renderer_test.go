package renderexec

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable shell script in a temp dir.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "render.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRender_PassesConfigAndPaths(t *testing.T) {
	dir := t.TempDir()
	seen := filepath.Join(dir, "stdin.json")
	script := writeScript(t, `cat > "`+seen+`"
echo "$1" > "$2"
`)
	r := New(script, discardLogger())

	dst := filepath.Join(dir, "arrays", "KOKX20130721_093320_V06.npy")
	err := r.Render(context.Background(), "/scans/KOKX20130721_093320_V06.gz", domain.DefaultArrayConfig(), dst)
	require.NoError(t, err)

	out, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "/scans/KOKX20130721_093320_V06.gz\n", string(out))
	assert.NoFileExists(t, tempPath(dst))

	raw, err := os.ReadFile(seen)
	require.NoError(t, err)
	var cfg domain.RenderConfig
	require.NoError(t, json.Unmarshal(raw, &cfg))
	assert.True(t, cfg.Equal(domain.DefaultArrayConfig()))
}

func TestRender_CommandFailureKeepsStderr(t *testing.T) {
	script := writeScript(t, `echo "partial" > "$2"
echo "no sweeps at 0.5 degrees" >&2
exit 3
`)
	r := New(script, discardLogger())

	dst := filepath.Join(t.TempDir(), "x.npy")
	err := r.Render(context.Background(), "KTBW20200101_120000_V06", domain.DefaultArrayConfig(), dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sweeps at 0.5 degrees")
	assert.NoFileExists(t, dst)
	assert.NoFileExists(t, tempPath(dst))
}

func TestRender_OutputPathKeepsExtension(t *testing.T) {
	// np.save appends .npy unless the path already ends with it.
	script := writeScript(t, `case "$2" in
*.npy) echo ok > "$2" ;;
*) echo ok > "$2.npy" ;;
esac
`)
	r := New(script, discardLogger())

	dst := filepath.Join(t.TempDir(), "KOKX20130721_093320_V06_dualpol.npy")
	require.NoError(t, r.Render(context.Background(), "scan", domain.DefaultDualpolConfig(), dst))
	assert.FileExists(t, dst)
	assert.NoFileExists(t, tempPath(dst))
}

func TestTempPath(t *testing.T) {
	assert.Equal(t, "/a/X.tmp.npy", tempPath("/a/X.npy"))
	assert.Equal(t, "/a/X.tmp", tempPath("/a/X"))
}

func TestRender_NoOutput(t *testing.T) {
	r := New(writeScript(t, "exit 0\n"), discardLogger())

	err := r.Render(context.Background(), "scan", domain.DefaultArrayConfig(), filepath.Join(t.TempDir(), "x.npy"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no output")
}

func TestRender_NoCommand(t *testing.T) {
	r := New("  ", discardLogger())
	require.ErrorIs(t, r.Render(context.Background(), "s", domain.DefaultArrayConfig(), "d"), ErrNoCommand)
	require.ErrorIs(t, r.CheckReadiness(context.Background()), ErrNoCommand)
}

func TestCheckReadiness(t *testing.T) {
	r := New(writeScript(t, "exit 0\n")+" --flag", discardLogger())
	require.NoError(t, r.CheckReadiness(context.Background()))

	missing := New("definitely-not-a-render-command-xyz", discardLogger())
	require.Error(t, missing.CheckReadiness(context.Background()))
}

func TestTail(t *testing.T) {
	long := strings.Repeat("a", maxStderr+10)
	got := tail(long + "\n")
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.Len(t, got, maxStderr+3)
	assert.Equal(t, "short", tail("  short \n"))
}
