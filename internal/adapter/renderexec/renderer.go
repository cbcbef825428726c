// Package renderexec renders scan volumes by running an external radar
// rendering command. Decoding and gridding a volume is not done in-process.
package renderexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// maxStderr bounds how much of the command's stderr is kept in errors.
const maxStderr = 2048

// ErrNoCommand is returned when no render command is configured.
var ErrNoCommand = errors.New("render command not configured")

// Renderer runs Command once per scan and product:
//
//	<command...> <scan path> <output path>
//
// with the render configuration as JSON on stdin. The command must write a
// .npy array to the output path and exit 0. The output path keeps the
// destination's extension, so np.save writes to it unchanged.
type Renderer struct {
	command []string
	logger  *slog.Logger
}

// New splits command on whitespace, e.g. "python3 -m wsrlib_render".
func New(command string, logger *slog.Logger) *Renderer {
	return &Renderer{command: strings.Fields(command), logger: logger}
}

// CheckReadiness reports whether the command resolves on PATH.
func (r *Renderer) CheckReadiness(_ context.Context) error {
	if len(r.command) == 0 {
		return ErrNoCommand
	}
	if _, err := exec.LookPath(r.command[0]); err != nil {
		return fmt.Errorf("render command: %w", err)
	}
	return nil
}

// Render writes the array for scanPath to dst. Output goes to a temporary
// file first so an interrupted render never leaves a partial array behind.
func (r *Renderer) Render(ctx context.Context, scanPath string, cfg domain.RenderConfig, dst string) error {
	if len(r.command) == 0 {
		return ErrNoCommand
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode render config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp := tempPath(dst)
	args := append(append([]string{}, r.command[1:]...), scanPath, tmp)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("render %s: %w: %s", filepath.Base(scanPath), err, tail(stderr.String()))
	}
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("render %s: command produced no output", filepath.Base(scanPath))
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename rendered array: %w", err)
	}
	r.logger.Debug("rendered", "scan", filepath.Base(scanPath), "dst", dst)
	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}
	return s
}

// tempPath keeps dst's extension last: X.npy becomes X.tmp.npy.
func tempPath(dst string) string {
	ext := filepath.Ext(dst)
	return strings.TrimSuffix(dst, ext) + ".tmp" + ext
}
