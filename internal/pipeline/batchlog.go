package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BatchLog is a logger scoped to one batch. Records go to the process logger
// and to an append-only file; Close releases the file.
type BatchLog struct {
	Logger *slog.Logger
	RunID  string
	file   *os.File
}

// OpenBatchLog opens (or appends to) the log file at path and returns a
// logger tagged with the batch's list name and a fresh run id. Callers must
// defer Close.
func OpenBatchLog(base *slog.Logger, path, list string) (*BatchLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open batch log: %w", err)
	}

	runID := uuid.NewString()
	fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
	h := fanout{base.Handler(), fileHandler}
	return &BatchLog{
		Logger: slog.New(h).With("list", list, "run_id", runID),
		RunID:  runID,
		file:   f,
	}, nil
}

// Close flushes and closes the log file.
func (b *BatchLog) Close() error {
	if b == nil || b.file == nil {
		return nil
	}
	err := b.file.Close()
	b.file = nil
	return err
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
