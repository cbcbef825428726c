package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// ReadScanList reads one scan name per line, ignoring blank lines and
// compression suffixes.
func ReadScanList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scan list: %w", err)
	}
	defer f.Close()

	var scans []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			scans = append(scans, domain.TrimCompression(s))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read scan list %s: %w", path, err)
	}
	return scans, nil
}

// ReadStationDays reads a listfile of "STATION YYYY MM DD" lines.
func ReadStationDays(path string) ([]domain.StationDay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open listfile: %w", err)
	}
	defer f.Close()

	var days []domain.StationDay
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d, err := domain.ParseStationDayLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		days = append(days, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read listfile %s: %w", path, err)
	}
	return days, nil
}

// WriteScanList replaces path with one scan per line. An empty list removes
// any list left by an earlier run.
func WriteScanList(path string, scans []string) error {
	if len(scans) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale list: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create list dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(scans, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write scan list: %w", err)
	}
	return nil
}
