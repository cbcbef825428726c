package visualize

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// ErrScanNotInManifest is returned for a requested scan the manifest lacks.
var ErrScanNotInManifest = errors.New("scan not in manifest")

// Report lists what a visualization run wrote and what it could not draw.
type Report struct {
	Written []string
	Failed  map[string]error
}

// Visualizer writes one PNG per scan under <out>/<group>/<scan>.png.
type Visualizer struct {
	panels   []Panel
	colormap *Colormap
	logger   *slog.Logger
}

// New creates a Visualizer drawing DefaultPanels with the jet colormap.
func New(logger *slog.Logger) *Visualizer {
	return &Visualizer{panels: DefaultPanels, colormap: Jet(), logger: logger}
}

// Run draws every scan of every group. Groups are usually scan lists named
// after an annotator-station pair, or the manifest's splits.
func (v *Visualizer) Run(ctx context.Context, m domain.Manifest, groups map[string][]string, outDir string) Report {
	index := map[string]domain.ScanRecord{}
	for _, recs := range m.Scans {
		for _, r := range recs {
			index[r.Scan] = r
		}
	}

	names := make([]string, 0, len(groups))
	for g := range groups {
		names = append(names, g)
	}
	slices.Sort(names)

	report := Report{Failed: map[string]error{}}
	for _, group := range names {
		for i, scan := range groups[group] {
			if ctx.Err() != nil {
				return report
			}
			scan = domain.TrimCompression(scan)
			rec, ok := index[scan]
			if !ok {
				report.Failed[scan] = ErrScanNotInManifest
				continue
			}
			dst := filepath.Join(outDir, group, scan+".png")
			if err := v.drawScan(m.Info, rec, dst); err != nil {
				v.logger.Warn("visualization failed", "scan", scan, "error", err)
				report.Failed[scan] = err
				continue
			}
			v.logger.Debug("visualized", "group", group, "n", i+1, "scan", scan)
			report.Written = append(report.Written, dst)
		}
	}
	return report
}

// Splits groups every scan of the manifest by split.
func Splits(m domain.Manifest) map[string][]string {
	out := make(map[string][]string, len(m.Scans))
	for split, recs := range m.Scans {
		for _, r := range recs {
			out[split] = append(out[split], r.Scan)
		}
	}
	return out
}

func (v *Visualizer) drawScan(info domain.Info, rec domain.ScanRecord, dst string) error {
	arr, err := LoadArray(rec.ArrayPath, info.ArrayShape)
	if err != nil {
		return err
	}
	boxes := make([][]int, 0, len(rec.Annotations))
	for _, a := range rec.Annotations {
		boxes = append(boxes, a.BBox)
	}

	img, stats, err := Compose(arr, info.ArrayChannelIndices, v.panels, boxes, v.colormap)
	if err != nil {
		return err
	}
	for _, s := range stats {
		v.logger.Debug("panel stats", "scan", rec.Scan, "panel", s.Title,
			"mean", s.Mean, "stddev", s.StdDev, "min", s.Min, "max", s.Max, "missing", s.Missing)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
