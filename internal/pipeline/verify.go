package pipeline

import (
	"context"
	"log/slog"

	"github.com/wsrdata/wsrdata/internal/volume"
)

// VerifyReport groups the scans of one split by verification outcome.
type VerifyReport struct {
	Checked  int
	Problems []volume.Finding
}

// Verify checks every scan in the lists against the files under scanDir.
func Verify(ctx context.Context, logger *slog.Logger, scanDir string, workers int, scans []string) VerifyReport {
	findings := runJobs(ctx, workers, scans, func(_ context.Context, scan string) volume.Finding {
		return volume.Verify(scanDir, scan)
	})

	report := VerifyReport{Checked: len(findings)}
	for _, f := range findings {
		switch {
		case !f.OK():
			logger.Warn("scan failed verification", "scan", f.Scan, "problem", f.Problem, "detail", f.Detail)
			report.Problems = append(report.Problems, f)
		case f.Detail != "":
			logger.Info("scan verified with note", "scan", f.Scan, "detail", f.Detail)
		}
	}
	logger.Info("verification complete", "checked", report.Checked, "problems", len(report.Problems))
	return report
}
