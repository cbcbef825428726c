package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
)

// DatasetStore persists everything a dataset build reads back later.
type DatasetStore interface {
	// RegisterVersion records cfg as the render config of version under
	// root and returns the version's array directory. A different config
	// already recorded for version is an error.
	RegisterVersion(root, version string, cfg domain.RenderConfig) (string, error)

	// ReserveDataset creates the dataset directory, failing when it already
	// holds files and overwrite is false.
	ReserveDataset(version string, overwrite bool) error

	// SaveManifest writes the manifest and returns its path.
	SaveManifest(m domain.Manifest, indent int) (string, error)

	// LoadAnnotations reads a user annotation export.
	LoadAnnotations(path string) ([]domain.AnnotationRecord, error)
}

// LogLayout places per-version batch logs and failure lists under Root.
type LogLayout struct {
	Root string
}

// Batch is the batch log of a dataset version.
func (l LogLayout) Batch(version string) string {
	return filepath.Join(l.Root, "logs", version+".log")
}

// NotFound lists scans missing from the archive.
func (l LogLayout) NotFound(version string) string {
	return filepath.Join(l.Root, "not_s3_logs", version+".log")
}

// Errors lists scans that failed to download for any other reason.
func (l LogLayout) Errors(version string) string {
	return filepath.Join(l.Root, "error_scan_logs", version+".log")
}

// FailedJobs lists station-days whose scans could not be listed.
func (l LogLayout) FailedJobs(name string) string {
	return filepath.Join(l.Root, "failed_job_logs", name+".log")
}

// WriteFetchFailures writes the not-found, errored and failed-job lists of
// a download batch. Empty lists remove stale files.
func (l LogLayout) WriteFetchFailures(name string, r FetchReport) error {
	if err := WriteScanList(l.NotFound(name), r.NotFound); err != nil {
		return err
	}
	if err := WriteScanList(l.Errors(name), r.Errored); err != nil {
		return err
	}
	return WriteScanList(l.FailedJobs(name), r.FailedJobs)
}

// RenderErrors lists scans whose product failed to render.
func (l LogLayout) RenderErrors(version, product string) string {
	return filepath.Join(l.Root, "error_render_logs", version+"_"+product+".log")
}

// PrepareConfig locates the inputs and outputs of a build.
type PrepareConfig struct {
	ScanDir     string
	Logs        LogLayout
	ArrayRoot   string
	DualpolRoot string
	Workers     int
}

// PrepareResult reports what a build did.
type PrepareResult struct {
	ManifestPath string
	Download     FetchReport
	Render       RenderReport
	Assemble     AssembleReport
}

// Preparer runs the full build: check versions, download, render, assemble
// and save.
type Preparer struct {
	fetcher   *Fetcher
	renderer  Renderer
	publisher EventPublisher
	store     DatasetStore
	metrics   *observability.Metrics
	clock     clockwork.Clock
	logger    *slog.Logger
	cfg       PrepareConfig
}

// NewPreparer wires a Preparer. publisher may be nil.
func NewPreparer(fetcher *Fetcher, renderer Renderer, publisher EventPublisher, store DatasetStore, metrics *observability.Metrics, clock clockwork.Clock, logger *slog.Logger, cfg PrepareConfig) *Preparer {
	return &Preparer{
		fetcher:   fetcher,
		renderer:  renderer,
		publisher: publisher,
		store:     store,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// Prepare builds the dataset described by def. Per-scan failures are
// reported in the result; only setup and persistence failures return an
// error.
func (p *Preparer) Prepare(ctx context.Context, def domain.DatasetDefinition) (PrepareResult, error) {
	var res PrepareResult
	b, err := p.setup(def, true)
	if err != nil {
		return res, err
	}

	renderer := p.orchestrator(def, b)
	res.Render = newRenderReport()
	for i, split := range b.splits {
		download, render, err := p.runSplit(ctx, def.DatasetVersion, def.Splits[i].Path, func(batch *BatchLog) (FetchReport, RenderReport) {
			download := p.fetcher.FetchScans(ctx, batch, split.Scans)
			return download, renderer.Render(ctx, batch, download.Downloaded, def.OverwriteArray)
		})
		if err != nil {
			return res, err
		}
		res.Download.Merge(download)
		res.Render.merge(render)
	}

	if err := p.writeFailureLists(def.DatasetVersion, res); err != nil {
		return res, err
	}
	return res, p.assemble(def, b, &res)
}

// Render renders the split scans already on disk without downloading or
// assembling. Scans missing locally are reported as render failures.
func (p *Preparer) Render(ctx context.Context, def domain.DatasetDefinition) (RenderReport, error) {
	b, err := p.setup(def, false)
	if err != nil {
		return RenderReport{}, err
	}

	renderer := p.orchestrator(def, b)
	report := newRenderReport()
	for i, split := range b.splits {
		_, render, err := p.runSplit(ctx, def.DatasetVersion, def.Splits[i].Path, func(batch *BatchLog) (FetchReport, RenderReport) {
			return FetchReport{}, renderer.Render(ctx, batch, split.Scans, def.OverwriteArray)
		})
		if err != nil {
			return report, err
		}
		report.merge(render)
	}
	return report, p.writeRenderFailures(def.DatasetVersion, report)
}

// Assemble builds and saves the manifest from arrays rendered earlier.
func (p *Preparer) Assemble(def domain.DatasetDefinition) (PrepareResult, error) {
	var res PrepareResult
	b, err := p.setup(def, true)
	if err != nil {
		return res, err
	}
	return res, p.assemble(def, b, &res)
}

// build holds what setup resolved for one definition.
type build struct {
	splits     []SplitScans
	arrayDir   string
	dualpolDir string
}

// setup checks the definition against earlier builds and reads its splits.
func (p *Preparer) setup(def domain.DatasetDefinition, reserve bool) (build, error) {
	var b build
	if reserve {
		if err := p.store.ReserveDataset(def.DatasetVersion, def.Overwrite); err != nil {
			return b, err
		}
	}
	var err error
	if b.arrayDir, err = p.store.RegisterVersion(p.cfg.ArrayRoot, def.ArrayVersion, def.Array); err != nil {
		return b, fmt.Errorf("array version: %w", err)
	}
	if b.dualpolDir, err = p.store.RegisterVersion(p.cfg.DualpolRoot, def.DualpolVersion, def.Dualpol); err != nil {
		return b, fmt.Errorf("dualpol version: %w", err)
	}
	b.splits, err = ReadSplits(def)
	return b, err
}

func (p *Preparer) orchestrator(def domain.DatasetDefinition, b build) *RenderOrchestrator {
	return NewRenderOrchestrator(p.renderer, p.publisher, p.metrics, p.clock, p.cfg.ScanDir, p.cfg.Workers,
		ArrayProduct(b.arrayDir, def.Array),
		DualpolProduct(b.dualpolDir, def.Dualpol),
	)
}

// runSplit runs one split under its own batch log.
func (p *Preparer) runSplit(ctx context.Context, version, listPath string, fn func(*BatchLog) (FetchReport, RenderReport)) (FetchReport, RenderReport, error) {
	if err := ctx.Err(); err != nil {
		return FetchReport{}, RenderReport{}, err
	}
	batch, err := OpenBatchLog(p.logger, p.cfg.Logs.Batch(version), listPath)
	if err != nil {
		return FetchReport{}, RenderReport{}, err
	}
	defer batch.Close()

	download, render := fn(batch)
	return download, render, nil
}

func (p *Preparer) assemble(def domain.DatasetDefinition, b build, res *PrepareResult) error {
	var records []domain.AnnotationRecord
	if def.HasAnnotations() {
		var err error
		if records, err = p.store.LoadAnnotations(def.AnnotationPath); err != nil {
			return err
		}
	}

	manifest, report, err := NewAssembler(p.clock, p.metrics, p.logger).Assemble(def, b.splits, records, b.arrayDir, b.dualpolDir)
	if err != nil {
		return err
	}
	res.Assemble = report
	if len(report.UnknownFactors) > 0 {
		p.logger.Warn("unknown bbox scaling factors", "pairs", report.UnknownFactors)
	}

	if res.ManifestPath, err = p.store.SaveManifest(manifest, def.PrettyPrintIndent); err != nil {
		return err
	}
	p.logger.Info("dataset saved", "path", res.ManifestPath)
	return nil
}

func (p *Preparer) writeFailureLists(version string, res PrepareResult) error {
	if err := p.cfg.Logs.WriteFetchFailures(version, res.Download); err != nil {
		return err
	}
	return p.writeRenderFailures(version, res.Render)
}

func (p *Preparer) writeRenderFailures(version string, r RenderReport) error {
	for _, product := range []string{"array", "dualpol"} {
		if err := WriteScanList(p.cfg.Logs.RenderErrors(version, product), r.Failed[product]); err != nil {
			return err
		}
	}
	return nil
}

// ReadSplits reads every split list of def, in definition order.
func ReadSplits(def domain.DatasetDefinition) ([]SplitScans, error) {
	splits := make([]SplitScans, 0, len(def.Splits))
	for _, s := range def.Splits {
		scans, err := ReadScanList(s.Path)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", s.Name, err)
		}
		splits = append(splits, SplitScans{Name: s.Name, Scans: scans})
	}
	return splits, nil
}
