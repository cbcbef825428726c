package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
)

// Renderer decodes a scan volume and writes one rendered array.
type Renderer interface {
	Render(ctx context.Context, scanPath string, cfg domain.RenderConfig, dst string) error
}

// Product is one kind of rendered array and where it is stored.
type Product struct {
	Name   string
	Dir    string
	Config domain.RenderConfig
	File   func(scan string) string
}

// ArrayProduct renders the primary channels into dir.
func ArrayProduct(dir string, cfg domain.RenderConfig) Product {
	return Product{Name: "array", Dir: dir, Config: cfg, File: domain.ArrayFile}
}

// DualpolProduct renders the dual-polarization channels into dir.
func DualpolProduct(dir string, cfg domain.RenderConfig) Product {
	return Product{Name: "dualpol", Dir: dir, Config: cfg, File: domain.DualpolFile}
}

// Path is where the product for scan is stored.
func (p Product) Path(scan string) string {
	return filepath.Join(p.Dir, p.File(scan))
}

// RenderReport lists, per product, the scans that rendered (or were already
// present) and those that failed.
type RenderReport struct {
	Ready  map[string][]string
	Failed map[string][]string
}

func newRenderReport() RenderReport {
	return RenderReport{Ready: map[string][]string{}, Failed: map[string][]string{}}
}

func (r *RenderReport) merge(o RenderReport) {
	for k, v := range o.Ready {
		r.Ready[k] = append(r.Ready[k], v...)
	}
	for k, v := range o.Failed {
		r.Failed[k] = append(r.Failed[k], v...)
	}
}

type renderResult struct {
	product string
	outcome domain.Outcome
}

// RenderOrchestrator renders every product for each downloaded scan.
type RenderOrchestrator struct {
	renderer  Renderer
	publisher EventPublisher
	metrics   *observability.Metrics
	clock     clockwork.Clock
	scanDir   string
	workers   int
	products  []Product
}

// NewRenderOrchestrator creates an orchestrator for the given products.
// publisher may be nil.
func NewRenderOrchestrator(renderer Renderer, publisher EventPublisher, metrics *observability.Metrics, clock clockwork.Clock, scanDir string, workers int, products ...Product) *RenderOrchestrator {
	return &RenderOrchestrator{
		renderer:  renderer,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		scanDir:   scanDir,
		workers:   workers,
		products:  products,
	}
}

// Render renders the scans, one job per scan. Existing outputs are kept
// unless overwrite is set.
func (o *RenderOrchestrator) Render(ctx context.Context, batch *BatchLog, scans []string, overwrite bool) RenderReport {
	batch.Logger.Info("start rendering", "scans", len(scans), "overwrite", overwrite)

	results := runJobs(ctx, o.workers, scans, func(ctx context.Context, name string) []renderResult {
		o.metrics.JobsRunning.Inc()
		defer o.metrics.JobsRunning.Dec()
		out := make([]renderResult, 0, len(o.products))
		for _, p := range o.products {
			out = append(out, o.renderOne(ctx, batch, name, p, overwrite))
		}
		return out
	})

	report := newRenderReport()
	for i, rs := range results {
		for _, r := range rs {
			if r.outcome == domain.OutcomeError {
				report.Failed[r.product] = append(report.Failed[r.product], scans[i])
			} else {
				report.Ready[r.product] = append(report.Ready[r.product], scans[i])
			}
		}
	}

	attrs := []any{}
	for _, p := range o.products {
		attrs = append(attrs, p.Name+"_ready", len(report.Ready[p.Name]), p.Name+"_failed", len(report.Failed[p.Name]))
	}
	batch.Logger.Info("finished rendering", attrs...)
	return report
}

func (o *RenderOrchestrator) renderOne(ctx context.Context, batch *BatchLog, name string, p Product, overwrite bool) renderResult {
	res := renderResult{product: p.Name}
	var err error
	defer func() {
		o.metrics.ScanOutcomes.WithLabelValues(string(domain.StageRender), string(res.outcome)).Inc()
		o.publish(ctx, batch, name, p.Name, res.outcome, err)
	}()

	dst := p.Path(name)
	if !overwrite {
		if _, statErr := os.Stat(dst); statErr == nil {
			res.outcome = domain.OutcomeSkipped
			return res
		}
	}

	scan, err := domain.ParseScan(name)
	if err != nil {
		batch.Logger.Error("invalid scan name", "scan", name, "error", err)
		res.outcome = domain.OutcomeError
		return res
	}
	src := scan.LocalPath(o.scanDir)
	if _, err = os.Stat(src); err != nil {
		err = fmt.Errorf("scan volume missing: %w", err)
		batch.Logger.Error("cannot render", "scan", name, "product", p.Name, "error", err)
		res.outcome = domain.OutcomeError
		return res
	}
	if err = os.MkdirAll(p.Dir, 0o755); err != nil {
		batch.Logger.Error("create array dir", "dir", p.Dir, "error", err)
		res.outcome = domain.OutcomeError
		return res
	}

	start := o.clock.Now()
	err = o.renderer.Render(ctx, src, p.Config, dst)
	o.metrics.RenderDuration.Observe(o.clock.Since(start).Seconds())
	if err != nil {
		batch.Logger.Error("render failed", "scan", name, "product", p.Name, "error", err)
		res.outcome = domain.OutcomeError
		return res
	}
	res.outcome = domain.OutcomeRendered
	return res
}

func (o *RenderOrchestrator) publish(ctx context.Context, batch *BatchLog, scan, product string, outcome domain.Outcome, err error) {
	if o.publisher == nil {
		return
	}
	ev := domain.ScanEvent{
		ID:         uuid.NewString(),
		RunID:      batch.RunID,
		Scan:       scan,
		Stage:      domain.StageRender,
		Outcome:    outcome,
		Product:    product,
		OccurredAt: o.clock.Now().UTC(),
	}
	if err != nil && outcome == domain.OutcomeError {
		ev.Error = err.Error()
	}
	if pubErr := o.publisher.Publish(ctx, ev); pubErr != nil {
		batch.Logger.Warn("publish scan event", "scan", scan, "error", pubErr)
	}
}
