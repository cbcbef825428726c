package pipeline

import (
	"context"
	"errors"
	"os"
	"path"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
)

// Archive lists and fetches Level II volumes.
type Archive interface {
	// List returns the object keys under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Download writes the object at key to dst. A missing object yields an
	// error wrapping domain.ErrNotFoundUpstream.
	Download(ctx context.Context, key, dst string) error
}

// EventPublisher forwards per-scan outcomes. Implementations must be safe
// for concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.ScanEvent) error
}

// FetchReport partitions the scans of one batch. Every requested scan lands
// in exactly one of the three scan lists.
type FetchReport struct {
	Downloaded []string // fetched now or already on disk
	NotFound   []string // absent from the archive
	Errored    []string // anything else, including malformed names
	FailedJobs []string // station-days whose scans could not be listed
}

// Total is the number of scans accounted for.
func (r FetchReport) Total() int {
	return len(r.Downloaded) + len(r.NotFound) + len(r.Errored)
}

// Merge appends o to r.
func (r *FetchReport) Merge(o FetchReport) {
	r.Downloaded = append(r.Downloaded, o.Downloaded...)
	r.NotFound = append(r.NotFound, o.NotFound...)
	r.Errored = append(r.Errored, o.Errored...)
	r.FailedJobs = append(r.FailedJobs, o.FailedJobs...)
}

func (r *FetchReport) add(res scanResult) {
	switch res.outcome {
	case domain.OutcomeDownloaded, domain.OutcomeSkipped:
		r.Downloaded = append(r.Downloaded, res.scan)
	case domain.OutcomeNotFound:
		r.NotFound = append(r.NotFound, res.scan)
	default:
		r.Errored = append(r.Errored, res.scan)
	}
}

type scanResult struct {
	scan    string
	outcome domain.Outcome
	err     error
}

// Fetcher downloads scans into a local tree that mirrors the archive.
type Fetcher struct {
	archive   Archive
	publisher EventPublisher
	metrics   *observability.Metrics
	clock     clockwork.Clock
	scanDir   string
	workers   int
	ready     atomic.Bool
}

// NewFetcher creates a Fetcher. publisher may be nil.
func NewFetcher(archive Archive, publisher EventPublisher, metrics *observability.Metrics, clock clockwork.Clock, scanDir string, workers int) *Fetcher {
	return &Fetcher{
		archive:   archive,
		publisher: publisher,
		metrics:   metrics,
		clock:     clock,
		scanDir:   scanDir,
		workers:   workers,
	}
}

// CheckReadiness returns nil once a batch has completed.
func (f *Fetcher) CheckReadiness(_ context.Context) error {
	if !f.ready.Load() {
		return errors.New("no download batch has completed yet")
	}
	return nil
}

// FetchScans downloads an explicit list of scans, one job per scan.
// Repeated names are fetched and reported once.
func (f *Fetcher) FetchScans(ctx context.Context, batch *BatchLog, scans []string) FetchReport {
	requested := len(scans)
	scans = uniqueBy(scans, domain.TrimCompression)
	batch.Logger.Info("start downloading", "scans", len(scans), "duplicates", requested-len(scans))

	results := runJobs(ctx, f.workers, scans, func(ctx context.Context, name string) scanResult {
		f.metrics.JobsRunning.Inc()
		defer f.metrics.JobsRunning.Dec()
		start := f.clock.Now()
		res := f.fetchOne(ctx, batch, name)
		f.metrics.JobDuration.Observe(f.clock.Since(start).Seconds())
		return res
	})

	var report FetchReport
	for _, res := range results {
		report.add(res)
	}
	f.finish(batch, report)
	return report
}

// FetchDays downloads every scan inside each station-day's roost window,
// one job per station-day.
func (f *Fetcher) FetchDays(ctx context.Context, batch *BatchLog, days []domain.StationDay) FetchReport {
	days = uniqueBy(days, domain.StationDay.String)
	batch.Logger.Info("start downloading", "station_days", len(days))

	reports := runJobs(ctx, f.workers, days, func(ctx context.Context, day domain.StationDay) FetchReport {
		f.metrics.JobsRunning.Inc()
		defer f.metrics.JobsRunning.Dec()
		start := f.clock.Now()
		defer func() { f.metrics.JobDuration.Observe(f.clock.Since(start).Seconds()) }()

		scans, err := f.listWindow(ctx, day)
		if err != nil {
			batch.Logger.Error("list station day", "job", day.String(), "error", err)
			return FetchReport{FailedJobs: []string{day.String()}}
		}
		batch.Logger.Debug("scans in window", "job", day.String(), "count", len(scans))

		var r FetchReport
		for _, name := range scans {
			r.add(f.fetchOne(ctx, batch, name))
		}
		return r
	})

	var report FetchReport
	for _, r := range reports {
		report.Merge(r)
	}
	f.finish(batch, report)
	return report
}

// listWindow returns the scans of a station-day that fall inside its window.
func (f *Fetcher) listWindow(ctx context.Context, day domain.StationDay) ([]string, error) {
	station, err := domain.LookupStation(day.Station)
	if err != nil {
		return nil, err
	}
	window, err := domain.ScanWindow(station, day.Date)
	if err != nil {
		return nil, err
	}

	var scans []string
	for _, d := range window.Days() {
		keys, err := f.archive.List(ctx, domain.DayPrefix(station.Code, d))
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			// Non-volume objects such as *_MDM files fail to parse.
			s, err := domain.ParseScan(path.Base(key))
			if err != nil || s.Station != station.Code || !window.Contains(s.Time) {
				continue
			}
			scans = append(scans, s.Name)
		}
	}
	slices.Sort(scans)
	return slices.Compact(scans), nil
}

func (f *Fetcher) fetchOne(ctx context.Context, batch *BatchLog, name string) scanResult {
	res := scanResult{scan: name}
	defer func() {
		f.metrics.ScanOutcomes.WithLabelValues(string(domain.StageDownload), string(res.outcome)).Inc()
		f.publish(ctx, batch, res)
	}()

	scan, err := domain.ParseScan(name)
	if err != nil {
		batch.Logger.Error("invalid scan name", "scan", name, "error", err)
		res.outcome, res.err = domain.OutcomeError, err
		return res
	}

	dst := scan.LocalPath(f.scanDir)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		batch.Logger.Debug("scan already downloaded", "scan", name)
		res.outcome = domain.OutcomeSkipped
		return res
	}

	key := scan.Key()
	batch.Logger.Info("downloading scan", "scan", name, "key", key)
	start := f.clock.Now()
	err = f.archive.Download(ctx, key, dst)
	f.metrics.DownloadDuration.Observe(f.clock.Since(start).Seconds())

	switch {
	case err == nil:
		res.outcome = domain.OutcomeDownloaded
	case errors.Is(err, domain.ErrNotFoundUpstream):
		batch.Logger.Error("scan not found in archive", "scan", name, "key", key)
		res.outcome, res.err = domain.OutcomeNotFound, err
	default:
		batch.Logger.Error("download failed", "scan", name, "key", key, "error", err)
		res.outcome, res.err = domain.OutcomeError, err
	}
	return res
}

func (f *Fetcher) publish(ctx context.Context, batch *BatchLog, res scanResult) {
	if f.publisher == nil {
		return
	}
	ev := domain.ScanEvent{
		ID:         uuid.NewString(),
		RunID:      batch.RunID,
		Scan:       res.scan,
		Stage:      domain.StageDownload,
		Outcome:    res.outcome,
		OccurredAt: f.clock.Now().UTC(),
	}
	if res.err != nil {
		ev.Error = res.err.Error()
	}
	if err := f.publisher.Publish(ctx, ev); err != nil {
		batch.Logger.Warn("publish scan event", "scan", res.scan, "error", err)
	}
}

func (f *Fetcher) finish(batch *BatchLog, r FetchReport) {
	f.ready.Store(true)
	batch.Logger.Info("finished downloading",
		"downloaded", len(r.Downloaded),
		"not_found", len(r.NotFound),
		"errored", len(r.Errored),
		"failed_jobs", len(r.FailedJobs),
	)
}
