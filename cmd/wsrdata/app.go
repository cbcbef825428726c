package main

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"slices"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/wsrdata/wsrdata/internal/adapter/fsstore"
	"github.com/wsrdata/wsrdata/internal/adapter/httpadapter"
	kafkaadapter "github.com/wsrdata/wsrdata/internal/adapter/kafka"
	"github.com/wsrdata/wsrdata/internal/adapter/mapbox"
	"github.com/wsrdata/wsrdata/internal/adapter/renderexec"
	"github.com/wsrdata/wsrdata/internal/adapter/s3archive"
	"github.com/wsrdata/wsrdata/internal/config"
	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
	"github.com/wsrdata/wsrdata/internal/pipeline"
)

// app holds the process-wide dependencies of one command invocation.
type app struct {
	command   string
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	status    *httpadapter.RunStatus
	server    *httpadapter.Server
	publisher *kafkaadapter.Publisher
	geocoder  domain.Geocoder
}

func newApp(command string) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat).With("command", command)
	clock := clockwork.NewRealClock()
	a := &app{
		command: command,
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		clock:   clock,
		status:  httpadapter.NewRunStatus(command, clock.Now()),
	}

	if cfg.EventsEnabled() {
		a.publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		logger.Info("scan outcome events enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, a.metrics, logger)
		a.geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, a.metrics)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Debug("mapbox geocoding disabled")
	}
	return a, nil
}

// serve starts the status server when HTTP_ADDR is set.
func (a *app) serve(ready sharedobs.ReadinessChecker) {
	if a.cfg.HTTPAddr == "" {
		return
	}
	a.server = httpadapter.NewServer(a.cfg.HTTPAddr, ready, a.status, a.logger)
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
}

// close releases everything newApp and serve opened and pushes the final
// metrics when a Pushgateway is configured.
func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
		cancel()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka publisher close error", "error", err)
		}
	}
	if a.cfg.PushgatewayURL != "" {
		if err := observability.Push(a.cfg.PushgatewayURL, "wsrdata_"+a.command, a.status.Snapshot().RunID); err != nil {
			a.logger.Error("metrics push failed", "error", err)
		}
	}
}

// events returns the outcome publisher, or nil when events are disabled.
func (a *app) events() pipeline.EventPublisher {
	if a.publisher == nil {
		return nil
	}
	return a.publisher
}

func (a *app) archive() *s3archive.Archive {
	return s3archive.New(s3archive.Config{
		Bucket:   a.cfg.ArchiveBucket,
		Region:   a.cfg.ArchiveRegion,
		Endpoint: a.cfg.ArchiveEndpoint,
		Timeout:  a.cfg.DownloadTimeout,
	}, a.logger)
}

func (a *app) fetcher() *pipeline.Fetcher {
	return pipeline.NewFetcher(a.archive(), a.events(), a.metrics, a.clock, a.cfg.ScanDir, a.cfg.Workers)
}

func (a *app) renderer() *renderexec.Renderer {
	return renderexec.New(a.cfg.RenderCommand, a.logger)
}

func (a *app) store() *fsstore.Store {
	return fsstore.New(a.cfg.DatasetRoot, a.logger)
}

func (a *app) logs() pipeline.LogLayout {
	return pipeline.LogLayout{Root: a.cfg.ScanLogDir}
}

// report publishes counts on /status and in the log.
func (a *app) report(phase, runID string, counts map[string]int) {
	a.status.SetPhase(phase, runID)
	a.status.SetCounts(counts)
	args := make([]any, 0, 2*len(counts)+2)
	args = append(args, "phase", phase)
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		args = append(args, k, counts[k])
	}
	a.logger.Info("finished", args...)
}

func fetchCounts(r pipeline.FetchReport) map[string]int {
	return map[string]int{
		"downloaded":  len(r.Downloaded),
		"not_found":   len(r.NotFound),
		"errored":     len(r.Errored),
		"failed_jobs": len(r.FailedJobs),
	}
}

func renderCounts(r pipeline.RenderReport) map[string]int {
	counts := make(map[string]int)
	for product, scans := range r.Ready {
		counts[product+"_ready"] = len(scans)
	}
	for product, scans := range r.Failed {
		counts[product+"_failed"] = len(scans)
	}
	return counts
}
