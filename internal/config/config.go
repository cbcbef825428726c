package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/wsrdata/wsrdata/internal/adapter/s3archive"
)

// Config holds the settings shared by every wsrdata command, populated from
// environment variables. Dataset contents (versions, splits, render configs)
// come from a definition file instead.
type Config struct {
	// Storage layout.
	DataRoot    string
	ScanDir     string
	ScanLogDir  string
	ArrayRoot   string
	DualpolRoot string
	DatasetRoot string

	// Archive access.
	ArchiveBucket   string
	ArchiveRegion   string
	ArchiveEndpoint string
	DownloadTimeout time.Duration

	Workers       int
	RenderCommand string

	// Outcome events; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Optional observability endpoints.
	HTTPAddr       string
	PushgatewayURL string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "2m")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	workers, err := parsePositiveInt("WORKERS", runtime.NumCPU())
	if err != nil {
		return nil, err
	}
	mapboxCacheSize, err := parsePositiveInt("MAPBOX_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	dataRoot := sharedcfg.EnvOrDefault("DATA_ROOT", "static")
	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DataRoot:    dataRoot,
		ScanDir:     sharedcfg.EnvOrDefault("SCAN_DIR", filepath.Join(dataRoot, "scans", "scans")),
		ScanLogDir:  sharedcfg.EnvOrDefault("SCAN_LOG_DIR", filepath.Join(dataRoot, "scans", "scan_logs")),
		ArrayRoot:   sharedcfg.EnvOrDefault("ARRAY_ROOT", filepath.Join(dataRoot, "arrays")),
		DualpolRoot: sharedcfg.EnvOrDefault("DUALPOL_ROOT", filepath.Join(dataRoot, "arrays_for_dualpol")),
		DatasetRoot: sharedcfg.EnvOrDefault("DATASET_ROOT", "datasets"),

		ArchiveBucket:   sharedcfg.EnvOrDefault("ARCHIVE_BUCKET", s3archive.DefaultBucket),
		ArchiveRegion:   sharedcfg.EnvOrDefault("ARCHIVE_REGION", s3archive.DefaultRegion),
		ArchiveEndpoint: os.Getenv("ARCHIVE_ENDPOINT"),
		DownloadTimeout: downloadTimeout,

		Workers:       workers,
		RenderCommand: os.Getenv("RENDER_COMMAND"),

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "wsrdata-scan-outcomes"),

		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: mapboxCacheSize,
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}

	return cfg, nil
}

// EventsEnabled reports whether scan outcomes are published to Kafka.
func (c *Config) EventsEnabled() bool { return len(c.KafkaBrokers) > 0 }

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
