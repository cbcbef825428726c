// Package fsstore keeps dataset builds on the local filesystem: the render
// version registries, dataset directories, manifests and annotation exports.
package fsstore

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// RegistryFile records the render config of every array version under a root.
const RegistryFile = "previous_versions.json"

const registryIndent = 4

var (
	// ErrUnrecordedVersion means a version directory exists that the
	// registry does not know about, so conflicts cannot be detected.
	ErrUnrecordedVersion = errors.New("version directory not recorded in " + RegistryFile)

	// ErrVersionConflict means a version is already recorded with a
	// different render config.
	ErrVersionConflict = errors.New("render config differs from the recorded version")

	// ErrDatasetExists means the dataset directory is not empty and
	// overwrite was not requested.
	ErrDatasetExists = errors.New("dataset version already exists")
)

// Store implements pipeline.DatasetStore rooted at a dataset directory.
type Store struct {
	datasetRoot string
	logger      *slog.Logger
}

// New returns a Store that writes datasets under datasetRoot.
func New(datasetRoot string, logger *slog.Logger) *Store {
	return &Store{datasetRoot: datasetRoot, logger: logger}
}

// DatasetDir is where a dataset version lives.
func (s *Store) DatasetDir(version string) string {
	return filepath.Join(s.datasetRoot, "roosts-"+version)
}

// ManifestPath is the manifest file of a dataset version.
func (s *Store) ManifestPath(version string) string {
	return filepath.Join(s.DatasetDir(version), "roosts-"+version+".json")
}

// RegisterVersion checks version against root's registry, records cfg when
// the version is new, and creates the version directory.
func (s *Store) RegisterVersion(root, version string, cfg domain.RenderConfig) (string, error) {
	if version == "" {
		return "", errors.New("array version must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create array root: %w", err)
	}

	registry, err := ReadRegistry(root)
	if err != nil {
		return "", err
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("list array root: %w", err)
	}
	for _, e := range entries {
		if e.Name() == RegistryFile {
			continue
		}
		if _, ok := registry[e.Name()]; !ok {
			return "", fmt.Errorf("%s: %w", filepath.Join(root, e.Name()), ErrUnrecordedVersion)
		}
	}

	if prev, ok := registry[version]; ok {
		if !prev.Equal(cfg) {
			return "", fmt.Errorf("%s %s: %w", root, version, ErrVersionConflict)
		}
	} else {
		registry[version] = cfg
		if err := writeJSON(filepath.Join(root, RegistryFile), registry, registryIndent); err != nil {
			return "", fmt.Errorf("write registry: %w", err)
		}
		s.logger.Info("recorded new array version", "root", root, "version", version)
	}

	dir := filepath.Join(root, version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create version dir: %w", err)
	}
	return dir, nil
}

// ReadRegistry loads root's registry; a missing file is an empty registry.
func ReadRegistry(root string) (map[string]domain.RenderConfig, error) {
	registry := map[string]domain.RenderConfig{}
	raw, err := os.ReadFile(filepath.Join(root, RegistryFile))
	if errors.Is(err, os.ErrNotExist) {
		return registry, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if err := json.Unmarshal(raw, &registry); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Join(root, RegistryFile), err)
	}
	return registry, nil
}

// ReserveDataset creates the dataset directory. Without overwrite it must be
// empty.
func (s *Store) ReserveDataset(version string, overwrite bool) error {
	if version == "" {
		return errors.New("dataset version must not be empty")
	}
	dir := s.DatasetDir(version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	if overwrite {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list dataset dir: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s: %w", dir, ErrDatasetExists)
	}
	return nil
}

// SaveManifest writes m under its dataset version. indent 0 writes compact
// JSON.
func (s *Store) SaveManifest(m domain.Manifest, indent int) (string, error) {
	path := s.ManifestPath(m.Info.DatasetVersion)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}
	if err := writeJSON(path, m, indent); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	s.logger.Info("manifest saved", "path", path, "annotations", m.AnnotationCount())
	return path, nil
}

// LoadManifest reads a manifest written by SaveManifest.
func LoadManifest(path string) (domain.Manifest, error) {
	var m domain.Manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// LoadAnnotations reads a user annotation export. The first row is a header.
func (s *Store) LoadAnnotations(path string) ([]domain.AnnotationRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotations: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	var records []domain.AnnotationRecord
	for line := 1; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if line == 1 {
			continue
		}
		rec, err := domain.ParseAnnotationRecord(row)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, rec)
	}
	s.logger.Debug("annotations loaded", "path", path, "count", len(records))
	return records, nil
}

// Versions lists the recorded versions of root in order.
func Versions(root string) ([]string, error) {
	registry, err := ReadRegistry(root)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(registry))
	for v := range registry {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

func writeJSON(path string, v any, indent int) error {
	var (
		raw []byte
		err error
	)
	if indent > 0 {
		raw, err = json.MarshalIndent(v, "", fmt.Sprintf("%*s", indent, ""))
	} else {
		raw, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
