// Package export flattens dataset manifests into annotation tables with
// geographic coordinates, written as Parquet or CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// Row is one annotation. X, Y and R are in image pixels; Radius is meters.
type Row struct {
	Split        string  `parquet:"split"`
	ScanID       int64   `parquet:"scan_id"`
	Filename     string  `parquet:"filename"`
	Station      string  `parquet:"station"`
	AnnotationID int64   `parquet:"annotation_id"`
	TrackID      int64   `parquet:"track_id"`
	FromSunrise  *int64  `parquet:"from_sunrise,optional"`
	X            float64 `parquet:"x"`
	Y            float64 `parquet:"y"`
	R            float64 `parquet:"r"`
	Lon          float64 `parquet:"lon"`
	Lat          float64 `parquet:"lat"`
	Radius       float64 `parquet:"radius"`
	BBoxLeft     int64   `parquet:"bbox_left"`
	BBoxTop      int64   `parquet:"bbox_top"`
	BBoxWidth    int64   `parquet:"bbox_width"`
	BBoxHeight   int64   `parquet:"bbox_height"`
	Annotator    string  `parquet:"annotator"`
	Place        string  `parquet:"place"`
}

var csvHeader = []string{
	"split", "scan_id", "filename", "station", "annotation_id", "track_id", "from_sunrise",
	"x", "y", "r", "lon", "lat", "radius",
	"bbox_left", "bbox_top", "bbox_width", "bbox_height", "annotator", "place",
}

func (r Row) record() []string {
	fromSunrise := ""
	if r.FromSunrise != nil {
		fromSunrise = strconv.FormatInt(*r.FromSunrise, 10)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	i := func(v int64) string { return strconv.FormatInt(v, 10) }
	return []string{
		r.Split, i(r.ScanID), r.Filename, r.Station, i(r.AnnotationID), i(r.TrackID), fromSunrise,
		f(r.X), f(r.Y), f(r.R), f(r.Lon), f(r.Lat), f(r.Radius),
		i(r.BBoxLeft), i(r.BBoxTop), i(r.BBoxWidth), i(r.BBoxHeight), r.Annotator, r.Place,
	}
}

// Exporter turns manifests into rows. A nil geocoder leaves Place empty.
type Exporter struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// New creates an Exporter.
func New(geocoder domain.Geocoder, logger *slog.Logger) *Exporter {
	return &Exporter{geocoder: geocoder, logger: logger}
}

// Rows flattens m in split-name order, then scan order. Annotations on scans
// of stations without known coordinates are skipped and counted.
func (e *Exporter) Rows(ctx context.Context, m domain.Manifest) ([]Row, int, error) {
	cfg := m.Info.ArrayRenderConfig
	if cfg.Dim <= 0 || cfg.RMax <= 0 {
		return nil, 0, fmt.Errorf("manifest render config has no geometry (dim=%d, r_max=%g)", cfg.Dim, cfg.RMax)
	}
	center := cfg.CenterPixel()
	mpp := cfg.MetersPerPixel()

	splits := make([]string, 0, len(m.Scans))
	for name := range m.Scans {
		splits = append(splits, name)
	}
	slices.Sort(splits)

	var (
		rows    []Row
		skipped int
	)
	for _, split := range splits {
		for _, rec := range m.Scans[split] {
			if len(rec.Annotations) == 0 {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, 0, err
			}
			station, err := stationOf(rec.Scan)
			if err != nil {
				e.logger.Warn("skipping annotations of scan", "scan", rec.Scan, "error", err)
				skipped += len(rec.Annotations)
				continue
			}
			for _, a := range rec.Annotations {
				lon, lat := domain.PixelOffsetToLonLat(domain.PixelPoint{X: a.XIm, Y: a.YIm}, center, station, mpp, domain.YAxisGeographic)
				row := Row{
					Split:        split,
					ScanID:       int64(rec.ScanID),
					Filename:     rec.Scan,
					Station:      station.Code,
					AnnotationID: int64(a.AnnotationID),
					TrackID:      int64(a.SequenceID),
					X:            a.XIm,
					Y:            a.YIm,
					R:            a.RIm,
					Lon:          lon,
					Lat:          lat,
					Radius:       a.R,
					Annotator:    a.BBoxAnnotator,
					Place:        domain.LabelLocation(ctx, e.geocoder, lat, lon, e.logger),
				}
				if rec.MinutesFromSunrise != nil {
					v := int64(*rec.MinutesFromSunrise)
					row.FromSunrise = &v
				}
				if len(a.BBox) == 4 {
					row.BBoxLeft, row.BBoxTop = int64(a.BBox[0]), int64(a.BBox[1])
					row.BBoxWidth, row.BBoxHeight = int64(a.BBox[2]), int64(a.BBox[3])
				}
				rows = append(rows, row)
			}
		}
	}
	return rows, skipped, nil
}

func stationOf(scan string) (domain.Station, error) {
	s, err := domain.ParseScan(scan)
	if err != nil {
		return domain.Station{}, err
	}
	return domain.LookupStation(s.Station)
}

// WriteParquet writes rows as a single Parquet file.
func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile picks the format from the extension: ".parquet" or ".csv".
func WriteFile(path string, rows []Row) error {
	var write func(io.Writer, []Row) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		write = WriteParquet
	case ".csv":
		write = WriteCSV
	default:
		return fmt.Errorf("unsupported export format %q (want .parquet or .csv)", filepath.Ext(path))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
