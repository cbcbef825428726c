package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AnnotationRecord is one row of a user annotation export: a circle drawn by
// an annotator on a scan, in radar-centred meters.
type AnnotationRecord struct {
	TrackID            int
	Filename           string // as exported, with compression suffix
	SequenceID         int
	Station            string
	MinutesFromSunrise int
	X, Y, R            float64
	Username           string
}

// Scan returns the scan name with any compression suffix removed.
func (r AnnotationRecord) Scan() string { return TrimCompression(r.Filename) }

// Column positions in user_annotations.txt.
const (
	colTrackID     = 0
	colFilename    = 1
	colSequenceID  = 2
	colStation     = 3
	colFromSunrise = 10
	colX           = 11
	colY           = 12
	colR           = 13
	colUsername    = 14

	annotationColumns = 15
)

// ParseAnnotationRecord decodes one CSV row of an annotation export.
func ParseAnnotationRecord(fields []string) (AnnotationRecord, error) {
	if len(fields) < annotationColumns {
		return AnnotationRecord{}, fmt.Errorf("annotation row: want %d columns, got %d", annotationColumns, len(fields))
	}

	var (
		rec AnnotationRecord
		err error
	)
	ints := []struct {
		col int
		dst *int
	}{
		{colTrackID, &rec.TrackID},
		{colSequenceID, &rec.SequenceID},
		{colFromSunrise, &rec.MinutesFromSunrise},
	}
	for _, f := range ints {
		if *f.dst, err = strconv.Atoi(strings.TrimSpace(fields[f.col])); err != nil {
			return AnnotationRecord{}, fmt.Errorf("annotation row column %d: %w", f.col, err)
		}
	}
	floats := []struct {
		col int
		dst *float64
	}{
		{colX, &rec.X},
		{colY, &rec.Y},
		{colR, &rec.R},
	}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(strings.TrimSpace(fields[f.col]), 64); err != nil {
			return AnnotationRecord{}, fmt.Errorf("annotation row column %d: %w", f.col, err)
		}
	}

	rec.Filename = strings.TrimSpace(fields[colFilename])
	rec.Station = strings.TrimSpace(fields[colStation])
	rec.Username = strings.TrimSpace(fields[colUsername])
	if _, err := ParseScan(rec.Scan()); err != nil {
		return AnnotationRecord{}, err
	}
	return rec, nil
}

// ScaleFactorKey names the scale-factor entry for an annotator at a station.
// Some exports already carry the station in the username.
func ScaleFactorKey(username, station string) string {
	suffix := "-" + station
	if strings.HasSuffix(username, suffix) {
		return username
	}
	return username + suffix
}

// Annotation is a roost box as it appears in the dataset manifest.
type Annotation struct {
	AnnotationID      int      `json:"annotation_id"`
	ScanID            int      `json:"scan_id"`
	SequenceID        int      `json:"sequence_id"`
	CategoryID        int      `json:"category_id"`
	X                 float64  `json:"x"`
	Y                 float64  `json:"y"`
	R                 float64  `json:"r"`
	XIm               float64  `json:"x_im"`
	YIm               float64  `json:"y_im"`
	RIm               float64  `json:"r_im"`
	BBox              []int    `json:"bbox"`
	BBoxAnnotator     string   `json:"bbox_annotator"`
	BBoxScalingFactor *float64 `json:"bbox_scaling_factor,omitempty"`
}

// NewAnnotation maps a record into image space for the given rendering.
// Identifiers are assigned by the caller.
func NewAnnotation(rec AnnotationRecord, cfg RenderConfig, categoryID int) Annotation {
	xIm := cfg.ToImage(rec.X)
	yIm := cfg.ToImage(rec.Y)
	rIm := cfg.LengthToImage(rec.R)
	return Annotation{
		SequenceID:    rec.SequenceID,
		CategoryID:    categoryID,
		X:             rec.X,
		Y:             rec.Y,
		R:             rec.R,
		XIm:           xIm,
		YIm:           yIm,
		RIm:           rIm,
		BBox:          CircleToBBox(xIm, yIm, rIm).Slice(),
		BBoxAnnotator: ScaleFactorKey(rec.Username, rec.Station),
	}
}

// Standardize rescales the box from the annotator's habit to the target
// factor and records the annotator factor that was applied.
func (a Annotation) Standardize(annotatorFactor, targetFactor float64) (Annotation, error) {
	b := BBox{Left: a.BBox[0], Top: a.BBox[1], Width: a.BBox[2], Height: a.BBox[3]}
	scaled, err := Rescale(b, annotatorFactor, targetFactor)
	if err != nil {
		return a, err
	}
	a.BBox = scaled.Slice()
	f := annotatorFactor
	a.BBoxScalingFactor = &f
	return a, nil
}
