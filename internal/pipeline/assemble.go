package pipeline

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"

	"github.com/jonboulle/clockwork"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/observability"
)

// SplitScans is the ordered scan list of one split.
type SplitScans struct {
	Name  string
	Scans []string
}

// AssembleReport summarises annotation attachment.
type AssembleReport struct {
	Annotations    int
	UnknownFactors []string // annotator-station pairs with no scale factor, sorted
	Unattached     int      // records whose scan is in no split
}

// Assembler joins split lists, array locations and annotations into a manifest.
type Assembler struct {
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAssembler creates an Assembler. The clock stamps date_created when the
// definition leaves it empty.
func NewAssembler(clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Assembler {
	return &Assembler{clock: clock, metrics: metrics, logger: logger}
}

// Assemble builds the manifest. scan_id and annotation_id count from zero
// within each split; annotations attach to every split record of their scan.
func (a *Assembler) Assemble(def domain.DatasetDefinition, splits []SplitScans, records []domain.AnnotationRecord, arrayDir, dualpolDir string) (domain.Manifest, AssembleReport, error) {
	var report AssembleReport

	arrayDir, err := filepath.Abs(arrayDir)
	if err != nil {
		return domain.Manifest{}, report, fmt.Errorf("resolve array dir: %w", err)
	}
	dualpolDir, err = filepath.Abs(dualpolDir)
	if err != nil {
		return domain.Manifest{}, report, fmt.Errorf("resolve dualpol dir: %w", err)
	}

	byScan := make(map[string][]domain.AnnotationRecord)
	minutes := make(map[string]int)
	if def.HasAnnotations() {
		for _, r := range records {
			s := r.Scan()
			byScan[s] = append(byScan[s], r)
			minutes[s] = r.MinutesFromSunrise
		}
	}

	m := domain.Manifest{
		Info:    a.info(def),
		License: def.Licenses,
		Scans:   make(map[string][]domain.ScanRecord, len(splits)),
	}

	unknown := make(map[string]bool)
	used := make(map[string]bool)
	for _, split := range splits {
		out := make([]domain.ScanRecord, 0, len(split.Scans))
		annotationID := 0
		for scanID, scan := range split.Scans {
			rec := domain.ScanRecord{
				ScanID:           scanID,
				Scan:             scan,
				ArrayPath:        filepath.Join(arrayDir, domain.ArrayFile(scan)),
				ArrayLicenseID:   def.DefaultLicenseID,
				DualpolPath:      filepath.Join(dualpolDir, domain.DualpolFile(scan)),
				DualpolLicenseID: def.DefaultLicenseID,
				Annotations:      []domain.Annotation{},
			}
			if mfs, ok := minutes[scan]; ok {
				rec.MinutesFromSunrise = &mfs
			}

			for _, r := range byScan[scan] {
				used[scan] = true
				ann := domain.NewAnnotation(r, def.Array, def.DefaultCategoryID)
				ann.AnnotationID = annotationID
				ann.ScanID = scanID
				annotationID++

				factor, ok := def.ScaleFactors[ann.BBoxAnnotator]
				switch {
				case !ok:
					unknown[ann.BBoxAnnotator] = true
					a.metrics.UnknownScaleFactors.Inc()
					a.logger.Warn("annotation involves unknown annotator-station pair",
						"split", split.Name, "scan_id", scanID, "annotation_id", ann.AnnotationID,
						"annotator", ann.BBoxAnnotator)
				case def.ScaleBoxes:
					if ann, err = ann.Standardize(factor, def.TargetFactor); err != nil {
						return domain.Manifest{}, report, fmt.Errorf("standardize annotation %d of %s: %w", ann.AnnotationID, scan, err)
					}
				}
				rec.Annotations = append(rec.Annotations, ann)
			}
			report.Annotations += len(rec.Annotations)
			out = append(out, rec)
		}
		m.Scans[split.Name] = out
	}

	for s := range byScan {
		if !used[s] {
			report.Unattached += len(byScan[s])
		}
	}
	for k := range unknown {
		report.UnknownFactors = append(report.UnknownFactors, k)
	}
	slices.Sort(report.UnknownFactors)

	a.metrics.AnnotationsAttached.Add(float64(report.Annotations))
	a.logger.Info("assembled dataset",
		"dataset_version", def.DatasetVersion,
		"splits", len(splits),
		"annotations", report.Annotations,
		"unattached", report.Unattached,
		"unknown_factors", len(report.UnknownFactors),
	)
	return m, report, nil
}

func (a *Assembler) info(def domain.DatasetDefinition) domain.Info {
	created := def.DateCreated
	if created == "" {
		created = a.clock.Now().UTC().Format("2006/01/02")
	}
	info := domain.Info{
		Description:           def.Description,
		Comments:              def.Comments,
		URL:                   def.URL,
		DatasetVersion:        def.DatasetVersion,
		SplitVersion:          def.SplitVersion,
		AnnotationVersion:     def.AnnotationVersion,
		UserModelVersion:      def.UserModelVersion,
		DateCreated:           created,
		ArrayVersion:          def.ArrayVersion,
		ArrayChannelIndices:   def.Array.ChannelIndices(),
		ArrayShape:            def.Array.Shape(),
		ArrayRenderConfig:     def.Array,
		DualpolVersion:        def.DualpolVersion,
		DualpolChannelIndices: def.Dualpol.ChannelIndices(),
		DualpolShape:          def.Dualpol.Shape(),
		DualpolRenderConfig:   def.Dualpol,
		Categories:            def.Categories,
		BBoxMode:              domain.BBoxModeXYWH,
		BBoxScalingFactors:    def.ScaleFactors,
	}
	if def.ScaleBoxes {
		target := def.TargetFactor
		info.BBoxTargetFactor = &target
	}
	return info
}
