package domain

// BBoxModeXYWH marks boxes stored as [left, top, width, height].
const BBoxModeXYWH = "XYWH"

// License is a data license referenced by scan records.
type License struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Category labels annotations.
type Category struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Manifest is the dataset document written to roosts-<version>.json.
type Manifest struct {
	Info    Info                    `json:"info"`
	License []License               `json:"license"`
	Scans   map[string][]ScanRecord `json:"scans"`
}

// Info describes how the dataset was produced.
type Info struct {
	Description       string `json:"description"`
	Comments          string `json:"comments"`
	URL               string `json:"url"`
	DatasetVersion    string `json:"dataset_version"`
	SplitVersion      string `json:"split_version"`
	AnnotationVersion string `json:"annotation_version"`
	UserModelVersion  string `json:"user_model_version"`
	DateCreated       string `json:"date_created"`

	ArrayVersion        string                    `json:"array_version"`
	ArrayChannelIndices map[string]map[string]int `json:"array_channel_indices"`
	ArrayShape          [3]int                    `json:"array_shape"`
	ArrayRenderConfig   RenderConfig              `json:"array_render_config"`

	DualpolVersion        string                    `json:"dualpol_version"`
	DualpolChannelIndices map[string]map[string]int `json:"dualpol_channel_indices"`
	DualpolShape          [3]int                    `json:"dualpol_shape"`
	DualpolRenderConfig   RenderConfig              `json:"dualpol_render_config"`

	Categories         []string           `json:"categories"`
	BBoxMode           string             `json:"bbox_mode"`
	BBoxScalingFactors map[string]float64 `json:"bbox_scaling_factors"`
	BBoxTargetFactor   *float64           `json:"bbox_target_factor,omitempty"`
}

// ScanRecord is one scan in a split. Array paths are absolute.
type ScanRecord struct {
	ScanID             int          `json:"scan_id"`
	Scan               string       `json:"scan"`
	MinutesFromSunrise *int         `json:"minutes_from_sunrise"`
	ArrayPath          string       `json:"array_path"`
	ArrayLicenseID     int          `json:"array_license_id"`
	DualpolPath        string       `json:"dualpol_path"`
	DualpolLicenseID   int          `json:"dualpol_license_id"`
	Annotations        []Annotation `json:"annotations"`
}

// AnnotationCount sums annotations across every split.
func (m Manifest) AnnotationCount() int {
	n := 0
	for _, recs := range m.Scans {
		for _, r := range recs {
			n += len(r.Annotations)
		}
	}
	return n
}
