package domain

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Split names one scan list of a dataset.
type Split struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"` // text file, one scan name per line
}

// DatasetDefinition is everything needed to build one dataset version.
type DatasetDefinition struct {
	Description       string    `yaml:"description"`
	Comments          string    `yaml:"comments"`
	URL               string    `yaml:"url"`
	DatasetVersion    string    `yaml:"dataset_version"`
	SplitVersion      string    `yaml:"split_version"`
	AnnotationVersion string    `yaml:"annotation_version"` // empty for a dataset without annotations
	UserModelVersion  string    `yaml:"user_model_version"`
	DateCreated       string    `yaml:"date_created"` // empty uses the build date
	Licenses          []License `yaml:"licenses"`
	DefaultLicenseID  int       `yaml:"default_license_id"`
	Categories        []string  `yaml:"categories"`
	DefaultCategoryID int       `yaml:"default_category_id"`
	Overwrite         bool      `yaml:"overwrite"`
	PrettyPrintIndent int       `yaml:"pretty_print_indent"` // 0 writes compact JSON

	Splits         []Split `yaml:"splits"`
	AnnotationPath string  `yaml:"annotation_path"` // user_annotations.txt

	ArrayVersion   string       `yaml:"array_version"`
	Array          RenderConfig `yaml:"array"`
	DualpolVersion string       `yaml:"dualpol_version"`
	Dualpol        RenderConfig `yaml:"dualpol"`
	OverwriteArray bool         `yaml:"overwrite_arrays"`

	ScaleFactors map[string]float64 `yaml:"bbox_scaling_factors"`
	ScaleBoxes   bool               `yaml:"scale_boxes"`
	TargetFactor float64            `yaml:"bbox_target_factor"`
}

// defaultScaleFactors were fitted per annotator-station pair by EM against
// Dan Sheldon's boxes (user model v1.0.0_hardEM200000).
var defaultScaleFactors = map[string]float64{
	"Ftian-KOKX":          0.7827008296465084,
	"William Curran-KDOX": 0.6671858060703622,
	"andrew-KAMX":         0.8238429277541144,
	"andrew-KHGX":         0.8021155634196264,
	"andrew-KJAX":         0.9397206576582352,
	"andrew-KLCH":         0.7981654079788019,
	"andrew-KLIX":         1.003359702917803,
	"andrew-KMLB":         0.8846939182400024,
	"andrew-KTBW":         1.0745160463520484,
	"andrew-KTLH":         0.8121429842343971,
	"anon-KDOX":           0.6393409410259764,
	"anon-KLIX":           0.8789372720576193,
	"anon-KTBW":           0.8777182885471609,
	"jafer1-KDOX":         0.643700604491143,
	"jafermjj-KDOX":       0.629814055371781,
	"jberger1-KAMX":       1.0116521039423771,
	"jberger1-KLIX":       0.9350564477085113,
	"jberger1-KMLB":       1.01208151592683,
	"jberger1-KTBW":       1.0710975633513655,
	"jpodrat-KLIX":        1.0258838999961304,
	"sheldon-KAMX":        1.0190194757755286,
	"sheldon-KDOX":        0.6469252517936639,
	"sheldon-KLIX":        0.7086575697533594,
	"sheldon-KMLB":        0.8441916918113227,
	"sheldon-KOKX":        0.6049163038774339,
	"sheldon-KRTX":        0.5936236006148872,
	"sheldon-KTBW":        0.7830289430054851,
}

// DefaultScaleFactors returns a copy of the v1.0.0 user-model factors.
func DefaultScaleFactors() map[string]float64 { return maps.Clone(defaultScaleFactors) }

// DefaultLicenses is Apache 2.0 followed by the COCO licenses.
func DefaultLicenses() []License {
	return []License{
		{ID: 0, Name: "Apache License 2.0", URL: "http://www.apache.org/licenses/"},
		{ID: 1, Name: "Attribution-NonCommercial-ShareAlike License", URL: "http://creativecommons.org/licenses/by-nc-sa/2.0/"},
		{ID: 2, Name: "Attribution-NonCommercial License", URL: "http://creativecommons.org/licenses/by-nc/2.0/"},
		{ID: 3, Name: "Attribution-NonCommercial-NoDerivs License", URL: "http://creativecommons.org/licenses/by-nc-nd/2.0/"},
		{ID: 4, Name: "Attribution License", URL: "http://creativecommons.org/licenses/by/2.0/"},
		{ID: 5, Name: "Attribution-ShareAlike License", URL: "http://creativecommons.org/licenses/by-sa/2.0/"},
		{ID: 6, Name: "Attribution-NoDerivs License", URL: "http://creativecommons.org/licenses/by-nd/2.0/"},
		{ID: 7, Name: "No known copyright restrictions", URL: "http://flickr.com/commons/usage/"},
		{ID: 8, Name: "United States Government Work", URL: "http://www.usa.gov/copyright.shtml"},
	}
}

// DefaultDefinition returns the v1.0.0 roost dataset definition with split
// files under splitRoot/<split_version>/ and annotations under
// annotationRoot/<annotation_version>/.
func DefaultDefinition(splitRoot, annotationRoot string) DatasetDefinition {
	const version = "v1.0.0"
	d := DatasetDefinition{
		Description:       "The official wsrdata roost dataset v1.0.0 with bbox annotations.",
		DatasetVersion:    version,
		SplitVersion:      version,
		AnnotationVersion: version,
		UserModelVersion:  "v1.0.0_hardEM200000",
		Licenses:          DefaultLicenses(),
		Categories:        []string{"roost"},
		ArrayVersion:      version,
		Array:             DefaultArrayConfig(),
		DualpolVersion:    version,
		Dualpol:           DefaultDualpolConfig(),
		ScaleFactors:      DefaultScaleFactors(),
		TargetFactor:      SheldonAverageFactor,
	}
	for _, s := range []string{"train", "val", "test"} {
		d.Splits = append(d.Splits, Split{Name: s, Path: filepath.Join(splitRoot, version, s+".txt")})
	}
	d.AnnotationPath = filepath.Join(annotationRoot, version, "user_annotations.txt")
	return d
}

// LoadDefinition reads a YAML dataset definition. Omitted render configs,
// licenses, categories and scale factors fall back to the v1.0.0 values.
// Relative split and annotation paths resolve against the file's directory.
func LoadDefinition(path string) (DatasetDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DatasetDefinition{}, fmt.Errorf("read definition: %w", err)
	}

	var d DatasetDefinition
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return DatasetDefinition{}, fmt.Errorf("parse definition %s: %w", path, err)
	}

	if len(d.Array.Fields) == 0 {
		d.Array = DefaultArrayConfig()
	}
	if len(d.Dualpol.Fields) == 0 {
		d.Dualpol = DefaultDualpolConfig()
	}
	if len(d.Licenses) == 0 {
		d.Licenses = DefaultLicenses()
	}
	if len(d.Categories) == 0 {
		d.Categories = []string{"roost"}
	}
	if d.ScaleFactors == nil {
		d.ScaleFactors = DefaultScaleFactors()
	}
	if d.TargetFactor == 0 {
		d.TargetFactor = SheldonAverageFactor
	}

	base := filepath.Dir(path)
	for i := range d.Splits {
		d.Splits[i].Path = resolve(base, d.Splits[i].Path)
	}
	if d.AnnotationPath != "" {
		d.AnnotationPath = resolve(base, d.AnnotationPath)
	}

	if err := d.Validate(); err != nil {
		return DatasetDefinition{}, fmt.Errorf("definition %s: %w", path, err)
	}
	return d, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// HasAnnotations reports whether the dataset attaches annotations.
func (d DatasetDefinition) HasAnnotations() bool { return d.AnnotationVersion != "" }

// Validate reports every problem with the definition at once.
func (d DatasetDefinition) Validate() error {
	var errs []error
	if d.DatasetVersion == "" {
		errs = append(errs, errors.New("dataset_version is required"))
	}
	if d.ArrayVersion == "" {
		errs = append(errs, errors.New("array_version is required"))
	}
	if d.DualpolVersion == "" {
		errs = append(errs, errors.New("dualpol_version is required"))
	}
	if len(d.Splits) == 0 {
		errs = append(errs, errors.New("at least one split is required"))
	}
	seen := make(map[string]bool, len(d.Splits))
	for _, s := range d.Splits {
		if s.Name == "" || s.Path == "" {
			errs = append(errs, fmt.Errorf("split %q needs a name and a path", s.Name))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("split %q listed twice", s.Name))
		}
		seen[s.Name] = true
	}
	if d.HasAnnotations() && d.AnnotationPath == "" {
		errs = append(errs, errors.New("annotation_path is required when annotation_version is set"))
	}
	if d.DefaultCategoryID < 0 || d.DefaultCategoryID >= len(d.Categories) {
		errs = append(errs, fmt.Errorf("default_category_id %d out of range", d.DefaultCategoryID))
	}
	if !d.hasLicense(d.DefaultLicenseID) {
		errs = append(errs, fmt.Errorf("default_license_id %d not among licenses", d.DefaultLicenseID))
	}
	if err := d.Array.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("array: %w", err))
	}
	if err := d.Dualpol.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("dualpol: %w", err))
	}
	for k, f := range d.ScaleFactors {
		if f == 0 {
			errs = append(errs, fmt.Errorf("bbox_scaling_factors[%q] is zero", k))
		}
	}
	return errors.Join(errs...)
}

func (d DatasetDefinition) hasLicense(id int) bool {
	for _, l := range d.Licenses {
		if l.ID == id {
			return true
		}
	}
	return false
}
