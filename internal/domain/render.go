package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RenderConfig parameterises the external radar renderer. The JSON/YAML keys
// are the ones the renderer and previous_versions.json use.
type RenderConfig struct {
	Fields         []string  `json:"fields" yaml:"fields"`
	Coords         string    `json:"coords" yaml:"coords"`
	RMin           float64   `json:"r_min" yaml:"r_min"`                       // first range bin, meters
	RMax           float64   `json:"r_max" yaml:"r_max"`                       // last range bin, meters
	RRes           float64   `json:"r_res" yaml:"r_res"`                       // gate spacing, meters
	AzRes          float64   `json:"az_res" yaml:"az_res"`                     // azimuth resolution, degrees
	Dim            int       `json:"dim" yaml:"dim"`                           // pixels per side
	Sweeps         []int     `json:"sweeps" yaml:"sweeps"`                     // nil selects by Elevs
	Elevs          []float64 `json:"elevs" yaml:"elevs"`                       // elevation angles, degrees
	UseGroundRange bool      `json:"use_ground_range" yaml:"use_ground_range"`
	InterpMethod   string    `json:"interp_method" yaml:"interp_method"`
}

// Field names the renderer understands.
const (
	FieldReflectivity             = "reflectivity"
	FieldVelocity                 = "velocity"
	FieldSpectrumWidth            = "spectrum_width"
	FieldDifferentialReflectivity = "differential_reflectivity"
	FieldCrossCorrelationRatio    = "cross_correlation_ratio"
	FieldDifferentialPhase        = "differential_phase"
)

var defaultElevations = []float64{0.5, 1.5, 2.5, 3.5, 4.5}

// DefaultArrayConfig is the primary-channel rendering used since v1.0.0.
func DefaultArrayConfig() RenderConfig {
	return RenderConfig{
		Fields:         []string{FieldReflectivity, FieldVelocity, FieldSpectrumWidth},
		Coords:         "cartesian",
		RMin:           2125.0,
		RMax:           150000.0,
		RRes:           250,
		AzRes:          0.5,
		Dim:            600,
		Elevs:          slices.Clone(defaultElevations),
		UseGroundRange: true,
		InterpMethod:   "nearest",
	}
}

// DefaultDualpolConfig is the dual-polarization rendering used since v1.0.0.
func DefaultDualpolConfig() RenderConfig {
	c := DefaultArrayConfig()
	c.Fields = []string{FieldDifferentialReflectivity, FieldCrossCorrelationRatio, FieldDifferentialPhase}
	return c
}

// Validate checks the fields the dataset geometry depends on.
func (c RenderConfig) Validate() error {
	var errs []error
	if len(c.Fields) == 0 {
		errs = append(errs, errors.New("fields must not be empty"))
	}
	if len(c.Elevs) == 0 && len(c.Sweeps) == 0 {
		errs = append(errs, errors.New("one of elevs or sweeps is required"))
	}
	if c.Dim <= 0 {
		errs = append(errs, fmt.Errorf("dim must be positive, got %d", c.Dim))
	}
	if c.RMax <= 0 {
		errs = append(errs, fmt.Errorf("r_max must be positive, got %g", c.RMax))
	}
	if c.RMin < 0 || c.RMin >= c.RMax {
		errs = append(errs, fmt.Errorf("r_min must be in [0, r_max), got %g", c.RMin))
	}
	return errors.Join(errs...)
}

// Equal reports whether two configs render identical arrays.
func (c RenderConfig) Equal(o RenderConfig) bool {
	return slices.Equal(c.Fields, o.Fields) &&
		c.Coords == o.Coords &&
		c.RMin == o.RMin &&
		c.RMax == o.RMax &&
		c.RRes == o.RRes &&
		c.AzRes == o.AzRes &&
		c.Dim == o.Dim &&
		slices.Equal(c.Sweeps, o.Sweeps) &&
		slices.Equal(c.Elevs, o.Elevs) &&
		c.UseGroundRange == o.UseGroundRange &&
		c.InterpMethod == o.InterpMethod
}

// Channel is one (field, elevation) plane of a rendered array.
type Channel struct {
	Field string
	Elev  float64
}

// Channels lists the array planes in storage order: fields outer, elevations
// inner.
func (c RenderConfig) Channels() []Channel {
	out := make([]Channel, 0, len(c.Fields)*len(c.Elevs))
	for _, f := range c.Fields {
		for _, e := range c.Elevs {
			out = append(out, Channel{Field: f, Elev: e})
		}
	}
	return out
}

// ChannelIndices maps field → elevation label → plane index. Elevation labels
// are formatted the way they appear as JSON keys, e.g. "0.5".
func (c RenderConfig) ChannelIndices() map[string]map[string]int {
	out := make(map[string]map[string]int, len(c.Fields))
	for i, ch := range c.Channels() {
		if out[ch.Field] == nil {
			out[ch.Field] = make(map[string]int, len(c.Elevs))
		}
		out[ch.Field][ElevationLabel(ch.Elev)] = i
	}
	return out
}

// Shape returns (channels, dim, dim).
func (c RenderConfig) Shape() [3]int {
	return [3]int{len(c.Fields) * len(c.Elevs), c.Dim, c.Dim}
}

// MetersPerPixel is the ground distance covered by one pixel.
func (c RenderConfig) MetersPerPixel() float64 {
	return 2 * c.RMax / float64(c.Dim)
}

// ToImage maps radar-centred meters to image pixels.
func (c RenderConfig) ToImage(meters float64) float64 {
	return (meters + c.RMax) * float64(c.Dim) / (2 * c.RMax)
}

// LengthToImage maps a length in meters to pixels.
func (c RenderConfig) LengthToImage(meters float64) float64 {
	return meters * float64(c.Dim) / (2 * c.RMax)
}

// CenterPixel is where the radar sits in the rendered image.
func (c RenderConfig) CenterPixel() PixelPoint {
	return PixelPoint{X: c.ToImage(0), Y: c.ToImage(0)}
}

// ElevationLabel formats an elevation angle as a channel-index key.
func ElevationLabel(e float64) string {
	s := strconv.FormatFloat(e, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// ArrayFile is the file name of a scan's primary array.
func ArrayFile(scan string) string { return scan + ".npy" }

// DualpolFile is the file name of a scan's dual-polarization array.
func DualpolFile(scan string) string { return scan + "_dualpol.npy" }
