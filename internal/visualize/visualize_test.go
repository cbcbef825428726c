package visualize

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio/npy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/domain"
)

const testDim = 20

func testConfig() domain.RenderConfig {
	cfg := domain.DefaultArrayConfig()
	cfg.Fields = []string{domain.FieldReflectivity, domain.FieldVelocity}
	cfg.Elevs = []float64{0.5, 1.5}
	cfg.Dim = testDim
	return cfg
}

// writeArray stores a flattened float32 array whose channel c is filled by
// fill(c, i).
func writeArray(t *testing.T, path string, shape [3]int, fill func(c, i int) float32) {
	t.Helper()
	n := shape[1] * shape[2]
	data := make([]float32, shape[0]*n)
	for c := 0; c < shape[0]; c++ {
		for i := 0; i < n; i++ {
			data[c*n+i] = fill(c, i)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, npy.Write(f, data))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.npy")
	shape := testConfig().Shape()
	writeArray(t, path, shape, func(c, _ int) float32 { return float32(c) })

	arr, err := LoadArray(path, shape)
	require.NoError(t, err)
	plane, err := arr.Channel(3)
	require.NoError(t, err)
	assert.Len(t, plane, testDim*testDim)
	assert.Equal(t, 3.0, plane[0])

	_, err = arr.Channel(4)
	require.Error(t, err)

	_, err = LoadArray(path, [3]int{2, testDim, testDim})
	require.Error(t, err)
}

func TestJet(t *testing.T) {
	cm := Jet()
	assert.Equal(t, color.RGBA{0, 0, 128, 255}, cm.At(0))
	assert.Equal(t, color.RGBA{128, 0, 0, 255}, cm.At(1))
	assert.Equal(t, cm.At(1), cm.At(7))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, cm.At(math.NaN()))

	mid := cm.At(0.5)
	assert.Greater(t, mid.G, uint8(200), "jet is green in the middle")
}

func TestScale(t *testing.T) {
	assert.Equal(t, 0.0, scale(-40, -15, 30))
	assert.Equal(t, 1.0, scale(45, -15, 30))
	assert.InDelta(t, 0.5, scale(0, -15, 15), 1e-12)
	assert.True(t, math.IsNaN(scale(math.NaN(), 0, 1)))
}

func TestCompose(t *testing.T) {
	cfg := testConfig()
	n := testDim * testDim
	data := make([]float64, cfg.Shape()[0]*n)
	for i := range data {
		data[i] = 30
	}
	data[n-1] = math.NaN() // last pixel of reflectivity 0.5
	arr := Array{Shape: cfg.Shape(), Data: data}

	img, stats, err := Compose(arr, cfg.ChannelIndices(), DefaultPanels, [][]int{{5, 5, 4, 4}}, Jet())
	require.NoError(t, err)

	assert.Equal(t, 3*testDim+2*gutter, img.Bounds().Dx())
	assert.Equal(t, titleHeight+testDim, img.Bounds().Dy())

	magenta := color.RGBA{255, 0, 255, 255}
	assert.Equal(t, magenta, img.RGBAAt(5, titleHeight+5))
	assert.Equal(t, magenta, img.RGBAAt(testDim+gutter+5, titleHeight+5), "box drawn on every panel")
	assert.Equal(t, color.RGBA{128, 0, 0, 255}, img.RGBAAt(15, titleHeight+2))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(testDim-1, titleHeight+testDim-1))

	require.Len(t, stats, 3)
	assert.Equal(t, "reflectivity, elev: 0.5", stats[0].Title)
	assert.Equal(t, 30.0, stats[0].Mean)
	assert.InDelta(t, 1.0/float64(n), stats[0].Missing, 1e-12)
	assert.Equal(t, 0.0, stats[1].Missing)
}

func TestCompose_MissingChannel(t *testing.T) {
	cfg := testConfig()
	cfg.Fields = []string{domain.FieldReflectivity}
	arr := Array{Shape: cfg.Shape(), Data: make([]float64, 2*testDim*testDim)}

	_, _, err := Compose(arr, cfg.ChannelIndices(), DefaultPanels, nil, Jet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "velocity")
}

func TestVisualizer_Run(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	arrayPath := filepath.Join(dir, "KOKX20130721_093320_V06.npy")
	writeArray(t, arrayPath, cfg.Shape(), func(c, i int) float32 { return float32(i%40) - 15 })

	m := domain.Manifest{
		Info: domain.Info{ArrayShape: cfg.Shape(), ArrayChannelIndices: cfg.ChannelIndices()},
		Scans: map[string][]domain.ScanRecord{
			"train": {
				{Scan: "KOKX20130721_093320_V06", ArrayPath: arrayPath, Annotations: []domain.Annotation{{BBox: []int{2, 2, 6, 6}}}},
				{Scan: "KOKX20130721_094000_V06", ArrayPath: filepath.Join(dir, "missing.npy")},
			},
		},
	}
	out := filepath.Join(dir, "vis")

	report := New(discardLogger()).Run(context.Background(), m, map[string][]string{
		"sheldon-KOKX": {"KOKX20130721_093320_V06.gz", "KOKX20130721_094000_V06", "KDOX20130721_093320_V06"},
	}, out)

	want := filepath.Join(out, "sheldon-KOKX", "KOKX20130721_093320_V06.png")
	assert.Equal(t, []string{want}, report.Written)
	require.Len(t, report.Failed, 2)
	assert.ErrorIs(t, report.Failed["KDOX20130721_093320_V06"], ErrScanNotInManifest)

	f, err := os.Open(want)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3*testDim+2*gutter, titleHeight+testDim), img.Bounds())
}

func TestSplits(t *testing.T) {
	m := domain.Manifest{Scans: map[string][]domain.ScanRecord{
		"train": {{Scan: "a"}, {Scan: "b"}},
		"test":  {{Scan: "c"}},
	}}
	assert.Equal(t, map[string][]string{"train": {"a", "b"}, "test": {"c"}}, Splits(m))
}

func annotationsFor(user, station string, scans []string) []domain.AnnotationRecord {
	out := make([]domain.AnnotationRecord, 0, 2*len(scans))
	for _, s := range scans {
		rec := domain.AnnotationRecord{Filename: s + ".gz", Station: station, Username: user}
		out = append(out, rec, rec) // two tracks on the same scan
	}
	return out
}

func TestPickScans(t *testing.T) {
	var many []string
	for i := 0; i < 40; i++ {
		many = append(many, fmt.Sprintf("KTBW201905%02d_1010%02d_V06", i%28+1, i))
	}
	few := []string{"KOKX20130721_093320_V06", "KOKX20130721_094000_V06", "KOKX20130721_095000_V06"}

	records := append(annotationsFor("andrew", "KTBW", many), annotationsFor("Ftian", "KOKX", few)...)
	records = append(records, annotationsFor("anon", "KTBW", []string{"KTBW20000101_000000_V06"})...)

	dataset := map[string]bool{}
	for _, s := range append(append([]string{}, many...), few...) {
		dataset[s] = true
	}
	exclude := map[string]bool{few[1]: true}

	picked := PickScans(records, dataset, exclude, DefaultPerPair, DefaultPickSeed)

	require.Contains(t, picked, "andrew-KTBW")
	assert.Len(t, picked["andrew-KTBW"], 30)
	assert.Equal(t, []string{few[0], few[2]}, picked["Ftian-KOKX"])
	assert.NotContains(t, picked, "anon-KTBW", "scan outside the dataset")

	// Sample keeps candidate order and has no duplicates.
	pos := map[string]int{}
	for i, s := range many {
		pos[s] = i
	}
	for i := 1; i < len(picked["andrew-KTBW"]); i++ {
		assert.Less(t, pos[picked["andrew-KTBW"][i-1]], pos[picked["andrew-KTBW"][i]])
	}

	again := PickScans(records, dataset, exclude, DefaultPerPair, DefaultPickSeed)
	assert.Equal(t, picked, again)
}
