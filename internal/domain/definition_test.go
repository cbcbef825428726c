package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefinition(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefinition_AppliesDefaults(t *testing.T) {
	path := writeDefinition(t, `
dataset_version: v2.0.0
array_version: v2.0.0
dualpol_version: v1.0.0
annotation_version: v1.0.0
annotation_path: annotations/user_annotations.txt
splits:
  - name: train
    path: splits/train.txt
  - name: test
    path: /abs/test.txt
`)

	d, err := LoadDefinition(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "v2.0.0", d.DatasetVersion)
	assert.Equal(t, []Split{
		{Name: "train", Path: filepath.Join(dir, "splits/train.txt")},
		{Name: "test", Path: "/abs/test.txt"},
	}, d.Splits)
	assert.Equal(t, filepath.Join(dir, "annotations/user_annotations.txt"), d.AnnotationPath)
	assert.True(t, d.Array.Equal(DefaultArrayConfig()))
	assert.True(t, d.Dualpol.Equal(DefaultDualpolConfig()))
	assert.Len(t, d.Licenses, 9)
	assert.Equal(t, []string{"roost"}, d.Categories)
	assert.InDelta(t, 1.0745160463520484, d.ScaleFactors["andrew-KTBW"], 0)
	assert.InDelta(t, SheldonAverageFactor, d.TargetFactor, 0)
	assert.True(t, d.HasAnnotations())
}

func TestLoadDefinition_RenderOverride(t *testing.T) {
	path := writeDefinition(t, `
dataset_version: v3
array_version: v3
dualpol_version: v3
splits: [{name: val, path: val.txt}]
array:
  fields: [reflectivity]
  coords: cartesian
  r_min: 2125
  r_max: 300000
  r_res: 250
  az_res: 0.5
  dim: 1200
  elevs: [0.5]
  use_ground_range: true
  interp_method: linear
`)

	d, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, 1200, d.Array.Dim)
	assert.Equal(t, [3]int{1, 1200, 1200}, d.Array.Shape())
	assert.Equal(t, "linear", d.Array.InterpMethod)
	assert.False(t, d.HasAnnotations())
}

func TestLoadDefinition_Invalid(t *testing.T) {
	path := writeDefinition(t, `
array_version: v1
splits:
  - name: train
    path: a.txt
  - name: train
    path: b.txt
default_license_id: 42
bbox_scaling_factors:
  nobody-KXXX: 0
`)

	_, err := LoadDefinition(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "dataset_version is required")
	assert.ErrorContains(t, err, "dualpol_version is required")
	assert.ErrorContains(t, err, `split "train" listed twice`)
	assert.ErrorContains(t, err, "default_license_id 42")
	assert.ErrorContains(t, err, "nobody-KXXX")
}

func TestLoadDefinition_Missing(t *testing.T) {
	_, err := LoadDefinition(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultDefinition(t *testing.T) {
	d := DefaultDefinition("/data/splits", "/data/annotations")
	require.NoError(t, d.Validate())
	assert.Equal(t, "/data/splits/v1.0.0/val.txt", d.Splits[1].Path)
	assert.Equal(t, "/data/annotations/v1.0.0/user_annotations.txt", d.AnnotationPath)
	assert.Len(t, d.ScaleFactors, 27)
}
