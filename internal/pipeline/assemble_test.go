package pipeline_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/domain"
	"github.com/wsrdata/wsrdata/internal/pipeline"
)

const (
	scanA = "KTBW20190502_101010_V06"
	scanB = "KTBW20190503_101010_V06"
	scanC = "KTBW20190504_101010_V06"
	scanD = "KTBW20190505_101010_V06"
)

func annotationRecords() []domain.AnnotationRecord {
	return []domain.AnnotationRecord{
		{TrackID: 1, Filename: scanA + ".gz", SequenceID: 3, Station: "KTBW", MinutesFromSunrise: -4, X: 0, Y: 0, R: 1000, Username: "andrew"},
		{TrackID: 2, Filename: scanA + ".gz", SequenceID: 4, Station: "KTBW", MinutesFromSunrise: -4, X: 5000, Y: -5000, R: 2000, Username: "mystery"},
		{TrackID: 3, Filename: scanC + ".gz", SequenceID: 9, Station: "KTBW", MinutesFromSunrise: 5, X: -1000, Y: 1000, R: 500, Username: "sheldon-KTBW"},
		{TrackID: 4, Filename: scanD + ".gz", SequenceID: 1, Station: "KTBW", MinutesFromSunrise: 7, R: 100, Username: "andrew"},
	}
}

func testSplits() []pipeline.SplitScans {
	return []pipeline.SplitScans{
		{Name: "train", Scans: []string{scanA, scanB}},
		{Name: "test", Scans: []string{scanC, scanA}},
	}
}

func newTestAssembler() *pipeline.Assembler {
	clock := clockwork.NewFakeClockAt(time.Date(2021, 3, 20, 18, 30, 0, 0, time.UTC))
	return pipeline.NewAssembler(clock, newTestMetrics(), discardLogger())
}

func TestAssembler_AssignsIDsPerSplit(t *testing.T) {
	def := domain.DefaultDefinition("splits", "annotations")
	arrayDir, dualpolDir := t.TempDir(), t.TempDir()

	m, report, err := newTestAssembler().Assemble(def, testSplits(), annotationRecords(), arrayDir, dualpolDir)
	require.NoError(t, err)

	train := m.Scans["train"]
	require.Len(t, train, 2)
	assert.Equal(t, 0, train[0].ScanID)
	assert.Equal(t, scanA, train[0].Scan)
	require.NotNil(t, train[0].MinutesFromSunrise)
	assert.Equal(t, -4, *train[0].MinutesFromSunrise)
	assert.Equal(t, filepath.Join(arrayDir, scanA+".npy"), train[0].ArrayPath)
	assert.Equal(t, filepath.Join(dualpolDir, scanA+"_dualpol.npy"), train[0].DualpolPath)
	require.Len(t, train[0].Annotations, 2)
	assert.Equal(t, []int{0, 1}, []int{train[0].Annotations[0].AnnotationID, train[0].Annotations[1].AnnotationID})
	assert.Equal(t, 1, train[1].ScanID)
	assert.Nil(t, train[1].MinutesFromSunrise)
	assert.Empty(t, train[1].Annotations)

	test := m.Scans["test"]
	require.Len(t, test, 2)
	assert.Equal(t, 0, test[0].Annotations[0].AnnotationID)
	assert.Equal(t, 0, test[0].Annotations[0].ScanID)
	assert.Equal(t, "sheldon-KTBW", test[0].Annotations[0].BBoxAnnotator)
	assert.Equal(t, []int{1, 2}, []int{test[1].Annotations[0].AnnotationID, test[1].Annotations[1].AnnotationID})
	assert.Equal(t, 1, test[1].Annotations[1].ScanID)

	assert.Equal(t, 5, report.Annotations)
	assert.Equal(t, 5, m.AnnotationCount())
	assert.Equal(t, []string{"mystery-KTBW"}, report.UnknownFactors)
	assert.Equal(t, 1, report.Unattached)
}

func TestAssembler_ImageSpaceBoxes(t *testing.T) {
	def := domain.DefaultDefinition("splits", "annotations")

	m, _, err := newTestAssembler().Assemble(def, testSplits(), annotationRecords(), t.TempDir(), t.TempDir())
	require.NoError(t, err)

	got := m.Scans["train"][0].Annotations[0]
	want := domain.Annotation{
		AnnotationID:  0,
		ScanID:        0,
		SequenceID:    3,
		CategoryID:    0,
		X:             0,
		Y:             0,
		R:             1000,
		XIm:           300,
		YIm:           300,
		RIm:           2,
		BBox:          []int{298, 298, 5, 5},
		BBoxAnnotator: "andrew-KTBW",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("annotation mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembler_ScaleBoxes(t *testing.T) {
	def := domain.DefaultDefinition("splits", "annotations")
	def.ScaleBoxes = true

	m, _, err := newTestAssembler().Assemble(def, testSplits(), annotationRecords(), t.TempDir(), t.TempDir())
	require.NoError(t, err)

	anns := m.Scans["train"][0].Annotations
	require.NotNil(t, anns[0].BBoxScalingFactor)
	assert.InDelta(t, 1.0745160463520484, *anns[0].BBoxScalingFactor, 0)
	want, err := domain.Rescale(domain.BBox{Left: 298, Top: 298, Width: 5, Height: 5}, 1.0745160463520484, domain.SheldonAverageFactor)
	require.NoError(t, err)
	assert.Equal(t, want.Slice(), anns[0].BBox)

	assert.Nil(t, anns[1].BBoxScalingFactor, "unknown pair is left unscaled")
	require.NotNil(t, m.Info.BBoxTargetFactor)
	assert.InDelta(t, domain.SheldonAverageFactor, *m.Info.BBoxTargetFactor, 0)
}

func TestAssembler_NoAnnotationVersion(t *testing.T) {
	def := domain.DefaultDefinition("splits", "annotations")
	def.AnnotationVersion = ""

	m, report, err := newTestAssembler().Assemble(def, testSplits(), annotationRecords(), t.TempDir(), t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, report.Annotations)
	assert.Nil(t, m.Scans["train"][0].MinutesFromSunrise)
	assert.NotNil(t, m.Scans["train"][0].Annotations)
}

func TestAssembler_ManifestJSON(t *testing.T) {
	def := domain.DefaultDefinition("splits", "annotations")

	m, _, err := newTestAssembler().Assemble(def, testSplits(), annotationRecords(), t.TempDir(), t.TempDir())
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var doc struct {
		Info    map[string]json.RawMessage              `json:"info"`
		License []map[string]any                        `json:"license"`
		Scans   map[string][]map[string]json.RawMessage `json:"scans"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.JSONEq(t, `"2021/03/20"`, string(doc.Info["date_created"]))
	assert.JSONEq(t, `[15, 600, 600]`, string(doc.Info["array_shape"]))
	assert.JSONEq(t, `"XYWH"`, string(doc.Info["bbox_mode"]))
	assert.JSONEq(t, `["roost"]`, string(doc.Info["categories"]))
	var arrayIdx map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc.Info["array_channel_indices"], &arrayIdx))
	assert.JSONEq(t, `{"0.5":0,"1.5":1,"2.5":2,"3.5":3,"4.5":4}`, string(arrayIdx["reflectivity"]))
	assert.NotContains(t, doc.Info, "bbox_target_factor")
	assert.Len(t, doc.License, 9)

	var idx map[string]map[string]int
	require.NoError(t, json.Unmarshal(doc.Info["dualpol_channel_indices"], &idx))
	assert.Equal(t, 14, idx["differential_phase"]["4.5"])

	var cfg map[string]any
	require.NoError(t, json.Unmarshal(doc.Info["array_render_config"], &cfg))
	assert.Nil(t, cfg["sweeps"])
	assert.Equal(t, "nearest", cfg["interp_method"])

	assert.JSONEq(t, `null`, string(doc.Scans["train"][1]["minutes_from_sunrise"]))
	assert.JSONEq(t, `[]`, string(doc.Scans["train"][1]["annotations"]))
}
