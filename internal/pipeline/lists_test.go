package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/pipeline"
)

func TestReadScanList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.txt")
	writeFile(t, path, "KOKX20130721_093320_V06\n\n  KTBW20031123_115217.gz \nKDOX20190502_101010_V06")

	scans, err := pipeline.ReadScanList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"KOKX20130721_093320_V06", "KTBW20031123_115217", "KDOX20190502_101010_V06"}, scans)

	_, err = pipeline.ReadScanList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadStationDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "days.txt")
	writeFile(t, path, "# station yyyy mm dd\nKDOX 2019 05 02\nkamx 2019 5 3\n")

	days, err := pipeline.ReadStationDays(path)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "KAMX 2019-05-03", days[1].String())

	writeFile(t, path, "KDOX 2019 05 02\nKDOX 2019\n")
	_, err = pipeline.ReadStationDays(path)
	assert.ErrorContains(t, err, ":2:")
}

func TestWriteScanList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not_s3_logs", "v1.0.0.log")

	require.NoError(t, pipeline.WriteScanList(path, []string{"a", "b"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))

	require.NoError(t, pipeline.WriteScanList(path, nil))
	assert.NoFileExists(t, path)
	require.NoError(t, pipeline.WriteScanList(path, nil), "removing an absent list is fine")
}
