package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandStationDays(t *testing.T) {
	from, err := ParseDate("20190502")
	require.NoError(t, err)
	to, err := ParseDate("20190504")
	require.NoError(t, err)

	days, err := ExpandStationDays([]string{"kdox", "KAMX"}, from, to)
	require.NoError(t, err)
	require.Len(t, days, 6)
	assert.Equal(t, "KDOX 2019-05-02", days[0].String())
	assert.Equal(t, "KDOX 2019-05-04", days[2].String())
	assert.Equal(t, "KAMX 2019-05-02", days[3].String())

	_, err = ExpandStationDays([]string{"KDOX"}, to, from)
	assert.Error(t, err)
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "2019-05-02", "20191302", "2019050"} {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}

func TestParseStationDayLine(t *testing.T) {
	d, err := ParseStationDayLine("kokx 2013 07 21")
	require.NoError(t, err)
	assert.Equal(t, StationDay{Station: "KOKX", Date: time.Date(2013, 7, 21, 0, 0, 0, 0, time.UTC)}, d)

	for _, line := range []string{"KOKX 2013 07", "KOKX 2013 02 30", "KOKX 2013 jul 21"} {
		_, err := ParseStationDayLine(line)
		assert.Error(t, err, line)
	}
}
