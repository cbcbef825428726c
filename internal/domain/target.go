package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the CLI date format, e.g. 20190502.
const DateLayout = "20060102"

// StationDay is one unit of download work: a station's roost window on a
// local calendar date.
type StationDay struct {
	Station string
	Date    time.Time // midnight UTC of the calendar date
}

func (d StationDay) String() string {
	return d.Station + " " + d.Date.Format("2006-01-02")
}

// ParseDate parses a YYYYMMDD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYYMMDD", s)
	}
	return t, nil
}

// ExpandStationDays pairs every station with every date in [from, to].
func ExpandStationDays(stations []string, from, to time.Time) ([]StationDay, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("end date %s is before start date %s", to.Format(DateLayout), from.Format(DateLayout))
	}
	var out []StationDay
	for _, s := range stations {
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			out = append(out, StationDay{Station: strings.ToUpper(s), Date: d})
		}
	}
	return out, nil
}

// ParseStationDayLine parses a listfile line of the form "STATION YYYY MM DD".
func ParseStationDayLine(line string) (StationDay, error) {
	f := strings.Fields(line)
	if len(f) != 4 {
		return StationDay{}, fmt.Errorf("line %q: want \"STATION YYYY MM DD\"", line)
	}
	var ymd [3]int
	for i, s := range f[1:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return StationDay{}, fmt.Errorf("line %q: %w", line, err)
		}
		ymd[i] = n
	}
	date := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, time.UTC)
	if date.Year() != ymd[0] || int(date.Month()) != ymd[1] || date.Day() != ymd[2] {
		return StationDay{}, fmt.Errorf("line %q: invalid date", line)
	}
	return StationDay{Station: strings.ToUpper(f[0]), Date: date}, nil
}
