package domain

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

const (
	// WindowBeforeSunrise and WindowAfterSunrise pad the collection window
	// around local sunrise.
	WindowBeforeSunrise = 30 * time.Minute
	WindowAfterSunrise  = 180 * time.Minute
)

// TimeWindow is a half-open UTC interval [Start, End).
type TimeWindow struct {
	Start   time.Time
	End     time.Time
	Sunrise time.Time
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Days returns the UTC calendar days the window touches, in order.
func (w TimeWindow) Days() []time.Time {
	first := truncateDay(w.Start)
	last := truncateDay(w.End.Add(-time.Nanosecond))
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// ScanWindow returns the scan-collection window for a station on the given
// local calendar date: 30 minutes before sunrise to 180 minutes after.
// Only the year, month and day of localDate are used.
func ScanWindow(station Station, localDate time.Time) (TimeWindow, error) {
	rise, _ := sunrise.SunriseSunset(station.Lat, station.Lon,
		localDate.Year(), localDate.Month(), localDate.Day())
	if rise.IsZero() {
		return TimeWindow{}, domainErr("scan window "+station.Code+" "+localDate.Format("2006-01-02"), ErrNoSunrise)
	}
	rise = rise.UTC()
	return TimeWindow{
		Start:   rise.Add(-WindowBeforeSunrise),
		End:     rise.Add(WindowAfterSunrise),
		Sunrise: rise,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
