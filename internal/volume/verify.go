package volume

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wsrdata/wsrdata/internal/domain"
)

// Problem classifies why a local scan failed verification.
type Problem string

const (
	ProblemMissing Problem = "missing"
	ProblemEmpty   Problem = "empty"
	ProblemUnread  Problem = "unreadable"
	ProblemStation Problem = "station_mismatch"
	ProblemDate    Problem = "date_mismatch"
	ProblemBadName Problem = "malformed_name"
)

const maxClockSkew = 15 * time.Minute

// Finding is the verification result of one scan.
type Finding struct {
	Scan    string
	Path    string
	Problem Problem // empty when the scan is fine
	Detail  string
	Header  Header
}

// OK reports whether the scan passed.
func (f Finding) OK() bool { return f.Problem == "" }

// Verify checks that scan was downloaded under scanDir and that its volume
// header agrees with the scan name on station and UTC date. A volume that
// starts more than a few minutes away from the named time is still accepted
// but noted in Detail.
func Verify(scanDir, scan string) Finding {
	s, err := domain.ParseScan(scan)
	if err != nil {
		return Finding{Scan: scan, Problem: ProblemBadName, Detail: err.Error()}
	}
	f := Finding{Scan: s.Name, Path: s.LocalPath(scanDir)}

	info, err := os.Stat(f.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f.Problem = ProblemMissing
		return f
	case err != nil:
		f.Problem, f.Detail = ProblemUnread, err.Error()
		return f
	case info.Size() == 0:
		f.Problem = ProblemEmpty
		return f
	}

	h, err := ReadFile(f.Path)
	if err != nil {
		f.Problem, f.Detail = ProblemUnread, err.Error()
		return f
	}
	f.Header = h

	if h.ICAO != s.Station {
		f.Problem = ProblemStation
		f.Detail = fmt.Sprintf("header station %s", h.ICAO)
		return f
	}
	if y1, m1, d1 := h.Time.Date(); y1 != s.Time.Year() || m1 != s.Time.Month() || d1 != s.Time.Day() {
		f.Problem = ProblemDate
		f.Detail = fmt.Sprintf("header date %s", h.Time.Format(time.DateOnly))
		return f
	}
	if skew := h.Time.Sub(s.Time).Abs(); skew > maxClockSkew {
		f.Detail = fmt.Sprintf("volume starts %s from named time", skew.Round(time.Second))
	}
	return f
}
