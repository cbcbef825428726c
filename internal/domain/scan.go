package domain

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// scanNameRe matches a Level II scan name without compression suffix,
// e.g. "KOKX20130721_093320_V06" or the older "KTBW20031123_115217".
var scanNameRe = regexp.MustCompile(`^([A-Z]{4})(\d{8})_(\d{6})(?:_V(\d{2}))?$`)

// Scan identifies one archived volume scan.
type Scan struct {
	Name    string // canonical name, compression suffix stripped
	Station string
	Time    time.Time // UTC
	Volume  int       // 0 when the name carries no _VNN suffix
}

// TrimCompression strips a trailing ".gz" or ".Z" from a scan name.
func TrimCompression(name string) string {
	name = strings.TrimSpace(name)
	for _, suffix := range []string{".gz", ".Z"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// ParseScan validates a scan name and decodes its station and UTC time.
func ParseScan(name string) (Scan, error) {
	name = TrimCompression(name)
	m := scanNameRe.FindStringSubmatch(name)
	if m == nil {
		return Scan{}, domainErr("parse scan "+strconv.Quote(name), ErrMalformedScanID)
	}

	t, err := time.ParseInLocation("20060102150405", m[2]+m[3], time.UTC)
	if err != nil {
		return Scan{}, domainErr("parse scan "+strconv.Quote(name), fmt.Errorf("%w: %v", ErrMalformedScanID, err))
	}

	var volume int
	if m[4] != "" {
		volume, _ = strconv.Atoi(m[4])
	}

	return Scan{Name: name, Station: m[1], Time: t, Volume: volume}, nil
}

// DeriveKey maps a scan name to its archive object key,
// "YYYY/MM/DD/STATION/<name>.gz".
func DeriveKey(name string) (string, error) {
	s, err := ParseScan(name)
	if err != nil {
		return "", err
	}
	return s.Key(), nil
}

// Key returns the archive object key of the scan.
func (s Scan) Key() string {
	n := s.Name
	return path.Join(n[4:8], n[8:10], n[10:12], n[0:4], n+".gz")
}

// LocalPath returns where the downloaded scan lives under root. The layout
// mirrors the archive key.
func (s Scan) LocalPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(s.Key()))
}

// DayPrefix returns the archive prefix listing every scan of a station on
// the given UTC day, e.g. "2013/07/21/KOKX/".
func DayPrefix(station string, day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("%04d/%02d/%02d/%s/", day.Year(), int(day.Month()), day.Day(), station)
}
