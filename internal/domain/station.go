package domain

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Station is a WSR-88D radar site.
type Station struct {
	Code string  `json:"code"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Point returns the station location in orb's [lon, lat] order.
func (s Station) Point() orb.Point {
	return orb.Point{s.Lon, s.Lat}
}

// stations holds antenna coordinates for the NEXRAD sites the roost datasets
// draw from.
var stations = map[string]Station{
	"KAKQ": {"KAKQ", 36.9839, -77.0072},
	"KAMX": {"KAMX", 25.6111, -80.4128},
	"KBGM": {"KBGM", 42.1997, -75.9847},
	"KBOX": {"KBOX", 41.9558, -71.1369},
	"KBRO": {"KBRO", 25.9161, -97.4189},
	"KBUF": {"KBUF", 42.9489, -78.7367},
	"KBYX": {"KBYX", 24.5975, -81.7031},
	"KCAE": {"KCAE", 33.9486, -81.1183},
	"KCBW": {"KCBW", 46.0392, -67.8067},
	"KCCX": {"KCCX", 40.9231, -78.0039},
	"KCLE": {"KCLE", 41.4131, -81.8600},
	"KCLX": {"KCLX", 32.6556, -81.0422},
	"KCRP": {"KCRP", 27.7842, -97.5111},
	"KDIX": {"KDIX", 39.9469, -74.4108},
	"KDOX": {"KDOX", 38.8257, -75.4400},
	"KDTX": {"KDTX", 42.6997, -83.4717},
	"KDVN": {"KDVN", 41.6117, -90.5808},
	"KENX": {"KENX", 42.5864, -74.0639},
	"KEVX": {"KEVX", 30.5644, -85.9214},
	"KEWX": {"KEWX", 29.7039, -98.0283},
	"KFCX": {"KFCX", 37.0244, -80.2739},
	"KFFC": {"KFFC", 33.3636, -84.5658},
	"KFWS": {"KFWS", 32.5731, -97.3031},
	"KGRR": {"KGRR", 42.8939, -85.5447},
	"KGYX": {"KGYX", 43.8914, -70.2567},
	"KHGX": {"KHGX", 29.4719, -95.0792},
	"KILN": {"KILN", 39.4203, -83.8217},
	"KIND": {"KIND", 39.7075, -86.2803},
	"KJAX": {"KJAX", 30.4847, -81.7019},
	"KJGX": {"KJGX", 32.6750, -83.3511},
	"KLCH": {"KLCH", 30.1253, -93.2158},
	"KLIX": {"KLIX", 30.3367, -89.8256},
	"KLOT": {"KLOT", 41.6047, -88.0847},
	"KLSX": {"KLSX", 38.6989, -90.6828},
	"KLTX": {"KLTX", 33.9892, -78.4292},
	"KLWX": {"KLWX", 38.9753, -77.4778},
	"KMHX": {"KMHX", 34.7761, -76.8761},
	"KMKX": {"KMKX", 42.9678, -88.5506},
	"KMLB": {"KMLB", 28.1133, -80.6542},
	"KMOB": {"KMOB", 30.6794, -88.2397},
	"KMPX": {"KMPX", 44.8489, -93.5656},
	"KOKX": {"KOKX", 40.8655, -72.8638},
	"KPBZ": {"KPBZ", 40.5317, -80.2181},
	"KRAX": {"KRAX", 35.6656, -78.4900},
	"KRTX": {"KRTX", 45.7150, -122.9650},
	"KTBW": {"KTBW", 27.7056, -82.4017},
	"KTLH": {"KTLH", 30.3975, -84.3289},
	"KTLX": {"KTLX", 35.3331, -97.2778},
	"KTYX": {"KTYX", 43.7558, -75.6800},
}

// regions groups stations for region-wide downloads.
var regions = map[string][]string{
	"east": {
		"KAKQ", "KAMX", "KBGM", "KBOX", "KBUF", "KBYX", "KCAE", "KCBW", "KCCX",
		"KCLE", "KCLX", "KDIX", "KDOX", "KENX", "KEVX", "KFCX", "KFFC", "KGYX",
		"KJAX", "KJGX", "KLTX", "KLWX", "KMHX", "KMLB", "KOKX", "KPBZ", "KRAX",
		"KTBW", "KTLH", "KTYX",
	},
}

// LookupStation returns the registered station for a code (case-insensitive).
func LookupStation(code string) (Station, error) {
	s, ok := stations[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Station{}, domainErr("lookup station "+code, ErrUnknownStation)
	}
	return s, nil
}

// RegionStations returns the stations of a named region, sorted by code.
func RegionStations(region string) ([]Station, error) {
	codes, ok := regions[region]
	if !ok {
		return nil, domainErr("lookup region "+region, ErrUnknownStation)
	}
	out := make([]Station, 0, len(codes))
	for _, code := range codes {
		s, err := LookupStation(code)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// StationsWithin returns every registered station whose great-circle distance
// from (lat, lon) is at most radiusKm, nearest first.
func StationsWithin(lat, lon, radiusKm float64) []Station {
	origin := orb.Point{lon, lat}
	type hit struct {
		station Station
		dist    float64
	}
	var hits []hit
	for _, s := range stations {
		d := geo.DistanceHaversine(origin, s.Point())
		if d <= radiusKm*1000 {
			hits = append(hits, hit{s, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist == hits[j].dist {
			return hits[i].station.Code < hits[j].station.Code
		}
		return hits[i].dist < hits[j].dist
	})
	out := make([]Station, len(hits))
	for i, h := range hits {
		out[i] = h.station
	}
	return out
}
