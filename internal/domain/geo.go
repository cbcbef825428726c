package domain

import (
	"math"

	"github.com/tidwall/geodesic"
)

// YAxis says which way image rows run.
type YAxis int

const (
	// YAxisImage: row 0 is north, larger y is further south.
	YAxisImage YAxis = iota
	// YAxisGeographic: row 0 is south, larger y is further north.
	YAxisGeographic
)

// PixelPoint is a position in image space, in pixels.
type PixelPoint struct {
	X float64
	Y float64
}

// PixelOffsetToLonLat places an image pixel on the globe. The offset from the
// station pixel becomes a compass bearing and a ground distance, and the
// result is the WGS-84 geodesic destination from the station. Returns
// longitude first.
func PixelOffsetToLonLat(pixel, stationPixel PixelPoint, station Station, metersPerPixel float64, yAxis YAxis) (lon, lat float64) {
	dx := pixel.X - stationPixel.X
	dy := pixel.Y - stationPixel.Y
	if yAxis == YAxisImage {
		dy = -dy
	}
	if dx == 0 && dy == 0 {
		return station.Lon, station.Lat
	}

	dist, angle := cartesianToPolar(dx, dy)
	geodesic.WGS84.Direct(station.Lat, station.Lon, polarToBearing(angle), dist*metersPerPixel, &lat, &lon, nil)
	return lon, lat
}

// LonLatToPixelOffset is the inverse of PixelOffsetToLonLat: it returns the
// pixel offset (dx, dy) from the station pixel at which (lon, lat) appears.
func LonLatToPixelOffset(lon, lat float64, station Station, metersPerPixel float64, yAxis YAxis) (dx, dy float64) {
	if lon == station.Lon && lat == station.Lat {
		return 0, 0
	}

	var meters, bearing float64
	geodesic.WGS84.Inverse(station.Lat, station.Lon, lat, lon, &meters, &bearing, nil)
	dist := meters / metersPerPixel
	angle := bearingToPolar(bearing)
	dx = dist * math.Cos(angle)
	dy = dist * math.Sin(angle)
	if yAxis == YAxisImage {
		dy = -dy
	}
	return dx, dy
}

// cartesianToPolar returns the length and counter-clockwise-from-east angle
// (radians) of (x, y).
func cartesianToPolar(x, y float64) (dist, angle float64) {
	return math.Hypot(x, y), math.Atan2(y, x)
}

// polarToBearing converts a mathematical angle (radians, counter-clockwise
// from east) to a compass bearing in degrees [0, 360).
func polarToBearing(angle float64) float64 {
	return positiveMod(rad2deg(math.Pi/2-angle), 360)
}

// bearingToPolar converts a compass bearing in degrees to a mathematical angle
// in radians.
func bearingToPolar(bearing float64) float64 {
	return deg2rad(90 - bearing)
}

func positiveMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}

func rad2deg(r float64) float64 { return r * 180 / math.Pi }
func deg2rad(d float64) float64 { return d * math.Pi / 180 }
