package domain

import "context"

// Place is a geocoded location.
type Place struct {
	Lat       float64
	Lon       float64
	Name      string  // short name, e.g. "Tampa"
	FullName  string  // e.g. "Tampa, Florida, United States"
	Relevance float64 // 0.0–1.0 provider confidence
}

// Found reports whether the provider returned anything.
func (p Place) Found() bool { return p.FullName != "" }

// Geocoder resolves place names and labels coordinates.
type Geocoder interface {
	// ForwardGeocode resolves a free-form place query to coordinates.
	ForwardGeocode(ctx context.Context, query string) (Place, error)

	// ReverseGeocode returns the place containing the coordinates.
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}
