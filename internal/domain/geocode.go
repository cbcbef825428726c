package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrPlaceNotFound is returned when a place query matches nothing.
var ErrPlaceNotFound = errors.New("place not found")

// ResolvePlace geocodes a city query for station search.
func ResolvePlace(ctx context.Context, geocoder Geocoder, query string) (Place, error) {
	if geocoder == nil {
		return Place{}, errors.New("geocoding is disabled")
	}
	p, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		return Place{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if !p.Found() {
		return Place{}, fmt.Errorf("geocode %q: %w", query, ErrPlaceNotFound)
	}
	return p, nil
}

// LabelLocation returns the name of the place containing a roost. Lookup
// failures are logged and yield an empty label.
func LabelLocation(ctx context.Context, geocoder Geocoder, lat, lon float64, logger *slog.Logger) string {
	if geocoder == nil {
		return ""
	}
	p, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed", "lat", lat, "lon", lon, "error", err)
		return ""
	}
	return p.FullName
}
