//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsrdata/wsrdata/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ForwardGeocode(t *testing.T) {
	c := smokeClient(t)

	place, err := c.ForwardGeocode(context.Background(), "Tampa, FL")
	require.NoError(t, err)

	assert.InDelta(t, 27.95, place.Lat, 0.1, "lat should be near Tampa")
	assert.InDelta(t, -82.46, place.Lon, 0.1, "lon should be near Tampa")
	assert.Contains(t, place.FullName, "Tampa")
	assert.Greater(t, place.Relevance, 0.5)
}

func TestSmoke_ReverseGeocode(t *testing.T) {
	c := smokeClient(t)

	// KOKX radar site.
	place, err := c.ReverseGeocode(context.Background(), 40.8656, -72.8639)
	require.NoError(t, err)

	assert.True(t, place.Found())
	assert.NotEmpty(t, place.Name)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	p1, err := cached.ForwardGeocode(context.Background(), "Miami, FL")
	require.NoError(t, err)
	assert.Contains(t, p1.FullName, "Miami")

	p2, err := cached.ForwardGeocode(context.Background(), "Miami, FL")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}
