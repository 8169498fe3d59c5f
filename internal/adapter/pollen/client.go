// Package pollen fetches Google Pollen forecasts for fixed region coordinates.
package pollen

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
)

// Client calls the forecast:lookup endpoint.
type Client struct {
	fetch  *fetch.Client
	src    config.PollenSource
	apiKey string
}

func NewClient(fc *fetch.Client, src config.PollenSource, apiKey string) *Client {
	return &Client{fetch: fc, src: src, apiKey: apiKey}
}

// Forecast returns the raw forecast for days days at the region's coordinates.
func (c *Client) Forecast(ctx context.Context, region config.PollenRegion, days int) ([]byte, error) {
	q := url.Values{}
	q.Set("location.latitude", strconv.FormatFloat(region.Lat, 'f', -1, 64))
	q.Set("location.longitude", strconv.FormatFloat(region.Lon, 'f', -1, 64))
	q.Set("days", strconv.Itoa(days))
	if c.src.Language != "" {
		q.Set("languageCode", c.src.Language)
	}
	q.Set("key", c.apiKey)

	return c.fetch.Get(ctx, c.src.BaseURL+"?"+q.Encode(), http.Header{"Accept": {"application/json"}})
}
