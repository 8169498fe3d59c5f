// Package trends fetches Google Trends interest series through SerpAPI and
// scores each week against the series baseline.
package trends

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
)

// ErrNoAPIKey is returned when SERPAPI_KEY is not configured.
var ErrNoAPIKey = errors.New("trends: SERPAPI_KEY not set")

type Client struct {
	fetch  *fetch.Client
	src    config.TrendsSource
	apiKey string
}

func NewClient(fc *fetch.Client, src config.TrendsSource, apiKey string) *Client {
	return &Client{fetch: fc, src: src, apiKey: apiKey}
}

// Interest returns the raw interest-over-time response for term in geo
// between the dates from and to.
func (c *Client) Interest(ctx context.Context, term, geo string, from, to time.Time) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	q := url.Values{}
	q.Set("engine", "google_trends")
	q.Set("q", term)
	q.Set("geo", geo)
	q.Set("date", from.Format(time.DateOnly)+" "+to.Format(time.DateOnly))
	q.Set("api_key", c.apiKey)
	return c.fetch.Get(ctx, c.src.BaseURL+"?"+q.Encode(), http.Header{"Accept": {"application/json"}})
}
