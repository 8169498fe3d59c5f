// Package met fetches hourly station observations from the MET Norway Frost
// API and aggregates them into daily weather facts.
package met

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
)

// Client queries Frost observations for one station at a time.
type Client struct {
	fetch    *fetch.Client
	src      config.METSource
	clientID string
}

// NewClient creates a Frost client. clientID may be empty for anonymous access.
func NewClient(fc *fetch.Client, src config.METSource, clientID string) *Client {
	return &Client{fetch: fc, src: src, clientID: clientID}
}

// Observations returns the raw Frost payload for station over the dates
// [from, to], both inclusive. Frost answers 404 when a station has no data
// in the interval; that is returned as an empty payload.
func (c *Client) Observations(ctx context.Context, stationID string, from, to time.Time) ([]byte, error) {
	q := url.Values{}
	q.Set("sources", stationID)
	// Frost intervals are end-exclusive.
	q.Set("referencetime", from.Format(time.DateOnly)+"/"+to.AddDate(0, 0, 1).Format(time.DateOnly))
	q.Set("elements", strings.Join(c.src.Elements, ","))
	q.Set("timeresolutions", "PT1H")

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.src.UserAgent != "" {
		header.Set("User-Agent", c.src.UserAgent)
	}
	if c.clientID != "" {
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.clientID+":")))
	}

	body, err := c.fetch.Get(ctx, c.src.BaseURL+"?"+q.Encode(), header)
	var ce *fetch.ClientError
	if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return body, err
}
