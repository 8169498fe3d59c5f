// Package fhi fetches weekly influenza vaccination counts from the FHI
// Statistikk open API (SYSVAK) as JSON-stat2.
package fhi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
)

// Client talks to one FHI table.
type Client struct {
	fetch *fetch.Client
	src   config.FHISource
}

func NewClient(fc *fetch.Client, src config.FHISource) *Client {
	return &Client{fetch: fc, src: src}
}

func (c *Client) tableURL(suffix string) string {
	return fmt.Sprintf("%s/%s/table/%d/%s", c.src.BaseURL, c.src.Source, c.src.Table, suffix)
}

// AvailableWeeks lists the table's week labels, newest first.
func (c *Client) AvailableWeeks(ctx context.Context) ([]string, error) {
	body, err := c.fetch.Get(ctx, c.tableURL("query"), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, err
	}
	return ParseAvailableWeeks(body)
}

type dimensionFilter struct {
	Code   string   `json:"code"`
	Filter string   `json:"filter"`
	Values []string `json:"values"`
}

type dataQuery struct {
	Dimensions []dimensionFilter `json:"dimensions"`
	Response   struct {
		Format      string `json:"format"`
		MaxRowCount int    `json:"maxRowCount,omitempty"`
	} `json:"response"`
}

// Data fetches counts for all configured regions and the given weeks, all
// ages and both sexes combined.
func (c *Client) Data(ctx context.Context, weeks []string) ([]byte, error) {
	codes := make([]string, 0, len(c.src.Regions))
	for code := range c.src.Regions {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	q := dataQuery{Dimensions: []dimensionFilter{
		{Code: dimRegion, Filter: "item", Values: codes},
		{Code: dimAge, Filter: "item", Values: []string{"Alle"}},
		{Code: dimSex, Filter: "item", Values: []string{"Begge"}},
		{Code: dimWeek, Filter: "item", Values: weeks},
		{Code: dimMeasure, Filter: "item", Values: []string{"Antall"}},
	}}
	q.Response.Format = "json-stat2"
	q.Response.MaxRowCount = c.src.MaxRowCount

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode fhi query: %w", err)
	}
	return c.fetch.Post(ctx, c.tableURL("data"), nil, body)
}
