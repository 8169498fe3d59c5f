// Package ssb fetches monthly macroeconomic indicators from the Statistics
// Norway (SSB) PxWeb API as JSON-stat2.
package ssb

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
)

type Client struct {
	fetch *fetch.Client
	src   config.SSBSource
}

func NewClient(fc *fetch.Client, src config.SSBSource) *Client {
	return &Client{fetch: fc, src: src}
}

type selection struct {
	Filter string   `json:"filter"`
	Values []string `json:"values"`
}

type queryItem struct {
	Code      string    `json:"code"`
	Selection selection `json:"selection"`
}

type tableQuery struct {
	Query    []queryItem `json:"query"`
	Response struct {
		Format string `json:"format"`
	} `json:"response"`
}

// Table fetches the latest months of table, restricted to its configured selections.
func (c *Client) Table(ctx context.Context, table config.SSBTable, months int) ([]byte, error) {
	dims := make([]string, 0, len(table.Selections))
	for dim := range table.Selections {
		dims = append(dims, dim)
	}
	slices.Sort(dims)

	var q tableQuery
	for _, dim := range dims {
		q.Query = append(q.Query, queryItem{Code: dim, Selection: selection{Filter: "item", Values: table.Selections[dim]}})
	}
	q.Query = append(q.Query, queryItem{
		Code:      table.TimeDimension,
		Selection: selection{Filter: "top", Values: []string{strconv.Itoa(months)}},
	})
	q.Response.Format = "json-stat2"

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode ssb query: %w", err)
	}
	return c.fetch.Post(ctx, c.src.BaseURL+"/"+table.ID, nil, body)
}
