package pollen

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/fetch"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const forecastPayload = `{
  "regionCode": "no",
  "dailyInfo": [
    {
      "date": {"year": 2025, "month": 5, "day": 12},
      "pollenTypeInfo": [
        {"code": "GRASS", "displayName": "Grass", "indexInfo": {"code": "UPI", "value": 2}},
        {"code": "TREE", "displayName": "Tree", "indexInfo": {"code": "UPI", "value": 5}},
        {"code": "WEED", "displayName": "Weed"}
      ],
      "plantInfo": [
        {"code": "BIRCH", "displayName": "Birch", "plantDescription": {"type": "TREE"}},
        {"code": "ALDER", "displayName": "Alder", "plantDescription": {"type": "TREE"}},
        {"code": "GRAMINALES", "displayName": "Grasses", "plantDescription": {"type": "GRASS"}}
      ]
    },
    {
      "date": {"year": 2025, "month": 5, "day": 13},
      "pollenTypeInfo": [
        {"code": "GRASS", "indexInfo": {"value": 1.2}},
        {"code": "MOLD", "indexInfo": {"value": 3}}
      ]
    }
  ]
}`

func TestLevel(t *testing.T) {
	for upi, want := range map[float64]int{0: 0, 1.2: 0, 1.25: 1, 2: 1, 2.5: 2, 3.75: 3, 4.9: 3, 5: 4} {
		assert.Equal(t, want, Level(upi), "upi %v", upi)
	}
}

func TestParse(t *testing.T) {
	days, stats, err := Parse([]byte(forecastPayload), "Nordland")
	require.NoError(t, err)
	require.Len(t, days, 3)

	grass := days[0]
	assert.Equal(t, "Nordland", grass.Region)
	assert.Equal(t, 20250512, grass.DateKey)
	assert.Equal(t, "grass", grass.PollenType)
	assert.Equal(t, 1, grass.Level)
	assert.InDelta(t, 2, grass.UPI, 0)
	require.NotNil(t, grass.PlantDescription)
	assert.Equal(t, "Grasses", *grass.PlantDescription)
	assert.Equal(t, domain.SourceGooglePollen, grass.DataSource)

	tree := days[1]
	assert.Equal(t, 4, tree.Level)
	assert.Equal(t, "Birch, Alder", *tree.PlantDescription)

	assert.Equal(t, 20250513, days[2].DateKey)
	assert.Nil(t, days[2].PlantDescription)

	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 2, stats.Skipped, "out-of-season weed and unknown mold")
}

func TestParse_InvalidDateAndPayload(t *testing.T) {
	days, stats, err := Parse([]byte(`{"dailyInfo":[{"date":{"year":2025,"month":2,"day":30},
		"pollenTypeInfo":[{"code":"GRASS","indexInfo":{"value":1}}]}]}`), "Oslo")
	require.NoError(t, err)
	assert.Empty(t, days)
	assert.Equal(t, 1, stats.Skipped)

	days, _, err = Parse([]byte(`{}`), "Oslo")
	require.NoError(t, err)
	assert.Empty(t, days)

	_, _, err = Parse([]byte(`[`), "Oslo")
	require.Error(t, err)
}

func TestClient_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "67.2804", q.Get("location.latitude"))
		assert.Equal(t, "14.4049", q.Get("location.longitude"))
		assert.Equal(t, "5", q.Get("days"))
		assert.Equal(t, "en", q.Get("languageCode"))
		assert.Equal(t, "k", q.Get("key"))
		_, _ = io.WriteString(w, forecastPayload)
	}))
	defer srv.Close()

	c := NewClient(fetch.NewClient("pollen", fetch.Options{Clock: clockwork.NewFakeClock()}),
		config.PollenSource{BaseURL: srv.URL, Language: "en"}, "k")
	body, err := c.Forecast(context.Background(), config.PollenRegion{Name: "Nordland", Lat: 67.2804, Lon: 14.4049}, 5)
	require.NoError(t, err)

	days, _, err := Parse(body, "Nordland")
	require.NoError(t, err)
	assert.Len(t, days, 3)
}
