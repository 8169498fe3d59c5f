package met

import (
	"testing"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const frostPayload = `{
  "data": [
    {"sourceId": "SN90450:0", "referenceTime": "2025-03-03T06:00:00.000Z", "observations": [
      {"elementId": "air_temperature", "value": -2.0},
      {"elementId": "wind_from_direction", "value": 181},
      {"elementId": "relative_humidity", "value": 80},
      {"elementId": "air_pressure_at_sea_level", "value": 1010.0},
      {"elementId": "max(wind_speed PT1H)", "value": 7.5},
      {"elementId": "sum(precipitation_amount PT24H)", "value": 1.2}
    ]},
    {"sourceId": "SN90450:0", "referenceTime": "2025-03-03T07:00:00.000Z", "observations": [
      {"elementId": "air_temperature", "value": 2.0},
      {"elementId": "wind_from_direction", "value": 190},
      {"elementId": "relative_humidity", "value": 85},
      {"elementId": "air_pressure_at_sea_level", "value": 1008.0},
      {"elementId": "max(wind_speed PT1H)", "value": 5.0},
      {"elementId": "sum(precipitation_amount PT24H)", "value": 3.4}
    ]},
    {"sourceId": "SN90450:0", "referenceTime": "2025-03-03T08:00:00.000Z", "observations": [
      {"elementId": "air_temperature", "value": 4.0},
      {"elementId": "min(air_temperature PT1H)", "value": -3.5},
      {"elementId": "unknown_element", "value": 1},
      {"elementId": "surface_snow_thickness", "value": null}
    ]},
    {"sourceId": "SN90450:0", "referenceTime": "2025-03-03T23:30:00.000Z", "observations": [
      {"elementId": "cloud_area_fraction", "value": 6}
    ]},
    {"sourceId": "SN90450:0", "referenceTime": "not-a-time", "observations": []}
  ]
}`

func TestParse_RunningAggregation(t *testing.T) {
	days, stats, err := Parse([]byte(frostPayload), 7, time.UTC)
	require.NoError(t, err)
	require.Len(t, days, 1)

	d := days[0]
	assert.Equal(t, int64(7), d.LocationSK)
	assert.Equal(t, 20250303, d.DateKey)
	assert.Equal(t, domain.SourceMETFrost, d.DataSource)

	// (((-2 + 2) / 2) + 4) / 2 = 2, not the arithmetic mean 1.333.
	require.NotNil(t, d.TempAvg)
	assert.InDelta(t, 2.0, *d.TempAvg, 1e-9)
	assert.InDelta(t, -3.5, *d.TempMin, 1e-9)
	assert.InDelta(t, 4.0, *d.TempMax, 1e-9)

	// Rounded running mean: round((181+190)/2) = 186 (185.5 rounds up).
	assert.InDelta(t, 186, *d.WindDirection, 1e-9)
	assert.InDelta(t, 83, *d.Humidity, 1e-9)
	assert.InDelta(t, 1009.0, *d.PressureAvg, 1e-9)
	assert.InDelta(t, 7.5, *d.WindMax, 1e-9)
	assert.InDelta(t, 3.4, *d.PrecipSum, 1e-9, "last value wins")
	assert.InDelta(t, 6, *d.CloudCover, 1e-9)
	assert.Nil(t, d.SnowDepth)
	assert.Nil(t, d.GustMax)

	assert.Equal(t, 15, stats.Entries)
	assert.Equal(t, 3, stats.Skipped, "unknown element, null value, bad timestamp")
}

func TestParse_GroupsByLocalDay(t *testing.T) {
	oslo, err := time.LoadLocation("Europe/Oslo")
	require.NoError(t, err)

	days, _, err := Parse([]byte(frostPayload), 7, oslo)
	require.NoError(t, err)

	// 23:30Z on the 3rd is 00:30 local on the 4th.
	require.Len(t, days, 2)
	assert.Equal(t, 20250304, days[1].DateKey)
	assert.InDelta(t, 6, *days[1].CloudCover, 1e-9)
	assert.Nil(t, days[1].TempMin, "no temperature seen, no extremum")
	assert.Nil(t, days[1].TempMax)
}

func TestParse_NegativeExtremaAreKept(t *testing.T) {
	payload := `{"data":[
	  {"referenceTime":"2025-01-10T00:00:00Z","observations":[{"elementId":"air_temperature","value":0}]},
	  {"referenceTime":"2025-01-10T01:00:00Z","observations":[{"elementId":"air_temperature","value":-12.5}]},
	  {"referenceTime":"2025-01-10T02:00:00Z","observations":[{"elementId":"max(air_temperature PT1H)","value":-1}]}
	]}`
	days, _, err := Parse([]byte(payload), 1, time.UTC)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.InDelta(t, -12.5, *days[0].TempMin, 1e-9)
	assert.InDelta(t, 0, *days[0].TempMax, 1e-9)
}

func TestParse_EmptyAndMalformed(t *testing.T) {
	days, _, err := Parse(nil, 1, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, days)

	days, _, err = Parse([]byte(`{"data":[]}`), 1, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, days)

	_, _, err = Parse([]byte(`{"data":`), 1, time.UTC)
	require.Error(t, err)
}
