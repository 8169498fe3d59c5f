package met

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// Frost element ids this parser aggregates.
const (
	elemTemp       = "air_temperature"
	elemTempMin    = "min(air_temperature PT1H)"
	elemTempMax    = "max(air_temperature PT1H)"
	elemPrecip     = "sum(precipitation_amount PT24H)"
	elemWindMax    = "max(wind_speed PT1H)"
	elemWindMean   = "mean(wind_speed PT1H)"
	elemGustMax    = "max(wind_speed_of_gust PT1H)"
	elemPressure   = "air_pressure_at_sea_level"
	elemWindDir    = "wind_from_direction"
	elemHumidity   = "relative_humidity"
	elemCloud      = "cloud_area_fraction"
	elemSnow       = "surface_snow_thickness"
	elemVisibility = "horizontal_visibility"
)

type frostResponse struct {
	Data []frostItem `json:"data"`
}

type frostItem struct {
	SourceID      string             `json:"sourceId"`
	ReferenceTime string             `json:"referenceTime"`
	Observations  []frostObservation `json:"observations"`
}

type frostObservation struct {
	ElementID string   `json:"elementId"`
	Value     *float64 `json:"value"`
}

// Parse aggregates hourly Frost observations into one WeatherDay per local
// calendar day in loc, sorted by date.
//
// Averages are running means: each new sample is averaged with the current
// value, (avg + v) / 2, so later hours weigh more than a true daily mean
// would give them. Wind direction, humidity, and cloud cover round after each
// step. Min and max are true running extrema; a day that never saw a value
// leaves the field nil. Precipitation, snow depth, and visibility keep the
// last value seen.
func Parse(raw []byte, locationSK int64, loc *time.Location) ([]domain.WeatherDay, domain.ParseStats, error) {
	var stats domain.ParseStats
	if len(raw) == 0 {
		return nil, stats, nil
	}
	var resp frostResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, stats, fmt.Errorf("decode frost response: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}

	days := make(map[int]*domain.WeatherDay)
	for _, item := range resp.Data {
		ts, err := time.Parse(time.RFC3339, item.ReferenceTime)
		if err != nil {
			stats.Skipped++
			continue
		}
		key := calendar.DateKey(ts.In(loc))
		day, ok := days[key]
		if !ok {
			day = &domain.WeatherDay{LocationSK: locationSK, DateKey: key, DataSource: domain.SourceMETFrost}
			days[key] = day
		}
		for _, o := range item.Observations {
			if o.Value == nil || !apply(day, o.ElementID, *o.Value) {
				stats.Skipped++
				continue
			}
			stats.Entries++
		}
	}

	out := make([]domain.WeatherDay, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateKey < out[j].DateKey })
	return out, stats, nil
}

// apply folds one observation into day and reports whether the element is known.
func apply(day *domain.WeatherDay, element string, v float64) bool {
	switch element {
	case elemTemp:
		day.TempAvg = runningMean(day.TempAvg, v, false)
		day.TempMin = runningMin(day.TempMin, v)
		day.TempMax = runningMax(day.TempMax, v)
	case elemTempMin:
		day.TempMin = runningMin(day.TempMin, v)
	case elemTempMax:
		day.TempMax = runningMax(day.TempMax, v)
	case elemPrecip:
		day.PrecipSum = ptr(v)
	case elemWindMax:
		day.WindMax = runningMax(day.WindMax, v)
	case elemWindMean:
		day.WindAvg = runningMean(day.WindAvg, v, false)
	case elemGustMax:
		day.GustMax = runningMax(day.GustMax, v)
	case elemPressure:
		day.PressureAvg = runningMean(day.PressureAvg, v, false)
	case elemWindDir:
		day.WindDirection = runningMean(day.WindDirection, v, true)
	case elemHumidity:
		day.Humidity = runningMean(day.Humidity, v, true)
	case elemCloud:
		day.CloudCover = runningMean(day.CloudCover, v, true)
	case elemSnow:
		day.SnowDepth = ptr(v)
	case elemVisibility:
		day.Visibility = ptr(v)
	default:
		return false
	}
	return true
}

func runningMean(cur *float64, v float64, round bool) *float64 {
	if cur == nil {
		return ptr(v)
	}
	m := (*cur + v) / 2
	if round {
		m = math.Round(m)
	}
	return &m
}

func runningMin(cur *float64, v float64) *float64 {
	if cur == nil || v < *cur {
		return ptr(v)
	}
	return cur
}

func runningMax(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return ptr(v)
	}
	return cur
}

func ptr(v float64) *float64 { return &v }
