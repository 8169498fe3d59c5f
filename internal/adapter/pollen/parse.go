package pollen

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// Pollen type codes kept from the forecast, mapped to stored pollen_type.
var pollenTypes = map[string]string{
	"GRASS": "grass",
	"TREE":  "tree",
	"WEED":  "weed",
}

type forecastResponse struct {
	DailyInfo []dailyInfo `json:"dailyInfo"`
}

type dailyInfo struct {
	Date struct {
		Year  int `json:"year"`
		Month int `json:"month"`
		Day   int `json:"day"`
	} `json:"date"`
	PollenTypeInfo []typeInfo  `json:"pollenTypeInfo"`
	PlantInfo      []plantInfo `json:"plantInfo"`
}

type typeInfo struct {
	Code      string     `json:"code"`
	IndexInfo *indexInfo `json:"indexInfo"`
}

type indexInfo struct {
	Value float64 `json:"value"`
}

type plantInfo struct {
	Code             string `json:"code"`
	DisplayName      string `json:"displayName"`
	PlantDescription *struct {
		Type string `json:"type"`
	} `json:"plantDescription"`
}

// Level converts a Universal Pollen Index value (0-5) to the 0-4 scale.
func Level(upi float64) int {
	return min(int(math.Floor(upi/1.25)), 4)
}

// Parse turns a forecast:lookup response into one PollenDay per day and
// pollen type. Types without index info are out of season and skipped.
func Parse(raw []byte, region string) ([]domain.PollenDay, domain.ParseStats, error) {
	var stats domain.ParseStats
	var resp forecastResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, stats, fmt.Errorf("decode pollen forecast: %w", err)
	}

	var out []domain.PollenDay
	for _, day := range resp.DailyInfo {
		d := day.Date
		if d.Year == 0 || d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Day > 31 {
			stats.Skipped += max(len(day.PollenTypeInfo), 1)
			continue
		}
		dateKey := d.Year*10000 + d.Month*100 + d.Day
		if _, err := calendar.DateFromKey(dateKey); err != nil {
			stats.Skipped += max(len(day.PollenTypeInfo), 1)
			continue
		}

		for _, info := range day.PollenTypeInfo {
			pollenType, ok := pollenTypes[info.Code]
			if !ok || info.IndexInfo == nil {
				stats.Skipped++
				continue
			}
			upi := info.IndexInfo.Value
			out = append(out, domain.PollenDay{
				Region:           region,
				DateKey:          dateKey,
				PollenType:       pollenType,
				Level:            Level(upi),
				UPI:              upi,
				PlantDescription: plantsFor(day.PlantInfo, info.Code),
				DataSource:       domain.SourceGooglePollen,
			})
			stats.Entries++
		}
	}
	return out, stats, nil
}

// plantsFor joins the display names of the plants belonging to a pollen type.
func plantsFor(plants []plantInfo, code string) *string {
	var names []string
	for _, p := range plants {
		if (p.PlantDescription != nil && p.PlantDescription.Type == code) || p.Code == code {
			name := p.DisplayName
			if name == "" {
				name = p.Code
			}
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	s := strings.Join(names, ", ")
	return &s
}
