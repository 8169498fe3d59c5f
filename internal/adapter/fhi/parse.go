package fhi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/jsonstat"
)

// Dimension codes of the SYSVAK influenza table.
const (
	dimRegion  = "Geografi"
	dimAge     = "Aldersgruppe"
	dimSex     = "Kjonn"
	dimWeek    = "Uke"
	dimMeasure = "MEASURE_TYPE"
)

type tableQuery struct {
	Dimensions []struct {
		Code   string   `json:"code"`
		Values []string `json:"values"`
	} `json:"dimensions"`
}

// ParseAvailableWeeks reads the week labels offered by a table's query
// template, newest first.
func ParseAvailableWeeks(raw []byte) ([]string, error) {
	var q tableQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, fmt.Errorf("decode table query: %w", err)
	}
	for _, d := range q.Dimensions {
		if d.Code == dimWeek && len(d.Values) > 0 {
			return jsonstat.SortedCodes(d.Values), nil
		}
	}
	return nil, fmt.Errorf("%w: %s not offered by table query", jsonstat.ErrMissingDimension, dimWeek)
}

// ParseWeek parses an FHI week label such as "2025.03".
func ParseWeek(label string) (year, week int, err error) {
	y, w, ok := strings.Cut(label, ".")
	if !ok {
		return 0, 0, fmt.Errorf("week label %q: missing separator", label)
	}
	year, err1 := strconv.Atoi(y)
	week, err2 := strconv.Atoi(w)
	if err := errors.Join(err1, err2); err != nil {
		return 0, 0, fmt.Errorf("week label %q: %w", label, err)
	}
	if week < 1 || week > calendar.WeeksInYear(year) {
		return 0, 0, fmt.Errorf("week label %q: week out of range", label)
	}
	return year, week, nil
}

// Parse decodes a JSON-stat2 SYSVAK payload into weekly vaccination counts.
// regions maps fylke codes to region names; unmapped codes and empty cells
// are skipped. A payload without the region or week dimension is rejected.
func Parse(raw []byte, regions map[string]string) ([]domain.VaccinationWeek, domain.ParseStats, error) {
	var stats domain.ParseStats
	ds, err := jsonstat.Decode(raw)
	if err != nil {
		return nil, stats, err
	}
	if err := ds.Require(dimRegion, dimWeek); err != nil {
		return nil, stats, err
	}

	var out []domain.VaccinationWeek
	for _, cell := range ds.Cells() {
		if cell.Value == nil {
			stats.Skipped++
			continue
		}
		region, ok := regions[ds.Code(cell, dimRegion)]
		if !ok {
			stats.Skipped++
			continue
		}
		year, week, err := ParseWeek(ds.Code(cell, dimWeek))
		if err != nil {
			stats.Skipped++
			continue
		}
		out = append(out, domain.VaccinationWeek{
			Region:                region,
			ISOYear:               year,
			ISOWeek:               week,
			InfluenzaVaccinations: *cell.Value,
			DataSource:            domain.SourceFHISysvak,
		})
		stats.Entries++
	}
	return out, stats, nil
}
