package ssb

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/jsonstat"
)

var monthLabel = regexp.MustCompile(`^(\d{4})M(\d{2})$`)

// MonthKey converts an SSB month label such as "2025M08" to 202508.
func MonthKey(label string) (int, error) {
	m := monthLabel.FindStringSubmatch(label)
	if m == nil {
		return 0, fmt.Errorf("month label %q: want YYYYMmm", label)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month label %q: month out of range", label)
	}
	return year*100 + month, nil
}

// Parse decodes a JSON-stat2 table response into monthly indicator values.
// A cell becomes an indicator when its non-time dimension codes match one of
// the table's configured indicators; other cells, empty cells, and
// unparseable months are skipped.
func Parse(raw []byte, table config.SSBTable, region string) ([]domain.MacroMonth, domain.ParseStats, error) {
	var stats domain.ParseStats
	ds, err := jsonstat.Decode(raw)
	if err != nil {
		return nil, stats, err
	}
	if err := ds.Require(table.TimeDimension); err != nil {
		return nil, stats, err
	}

	var out []domain.MacroMonth
	for _, cell := range ds.Cells() {
		if cell.Value == nil {
			stats.Skipped++
			continue
		}
		name, ok := indicatorFor(ds, cell, table.Indicators)
		if !ok {
			stats.Skipped++
			continue
		}
		key, err := MonthKey(ds.Code(cell, table.TimeDimension))
		if err != nil {
			stats.Skipped++
			continue
		}
		out = append(out, domain.MacroMonth{
			DateKey:    key,
			Indicator:  name,
			Value:      *cell.Value,
			Region:     region,
			DataSource: domain.SourceSSB,
		})
		stats.Entries++
	}
	return out, stats, nil
}

func indicatorFor(ds *jsonstat.Dataset, cell jsonstat.Cell, indicators []config.SSBIndicator) (string, bool) {
	for _, ind := range indicators {
		matched := true
		for dim, code := range ind.Match {
			if ds.Position(dim) < 0 || ds.Code(cell, dim) != code {
				matched = false
				break
			}
		}
		if matched {
			return ind.Name, true
		}
	}
	return "", false
}
