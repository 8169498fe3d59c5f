package met

import (
	"math"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// ShiftThresholds define the day-over-day changes that count as a weather shift.
type ShiftThresholds struct {
	ColdShockDropC       float64
	FrontPressureDropHPa float64
	FrontWindShiftDeg    float64
}

// DefaultShiftThresholds are used when no thresholds are configured.
var DefaultShiftThresholds = ShiftThresholds{
	ColdShockDropC:       5,
	FrontPressureDropHPa: 6,
	FrontWindShiftDeg:    90,
}

// ComputeShifts sets the cold-shock and front-passage flags on days, which
// must be sorted by date. Each day is compared with the calendar day before
// it; a day without its predecessor in the slice keeps both flags false.
//
// Cold shock: the mean temperature fell by at least ColdShockDropC.
// Front passage: sea-level pressure fell by at least FrontPressureDropHPa and
// the mean wind direction swung by at least FrontWindShiftDeg.
func ComputeShifts(days []domain.WeatherDay, th ShiftThresholds) {
	for i := range days {
		days[i].ColdShock = false
		days[i].FrontPassage = false
		if i == 0 || !consecutive(days[i-1].DateKey, days[i].DateKey) {
			continue
		}
		prev, cur := days[i-1], &days[i]

		if prev.TempAvg != nil && cur.TempAvg != nil && *prev.TempAvg-*cur.TempAvg >= th.ColdShockDropC {
			cur.ColdShock = true
		}
		if prev.PressureAvg != nil && cur.PressureAvg != nil &&
			prev.WindDirection != nil && cur.WindDirection != nil &&
			*prev.PressureAvg-*cur.PressureAvg >= th.FrontPressureDropHPa &&
			angularDistance(*prev.WindDirection, *cur.WindDirection) >= th.FrontWindShiftDeg {
			cur.FrontPassage = true
		}
	}
}

func consecutive(prevKey, key int) bool {
	p, err := calendar.DateFromKey(prevKey)
	if err != nil {
		return false
	}
	return calendar.DateKey(p.AddDate(0, 0, 1)) == key
}

// angularDistance is the smallest angle between two compass bearings, 0..180.
func angularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
