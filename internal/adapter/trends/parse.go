package trends

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// Thresholds are the z-scores at which a week is flagged.
type Thresholds struct {
	Yellow float64
	Red    float64
}

// DefaultThresholds flag 1.5 and 2.0 standard deviations above the mean.
var DefaultThresholds = Thresholds{Yellow: 1.5, Red: 2.0}

// Classify maps a z-score to a severity.
func (t Thresholds) Classify(z float64) domain.Severity {
	switch {
	case z >= t.Red:
		return domain.SeverityRed
	case z >= t.Yellow:
		return domain.SeverityYellow
	default:
		return domain.SeverityNone
	}
}

type searchResponse struct {
	Error            string `json:"error"`
	InterestOverTime *struct {
		TimelineData []timelinePoint `json:"timeline_data"`
	} `json:"interest_over_time"`
}

type timelinePoint struct {
	Date      string   `json:"date"`
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
	Values    []struct {
		ExtractedValue *float64 `json:"extracted_value"`
	} `json:"values"`
}

// Point is one week of relative search interest.
type Point struct {
	Date  time.Time
	Value float64
}

// DecodeTimeline extracts the interest series from a SerpAPI google_trends
// response. Points without a usable date are skipped; a point without a
// value counts as zero interest.
func DecodeTimeline(raw []byte) ([]Point, domain.ParseStats, error) {
	var stats domain.ParseStats
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, stats, fmt.Errorf("decode trends response: %w", err)
	}
	if resp.Error != "" {
		return nil, stats, errors.New("serpapi: " + resp.Error)
	}
	if resp.InterestOverTime == nil {
		return nil, stats, nil
	}

	points := make([]Point, 0, len(resp.InterestOverTime.TimelineData))
	for _, p := range resp.InterestOverTime.TimelineData {
		date, ok := pointDate(p)
		if !ok {
			stats.Skipped++
			continue
		}
		var v float64
		switch {
		case len(p.Values) > 0 && p.Values[0].ExtractedValue != nil:
			v = *p.Values[0].ExtractedValue
		case p.Value != nil:
			v = *p.Value
		}
		points = append(points, Point{Date: date, Value: v})
		stats.Entries++
	}
	return points, stats, nil
}

func pointDate(p timelinePoint) (time.Time, bool) {
	if p.Timestamp != "" {
		if sec, err := strconv.ParseInt(p.Timestamp, 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), true
		}
	}
	if d, err := time.Parse(time.DateOnly, p.Date); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// Score turns a series into weekly trend facts. Mean and population standard
// deviation cover the whole series; each point gets z = (v - mean) / std (0
// when std is 0) and its percentage change against the point two weeks
// earlier (0 for the first two points or a zero base). Both are rounded to
// two decimals; severity uses the unrounded z.
func Score(points []Point, region, term string, th Thresholds) []domain.TrendWeek {
	if len(points) == 0 {
		return nil
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	mean := sum / float64(len(points))
	var sq float64
	for _, p := range points {
		sq += (p.Value - mean) * (p.Value - mean)
	}
	std := math.Sqrt(sq / float64(len(points)))

	out := make([]domain.TrendWeek, len(points))
	for i, p := range points {
		z := 0.0
		if std > 0 {
			z = (p.Value - mean) / std
		}
		base := p.Value
		if i >= 2 {
			base = points[i-2].Value
		}
		pct := 0.0
		if base > 0 {
			pct = (p.Value - base) / base * 100
		}
		year, week := calendar.ISOWeek(p.Date)
		out[i] = domain.TrendWeek{
			Region:      region,
			ISOYear:     year,
			ISOWeek:     week,
			SearchTerm:  term,
			Index:       int(math.Round(p.Value)),
			ZScore:      round2(z),
			PctChange2w: round2(pct),
			AlertLevel:  th.Classify(z),
			DataSource:  domain.SourceGoogleTrends,
		}
	}
	return out
}

// Parse decodes a response and scores it.
func Parse(raw []byte, region, term string, th Thresholds) ([]domain.TrendWeek, domain.ParseStats, error) {
	points, stats, err := DecodeTimeline(raw)
	if err != nil {
		return nil, stats, err
	}
	return Score(points, region, term, th), stats, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
