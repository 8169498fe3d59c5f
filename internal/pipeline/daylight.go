package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/daylight"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DaylightJob computes sunrise, sunset, and day length for every location
// with coordinates.
type DaylightJob struct {
	env         Env
	locations   LocationReader
	utcOffset   int
	concurrency int
}

func NewDaylightJob(env Env, locations LocationReader, utcOffsetMinutes, concurrency int) *DaylightJob {
	return &DaylightJob{env: env, locations: locations, utcOffset: utcOffsetMinutes, concurrency: max(concurrency, 1)}
}

func (j *DaylightJob) Name() string { return config.JobDaylight }

// Run accepts date (YYYY-MM-DD, default yesterday) and backfill_days.
func (j *DaylightJob) Run(ctx context.Context, q url.Values) (Report, error) {
	p, err := parseDaily(q, j.env.Today())
	if err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceNOAACalc)

	all, err := j.locations.Locations(ctx)
	if err != nil {
		return t.Fail(err)
	}
	var targets []domain.Location
	for _, loc := range all {
		if !loc.HasCoordinates() {
			t.Logger().Warn("location has no coordinates", "target", loc.Code)
			continue
		}
		targets = append(targets, loc)
	}

	days := calendar.Days(p.From(), p.Date)
	results := make([][]domain.DaylightDay, len(targets))
	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for i, loc := range targets {
		g.Go(func() error {
			results[i] = j.compute(loc, days)
			return nil
		})
	}
	_ = g.Wait()

	var records []domain.Record
	for _, r := range results {
		records = append(records, domain.Records(r)...)
	}
	if err := t.Upsert(ctx, records); err != nil {
		return t.Fail(err)
	}

	t.Report.Set("date", p.Date.Format(time.DateOnly))
	t.Report.Set("locations", len(targets))
	t.Report.Set("locations_skipped", len(all)-len(targets))
	return t.Done(len(targets))
}

func (j *DaylightJob) compute(loc domain.Location, days []time.Time) []domain.DaylightDay {
	out := make([]domain.DaylightDay, 0, len(days))
	prev := daylight.Calculate(*loc.Lat, *loc.Lon, days[0].AddDate(0, 0, -1), j.utcOffset)
	for _, d := range days {
		r := daylight.Calculate(*loc.Lat, *loc.Lon, d, j.utcOffset)
		delta := r.DaylightMinutes - prev.DaylightMinutes
		out = append(out, domain.DaylightDay{
			LocationSK:      loc.SK,
			DateKey:         calendar.DateKey(d),
			Sunrise:         clockTime(r.Sunrise),
			Sunset:          clockTime(r.Sunset),
			DaylightMinutes: r.DaylightMinutes,
			DeltaMinutes:    &delta,
			PolarNight:      r.PolarNight,
			MidnightSun:     r.MidnightSun,
			DataSource:      domain.SourceNOAACalc,
		})
		prev = r
	}
	return out
}

func clockTime(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
