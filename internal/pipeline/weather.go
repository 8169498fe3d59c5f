package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/met"
	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"golang.org/x/sync/errgroup"
)

// ObservationFetcher returns raw station observations for [from, to].
type ObservationFetcher interface {
	Observations(ctx context.Context, stationID string, from, to time.Time) ([]byte, error)
}

// WeatherJob ingests daily weather for every location with a MET station.
type WeatherJob struct {
	env         Env
	frost       ObservationFetcher
	locations   LocationReader
	stations    map[string]string
	thresholds  met.ShiftThresholds
	concurrency int
}

func NewWeatherJob(env Env, frost ObservationFetcher, locations LocationReader, src config.METSource, concurrency int) *WeatherJob {
	th := met.DefaultShiftThresholds
	if src.ColdShockDropC > 0 {
		th.ColdShockDropC = src.ColdShockDropC
	}
	if src.FrontPressureDropHPa > 0 {
		th.FrontPressureDropHPa = src.FrontPressureDropHPa
	}
	if src.FrontWindShiftDeg > 0 {
		th.FrontWindShiftDeg = src.FrontWindShiftDeg
	}
	return &WeatherJob{
		env:         env,
		frost:       frost,
		locations:   locations,
		stations:    src.Stations,
		thresholds:  th,
		concurrency: max(concurrency, 1),
	}
}

func (j *WeatherJob) Name() string { return config.JobWeather }

type weatherResult struct {
	days  []domain.WeatherDay
	stats domain.ParseStats
	err   error
}

// Run accepts date (YYYY-MM-DD, default yesterday) and backfill_days.
func (j *WeatherJob) Run(ctx context.Context, q url.Values) (Report, error) {
	p, err := parseDaily(q, j.env.Today())
	if err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceMETFrost)

	all, err := j.locations.Locations(ctx)
	if err != nil {
		return t.Fail(err)
	}
	var targets []domain.Location
	for _, loc := range all {
		if station, ok := j.stations[loc.Code]; ok {
			loc.StationID = station
			targets = append(targets, loc)
		}
	}

	results := make([]weatherResult, len(targets))
	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for i, loc := range targets {
		g.Go(func() error {
			results[i] = j.fetch(ctx, loc, p)
			return nil
		})
	}
	_ = g.Wait()

	var records []domain.Record
	for i, loc := range targets {
		r := results[i]
		if r.err != nil {
			t.TargetFailed(loc.Code, r.err)
			continue
		}
		t.Parsed(loc.Code, r.stats)
		records = append(records, domain.Records(r.days)...)
	}
	if err := t.Upsert(ctx, records); err != nil {
		return t.Fail(err)
	}

	t.Report.Set("date", p.Date.Format(time.DateOnly))
	t.Report.Set("locations", len(targets))
	if p.BackfillDays > 0 {
		t.Report.Set("from", p.From().Format(time.DateOnly))
	}
	return t.Done(len(targets))
}

// fetch reads one extra leading day so the first requested day can be
// compared with its predecessor, then drops it.
func (j *WeatherJob) fetch(ctx context.Context, loc domain.Location, p dailyParams) weatherResult {
	raw, err := j.frost.Observations(ctx, loc.StationID, p.From().AddDate(0, 0, -1), p.Date)
	if err != nil {
		return weatherResult{err: err}
	}
	if raw == nil {
		return weatherResult{}
	}
	days, stats, err := met.Parse(raw, loc.SK, j.env.Timezone)
	if err != nil {
		return weatherResult{err: err}
	}
	met.ComputeShifts(days, j.thresholds)

	fromKey, toKey := calendar.DateKey(p.From()), calendar.DateKey(p.Date)
	kept := days[:0]
	for _, d := range days {
		if d.DateKey >= fromKey && d.DateKey <= toKey {
			kept = append(kept, d)
		}
	}
	return weatherResult{days: kept, stats: stats}
}
