package pipeline

import (
	"context"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/pollen"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// ForecastFetcher returns a raw pollen forecast for a region.
type ForecastFetcher interface {
	Forecast(ctx context.Context, region config.PollenRegion, days int) ([]byte, error)
}

// PollenJob ingests the pollen forecast of every configured region.
type PollenJob struct {
	env     Env
	client  ForecastFetcher
	regions []config.PollenRegion
	delay   time.Duration
}

func NewPollenJob(env Env, client ForecastFetcher, regions []config.PollenRegion, delay time.Duration) *PollenJob {
	return &PollenJob{env: env, client: client, regions: regions, delay: delay}
}

func (j *PollenJob) Name() string { return config.JobPollen }

type pollenParams struct {
	Days int `query:"days" validate:"gte=1,lte=5"`
}

// Run accepts days (1..5, default 5). Regions are requested one at a time
// with a fixed delay between requests.
func (j *PollenJob) Run(ctx context.Context, q url.Values) (Report, error) {
	var p pollenParams
	var err error
	if p.Days, err = IntParam(q, "days", 5); err != nil {
		return Invalid(err)
	}
	if err := Validate(p); err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceGooglePollen)

	var records []domain.Record
	fetched := 0
	for i, region := range j.regions {
		if i > 0 {
			if err := j.env.pause(ctx, j.delay); err != nil {
				return t.Fail(err)
			}
		}
		raw, err := j.client.Forecast(ctx, region, p.Days)
		if err != nil {
			t.TargetFailed(region.Name, err)
			continue
		}
		days, stats, err := pollen.Parse(raw, region.Name)
		if err != nil {
			t.TargetFailed(region.Name, err)
			continue
		}
		t.Parsed(region.Name, stats)
		records = append(records, domain.Records(days)...)
		fetched++
	}
	if err := t.Upsert(ctx, records); err != nil {
		return t.Fail(err)
	}

	t.Report.Set("forecast_days", p.Days)
	t.Report.Set("regions_fetched", fetched)
	return t.Done(len(j.regions))
}
