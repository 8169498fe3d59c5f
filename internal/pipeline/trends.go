package pipeline

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/trends"
	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// InterestFetcher returns a raw search-interest series.
type InterestFetcher interface {
	Interest(ctx context.Context, term, geo string, from, to time.Time) ([]byte, error)
}

// TrendsJob ingests weekly search interest for every region and term.
type TrendsJob struct {
	env        Env
	client     InterestFetcher
	src        config.TrendsSource
	thresholds trends.Thresholds
	delay      time.Duration
}

func NewTrendsJob(env Env, client InterestFetcher, src config.TrendsSource, delay time.Duration) *TrendsJob {
	th := trends.DefaultThresholds
	if src.YellowZ > 0 {
		th.Yellow = src.YellowZ
	}
	if src.RedZ > 0 {
		th.Red = src.RedZ
	}
	return &TrendsJob{env: env, client: client, src: src, thresholds: th, delay: delay}
}

func (j *TrendsJob) Name() string { return config.JobTrends }

type trendsParams struct {
	WeeksBack int `query:"weeks_back" validate:"gte=1,lte=52"`
}

// Run accepts weeks_back (1..52, default 4). The series runs from the Monday
// weeks_back weeks before the current week to the current week's Monday.
func (j *TrendsJob) Run(ctx context.Context, q url.Values) (Report, error) {
	var p trendsParams
	var err error
	if p.WeeksBack, err = IntParam(q, "weeks_back", 4); err != nil {
		return Invalid(err)
	}
	if err := Validate(p); err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceGoogleTrends)

	end, _ := calendar.WeekRange(calendar.ISOWeek(j.env.Today()))
	start := end.AddDate(0, 0, -7*p.WeeksBack)

	var records []domain.Record
	targets := 0
	for _, region := range j.src.Regions {
		for _, term := range j.src.Terms {
			if targets > 0 {
				if err := j.env.pause(ctx, j.delay); err != nil {
					return t.Fail(err)
				}
			}
			targets++
			target := region.Name + "/" + term
			raw, err := j.client.Interest(ctx, term, region.Code, start, end)
			if errors.Is(err, trends.ErrNoAPIKey) {
				return t.Fail(err)
			}
			if err != nil {
				t.TargetFailed(target, err)
				continue
			}
			weeks, stats, err := trends.Parse(raw, region.Name, term, j.thresholds)
			if err != nil {
				t.TargetFailed(target, err)
				continue
			}
			t.Parsed(target, stats)
			records = append(records, domain.Records(weeks)...)
		}
	}
	if err := t.Upsert(ctx, records); err != nil {
		return t.Fail(err)
	}

	t.Report.Set("weeks_fetched", p.WeeksBack)
	t.Report.Set("regions", len(j.src.Regions))
	t.Report.Set("terms", len(j.src.Terms))
	return t.Done(targets)
}
