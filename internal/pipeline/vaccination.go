package pipeline

import (
	"context"
	"net/url"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/fhi"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// VaccinationFetcher lists the published weeks and fetches their counts.
type VaccinationFetcher interface {
	AvailableWeeks(ctx context.Context) ([]string, error)
	Data(ctx context.Context, weeks []string) ([]byte, error)
}

// VaccinationJob ingests weekly influenza vaccination counts per region.
type VaccinationJob struct {
	env     Env
	client  VaccinationFetcher
	regions map[string]string
}

func NewVaccinationJob(env Env, client VaccinationFetcher, regions map[string]string) *VaccinationJob {
	return &VaccinationJob{env: env, client: client, regions: regions}
}

func (j *VaccinationJob) Name() string { return config.JobVaccination }

type vaccinationParams struct {
	WeeksBack int `query:"weeks_back" validate:"gte=1,lte=104"`
}

// Run accepts weeks_back (1..104, default 12): the number of most recent
// published weeks to fetch.
func (j *VaccinationJob) Run(ctx context.Context, q url.Values) (Report, error) {
	var p vaccinationParams
	var err error
	if p.WeeksBack, err = IntParam(q, "weeks_back", 12); err != nil {
		return Invalid(err)
	}
	if err := Validate(p); err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceFHISysvak)

	weeks, err := j.client.AvailableWeeks(ctx)
	if err != nil {
		return t.Fail(err)
	}
	if len(weeks) > p.WeeksBack {
		weeks = weeks[:p.WeeksBack]
	}

	var rows []domain.VaccinationWeek
	if len(weeks) > 0 {
		raw, err := j.client.Data(ctx, weeks)
		if err != nil {
			return t.Fail(err)
		}
		var stats domain.ParseStats
		rows, stats, err = fhi.Parse(raw, j.regions)
		if err != nil {
			return t.Fail(err)
		}
		t.Parsed("sysvak", stats)
	}
	if err := t.Upsert(ctx, domain.Records(rows)); err != nil {
		return t.Fail(err)
	}

	regions := make(map[string]struct{})
	for _, r := range rows {
		regions[r.Region] = struct{}{}
	}
	t.Report.Set("weeks_fetched", len(weeks))
	t.Report.Set("regions", len(regions))
	return t.Done(0)
}
