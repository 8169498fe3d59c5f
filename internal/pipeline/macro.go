package pipeline

import (
	"context"
	"net/url"

	"github.com/couchcryptid/risk-signal-etl/internal/adapter/ssb"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// TableFetcher returns a raw statistics table for the latest months.
type TableFetcher interface {
	Table(ctx context.Context, table config.SSBTable, months int) ([]byte, error)
}

// MacroJob ingests monthly macroeconomic indicators.
type MacroJob struct {
	env    Env
	client TableFetcher
	src    config.SSBSource
}

func NewMacroJob(env Env, client TableFetcher, src config.SSBSource) *MacroJob {
	return &MacroJob{env: env, client: client, src: src}
}

func (j *MacroJob) Name() string { return config.JobMacro }

type macroParams struct {
	Months int `query:"months" validate:"gte=1,lte=120"`
}

// Run accepts months (1..120, default 3).
func (j *MacroJob) Run(ctx context.Context, q url.Values) (Report, error) {
	var p macroParams
	var err error
	if p.Months, err = IntParam(q, "months", 3); err != nil {
		return Invalid(err)
	}
	if err := Validate(p); err != nil {
		return Invalid(err)
	}
	t := j.env.Track(j.Name(), domain.SourceSSB)

	var records []domain.Record
	for _, table := range j.src.Tables {
		raw, err := j.client.Table(ctx, table, p.Months)
		if err != nil {
			t.TargetFailed(table.ID, err)
			continue
		}
		rows, stats, err := ssb.Parse(raw, table, j.src.Region)
		if err != nil {
			t.TargetFailed(table.ID, err)
			continue
		}
		t.Parsed(table.ID, stats)
		records = append(records, domain.Records(rows)...)
	}
	if err := t.Upsert(ctx, records); err != nil {
		return t.Fail(err)
	}

	t.Report.Set("months_fetched", p.Months)
	t.Report.Set("tables", len(j.src.Tables))
	return t.Done(len(j.src.Tables))
}
