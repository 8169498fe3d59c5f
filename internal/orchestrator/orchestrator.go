// Package orchestrator runs the periodic maintenance of the fact store:
// feature refresh, data-quality checks, and prediction retention.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
)

// Step names, in execution order.
const (
	StepRefreshFeatures = "refresh_feature_store"
	StepQualityChecks   = "data_quality_checks"
	StepCleanup         = "cleanup_old_predictions"
)

// Check names.
const (
	CheckEmployeesHaveOrg = "employees_have_org"
	CheckRecentRoster     = "recent_roster_data"
)

// rosterWindowDays is how far back recent_roster_data looks.
const rosterWindowDays = 7

// Maintainer is the store surface the steps use.
type Maintainer interface {
	RefreshFeatureStore(ctx context.Context) (int64, error)
	CountEmployeesWithoutOrg(ctx context.Context) (int64, error)
	CountRosterDaysSince(ctx context.Context, fromKey int) (int64, error)
	DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Orchestrator struct {
	env           pipeline.Env
	store         Maintainer
	retentionDays int
}

func New(env pipeline.Env, store Maintainer, retentionDays int) *Orchestrator {
	return &Orchestrator{env: env, store: store, retentionDays: retentionDays}
}

func (o *Orchestrator) Name() string { return config.JobETL }

// outcome is what a step reports on success.
type outcome struct {
	message  string
	affected *int64
	checks   []domain.CheckResult
	err      error // set when the step ran but did not pass
}

type step struct {
	name string
	run  func(ctx context.Context) (outcome, error)
}

// Run executes every step in order. A failing or panicking step is recorded
// and the next step still runs. The run itself fails only when it cannot be
// set up; the report then carries the results collected so far.
func (o *Orchestrator) Run(ctx context.Context, _ url.Values) (rep pipeline.Report, err error) {
	start := o.env.Clock.Now()
	logger := o.env.Logger.With("job", o.Name())
	var results []domain.JobResult

	defer func() {
		if r := recover(); r != nil {
			rep, err = o.fatal(start, results, fmt.Errorf("orchestrator panic: %v", r))
		}
	}()

	if err := o.setup(); err != nil {
		return o.fatal(start, results, err)
	}

	for _, s := range o.steps() {
		res := o.runStep(ctx, s)
		if res.Status == domain.StatusSuccess {
			logger.Info("step succeeded", "step", res.Step, "message", res.Message, "duration_ms", res.DurationMS)
		} else {
			logger.Error("step failed", "step", res.Step, "error", res.Message, "duration_ms", res.DurationMS)
		}
		results = append(results, res)
	}

	report := domain.OrchestratorReport{
		Status:         domain.StatusSuccess,
		StepsCompleted: len(results),
		Results:        results,
	}
	for _, r := range results {
		if r.Status == domain.StatusSuccess {
			report.StepsSucceeded++
		} else {
			report.StepsFailed++
		}
	}
	if report.StepsFailed > 0 {
		report.Status = domain.StatusPartialSuccess
	}
	report.TotalDurationMS = o.env.Clock.Since(start).Milliseconds()
	o.env.Metrics.JobRuns.WithLabelValues(o.Name(), report.Status).Inc()
	o.env.Metrics.JobDuration.WithLabelValues(o.Name()).Observe(o.env.Clock.Since(start).Seconds())
	logger.Info("orchestrator finished", "status", report.Status,
		"succeeded", report.StepsSucceeded, "failed", report.StepsFailed, "duration_ms", report.TotalDurationMS)
	return report, nil
}

func (o *Orchestrator) setup() error {
	if o.store == nil {
		return errors.New("no store configured")
	}
	if o.retentionDays <= 0 {
		return fmt.Errorf("prediction retention must be positive, got %d days", o.retentionDays)
	}
	return nil
}

func (o *Orchestrator) fatal(start time.Time, results []domain.JobResult, err error) (pipeline.Report, error) {
	o.env.Logger.Error("orchestrator failed", "job", o.Name(), "error", err)
	o.env.Metrics.JobRuns.WithLabelValues(o.Name(), domain.StatusError).Inc()
	if results == nil {
		results = []domain.JobResult{}
	}
	return domain.OrchestratorReport{
		Status:          domain.StatusError,
		Message:         err.Error(),
		TotalDurationMS: o.env.Clock.Since(start).Milliseconds(),
		StepsCompleted:  len(results),
		Results:         results,
	}, err
}

func (o *Orchestrator) steps() []step {
	return []step{
		{StepRefreshFeatures, o.refreshFeatures},
		{StepQualityChecks, o.qualityChecks},
		{StepCleanup, o.cleanup},
	}
}

func (o *Orchestrator) runStep(ctx context.Context, s step) (res domain.JobResult) {
	start := o.env.Clock.Now()
	res.Step = s.name
	defer func() {
		if r := recover(); r != nil {
			res.Status = domain.StatusError
			res.Message = fmt.Sprintf("panic: %v", r)
			res.Checks = nil
			res.RecordsAffected = nil
		}
		res.DurationMS = o.env.Clock.Since(start).Milliseconds()
		o.env.Metrics.OrchestratorSteps.WithLabelValues(res.Step, res.Status).Inc()
	}()

	out, err := s.run(ctx)
	if err == nil {
		err = out.err
	}
	res.RecordsAffected = out.affected
	res.Checks = out.checks
	if err != nil {
		res.Status = domain.StatusError
		res.Message = err.Error()
		return res
	}
	res.Status = domain.StatusSuccess
	res.Message = out.message
	return res
}

func (o *Orchestrator) refreshFeatures(ctx context.Context) (outcome, error) {
	n, err := o.store.RefreshFeatureStore(ctx)
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: "Feature store refreshed successfully", affected: &n}, nil
}

func (o *Orchestrator) qualityChecks(ctx context.Context) (outcome, error) {
	var checks []domain.CheckResult

	missing, err := o.store.CountEmployeesWithoutOrg(ctx)
	if err != nil {
		checks = append(checks, domain.CheckResult{Name: CheckEmployeesHaveOrg, Detail: err.Error()})
	} else {
		checks = append(checks, domain.CheckResult{
			Name:   CheckEmployeesHaveOrg,
			Passed: missing == 0,
			Detail: fmt.Sprintf("%d current employees without organization", missing),
		})
	}

	since := o.env.Today().AddDate(0, 0, -rosterWindowDays)
	recent, err := o.store.CountRosterDaysSince(ctx, calendar.DateKey(since))
	if err != nil {
		checks = append(checks, domain.CheckResult{Name: CheckRecentRoster, Detail: err.Error()})
	} else {
		checks = append(checks, domain.CheckResult{
			Name:   CheckRecentRoster,
			Passed: recent > 0,
			Detail: fmt.Sprintf("%d roster rows since %s", recent, since.Format(time.DateOnly)),
		})
	}

	var failed []string
	for _, c := range checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	out := outcome{checks: checks}
	if len(failed) > 0 {
		out.err = fmt.Errorf("%d checks failed: %s", len(failed), strings.Join(failed, ", "))
		return out, nil
	}
	out.message = fmt.Sprintf("All %d quality checks passed", len(checks))
	return out, nil
}

func (o *Orchestrator) cleanup(ctx context.Context) (outcome, error) {
	cutoff := o.env.Clock.Now().AddDate(0, 0, -o.retentionDays)
	n, err := o.store.DeletePredictionsBefore(ctx, cutoff)
	if err != nil {
		return outcome{}, err
	}
	return outcome{message: fmt.Sprintf("Deleted %d old predictions", n), affected: &n}, nil
}
