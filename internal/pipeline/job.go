// Package pipeline holds the ingestion jobs. Each job fetches one external
// source, parses it into canonical fact records, and upserts them through a
// Sink in one batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Report is a job's response body.
type Report interface {
	Outcome() string
}

// Job is a named unit of work triggered over HTTP or by the scheduler.
// Run returns a *ParamError for invalid query parameters; any other error
// means the run failed as a whole. The report is populated in both cases.
type Job interface {
	Name() string
	Run(ctx context.Context, q url.Values) (Report, error)
}

// ErrRunning rejects a trigger while the same job is still running.
var ErrRunning = errors.New("job is already running")

// Exclusive wraps job so that a trigger arriving while a run is in progress
// fails with ErrRunning instead of overlapping it.
func Exclusive(job Job) Job {
	return &exclusive{Job: job}
}

type exclusive struct {
	Job
	mu sync.Mutex
}

func (e *exclusive) Run(ctx context.Context, q url.Values) (Report, error) {
	if !e.mu.TryLock() {
		return domain.IngestReport{Status: domain.StatusError, Message: ErrRunning.Error()}, ErrRunning
	}
	defer e.mu.Unlock()
	return e.Job.Run(ctx, q)
}

// Sink persists records of one table per call.
type Sink interface {
	Upsert(ctx context.Context, records []domain.Record) (int, error)
}

// LocationReader lists reference locations.
type LocationReader interface {
	Locations(ctx context.Context) ([]domain.Location, error)
}

// Env is the shared wiring of every job.
type Env struct {
	Sink     Sink
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Clock    clockwork.Clock
	Timezone *time.Location
}

// Today is the current calendar date in the configured timezone.
func (e Env) Today() time.Time {
	tz := e.Timezone
	if tz == nil {
		tz = time.UTC
	}
	return calendar.Day(e.Clock.Now().In(tz))
}

// pause waits d on the clock unless ctx ends first.
func (e Env) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.Clock.After(d):
		return nil
	}
}

// Tracker accumulates one run's report and metrics.
type Tracker struct {
	env    Env
	job    string
	source string
	start  time.Time
	logger *slog.Logger
	Report domain.IngestReport
}

// Track starts a run of job reading source.
func (e Env) Track(job, source string) *Tracker {
	id := uuid.NewString()
	return &Tracker{
		env:    e,
		job:    job,
		source: source,
		start:  e.Clock.Now(),
		logger: e.Logger.With("job", job, "run_id", id),
		Report: domain.IngestReport{RunID: id},
	}
}

func (t *Tracker) Logger() *slog.Logger { return t.logger }

// TargetFailed records a location, region, or table that could not be
// ingested. The run continues with the remaining targets.
func (t *Tracker) TargetFailed(target string, err error) {
	t.logger.Error("target failed", "target", target, "error", err)
	t.Report.FailedTargets = append(t.Report.FailedTargets, target)
}

// Parsed records parser statistics.
func (t *Tracker) Parsed(target string, stats domain.ParseStats) {
	if stats.Skipped > 0 {
		t.logger.Warn("skipped source entries", "target", target, "skipped", stats.Skipped, "kept", stats.Entries)
		t.env.Metrics.ParseSkips.WithLabelValues(t.source).Add(float64(stats.Skipped))
	}
}

// Upsert writes records and adds them to the report.
func (t *Tracker) Upsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	n, err := t.env.Sink.Upsert(ctx, records)
	if err != nil {
		return err
	}
	t.Written(records[0].Table(), n)
	return nil
}

// Written counts n rows written to table by a path other than Upsert.
func (t *Tracker) Written(table string, n int) {
	t.Report.RecordsInserted += n
	t.env.Metrics.RecordsUpserted.WithLabelValues(table).Add(float64(n))
}

// Done closes a run over targets. When every target failed the run fails.
func (t *Tracker) Done(targets int) (Report, error) {
	failed := len(t.Report.FailedTargets)
	if targets > 0 && failed == targets {
		return t.Fail(fmt.Errorf("all %d targets failed", targets))
	}
	t.Report.Status = domain.StatusFor(failed)
	t.finish()
	t.logger.Info("job finished", "status", t.Report.Status, "records", t.Report.RecordsInserted,
		"failed_targets", failed, "duration_ms", t.Report.DurationMS)
	return t.Report, nil
}

// Fail closes a run that could not complete.
func (t *Tracker) Fail(err error) (Report, error) {
	t.Report.Status = domain.StatusError
	t.Report.Message = err.Error()
	t.finish()
	t.logger.Error("job failed", "error", err, "duration_ms", t.Report.DurationMS)
	return t.Report, err
}

func (t *Tracker) finish() {
	elapsed := t.env.Clock.Since(t.start)
	t.Report.DurationMS = elapsed.Milliseconds()
	t.env.Metrics.JobRuns.WithLabelValues(t.job, t.Report.Status).Inc()
	t.env.Metrics.JobDuration.WithLabelValues(t.job).Observe(elapsed.Seconds())
}

// Invalid returns the report and error for rejected parameters.
func Invalid(err error) (Report, error) {
	perr := &ParamError{Err: err}
	return domain.IngestReport{Status: domain.StatusError, Message: perr.Error()}, perr
}

// IsParamError reports whether err came from parameter validation.
func IsParamError(err error) bool {
	var perr *ParamError
	return errors.As(err, &perr)
}
