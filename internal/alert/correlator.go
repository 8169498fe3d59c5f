// Package alert correlates weekly weather, health, and search-trend signals
// per organization into combined risk alerts.
package alert

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/risk-signal-etl/internal/calendar"
	"github.com/couchcryptid/risk-signal-etl/internal/config"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
)

// Thresholds for the weekly weather signal of a region.
const (
	minShiftDays   = 2 // cold shocks or front passages for a yellow weather signal
	minWarningDays = 2 // days with a MET warning for a red weather signal
	warningLevel   = 2 // lowest met_warning_level that counts as a warning
)

// SignalReader reads the stored signals the correlator combines.
type SignalReader interface {
	CurrentOrganizations(ctx context.Context) ([]domain.Organization, error)
	LocationsInRegion(ctx context.Context, region string) ([]domain.Location, error)
	WeatherSignals(ctx context.Context, locationSKs []int64, fromKey, toKey int) ([]domain.WeatherSignal, error)
	HealthSignal(ctx context.Context, region string, year, week int) (*domain.HealthSignal, error)
	TrendSignals(ctx context.Context, region string, year, week int) ([]domain.TrendSignal, error)
}

// Store reads signals and owns the week's stored alerts.
type Store interface {
	SignalReader
	ReplaceWeekAlerts(ctx context.Context, year, week int, alerts []domain.Alert) (written int, cleared int64, err error)
}

// Publisher forwards generated alerts downstream.
type Publisher interface {
	Publish(ctx context.Context, alerts []domain.Alert) error
}

// Correlator generates one combined alert per current organization whose
// region shows any signal in the week. A run replaces the week's alerts, so an
// organization whose signals have cleared loses its earlier alert.
type Correlator struct {
	env       pipeline.Env
	reader    Store
	publisher Publisher
}

// NewCorrelator creates a Correlator. publisher may be nil.
func NewCorrelator(env pipeline.Env, store Store, publisher Publisher) *Correlator {
	return &Correlator{env: env, reader: store, publisher: publisher}
}

func (c *Correlator) Name() string { return config.JobAlerts }

// Signals is everything known about one region for one week.
type Signals struct {
	Locations []domain.Location
	Weather   []domain.WeatherSignal
	Health    *domain.HealthSignal
	Trends    []domain.TrendSignal
}

// Run accepts week (YYYY-Www, default the current ISO week).
func (c *Correlator) Run(ctx context.Context, q url.Values) (pipeline.Report, error) {
	year, week := calendar.ISOWeek(c.env.Today())
	if label := q.Get("week"); label != "" {
		var err error
		if year, week, err = calendar.ParseWeekLabel(label); err != nil {
			return pipeline.Invalid(fmt.Errorf("week: %w", err))
		}
	}
	t := c.env.Track(c.Name(), "correlator")

	orgs, err := c.reader.CurrentOrganizations(ctx)
	if err != nil {
		return t.Fail(err)
	}

	byRegion := make(map[string]Signals)
	var alerts []domain.Alert
	for _, org := range orgs {
		sig, ok := byRegion[org.Region]
		if !ok {
			if sig, err = c.signals(ctx, org.Region, year, week); err != nil {
				return t.Fail(err)
			}
			byRegion[org.Region] = sig
		}
		a := Evaluate(org, year, week, sig)
		if a == nil {
			t.Logger().Debug("no alert", "org", org.Name, "region", org.Region)
			continue
		}
		t.Logger().Info("alert", "org", org.Name, "level", a.Level.String(), "message", a.Message)
		alerts = append(alerts, *a)
	}

	written, cleared, err := c.reader.ReplaceWeekAlerts(ctx, year, week, alerts)
	if err != nil {
		return t.Fail(err)
	}
	t.Written(domain.Alert{}.Table(), written)
	if cleared > 0 {
		t.Logger().Info("cleared stale alerts", "count", cleared)
	}
	for _, a := range alerts {
		c.env.Metrics.AlertsGenerated.WithLabelValues(a.Level.String()).Inc()
	}
	c.publish(ctx, t, alerts)

	t.Report.Set("alerts_generated", len(alerts))
	t.Report.Set("alerts_cleared", cleared)
	t.Report.Set("week", calendar.FormatWeek(year, week))
	return t.Done(0)
}

// publish is best effort; a failure is logged and counted only.
func (c *Correlator) publish(ctx context.Context, t *pipeline.Tracker, alerts []domain.Alert) {
	if c.publisher == nil || len(alerts) == 0 {
		return
	}
	if err := c.publisher.Publish(ctx, alerts); err != nil {
		c.env.Metrics.AlertPublishErrors.Inc()
		t.Logger().Warn("publish alerts failed", "error", err, "alerts", len(alerts))
	}
}

func (c *Correlator) signals(ctx context.Context, region string, year, week int) (Signals, error) {
	var s Signals
	var err error
	if s.Locations, err = c.reader.LocationsInRegion(ctx, region); err != nil {
		return s, err
	}
	if len(s.Locations) > 0 {
		sks := make([]int64, len(s.Locations))
		for i, l := range s.Locations {
			sks[i] = l.SK
		}
		from, to := calendar.WeekKeyRange(year, week)
		if s.Weather, err = c.reader.WeatherSignals(ctx, sks, from, to); err != nil {
			return s, err
		}
	}
	if s.Health, err = c.reader.HealthSignal(ctx, region, year, week); err != nil {
		return s, err
	}
	if s.Trends, err = c.reader.TrendSignals(ctx, region, year, week); err != nil {
		return s, err
	}
	return s, nil
}

type finding struct {
	level   domain.Severity
	details string
}

// Evaluate combines a region's signals into an alert for org, or returns nil
// when no signal fired.
//
// Weather is yellow when at least two cold shocks or two front passages
// occurred in the week, and red when at least two days carried a MET warning
// of level 2 or more. Health fires when the week's stored health level is set;
// each search term with a stored trend level fires on its own. The alert is
// red when any finding is red, otherwise yellow.
func Evaluate(org domain.Organization, year, week int, s Signals) *domain.Alert {
	weather := weatherFindings(s.Weather)
	var health, trends []finding
	if s.Health != nil && s.Health.Level != domain.SeverityNone {
		health = append(health, finding{s.Health.Level, fmt.Sprintf("Influenza cases: %s, z-score: %s",
			formatInt(s.Health.InfluenzaCases), formatFloat(s.Health.IllnessZScore))})
	}
	for _, tr := range s.Trends {
		if tr.Level == domain.SeverityNone {
			continue
		}
		trends = append(trends, finding{tr.Level, fmt.Sprintf("%q spike (z=%s)", tr.SearchTerm, strconv.FormatFloat(tr.ZScore, 'f', -1, 64))})
	}
	if len(weather) == 0 && len(health) == 0 && len(trends) == 0 {
		return nil
	}

	level := domain.SeverityYellow
	var parts []string
	for _, group := range []struct {
		label    string
		findings []finding
	}{{"Weather", weather}, {"Health", health}, {"Trends", trends}} {
		if len(group.findings) == 0 {
			continue
		}
		details := make([]string, len(group.findings))
		for i, f := range group.findings {
			details[i] = f.details
			level = level.Max(f.level)
		}
		parts = append(parts, group.label+": "+strings.Join(details, ", "))
	}

	bases := []string{}
	if len(weather) > 0 {
		seen := make(map[string]bool)
		for _, l := range s.Locations {
			if !seen[l.Code] {
				seen[l.Code] = true
				bases = append(bases, l.Code)
			}
		}
	}

	return &domain.Alert{
		OrgSK:         org.SK,
		ISOYear:       year,
		ISOWeek:       week,
		AlertType:     domain.AlertTypeCombined,
		Level:         level,
		WeatherFlag:   len(weather) > 0,
		HealthFlag:    len(health) > 0,
		TrendsFlag:    len(trends) > 0,
		AffectedBases: bases,
		Message:       strings.Join(parts, " | "),
	}
}

func weatherFindings(days []domain.WeatherSignal) []finding {
	var cold, fronts, warnings int
	for _, d := range days {
		if d.ColdShock {
			cold++
		}
		if d.FrontPassage {
			fronts++
		}
		if d.MetWarningLevel >= warningLevel {
			warnings++
		}
	}
	var out []finding
	if cold >= minShiftDays || fronts >= minShiftDays {
		out = append(out, finding{domain.SeverityYellow, fmt.Sprintf("%d cold shocks, %d front passages", cold, fronts)})
	}
	if warnings >= minWarningDays {
		out = append(out, finding{domain.SeverityRed, fmt.Sprintf("%d MET warnings", warnings)})
	}
	return out
}

func formatInt(v *int64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
