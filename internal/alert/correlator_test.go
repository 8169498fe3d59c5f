package alert_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/couchcryptid/risk-signal-etl/internal/alert"
	"github.com/couchcryptid/risk-signal-etl/internal/domain"
	"github.com/couchcryptid/risk-signal-etl/internal/observability"
	"github.com/couchcryptid/risk-signal-etl/internal/pipeline"
	"github.com/couchcryptid/risk-signal-etl/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var nordland = domain.Organization{SK: 10, Name: "Bodø crew", Region: "Nordland"}

var nordlandBases = []domain.Location{
	{SK: 1, Code: "ENBO", Region: "Nordland"},
	{SK: 2, Code: "ENEV", Region: "Nordland"},
	{SK: 3, Code: "ENBO", Region: "Nordland"},
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		signals alert.Signals
		want    *domain.Alert
	}{
		{
			name:    "no signals",
			signals: alert.Signals{Locations: nordlandBases, Weather: []domain.WeatherSignal{{LocationSK: 1, ColdShock: true}}},
			want:    nil,
		},
		{
			name: "weather yellow from cold shocks",
			signals: alert.Signals{Locations: nordlandBases, Weather: []domain.WeatherSignal{
				{LocationSK: 1, DateKey: 20250304, ColdShock: true},
				{LocationSK: 2, DateKey: 20250306, ColdShock: true, FrontPassage: true},
			}},
			want: &domain.Alert{
				Level:         domain.SeverityYellow,
				WeatherFlag:   true,
				AffectedBases: []string{"ENBO", "ENEV"},
				Message:       "Weather: 2 cold shocks, 1 front passages",
			},
		},
		{
			name: "weather warnings are red alongside shifts",
			signals: alert.Signals{Locations: nordlandBases[:1], Weather: []domain.WeatherSignal{
				{FrontPassage: true, MetWarningLevel: 2},
				{FrontPassage: true, MetWarningLevel: 3},
				{MetWarningLevel: 1},
			}},
			want: &domain.Alert{
				Level:         domain.SeverityRed,
				WeatherFlag:   true,
				AffectedBases: []string{"ENBO"},
				Message:       "Weather: 0 cold shocks, 2 front passages, 2 MET warnings",
			},
		},
		{
			name: "red weather and yellow health combine to red without trends",
			signals: alert.Signals{
				Locations: nordlandBases[:2],
				Weather: []domain.WeatherSignal{
					{LocationSK: 1, DateKey: 20250304, MetWarningLevel: 2},
					{LocationSK: 2, DateKey: 20250305, MetWarningLevel: 3},
				},
				Health: &domain.HealthSignal{Level: domain.SeverityYellow, InfluenzaCases: ptr(int64(95)), IllnessZScore: ptr(1.8)},
			},
			want: &domain.Alert{
				Level:         domain.SeverityRed,
				WeatherFlag:   true,
				HealthFlag:    true,
				AffectedBases: []string{"ENBO", "ENEV"},
				Message:       "Weather: 2 MET warnings | Health: Influenza cases: 95, z-score: 1.8",
			},
		},
		{
			name: "three cold shocks with no health or trends signal",
			signals: alert.Signals{Locations: nordlandBases, Weather: []domain.WeatherSignal{
				{LocationSK: 1, DateKey: 20250303, ColdShock: true},
				{LocationSK: 1, DateKey: 20250307, ColdShock: true},
				{LocationSK: 2, DateKey: 20250305, ColdShock: true},
			}},
			want: &domain.Alert{
				Level:         domain.SeverityYellow,
				WeatherFlag:   true,
				AffectedBases: []string{"ENBO", "ENEV"},
				Message:       "Weather: 3 cold shocks, 0 front passages",
			},
		},
		{
			name: "health and trends without weather",
			signals: alert.Signals{
				Locations: nordlandBases,
				Health:    &domain.HealthSignal{Level: domain.SeverityRed, InfluenzaCases: ptr(int64(412)), IllnessZScore: ptr(2.7)},
				Trends: []domain.TrendSignal{
					{SearchTerm: "influensa", Level: domain.SeverityYellow, ZScore: 1.62},
					{SearchTerm: "feber", Level: domain.SeverityRed, ZScore: 2.1},
				},
			},
			want: &domain.Alert{
				Level:         domain.SeverityRed,
				HealthFlag:    true,
				TrendsFlag:    true,
				AffectedBases: []string{},
				Message:       `Health: Influenza cases: 412, z-score: 2.7 | Trends: "influensa" spike (z=1.62), "feber" spike (z=2.1)`,
			},
		},
		{
			name:    "health with missing counts",
			signals: alert.Signals{Health: &domain.HealthSignal{Level: domain.SeverityYellow}},
			want: &domain.Alert{
				Level:         domain.SeverityYellow,
				HealthFlag:    true,
				AffectedBases: []string{},
				Message:       "Health: Influenza cases: n/a, z-score: n/a",
			},
		},
		{
			name:    "green health level is not a signal",
			signals: alert.Signals{Health: &domain.HealthSignal{Level: domain.SeverityNone}},
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := alert.Evaluate(nordland, 2025, 10, tt.signals)
			if tt.want != nil {
				tt.want.OrgSK = nordland.SK
				tt.want.ISOYear = 2025
				tt.want.ISOWeek = 10
				tt.want.AlertType = domain.AlertTypeCombined
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, []domain.Alert) error {
	p.calls++
	return errors.New("broker unavailable")
}

func seedStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))

	_, err = s.DB().Exec(`INSERT INTO dim_location (location_sk, icao_iata, lat, lon, region) VALUES
		(1, 'ENBO', 67.27, 14.37, 'Nordland'), (2, 'ENEV', 68.49, 16.68, 'Nordland'), (3, 'ENGM', 60.19, 11.10, 'Oslo')`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO dim_org (org_sk, org_name, region, is_current) VALUES
		(10, 'Bodø crew', 'Nordland', ?), (11, 'Oslo crew', 'Oslo', ?), (12, 'Evenes crew', 'Nordland', ?)`, true, true, true)
	require.NoError(t, err)

	_, err = s.Upsert(ctx, domain.Records([]domain.WeatherDay{
		{LocationSK: 1, DateKey: 20250304, ColdShock: true},
		{LocationSK: 2, DateKey: 20250306, ColdShock: true},
		{LocationSK: 2, DateKey: 20250310, ColdShock: true},
		{LocationSK: 3, DateKey: 20250305, ColdShock: true},
	}))
	require.NoError(t, err)
	return s
}

func TestCorrelator_Run(t *testing.T) {
	s := seedStore(t)
	metrics := observability.NewMetricsForTesting()
	env := pipeline.Env{
		Sink:    s,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: metrics,
		Clock:   clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)),
	}
	pub := &failingPublisher{}
	c := alert.NewCorrelator(env, s, pub)

	r, err := c.Run(context.Background(), url.Values{"week": {"2025-W10"}})
	require.NoError(t, err)
	rep := r.(domain.IngestReport)
	assert.Equal(t, domain.StatusSuccess, rep.Status)
	assert.Equal(t, 2, rep.Details["alerts_generated"])
	assert.Equal(t, "2025-W10", rep.Details["week"])

	var level, message, bases string
	require.NoError(t, s.DB().QueryRow(`SELECT alert_level, message, affected_bases FROM alert_risk_week
		WHERE org_sk = 10 AND iso_year = 2025 AND iso_week = 10 AND alert_type = 'combined'`).Scan(&level, &message, &bases))
	assert.Equal(t, "yellow", level)
	assert.Equal(t, "Weather: 2 cold shocks, 0 front passages", message)
	assert.JSONEq(t, `["ENBO", "ENEV"]`, bases)

	var count int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM alert_risk_week WHERE org_sk = 11`).Scan(&count))
	assert.Zero(t, count, "a single cold shock is below threshold")

	assert.Equal(t, 1, pub.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.AlertPublishErrors), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.AlertsGenerated.WithLabelValues("yellow")), 0)

	// Re-running the week overwrites instead of duplicating.
	_, err = c.Run(context.Background(), url.Values{"week": {"2025-W10"}})
	require.NoError(t, err)
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM alert_risk_week`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCorrelator_RerunClearsAlertsWhoseSignalsCleared(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	env := pipeline.Env{
		Sink:    s,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)),
	}
	c := alert.NewCorrelator(env, s, nil)

	_, err := c.Run(ctx, url.Values{"week": {"2025-W10"}})
	require.NoError(t, err)
	_, err = c.Run(ctx, url.Values{"week": {"2025-W11"}})
	require.NoError(t, err)

	_, err = s.DB().Exec(`DELETE FROM fact_weather_day WHERE location_sk = 2 AND date_sk = 20250306`)
	require.NoError(t, err)
	_, err = s.Upsert(ctx, domain.Records([]domain.Alert{{
		OrgSK: 10, ISOYear: 2025, ISOWeek: 11, AlertType: domain.AlertTypeCombined,
		Level: domain.SeverityYellow, TrendsFlag: true, Message: "kept",
	}}))
	require.NoError(t, err)

	r, err := c.Run(ctx, url.Values{"week": {"2025-W10"}})
	require.NoError(t, err)
	rep := r.(domain.IngestReport)
	assert.Equal(t, 0, rep.Details["alerts_generated"])
	assert.Equal(t, int64(2), rep.Details["alerts_cleared"])

	var week10, week11 int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM alert_risk_week WHERE iso_week = 10`).Scan(&week10))
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM alert_risk_week WHERE iso_week = 11`).Scan(&week11))
	assert.Zero(t, week10)
	assert.Equal(t, 1, week11, "other weeks are untouched")
}

func TestCorrelator_DefaultsToCurrentWeek(t *testing.T) {
	s := seedStore(t)
	env := pipeline.Env{
		Sink:    s,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewFakeClockAt(time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)),
	}
	r, err := alert.NewCorrelator(env, s, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	rep := r.(domain.IngestReport)
	assert.Equal(t, "2025-W11", rep.Details["week"])
	assert.Equal(t, 0, rep.Details["alerts_generated"])
}

func TestCorrelator_InvalidWeek(t *testing.T) {
	env := pipeline.Env{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewFakeClock(),
	}
	_, err := alert.NewCorrelator(env, nil, nil).Run(context.Background(), url.Values{"week": {"2025-W54"}})
	require.Error(t, err)
	assert.True(t, pipeline.IsParamError(err))
}

type brokenReader struct{ alert.Store }

func (brokenReader) CurrentOrganizations(context.Context) ([]domain.Organization, error) {
	return nil, errors.New("dim_org unavailable")
}

func TestCorrelator_ReadFailureIsFatal(t *testing.T) {
	env := pipeline.Env{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: observability.NewMetricsForTesting(),
		Clock:   clockwork.NewFakeClock(),
	}
	r, err := alert.NewCorrelator(env, brokenReader{}, nil).Run(context.Background(), nil)
	require.ErrorContains(t, err, "dim_org unavailable")
	assert.Equal(t, domain.StatusError, r.Outcome())
}
