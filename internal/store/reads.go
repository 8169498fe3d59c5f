package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// Locations returns every location, ordered by surrogate key.
func (s *Store) Locations(ctx context.Context) ([]domain.Location, error) {
	return s.locations(ctx, `SELECT location_sk, icao_iata, lat, lon, region FROM dim_location ORDER BY location_sk`)
}

// LocationsInRegion returns the locations of one region.
func (s *Store) LocationsInRegion(ctx context.Context, region string) ([]domain.Location, error) {
	return s.locations(ctx, `SELECT location_sk, icao_iata, lat, lon, region FROM dim_location
		WHERE region = ? ORDER BY location_sk`, region)
}

func (s *Store) locations(ctx context.Context, query string, args ...any) ([]domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var out []domain.Location
	for rows.Next() {
		var (
			l        domain.Location
			lat, lon sql.NullFloat64
		)
		if err := rows.Scan(&l.SK, &l.Code, &lat, &lon, &l.Region); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		if lat.Valid {
			l.Lat = &lat.Float64
		}
		if lon.Valid {
			l.Lon = &lon.Float64
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CurrentOrganizations returns organizations flagged current.
func (s *Store) CurrentOrganizations(ctx context.Context) ([]domain.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT org_sk, org_name, region FROM dim_org WHERE is_current ORDER BY org_sk`)
	if err != nil {
		return nil, fmt.Errorf("query organizations: %w", err)
	}
	defer rows.Close()

	var out []domain.Organization
	for rows.Next() {
		var o domain.Organization
		if err := rows.Scan(&o.SK, &o.Name, &o.Region); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// WeatherSignals returns the weather days of the given locations whose date
// key lies in [fromKey, toKey].
func (s *Store) WeatherSignals(ctx context.Context, locationSKs []int64, fromKey, toKey int) ([]domain.WeatherSignal, error) {
	if len(locationSKs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(locationSKs)+2)
	for _, sk := range locationSKs {
		args = append(args, sk)
	}
	args = append(args, fromKey, toKey)
	query := `SELECT location_sk, date_sk, cold_shock_flag, front_passage_flag, met_warning_level
		FROM fact_weather_day
		WHERE location_sk IN (` + placeholders(len(locationSKs)) + `) AND date_sk BETWEEN ? AND ?
		ORDER BY location_sk, date_sk`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query weather signals: %w", err)
	}
	defer rows.Close()

	var out []domain.WeatherSignal
	for rows.Next() {
		var (
			w            domain.WeatherSignal
			cold, front  sql.NullBool
			warningLevel sql.NullInt64
		)
		if err := rows.Scan(&w.LocationSK, &w.DateKey, &cold, &front, &warningLevel); err != nil {
			return nil, fmt.Errorf("scan weather signal: %w", err)
		}
		w.ColdShock = cold.Bool
		w.FrontPassage = front.Bool
		w.MetWarningLevel = int(warningLevel.Int64)
		out = append(out, w)
	}
	return out, rows.Err()
}

// HealthSignal returns the region's week when its health alert level is set,
// or nil.
func (s *Store) HealthSignal(ctx context.Context, region string, year, week int) (*domain.HealthSignal, error) {
	var (
		h     domain.HealthSignal
		cases sql.NullInt64
		z     sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT health_alert_level, influenza_cases, illness_z_score_4w
		FROM fact_health_signal_week
		WHERE region = ? AND iso_year = ? AND iso_week = ? AND health_alert_level IS NOT NULL`),
		region, year, week).Scan(&h.Level, &cases, &z)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query health signal: %w", err)
	}
	if cases.Valid {
		h.InfluenzaCases = &cases.Int64
	}
	if z.Valid {
		h.IllnessZScore = &z.Float64
	}
	return &h, nil
}

// TrendSignals returns the region's search terms for a week whose alert
// level is set.
func (s *Store) TrendSignals(ctx context.Context, region string, year, week int) ([]domain.TrendSignal, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT search_term, trend_alert_level, trend_z_score
		FROM fact_trends_region_week
		WHERE region = ? AND iso_year = ? AND iso_week = ? AND trend_alert_level IS NOT NULL
		ORDER BY search_term`), region, year, week)
	if err != nil {
		return nil, fmt.Errorf("query trend signals: %w", err)
	}
	defer rows.Close()

	var out []domain.TrendSignal
	for rows.Next() {
		var (
			t domain.TrendSignal
			z sql.NullFloat64
		)
		if err := rows.Scan(&t.SearchTerm, &t.Level, &z); err != nil {
			return nil, fmt.Errorf("scan trend signal: %w", err)
		}
		t.ZScore = z.Float64
		out = append(out, t)
	}
	return out, rows.Err()
}
