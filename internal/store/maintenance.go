package store

import (
	"context"
	"fmt"
	"time"
)

// RefreshFeatureStore rebuilds feature_region_week from the weekly health
// and trend facts and returns the number of feature rows.
func (s *Store) RefreshFeatureStore(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin feature refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feature_region_week`); err != nil {
		return 0, fmt.Errorf("clear features: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO feature_region_week
		(region, iso_year, iso_week, influenza_vaccinations, health_alert_level, trend_z_score_max, trend_alert_count)
		SELECT h.region, h.iso_year, h.iso_week, h.influenza_vaccinations, h.health_alert_level,
			(SELECT MAX(t.trend_z_score) FROM fact_trends_region_week t
				WHERE t.region = h.region AND t.iso_year = h.iso_year AND t.iso_week = h.iso_week),
			(SELECT COUNT(*) FROM fact_trends_region_week t
				WHERE t.region = h.region AND t.iso_year = h.iso_year AND t.iso_week = h.iso_week
				AND t.trend_alert_level IS NOT NULL)
		FROM fact_health_signal_week h`)
	if err != nil {
		return 0, fmt.Errorf("rebuild features: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit feature refresh: %w", err)
	}
	return n, nil
}

// CountEmployeesWithoutOrg counts current employees with no organization.
func (s *Store) CountEmployeesWithoutOrg(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dim_employee WHERE is_current AND org_sk IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count employees without org: %w", err)
	}
	return n, nil
}

// CountRosterDaysSince counts roster rows on or after fromKey.
func (s *Store) CountRosterDaysSince(ctx context.Context, fromKey int) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM fact_roster_day WHERE date_sk >= ?`), fromKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count roster days: %w", err)
	}
	return n, nil
}

// DeletePredictionsBefore removes predictions made before cutoff.
//
// SQLite keeps timestamps as text in whatever layout the writer used, so both
// sides are normalized with datetime() before comparing.
func (s *Store) DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM prediction_employee_week WHERE predicted_at < ?`
	var arg any = cutoff.UTC()
	if s.driver == DriverSQLite {
		query = `DELETE FROM prediction_employee_week WHERE datetime(predicted_at) < datetime(?)`
		arg = cutoff.UTC().Format(time.RFC3339)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(query), arg)
	if err != nil {
		return 0, fmt.Errorf("delete predictions: %w", err)
	}
	return res.RowsAffected()
}
