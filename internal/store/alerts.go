package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/risk-signal-etl/internal/domain"
)

// ReplaceWeekAlerts makes alerts the complete set of combined alerts for an
// ISO week. Combined alerts of that week for organizations not in alerts are
// deleted and the rest upserted, in one transaction. It returns the rows
// written and the rows cleared.
func (s *Store) ReplaceWeekAlerts(ctx context.Context, year, week int, alerts []domain.Alert) (int, int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin replace alerts: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `DELETE FROM alert_risk_week WHERE iso_year = ? AND iso_week = ? AND alert_type = ?`
	args := []any{year, week, domain.AlertTypeCombined}
	if len(alerts) > 0 {
		query += ` AND org_sk NOT IN (` + placeholders(len(alerts)) + `)`
		for _, a := range alerts {
			args = append(args, a.OrgSK)
		}
	}
	res, err := tx.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("clear stale alerts: %w", err)
	}
	cleared, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("clear stale alerts: %w", err)
	}

	n, err := s.upsertTx(ctx, tx, domain.Records(alerts))
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit replace alerts: %w", err)
	}
	return n, cleared, nil
}
