package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

type sqliteScheduleRepo struct {
	db dbtx
}

func (r *sqliteScheduleRepo) Upsert(ctx context.Context, s *models.RebalanceSchedule) error {
	now := time.Now().UTC()
	s.UpdatedAt = now
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rebalance_schedules
			(portfolio_id, frequency, deviation_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id) DO UPDATE SET
			frequency = excluded.frequency,
			deviation_threshold = excluded.deviation_threshold,
			updated_at = excluded.updated_at`,
		s.PortfolioID, s.Frequency, s.DeviationThreshold,
		s.CreatedAt.Format(timestampLayout), s.UpdatedAt.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert schedule for portfolio %s: %w", s.PortfolioID, err)
	}
	return nil
}

func (r *sqliteScheduleRepo) Get(ctx context.Context, portfolioID string) (*models.RebalanceSchedule, error) {
	var s models.RebalanceSchedule
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, frequency, deviation_threshold, created_at, updated_at
		FROM rebalance_schedules WHERE portfolio_id = ?`, portfolioID).
		Scan(&s.ID, &s.PortfolioID, &s.Frequency, &s.DeviationThreshold, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule for portfolio %s: %w", portfolioID, err)
	}
	s.CreatedAt = parseTimestamp(createdAt)
	s.UpdatedAt = parseTimestamp(updatedAt)
	return &s, nil
}

func (r *sqliteScheduleRepo) Delete(ctx context.Context, portfolioID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM rebalance_schedules WHERE portfolio_id = ?", portfolioID)
	if err != nil {
		return fmt.Errorf("delete schedule for portfolio %s: %w", portfolioID, err)
	}
	return requireRowAffected(res, models.ErrScheduleNotFound)
}
