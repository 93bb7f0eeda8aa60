package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

const timestampLayout = time.RFC3339

type sqlitePortfolioRepo struct {
	db dbtx
}

func (r *sqlitePortfolioRepo) Create(ctx context.Context, p *models.Portfolio) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO portfolios (id, user_id, name, currency, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Currency, p.IsActive,
		now.Format(timestampLayout), now.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert portfolio %s: %w", p.ID, err)
	}
	return nil
}

func (r *sqlitePortfolioRepo) GetByID(ctx context.Context, id string) (*models.Portfolio, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, is_active, created_at, updated_at
		FROM portfolios WHERE id = ?`, id)
	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio %s: %w", id, err)
	}
	return p, nil
}

func (r *sqlitePortfolioRepo) ListByUser(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, currency, is_active, created_at, updated_at
		FROM portfolios WHERE user_id = ? AND is_active = TRUE
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query portfolios for user %d: %w", userID, err)
	}
	defer rows.Close()

	portfolios := []models.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio for user %d: %w", userID, err)
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}

func (r *sqlitePortfolioRepo) Update(ctx context.Context, p *models.Portfolio) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE portfolios SET name = ?, currency = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Currency, p.UpdatedAt.Format(timestampLayout), p.ID)
	if err != nil {
		return fmt.Errorf("update portfolio %s: %w", p.ID, err)
	}
	return requireRowAffected(res, models.ErrPortfolioNotFound)
}

func (r *sqlitePortfolioRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE portfolios SET is_active = FALSE, updated_at = ?
		WHERE id = ? AND is_active = TRUE`,
		time.Now().UTC().Format(timestampLayout), id)
	if err != nil {
		return fmt.Errorf("soft delete portfolio %s: %w", id, err)
	}
	return requireRowAffected(res, models.ErrPortfolioNotFound)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (*models.Portfolio, error) {
	var p models.Portfolio
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Currency, &p.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTimestamp(createdAt)
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}

// parseTimestamp accepts both our RFC3339 writes and sqlite's
// CURRENT_TIMESTAMP default format.
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
