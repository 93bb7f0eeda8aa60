package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

type sqlitePositionRepo struct {
	db dbtx
}

func (r *sqlitePositionRepo) Get(ctx context.Context, portfolioID, symbol string) (*models.Position, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, symbol, quantity, average_cost,
			COALESCE(current_price, 0), COALESCE(market_value, 0),
			COALESCE(unrealized_pnl, 0), COALESCE(unrealized_pnl_percent, 0),
			updated_at
		FROM positions WHERE portfolio_id = ? AND symbol = ?`, portfolioID, symbol)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrPositionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query position %s/%s: %w", portfolioID, symbol, err)
	}
	return p, nil
}

func (r *sqlitePositionRepo) ListByPortfolio(ctx context.Context, portfolioID string) ([]models.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, portfolio_id, symbol, quantity, average_cost,
			COALESCE(current_price, 0), COALESCE(market_value, 0),
			COALESCE(unrealized_pnl, 0), COALESCE(unrealized_pnl_percent, 0),
			updated_at
		FROM positions WHERE portfolio_id = ?
		ORDER BY symbol ASC`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("query positions for portfolio %s: %w", portfolioID, err)
	}
	defer rows.Close()

	positions := []models.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position for portfolio %s: %w", portfolioID, err)
		}
		positions = append(positions, *p)
	}
	return positions, rows.Err()
}

func (r *sqlitePositionRepo) Upsert(ctx context.Context, p *models.Position) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO positions
			(portfolio_id, symbol, quantity, average_cost, current_price, market_value,
			 unrealized_pnl, unrealized_pnl_percent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			current_price = excluded.current_price,
			market_value = excluded.market_value,
			unrealized_pnl = excluded.unrealized_pnl,
			unrealized_pnl_percent = excluded.unrealized_pnl_percent,
			updated_at = excluded.updated_at`,
		p.PortfolioID, p.Symbol, p.Quantity, p.AverageCost, p.CurrentPrice,
		p.MarketValue, p.UnrealizedPnL, p.UnrealizedPnLPercent,
		p.UpdatedAt.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("upsert position %s/%s: %w", p.PortfolioID, p.Symbol, err)
	}
	return nil
}

func (r *sqlitePositionRepo) Delete(ctx context.Context, portfolioID, symbol string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM positions WHERE portfolio_id = ? AND symbol = ?", portfolioID, symbol)
	if err != nil {
		return fmt.Errorf("delete position %s/%s: %w", portfolioID, symbol, err)
	}
	return requireRowAffected(res, models.ErrPositionNotFound)
}

func (r *sqlitePositionRepo) UpdateQuote(ctx context.Context, p *models.Position) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE positions SET
			current_price = ?, market_value = ?, unrealized_pnl = ?,
			unrealized_pnl_percent = ?, updated_at = ?
		WHERE portfolio_id = ? AND symbol = ?`,
		p.CurrentPrice, p.MarketValue, p.UnrealizedPnL, p.UnrealizedPnLPercent,
		p.UpdatedAt.Format(timestampLayout), p.PortfolioID, p.Symbol)
	if err != nil {
		return fmt.Errorf("update quote fields for %s/%s: %w", p.PortfolioID, p.Symbol, err)
	}
	return nil
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var updatedAt string
	if err := row.Scan(&p.ID, &p.PortfolioID, &p.Symbol, &p.Quantity, &p.AverageCost,
		&p.CurrentPrice, &p.MarketValue, &p.UnrealizedPnL, &p.UnrealizedPnLPercent,
		&updatedAt); err != nil {
		return nil, err
	}
	p.UpdatedAt = parseTimestamp(updatedAt)
	return &p, nil
}
