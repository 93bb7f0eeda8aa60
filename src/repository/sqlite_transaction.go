package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

const dateLayout = "2006-01-02"

type sqliteTransactionRepo struct {
	db dbtx
}

func (r *sqliteTransactionRepo) Insert(ctx context.Context, t *models.Transaction) error {
	if t.Origin == "" {
		t.Origin = models.OriginManual
	}
	t.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions
			(portfolio_id, symbol, action, quantity, price, fees, total, note, origin, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PortfolioID, t.Symbol, t.Action, t.Quantity, t.Price, t.Fees, t.Total,
		t.Note, t.Origin, t.Date.Format(dateLayout), t.CreatedAt.Format(timestampLayout))
	if err != nil {
		return fmt.Errorf("insert transaction for portfolio %s: %w", t.PortfolioID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read transaction id: %w", err)
	}
	t.ID = id
	return nil
}

func (r *sqliteTransactionRepo) ListByPortfolio(ctx context.Context, portfolioID string, f TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT id, portfolio_id, symbol, action, quantity, price, fees, total,
			COALESCE(note, ''), origin, transaction_date, created_at
		FROM transactions
		WHERE portfolio_id = ?`
	args := []any{portfolioID}

	if f.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, f.Symbol)
	}
	if f.Year != 0 {
		query += " AND transaction_date >= ? AND transaction_date <= ?"
		args = append(args, fmt.Sprintf("%04d-01-01", f.Year), fmt.Sprintf("%04d-12-31", f.Year))
	}
	if f.Origin != "" {
		query += " AND origin = ?"
		args = append(args, f.Origin)
	}
	query += " ORDER BY transaction_date ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions for portfolio %s: %w", portfolioID, err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		var date, createdAt string
		if err := rows.Scan(&t.ID, &t.PortfolioID, &t.Symbol, &t.Action, &t.Quantity,
			&t.Price, &t.Fees, &t.Total, &t.Note, &t.Origin, &date, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction for portfolio %s: %w", portfolioID, err)
		}
		t.Date, _ = time.Parse(dateLayout, date)
		t.CreatedAt = parseTimestamp(createdAt)
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *sqliteTransactionRepo) LastRebalanceDate(ctx context.Context, portfolioID string) (time.Time, bool, error) {
	var date string
	err := r.db.QueryRowContext(ctx, `
		SELECT transaction_date FROM transactions
		WHERE portfolio_id = ? AND origin = ?
		ORDER BY transaction_date DESC, id DESC LIMIT 1`,
		portfolioID, models.OriginRebalance).Scan(&date)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last rebalance date for portfolio %s: %w", portfolioID, err)
	}
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last rebalance date %q: %w", date, err)
	}
	return t, true, nil
}
