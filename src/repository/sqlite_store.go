package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/username/folioserve/backend/src/logger"
)

// dbtx is the subset of *sql.DB and *sql.Tx the repositories use, so the
// same implementations serve both pooled and transactional calls.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over a sqlite database.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Repos() Repositories {
	return bindRepos(s.db)
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(bindRepos(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			logger.L.Error("Rollback failed after unit-of-work error", "error", rbErr, "cause", err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func bindRepos(db dbtx) Repositories {
	return Repositories{
		Portfolios:   &sqlitePortfolioRepo{db: db},
		Transactions: &sqliteTransactionRepo{db: db},
		Positions:    &sqlitePositionRepo{db: db},
		Schedules:    &sqliteScheduleRepo{db: db},
	}
}
