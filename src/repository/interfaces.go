package repository

import (
	"context"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

// TransactionFilter narrows ListByPortfolio. Zero values mean "no filter".
type TransactionFilter struct {
	Symbol string
	Year   int
	Origin string
}

type PortfolioRepository interface {
	Create(ctx context.Context, p *models.Portfolio) error
	// GetByID returns models.ErrPortfolioNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.Portfolio, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Portfolio, error)
	Update(ctx context.Context, p *models.Portfolio) error
	// SoftDelete flips is_active; the row and its history are kept.
	SoftDelete(ctx context.Context, id string) error
}

type TransactionRepository interface {
	Insert(ctx context.Context, t *models.Transaction) error
	ListByPortfolio(ctx context.Context, portfolioID string, f TransactionFilter) ([]models.Transaction, error)
	// LastRebalanceDate returns the date of the newest rebalance-tagged
	// transaction. ok is false when the portfolio has never rebalanced.
	LastRebalanceDate(ctx context.Context, portfolioID string) (t time.Time, ok bool, err error)
}

type PositionRepository interface {
	// Get returns models.ErrPositionNotFound when the symbol is not held.
	Get(ctx context.Context, portfolioID, symbol string) (*models.Position, error)
	ListByPortfolio(ctx context.Context, portfolioID string) ([]models.Position, error)
	Upsert(ctx context.Context, p *models.Position) error
	Delete(ctx context.Context, portfolioID, symbol string) error
	// UpdateQuote refreshes only the cached quote-derived columns. It is
	// called from best-effort read paths and must not touch quantity or
	// average cost.
	UpdateQuote(ctx context.Context, p *models.Position) error
}

type ScheduleRepository interface {
	// Upsert keeps at most one schedule per portfolio.
	Upsert(ctx context.Context, s *models.RebalanceSchedule) error
	// Get returns models.ErrScheduleNotFound when none is stored.
	Get(ctx context.Context, portfolioID string) (*models.RebalanceSchedule, error)
	Delete(ctx context.Context, portfolioID string) error
}

// Repositories bundles the per-aggregate ports so that a unit of work can
// hand transaction-bound instances to a closure.
type Repositories struct {
	Portfolios   PortfolioRepository
	Transactions TransactionRepository
	Positions    PositionRepository
	Schedules    ScheduleRepository
}

// Store is the durable backing for the ledger. InTx runs fn against
// repositories bound to a single database transaction: either every write
// in fn lands, or none does. The paired "insert transaction + upsert/delete
// position" write and batched rebalancing execution always go through InTx.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}
