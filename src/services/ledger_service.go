package services

import (
	"context"
	"errors"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/security/validation"
)

// LedgerService owns the transaction stream and the positions derived from
// it. Transactions are append-only and the source of truth; every mutation
// writes the transaction record and the position update in one atomic unit.
type LedgerService struct {
	store       repository.Store
	marketData  MarketDataService
	reportCache *cache.Cache
}

func NewLedgerService(store repository.Store, marketData MarketDataService, reportCache *cache.Cache) *LedgerService {
	return &LedgerService{
		store:       store,
		marketData:  marketData,
		reportCache: reportCache,
	}
}

// ApplyTransaction validates and applies one BUY or SELL to the portfolio.
// On BUY the position is created or merged at weighted-average cost; on
// SELL the quantity is decremented (average cost untouched) and a position
// sold to exactly zero is deleted. A SELL exceeding the held quantity fails
// with models.ErrInsufficientQuantity and changes nothing.
func (s *LedgerService) ApplyTransaction(ctx context.Context, portfolioID string, t *models.Transaction) (*models.Position, error) {
	if vErr := validation.ValidateTransactionInput(t); vErr != nil {
		return nil, vErr
	}

	if _, err := s.activePortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	t.PortfolioID = portfolioID
	t.Total = t.ComputeTotal()

	var result *models.Position
	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		var txErr error
		result, txErr = s.applyInTx(ctx, repos, t)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.invalidateReports(portfolioID)
	logger.L.Info("Transaction applied",
		"portfolioID", portfolioID, "symbol", t.Symbol, "action", t.Action,
		"quantity", t.Quantity, "price", t.Price, "origin", t.Origin)
	return result, nil
}

// applyInTx performs the paired transaction-insert + position-write against
// transaction-bound repositories. Rebalancing execution reuses it to batch
// several trades into one unit of work.
func (s *LedgerService) applyInTx(ctx context.Context, repos repository.Repositories, t *models.Transaction) (*models.Position, error) {
	position, err := repos.Positions.Get(ctx, t.PortfolioID, t.Symbol)
	if err != nil && !errors.Is(err, models.ErrPositionNotFound) {
		return nil, err
	}

	switch t.Action {
	case models.ActionBuy:
		if position == nil {
			position = &models.Position{
				PortfolioID: t.PortfolioID,
				Symbol:      t.Symbol,
				Quantity:    t.Quantity,
				AverageCost: t.Price,
			}
		} else {
			newQty := position.Quantity + t.Quantity
			position.AverageCost = (position.Quantity*position.AverageCost + t.Quantity*t.Price) / newQty
			position.Quantity = newQty
		}

	case models.ActionSell:
		if position == nil || t.Quantity > position.Quantity {
			return nil, models.ErrInsufficientQuantity
		}
		position.Quantity -= t.Quantity

	default:
		return nil, models.NewValidationError().Add("action", "must be BUY or SELL")
	}

	if err := repos.Transactions.Insert(ctx, t); err != nil {
		return nil, err
	}

	if position.Quantity == 0 {
		if err := repos.Positions.Delete(ctx, t.PortfolioID, t.Symbol); err != nil {
			return nil, err
		}
		return position, nil
	}
	if err := repos.Positions.Upsert(ctx, position); err != nil {
		return nil, err
	}
	return position, nil
}

// ListPositions returns the portfolio's positions enriched with current
// quotes. Enrichment is best-effort: a quote failure leaves the stale
// cached fields in place and never fails the read, and the refresh writes
// happen outside any ledger transaction.
func (s *LedgerService) ListPositions(ctx context.Context, portfolioID string) ([]models.Position, error) {
	if _, err := s.activePortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	positions, err := repos.Positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	for i := range positions {
		quote, err := s.marketData.GetQuote(ctx, positions[i].Symbol)
		if err != nil {
			logger.L.Debug("Quote enrichment skipped", "symbol", positions[i].Symbol, "error", err)
			continue
		}
		enrichPosition(&positions[i], quote.Price)
		if err := repos.Positions.UpdateQuote(ctx, &positions[i]); err != nil {
			logger.L.Warn("Failed to persist refreshed quote fields",
				"portfolioID", portfolioID, "symbol", positions[i].Symbol, "error", err)
		}
	}
	return positions, nil
}

// ListTransactions returns the portfolio's transaction history. History
// stays queryable after the positions it produced are closed.
func (s *LedgerService) ListTransactions(ctx context.Context, portfolioID string, filter repository.TransactionFilter) ([]models.Transaction, error) {
	if _, err := s.activePortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}
	return s.store.Repos().Transactions.ListByPortfolio(ctx, portfolioID, filter)
}

func (s *LedgerService) activePortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, error) {
	p, err := s.store.Repos().Portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, models.ErrPortfolioNotFound
	}
	return p, nil
}

// invalidateReports drops every cached analytics view for the portfolio.
// Keys follow the "<kind>:<portfolioID>[: ...]" convention.
func (s *LedgerService) invalidateReports(portfolioID string) {
	if s.reportCache == nil {
		return
	}
	for key := range s.reportCache.Items() {
		if strings.Contains(key, ":"+portfolioID) {
			s.reportCache.Delete(key)
		}
	}
}

func enrichPosition(p *models.Position, price float64) {
	p.CurrentPrice = price
	p.MarketValue = p.Quantity * price
	p.UnrealizedPnL = p.MarketValue - p.CostBasis()
	if cost := p.CostBasis(); cost != 0 {
		p.UnrealizedPnLPercent = p.UnrealizedPnL / cost * 100
	} else {
		p.UnrealizedPnLPercent = 0
	}
}
