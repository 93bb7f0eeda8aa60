package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/security/validation"
	"github.com/username/folioserve/backend/src/utils"
)

type PortfolioService struct {
	store           repository.Store
	ledger          *LedgerService
	defaultCurrency string
}

func NewPortfolioService(store repository.Store, ledger *LedgerService, defaultCurrency string) *PortfolioService {
	return &PortfolioService{
		store:           store,
		ledger:          ledger,
		defaultCurrency: defaultCurrency,
	}
}

func (s *PortfolioService) Create(ctx context.Context, userID int64, name, currency string) (*models.Portfolio, error) {
	if vErr := validation.ValidatePortfolioInput(&name, &currency); vErr != nil {
		return nil, vErr
	}
	if currency == "" {
		currency = s.defaultCurrency
	}

	p := &models.Portfolio{
		ID:       uuid.NewString(),
		UserID:   userID,
		Name:     name,
		Currency: currency,
		IsActive: true,
	}
	if err := s.store.Repos().Portfolios.Create(ctx, p); err != nil {
		return nil, err
	}
	logger.L.Info("Portfolio created", "portfolioID", p.ID, "userID", userID)
	return p, nil
}

// GetOwned returns the portfolio only when it is active and belongs to
// userID. Ownership mismatches report not-found rather than forbidden so
// portfolio ids don't leak across users.
func (s *PortfolioService) GetOwned(ctx context.Context, userID int64, portfolioID string) (*models.Portfolio, error) {
	p, err := s.store.Repos().Portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID || !p.IsActive {
		return nil, models.ErrPortfolioNotFound
	}
	return p, nil
}

func (s *PortfolioService) ListByUser(ctx context.Context, userID int64) ([]models.Portfolio, error) {
	return s.store.Repos().Portfolios.ListByUser(ctx, userID)
}

func (s *PortfolioService) Update(ctx context.Context, userID int64, portfolioID, name, currency string) (*models.Portfolio, error) {
	if vErr := validation.ValidatePortfolioInput(&name, &currency); vErr != nil {
		return nil, vErr
	}

	p, err := s.GetOwned(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}
	p.Name = name
	if currency != "" {
		p.Currency = currency
	}
	if err := s.store.Repos().Portfolios.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete soft-deletes: the portfolio is flagged inactive and its
// transaction history is preserved.
func (s *PortfolioService) Delete(ctx context.Context, userID int64, portfolioID string) error {
	if _, err := s.GetOwned(ctx, userID, portfolioID); err != nil {
		return err
	}
	if err := s.store.Repos().Portfolios.SoftDelete(ctx, portfolioID); err != nil {
		return err
	}
	logger.L.Info("Portfolio soft-deleted", "portfolioID", portfolioID, "userID", userID)
	return nil
}

// Summary aggregates the quote-enriched positions into the headline view.
func (s *PortfolioService) Summary(ctx context.Context, userID int64, portfolioID string) (*models.PortfolioSummary, error) {
	p, err := s.GetOwned(ctx, userID, portfolioID)
	if err != nil {
		return nil, err
	}

	positions, err := s.ledger.ListPositions(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	summary := &models.PortfolioSummary{
		PortfolioID:   p.ID,
		Name:          p.Name,
		Currency:      p.Currency,
		PositionCount: len(positions),
		GeneratedAt:   time.Now().UTC(),
	}

	topValue := 0.0
	for _, pos := range positions {
		summary.TotalValue += pos.MarketValue
		summary.TotalCost += pos.CostBasis()
		summary.UnrealizedPnL += pos.UnrealizedPnL
		if pos.MarketValue > topValue {
			topValue = pos.MarketValue
			summary.TopHolding = pos.Symbol
		}
	}
	if summary.TotalCost != 0 {
		summary.UnrealizedPnLPercent = utils.RoundFloat(summary.UnrealizedPnL/summary.TotalCost*100, 4)
	}
	return summary, nil
}
