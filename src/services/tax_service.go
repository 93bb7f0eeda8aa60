package services

import (
	"context"

	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/processors"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/security/validation"
)

// TaxService estimates the year's Colombian tax liabilities from the
// transaction stream.
type TaxService struct {
	store     repository.Store
	ledger    *LedgerService
	fx        FXService
	processor *processors.TaxProcessor
}

// NewTaxService wires the estimator with the given cost-basis policy;
// nil selects the default average-cost policy.
func NewTaxService(store repository.Store, ledger *LedgerService, fx FXService, policy processors.CostBasisPolicy) *TaxService {
	return &TaxService{
		store:     store,
		ledger:    ledger,
		fx:        fx,
		processor: processors.NewTaxProcessor(policy),
	}
}

func (s *TaxService) ComputeTaxes(ctx context.Context, portfolioID string, year int) (*models.TaxCalculation, error) {
	if vErr := validation.ValidateTaxYear(year); vErr != nil {
		return nil, vErr
	}

	// Full chronological stream: cost-basis matching for the year's sales
	// needs the purchases that precede the year.
	transactions, err := s.store.Repos().Transactions.ListByPortfolio(ctx, portfolioID, repository.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	currencyImpact, err := s.fx.CurrencyImpact(ctx, portfolioID, year)
	if err != nil {
		logger.L.Warn("Currency impact unavailable, assuming zero",
			"portfolioID", portfolioID, "year", year, "error", err)
		currencyImpact = 0
	}

	yearEndValue := 0.0
	positions, err := s.ledger.ListPositions(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	for _, pos := range positions {
		yearEndValue += pos.MarketValue
	}

	return s.processor.Compute(portfolioID, year, transactions, currencyImpact, yearEndValue), nil
}
