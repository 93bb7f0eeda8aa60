package services

import (
	"context"

	"github.com/username/folioserve/backend/src/models"
)

// MarketDataService is the quote/history gateway. Implementations must
// treat provider timeouts as "quote unavailable", never as fatal: callers
// on read paths degrade to stale or absent prices.
type MarketDataService interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	// GetHistorical returns the symbol's price series for the period,
	// oldest bar first.
	GetHistorical(ctx context.Context, symbol, period string) ([]models.PricePoint, error)
}

// PositionSnapshot is the per-symbol state sent to the optimizer.
type PositionSnapshot struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	MarketValue float64 `json:"market_value"`
	Weight      float64 `json:"weight"`
}

// RecommendationRequest is the optimizer's input contract.
type RecommendationRequest struct {
	PortfolioID       string             `json:"portfolio_id"`
	CurrentPositions  []PositionSnapshot `json:"current_positions"`
	RiskTolerance     string             `json:"risk_tolerance"`
	InvestmentHorizon string             `json:"investment_horizon"`
}

// RecommendationService supplies target allocations as fractional weights.
// On failure the rebalancing engine falls back to the current allocation
// rather than propagating the error.
type RecommendationService interface {
	GetTargetAllocations(ctx context.Context, req RecommendationRequest) (map[string]float64, error)
}

// ClassificationService buckets symbols for diversification breakdowns.
// It never fails a caller: lookups that cannot be resolved come back as
// "Unknown" buckets.
type ClassificationService interface {
	Classify(ctx context.Context, symbol string) models.Classification
}

// FXService reports the currency-translation effect on the year's
// transactions for the tax estimator. Callers degrade to zero impact when
// it errors.
type FXService interface {
	CurrencyImpact(ctx context.Context, portfolioID string, year int) (float64, error)
}
