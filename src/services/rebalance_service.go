package services

import (
	"context"
	"time"

	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/processors"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/security/validation"
)

// Optimizer defaults sent with every recommendation request.
const (
	defaultRiskTolerance     = "moderate"
	defaultInvestmentHorizon = "long_term"
)

// RebalanceService diffs current against target allocations into a trade
// list, executes accepted suggestions atomically through the ledger, and
// answers the on-demand schedule due-check. There is no background
// scheduler; a schedule is a stored preference.
type RebalanceService struct {
	store          repository.Store
	ledger         *LedgerService
	marketData     MarketDataService
	recommendation RecommendationService
	processor      *processors.RebalanceProcessor
}

func NewRebalanceService(
	store repository.Store,
	ledger *LedgerService,
	marketData MarketDataService,
	recommendation RecommendationService,
) *RebalanceService {
	return &RebalanceService{
		store:          store,
		ledger:         ledger,
		marketData:     marketData,
		recommendation: recommendation,
		processor:      processors.NewRebalanceProcessor(),
	}
}

// Suggest builds the trade list for the portfolio. When the recommendation
// gateway fails, the target falls back to the current allocation, so the
// suggestion carries zero trades instead of an error.
func (s *RebalanceService) Suggest(ctx context.Context, portfolioID string) (*models.RebalancingSuggestion, error) {
	positions, err := s.ledger.ListPositions(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	target, err := s.targetAllocations(ctx, portfolioID, positions)
	if err != nil {
		return nil, err
	}

	prices := s.collectPrices(ctx, positions, target)
	return s.processor.BuildSuggestion(portfolioID, positions, target, prices)
}

// Execute applies every trade of the suggestion as a rebalance-tagged
// ledger transaction inside a single atomic unit: if any trade fails
// (insufficient quantity included), none are recorded.
func (s *RebalanceService) Execute(ctx context.Context, portfolioID string, suggestion *models.RebalancingSuggestion) ([]models.Transaction, error) {
	if suggestion == nil || suggestion.PortfolioID != portfolioID {
		return nil, models.NewValidationError().Add("suggestion", "does not match the portfolio")
	}
	if len(suggestion.Trades) == 0 {
		return []models.Transaction{}, nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	applied := make([]models.Transaction, 0, len(suggestion.Trades))

	err := s.store.InTx(ctx, func(repos repository.Repositories) error {
		for _, trade := range suggestion.Trades {
			t := models.Transaction{
				PortfolioID: portfolioID,
				Symbol:      trade.Symbol,
				Action:      trade.Action,
				Quantity:    trade.Quantity,
				Price:       trade.Price,
				Note:        "Rebalancing execution",
				Origin:      models.OriginRebalance,
				Date:        today,
			}
			t.Total = t.ComputeTotal()

			if _, err := s.ledger.applyInTx(ctx, repos, &t); err != nil {
				return err
			}
			applied = append(applied, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.ledger.invalidateReports(portfolioID)
	logger.L.Info("Rebalancing executed", "portfolioID", portfolioID, "trades", len(applied))
	return applied, nil
}

// SetSchedule stores or replaces the portfolio's single schedule.
func (s *RebalanceService) SetSchedule(ctx context.Context, portfolioID, frequency string, deviationThreshold float64) (*models.RebalanceSchedule, error) {
	if vErr := validation.ValidateSchedule(frequency, deviationThreshold); vErr != nil {
		return nil, vErr
	}
	schedule := &models.RebalanceSchedule{
		PortfolioID:        portfolioID,
		Frequency:          frequency,
		DeviationThreshold: deviationThreshold,
	}
	if err := s.store.Repos().Schedules.Upsert(ctx, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *RebalanceService) GetSchedule(ctx context.Context, portfolioID string) (*models.RebalanceSchedule, error) {
	return s.store.Repos().Schedules.Get(ctx, portfolioID)
}

func (s *RebalanceService) RemoveSchedule(ctx context.Context, portfolioID string) error {
	return s.store.Repos().Schedules.Delete(ctx, portfolioID)
}

// IsDue reports whether the stored schedule calls for a rebalance now:
// both the calendar interval since the last rebalance-tagged transaction
// must have elapsed and the worst per-symbol allocation deviation must
// exceed the schedule's threshold.
func (s *RebalanceService) IsDue(ctx context.Context, portfolioID string) (bool, error) {
	schedule, err := s.store.Repos().Schedules.Get(ctx, portfolioID)
	if err != nil {
		return false, err
	}

	lastDate, rebalanced, err := s.store.Repos().Transactions.LastRebalanceDate(ctx, portfolioID)
	if err != nil {
		return false, err
	}
	if rebalanced {
		elapsed := time.Since(lastDate)
		if elapsed < time.Duration(schedule.IntervalDays())*24*time.Hour {
			return false, nil
		}
	}

	positions, err := s.ledger.ListPositions(ctx, portfolioID)
	if err != nil {
		return false, err
	}
	target, err := s.targetAllocations(ctx, portfolioID, positions)
	if err != nil {
		return false, err
	}

	return processors.MaxDeviation(positions, target) > schedule.DeviationThreshold, nil
}

// targetAllocations asks the optimizer for targets and falls back to the
// current allocation when it is unavailable.
func (s *RebalanceService) targetAllocations(ctx context.Context, portfolioID string, positions []models.Position) (map[string]float64, error) {
	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue
	}
	if totalValue == 0 {
		return nil, models.ErrEmptyPortfolio
	}

	snapshots := make([]PositionSnapshot, 0, len(positions))
	current := make(map[string]float64, len(positions))
	for _, pos := range positions {
		weight := pos.MarketValue / totalValue
		current[pos.Symbol] = weight
		snapshots = append(snapshots, PositionSnapshot{
			Symbol:      pos.Symbol,
			Quantity:    pos.Quantity,
			MarketValue: pos.MarketValue,
			Weight:      weight,
		})
	}

	target, err := s.recommendation.GetTargetAllocations(ctx, RecommendationRequest{
		PortfolioID:       portfolioID,
		CurrentPositions:  snapshots,
		RiskTolerance:     defaultRiskTolerance,
		InvestmentHorizon: defaultInvestmentHorizon,
	})
	if err != nil {
		logger.L.Warn("Recommendation gateway unavailable, keeping current allocation",
			"portfolioID", portfolioID, "error", err)
		return current, nil
	}
	return target, nil
}

// collectPrices gathers current unit prices for every symbol a trade could
// touch. Held symbols use their enriched position price; target-only
// symbols are quoted best-effort and skipped when unavailable.
func (s *RebalanceService) collectPrices(ctx context.Context, positions []models.Position, target map[string]float64) map[string]float64 {
	prices := make(map[string]float64, len(positions)+len(target))
	for _, pos := range positions {
		prices[pos.Symbol] = pos.CurrentPrice
	}
	for symbol := range target {
		if _, ok := prices[symbol]; ok {
			continue
		}
		quote, err := s.marketData.GetQuote(ctx, symbol)
		if err != nil {
			logger.L.Warn("No price for target-only symbol, its trade will be skipped",
				"symbol", symbol, "error", err)
			continue
		}
		prices[symbol] = quote.Price
	}
	return prices
}
