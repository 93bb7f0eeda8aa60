package processors

import (
	"math"
	"sort"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

// Rebalancing cost model and churn guard.
const (
	// tradeDeadBand is the minimum absolute dollar deviation that produces
	// a trade; smaller deltas are rounding noise, not drift.
	tradeDeadBand = 1.0

	tradingFeeRate = 0.001
	slippageRate   = 0.0005
)

type RebalanceProcessor struct{}

func NewRebalanceProcessor() *RebalanceProcessor {
	return &RebalanceProcessor{}
}

// BuildSuggestion diffs the current allocation against the target and
// emits the minimal trade list to converge. prices supplies the current
// unit price per symbol, including symbols that appear only in the target;
// a symbol with no usable price is reported in the allocations but gets no
// trade. target holds fractional weights.
func (p *RebalanceProcessor) BuildSuggestion(portfolioID string, positions []models.Position, target map[string]float64, prices map[string]float64) (*models.RebalancingSuggestion, error) {
	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue
	}
	if totalValue == 0 {
		return nil, models.ErrEmptyPortfolio
	}

	current := make(map[string]float64, len(positions))
	for _, pos := range positions {
		current[pos.Symbol] = pos.MarketValue / totalValue
	}

	symbols := unionSymbols(current, target)

	trades := []models.RebalancingTrade{}
	estimatedCost := 0.0
	maxDeviation := 0.0

	for _, symbol := range symbols {
		currentWeight := current[symbol]
		targetWeight := target[symbol]

		deviation := math.Abs(targetWeight - currentWeight)
		if deviation > maxDeviation {
			maxDeviation = deviation
		}

		valueDelta := targetWeight*totalValue - currentWeight*totalValue
		if math.Abs(valueDelta) <= tradeDeadBand {
			continue
		}

		price := prices[symbol]
		if price <= 0 {
			continue
		}

		action := models.ActionBuy
		if valueDelta < 0 {
			action = models.ActionSell
		}

		notional := math.Abs(valueDelta)
		trades = append(trades, models.RebalancingTrade{
			Symbol:        symbol,
			Action:        action,
			Quantity:      notional / price,
			Price:         price,
			ValueDelta:    valueDelta,
			CurrentWeight: currentWeight,
			TargetWeight:  targetWeight,
		})
		estimatedCost += notional * (tradingFeeRate + slippageRate)
	}

	return &models.RebalancingSuggestion{
		PortfolioID:         portfolioID,
		TotalValue:          totalValue,
		CurrentAllocation:   current,
		TargetAllocation:    target,
		Trades:              trades,
		EstimatedCost:       estimatedCost,
		MaxDeviation:        maxDeviation,
		ExpectedImprovement: expectedImprovement(maxDeviation),
		GeneratedAt:         time.Now().UTC(),
	}, nil
}

// MaxDeviation reports the largest per-symbol gap between current and
// target weights, used by the schedule due-check.
func MaxDeviation(positions []models.Position, target map[string]float64) float64 {
	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue
	}
	if totalValue == 0 {
		return 0
	}
	current := make(map[string]float64, len(positions))
	for _, pos := range positions {
		current[pos.Symbol] = pos.MarketValue / totalValue
	}
	maxDev := 0.0
	for _, symbol := range unionSymbols(current, target) {
		if dev := math.Abs(target[symbol] - current[symbol]); dev > maxDev {
			maxDev = dev
		}
	}
	return maxDev
}

// expectedImprovement scores how much the rebalance should help, scaled
// from the worst allocation gap. Heuristic, preserved for compatibility.
func expectedImprovement(maxDeviation float64) float64 {
	return math.Min(100, maxDeviation*200)
}

func unionSymbols(current, target map[string]float64) []string {
	seen := make(map[string]bool, len(current)+len(target))
	for s := range current {
		seen[s] = true
	}
	for s := range target {
		seen[s] = true
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
