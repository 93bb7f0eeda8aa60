package processors

import (
	"math"
	"sort"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

// stressScenario is one entry of the pluggable shock table. This is a
// lookup table applied to the current value, not a simulator.
type stressScenario struct {
	Name  string
	Shock float64
}

var defaultStressScenarios = []stressScenario{
	{Name: "Market crash (-30%)", Shock: -0.30},
	{Name: "Market correction (-10%)", Shock: -0.10},
	{Name: "Interest rate shock (-15%)", Shock: -0.15},
	{Name: "COP devaluation (-12%)", Shock: -0.12},
}

type RiskProcessor struct {
	scenarios []stressScenario
}

func NewRiskProcessor() *RiskProcessor {
	return &RiskProcessor{scenarios: defaultStressScenarios}
}

// Compute assembles the risk view from the portfolio return series, the
// benchmark return series, the per-symbol return series and the current
// total value.
func (p *RiskProcessor) Compute(portfolioID string, portfolioReturns, benchmarkReturns []float64, returnsBySymbol map[string][]float64, totalValue float64) *models.RiskMetrics {
	return &models.RiskMetrics{
		PortfolioID:          portfolioID,
		ValueAtRisk95:        ValueAtRisk(portfolioReturns, 0.95),
		ValueAtRisk99:        ValueAtRisk(portfolioReturns, 0.99),
		ExpectedShortfall95:  ExpectedShortfall(portfolioReturns, 0.95),
		ExpectedShortfall99:  ExpectedShortfall(portfolioReturns, 0.99),
		AnnualizedVolatility: stdDev(portfolioReturns) * math.Sqrt(252),
		Beta:                 Beta(portfolioReturns, benchmarkReturns),
		CorrelationMatrix:    CorrelationMatrix(returnsBySymbol),
		StressTests:          p.stressTests(totalValue),
		CalculatedAt:         time.Now().UTC(),
	}
}

// ValueAtRisk is the historical-simulation VaR at the given confidence,
// expressed as a positive loss fraction.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := sortedCopy(returns)
	idx := tailIndex(len(sorted), confidence)
	return -sorted[idx]
}

// ExpectedShortfall is the mean of the tail at or below the VaR index,
// negated into a positive loss fraction.
func ExpectedShortfall(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := sortedCopy(returns)
	idx := tailIndex(len(sorted), confidence)
	return -mean(sorted[:idx+1])
}

func tailIndex(n int, confidence float64) int {
	idx := int(math.Floor((1 - confidence) * float64(n)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func sortedCopy(values []float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted
}

// CorrelationMatrix computes pairwise Pearson correlations across the held
// symbols. The diagonal is always 1; a symbol with an empty or degenerate
// series correlates as 0 with every other symbol.
func CorrelationMatrix(returnsBySymbol map[string][]float64) map[string]map[string]float64 {
	matrix := make(map[string]map[string]float64, len(returnsBySymbol))
	for a, ra := range returnsBySymbol {
		row := make(map[string]float64, len(returnsBySymbol))
		for b, rb := range returnsBySymbol {
			if a == b {
				row[b] = 1
				continue
			}
			row[b] = pearson(ra, rb)
		}
		matrix[a] = row
	}
	return matrix
}

// AverageCorrelation is the mean of the off-diagonal upper triangle, used
// by the diversification score. Zero for fewer than two symbols.
func AverageCorrelation(matrix map[string]map[string]float64) float64 {
	sum, count := 0.0, 0
	for a, row := range matrix {
		for b, c := range row {
			if a < b {
				sum += c
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func (p *RiskProcessor) stressTests(totalValue float64) []models.StressTestResult {
	results := make([]models.StressTestResult, 0, len(p.scenarios))
	for _, s := range p.scenarios {
		projected := totalValue * (1 + s.Shock)
		results = append(results, models.StressTestResult{
			Scenario:       s.Name,
			Shock:          s.Shock,
			PortfolioValue: totalValue,
			ProjectedValue: projected,
			ProjectedLoss:  totalValue - projected,
		})
	}
	return results
}
