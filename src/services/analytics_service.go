package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/processors"
	"github.com/username/folioserve/backend/src/repository"
)

// riskWindow is the historical window the risk analytics draw their return
// series from.
const riskWindow = "1Y"

// AnalyticsService orchestrates the performance, risk and diversification
// processors over ledger positions and gateway market data. Computed views
// are cached until the next ledger write.
type AnalyticsService struct {
	store           repository.Store
	marketData      MarketDataService
	classification  ClassificationService
	performance     *processors.PerformanceProcessor
	risk            *processors.RiskProcessor
	diversification *processors.DiversificationProcessor
	benchmarkSymbol string
	reportCache     *cache.Cache
}

func NewAnalyticsService(
	store repository.Store,
	marketData MarketDataService,
	classification ClassificationService,
	riskFreeRate float64,
	benchmarkSymbol string,
	reportCache *cache.Cache,
) *AnalyticsService {
	return &AnalyticsService{
		store:           store,
		marketData:      marketData,
		classification:  classification,
		performance:     processors.NewPerformanceProcessor(riskFreeRate),
		risk:            processors.NewRiskProcessor(),
		diversification: processors.NewDiversificationProcessor(),
		benchmarkSymbol: benchmarkSymbol,
		reportCache:     reportCache,
	}
}

// ComputePerformance derives the metrics for the period from the
// portfolio's daily value series. Position price history is required: a
// market data outage here has no safe degraded result and propagates.
// Benchmark history is optional; without it beta defaults to 1 and the
// benchmark-relative ratios take their defined zero values.
func (s *AnalyticsService) ComputePerformance(ctx context.Context, portfolioID, period string) (*models.PerformanceMetrics, error) {
	if !processors.ValidPeriod(period) {
		return nil, models.NewValidationError().Add("period", "must be one of 1D, 1W, 1M, 3M, 6M, 1Y")
	}

	cacheKey := fmt.Sprintf("performance:%s:%s", portfolioID, period)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.PerformanceMetrics), nil
	}

	positions, err := s.store.Repos().Positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, models.ErrInsufficientData
	}

	values, err := s.valueSeries(ctx, positions, period, true)
	if err != nil {
		return nil, err
	}

	benchmarkValues := s.benchmarkSeries(ctx, period)

	metrics, err := s.performance.Compute(portfolioID, period, values, benchmarkValues)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, metrics, cache.DefaultExpiration)
	return metrics, nil
}

// ComputeRisk assembles VaR/ES, beta, the correlation matrix and the
// stress table. Per-symbol history is best-effort: a symbol whose history
// cannot be fetched correlates as zero; only a total outage propagates.
func (s *AnalyticsService) ComputeRisk(ctx context.Context, portfolioID string) (*models.RiskMetrics, error) {
	cacheKey := "risk:" + portfolioID
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.RiskMetrics), nil
	}

	positions, err := s.store.Repos().Positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, models.ErrEmptyPortfolio
	}

	returnsBySymbol, anyHistory := s.symbolReturns(ctx, positions)
	if !anyHistory {
		return nil, models.ErrMarketDataUnavailable
	}

	values, err := s.valueSeries(ctx, positions, riskWindow, false)
	if err != nil {
		return nil, err
	}
	portfolioReturns := valueSeriesReturns(values)
	benchmarkReturns := valueSeriesReturns(s.benchmarkSeries(ctx, riskWindow))

	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.MarketValue
	}

	metrics := s.risk.Compute(portfolioID, portfolioReturns, benchmarkReturns, returnsBySymbol, totalValue)

	s.reportCache.Set(cacheKey, metrics, cache.DefaultExpiration)
	return metrics, nil
}

// ComputeDiversification breaks the portfolio down by sector, asset class
// and region and scores its concentration. Classification lookups never
// fail (unknowns bucket as "Unknown"); correlation input is best-effort.
func (s *AnalyticsService) ComputeDiversification(ctx context.Context, portfolioID string) (*models.DiversificationAnalysis, error) {
	cacheKey := "diversification:" + portfolioID
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*models.DiversificationAnalysis), nil
	}

	positions, err := s.store.Repos().Positions.ListByPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	classifications := make(map[string]models.Classification, len(positions))
	for _, pos := range positions {
		classifications[pos.Symbol] = s.classification.Classify(ctx, pos.Symbol)
	}

	returnsBySymbol, _ := s.symbolReturns(ctx, positions)
	avgCorrelation := processors.AverageCorrelation(processors.CorrelationMatrix(returnsBySymbol))

	analysis, err := s.diversification.Compute(portfolioID, positions, classifications, avgCorrelation)
	if err != nil {
		return nil, err
	}

	s.reportCache.Set(cacheKey, analysis, cache.DefaultExpiration)
	return analysis, nil
}

// valueSeries derives the portfolio's daily value series over the window as
// the sum of current quantity times each day's close. Quantities are held
// constant over the window; intra-window trades are not replayed. With
// strict set, any symbol's history failure aborts; otherwise failing
// symbols are dropped from the series.
func (s *AnalyticsService) valueSeries(ctx context.Context, positions []models.Position, period string, strict bool) ([]float64, error) {
	type history struct {
		quantity float64
		closes   map[string]float64
		first    string
	}

	histories := make([]history, 0, len(positions))
	dateSet := make(map[string]bool)

	for _, pos := range positions {
		points, err := s.marketData.GetHistorical(ctx, pos.Symbol, period)
		if err != nil {
			if strict {
				return nil, err
			}
			logger.L.Debug("Dropping symbol from value series", "symbol", pos.Symbol, "error", err)
			continue
		}
		if len(points) == 0 {
			if strict {
				return nil, models.ErrInsufficientData
			}
			continue
		}

		closes := make(map[string]float64, len(points))
		for _, pt := range points {
			closes[pt.Date] = pt.Close
			dateSet[pt.Date] = true
		}
		histories = append(histories, history{
			quantity: pos.Quantity,
			closes:   closes,
			first:    points[0].Date,
		})
	}

	if len(histories) == 0 {
		return nil, models.ErrInsufficientData
	}

	// Start from the latest first-bar so every symbol has a close, and
	// carry the last known close across gaps.
	start := histories[0].first
	for _, h := range histories[1:] {
		if h.first > start {
			start = h.first
		}
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		if d >= start {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	if len(dates) < 2 {
		return nil, models.ErrInsufficientData
	}

	last := make([]float64, len(histories))
	values := make([]float64, 0, len(dates))
	for _, d := range dates {
		total := 0.0
		for i, h := range histories {
			if c, ok := h.closes[d]; ok {
				last[i] = c
			}
			total += h.quantity * last[i]
		}
		values = append(values, total)
	}
	return values, nil
}

// benchmarkSeries fetches the benchmark's closes; failures degrade to nil.
func (s *AnalyticsService) benchmarkSeries(ctx context.Context, period string) []float64 {
	points, err := s.marketData.GetHistorical(ctx, s.benchmarkSymbol, period)
	if err != nil {
		logger.L.Warn("Benchmark history unavailable, degrading benchmark-relative metrics",
			"symbol", s.benchmarkSymbol, "error", err)
		return nil
	}
	closes := make([]float64, 0, len(points))
	for _, pt := range points {
		closes = append(closes, pt.Close)
	}
	return closes
}

// symbolReturns builds per-symbol daily return series, best-effort. The
// bool result reports whether at least one symbol had history.
func (s *AnalyticsService) symbolReturns(ctx context.Context, positions []models.Position) (map[string][]float64, bool) {
	returnsBySymbol := make(map[string][]float64, len(positions))
	anyHistory := false
	for _, pos := range positions {
		points, err := s.marketData.GetHistorical(ctx, pos.Symbol, riskWindow)
		if err != nil {
			logger.L.Debug("Symbol history unavailable for correlation", "symbol", pos.Symbol, "error", err)
			returnsBySymbol[pos.Symbol] = nil
			continue
		}
		closes := make([]float64, 0, len(points))
		for _, pt := range points {
			closes = append(closes, pt.Close)
		}
		returnsBySymbol[pos.Symbol] = valueSeriesReturns(closes)
		if len(points) > 0 {
			anyHistory = true
		}
	}
	return returnsBySymbol, anyHistory
}

func valueSeriesReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}
