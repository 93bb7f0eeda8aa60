package processors

import (
	"math"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

// periodYears maps a reporting period to its fraction of a year, used to
// annualize the window's total return.
var periodYears = map[string]float64{
	"1D": 1.0 / 365,
	"1W": 7.0 / 365,
	"1M": 30.0 / 365,
	"3M": 0.25,
	"6M": 0.5,
	"1Y": 1.0,
}

// ValidPeriod reports whether period is one of the supported windows.
func ValidPeriod(period string) bool {
	_, ok := periodYears[period]
	return ok
}

type PerformanceProcessor struct {
	riskFreeRate float64
}

func NewPerformanceProcessor(riskFreeRate float64) *PerformanceProcessor {
	return &PerformanceProcessor{riskFreeRate: riskFreeRate}
}

// Compute derives the full metrics set from a portfolio daily value series
// and a benchmark daily value series over the same window. The benchmark
// series may be empty or mismatched; beta then defaults to 1 and the
// benchmark-relative figures degrade to their defined zero values.
func (p *PerformanceProcessor) Compute(portfolioID, period string, values, benchmarkValues []float64) (*models.PerformanceMetrics, error) {
	if len(values) < 2 || values[0] == 0 {
		return nil, models.ErrInsufficientData
	}

	years, ok := periodYears[period]
	if !ok {
		return nil, models.NewValidationError().Add("period", "must be one of 1D, 1W, 1M, 3M, 6M, 1Y")
	}

	returns := simpleReturns(values)
	benchmarkReturns := simpleReturns(benchmarkValues)

	startValue, endValue := values[0], values[len(values)-1]
	totalReturn := (endValue - startValue) / startValue
	annualizedReturn := annualize(totalReturn, years)
	volatility := stdDev(returns)

	sharpe := 0.0
	if volatility != 0 {
		sharpe = (annualizedReturn - p.riskFreeRate) / volatility
	}

	drawdown := maxDrawdown(values)
	beta := Beta(returns, benchmarkReturns)

	// Benchmark return annualized the same way as the portfolio, so the
	// CAPM alpha compares like with like.
	benchmarkAnnualized := p.riskFreeRate
	if len(benchmarkValues) >= 2 && benchmarkValues[0] != 0 {
		benchmarkTotal := (benchmarkValues[len(benchmarkValues)-1] - benchmarkValues[0]) / benchmarkValues[0]
		benchmarkAnnualized = annualize(benchmarkTotal, years)
	}
	alpha := annualizedReturn - (p.riskFreeRate + beta*(benchmarkAnnualized-p.riskFreeRate))

	sortino := 0.0
	if downside := downsideDeviation(returns); downside != 0 {
		sortino = (annualizedReturn - p.riskFreeRate) / downside
	}

	calmar := 0.0
	if drawdown != 0 {
		calmar = annualizedReturn / math.Abs(drawdown)
	}

	informationRatio := 0.0
	if te := trackingError(returns, benchmarkReturns); te != 0 {
		informationRatio = alpha / te
	}

	return &models.PerformanceMetrics{
		PortfolioID:      portfolioID,
		Period:           period,
		StartValue:       startValue,
		EndValue:         endValue,
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn,
		Volatility:       volatility,
		SharpeRatio:      sharpe,
		SortinoRatio:     sortino,
		CalmarRatio:      calmar,
		InformationRatio: informationRatio,
		MaxDrawdown:      drawdown,
		Beta:             beta,
		Alpha:            alpha,
		CalculatedAt:     time.Now().UTC(),
	}, nil
}

func annualize(totalReturn, years float64) float64 {
	if years <= 0 {
		return totalReturn
	}
	if totalReturn <= -1 {
		return -1
	}
	return math.Pow(1+totalReturn, 1/years) - 1
}

// maxDrawdown returns the most negative peak-to-trough fractional decline,
// zero or negative.
func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	worst := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// Beta is cov(portfolio, market)/var(market), defaulting to 1 on empty,
// mismatched or zero-variance market series.
func Beta(portfolioReturns, marketReturns []float64) float64 {
	if len(portfolioReturns) == 0 || len(portfolioReturns) != len(marketReturns) {
		return 1
	}
	v := variance(marketReturns)
	if v == 0 {
		return 1
	}
	return covariance(portfolioReturns, marketReturns) / v
}

// downsideDeviation is the population standard deviation of the negative
// returns only.
func downsideDeviation(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	return stdDev(downside)
}

// trackingError is the standard deviation of the per-period active return.
func trackingError(portfolioReturns, benchmarkReturns []float64) float64 {
	n := len(portfolioReturns)
	if len(benchmarkReturns) < n {
		n = len(benchmarkReturns)
	}
	if n == 0 {
		return 0
	}
	active := make([]float64, n)
	for i := 0; i < n; i++ {
		active[i] = portfolioReturns[i] - benchmarkReturns[i]
	}
	return stdDev(active)
}
