package models

import "time"

// The types in this file are computed views. They are recomputed on request
// from transactions, positions and external market data, and are never the
// system of record.

// PerformanceMetrics holds the return and risk-adjusted-return figures for
// one portfolio over one period.
type PerformanceMetrics struct {
	PortfolioID      string    `json:"portfolio_id"`
	Period           string    `json:"period"`
	StartValue       float64   `json:"start_value"`
	EndValue         float64   `json:"end_value"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	Volatility       float64   `json:"volatility"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	CalmarRatio      float64   `json:"calmar_ratio"`
	InformationRatio float64   `json:"information_ratio"`
	MaxDrawdown      float64   `json:"max_drawdown"` // negative or zero
	Beta             float64   `json:"beta"`
	Alpha            float64   `json:"alpha"`
	CalculatedAt     time.Time `json:"calculated_at"`
}

// StressTestResult reports one named shock scenario applied to the
// current portfolio value.
type StressTestResult struct {
	Scenario       string  `json:"scenario"`
	Shock          float64 `json:"shock"` // fractional, e.g. -0.30
	PortfolioValue float64 `json:"portfolio_value"`
	ProjectedValue float64 `json:"projected_value"`
	ProjectedLoss  float64 `json:"projected_loss"`
}

// RiskMetrics holds downside-risk figures. VaR and expected shortfall are
// expressed as positive loss fractions.
type RiskMetrics struct {
	PortfolioID          string                        `json:"portfolio_id"`
	ValueAtRisk95        float64                       `json:"value_at_risk_95"`
	ValueAtRisk99        float64                       `json:"value_at_risk_99"`
	ExpectedShortfall95  float64                       `json:"expected_shortfall_95"`
	ExpectedShortfall99  float64                       `json:"expected_shortfall_99"`
	AnnualizedVolatility float64                       `json:"annualized_volatility"`
	Beta                 float64                       `json:"beta"`
	CorrelationMatrix    map[string]map[string]float64 `json:"correlation_matrix"`
	StressTests          []StressTestResult            `json:"stress_tests"`
	CalculatedAt         time.Time                     `json:"calculated_at"`
}

// DiversificationAnalysis breaks market value down by classification and
// reports concentration measures. The score is a documented heuristic, not
// a statistically validated index.
type DiversificationAnalysis struct {
	PortfolioID          string             `json:"portfolio_id"`
	TotalValue           float64            `json:"total_value"`
	PositionCount        int                `json:"position_count"`
	SectorAllocation     map[string]float64 `json:"sector_allocation"`
	AssetClassAllocation map[string]float64 `json:"asset_class_allocation"`
	RegionAllocation     map[string]float64 `json:"region_allocation"`
	Top10Percentage      float64            `json:"top10_percentage"`
	HerfindahlIndex      float64            `json:"herfindahl_index"`
	AverageCorrelation   float64            `json:"average_correlation"`
	DiversificationScore float64            `json:"diversification_score"`
	CalculatedAt         time.Time          `json:"calculated_at"`
}

// TaxCalculation estimates Colombian tax liabilities for one calendar year.
// Losses are not offset against gains; this is a named simplification of
// the cost-basis policy in use.
type TaxCalculation struct {
	PortfolioID        string    `json:"portfolio_id"`
	Year               int       `json:"year"`
	CapitalGainsTax    float64   `json:"capital_gains_tax"`
	IVATax             float64   `json:"iva_tax"`
	CurrencyImpact     float64   `json:"currency_impact"`
	TotalTax           float64   `json:"total_tax"`
	YearEndValue       float64   `json:"year_end_value"`
	EffectiveTaxRate   float64   `json:"effective_tax_rate"`
	TaxEfficiencyScore float64   `json:"tax_efficiency_score"`
	CalculatedAt       time.Time `json:"calculated_at"`
}

// RebalancingTrade is one suggested order.
type RebalancingTrade struct {
	Symbol        string  `json:"symbol"`
	Action        string  `json:"action"` // BUY or SELL
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	ValueDelta    float64 `json:"value_delta"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
}

// RebalancingSuggestion is the trade list to converge current allocation
// onto the target, with a cost estimate.
type RebalancingSuggestion struct {
	PortfolioID         string             `json:"portfolio_id"`
	TotalValue          float64            `json:"total_value"`
	CurrentAllocation   map[string]float64 `json:"current_allocation"`
	TargetAllocation    map[string]float64 `json:"target_allocation"`
	Trades              []RebalancingTrade `json:"trades"`
	EstimatedCost       float64            `json:"estimated_cost"`
	MaxDeviation        float64            `json:"max_deviation"`
	ExpectedImprovement float64            `json:"expected_improvement"`
	GeneratedAt         time.Time          `json:"generated_at"`
}

// PortfolioSummary is the headline valuation view for one portfolio.
type PortfolioSummary struct {
	PortfolioID          string    `json:"portfolio_id"`
	Name                 string    `json:"name"`
	Currency             string    `json:"currency"`
	TotalValue           float64   `json:"total_value"`
	TotalCost            float64   `json:"total_cost"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
	PositionCount        int       `json:"position_count"`
	TopHolding           string    `json:"top_holding,omitempty"`
	GeneratedAt          time.Time `json:"generated_at"`
}
