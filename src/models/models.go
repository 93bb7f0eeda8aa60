package models

import "time"

// Transaction actions as stored in the transactions table.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Transaction origins. Rebalancing execution tags its trades so the
// scheduler can find the last rebalancing date.
const (
	OriginManual    = "manual"
	OriginRebalance = "rebalance"
)

// Portfolio is the owning aggregate for transactions and positions.
// Deleting a portfolio only flips IsActive so transaction history survives.
type Portfolio struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transaction is an immutable, append-only record. Positions are derived
// from the transaction stream, never the other way around.
type Transaction struct {
	ID          int64     `json:"id,omitempty"`
	PortfolioID string    `json:"portfolio_id"`
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"` // BUY or SELL
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Fees        float64   `json:"fees"`
	Total       float64   `json:"total"`
	Note        string    `json:"note,omitempty"`
	Origin      string    `json:"origin"`
	Date        time.Time `json:"transaction_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// ComputeTotal returns quantity*price plus fees for a BUY and minus fees
// for a SELL. The stored Total column always holds this value.
func (t *Transaction) ComputeTotal() float64 {
	gross := t.Quantity * t.Price
	if t.Action == ActionSell {
		return gross - t.Fees
	}
	return gross + t.Fees
}

// Position is the derived per-(portfolio, symbol) aggregate. Quantity is
// never negative; a position sold down to exactly zero is deleted.
// The quote fields (CurrentPrice onwards) are a best-effort cache refreshed
// on reads and may be stale or zero when the market data gateway is down.
type Position struct {
	ID                   int64     `json:"id,omitempty"`
	PortfolioID          string    `json:"portfolio_id"`
	Symbol               string    `json:"symbol"`
	Quantity             float64   `json:"quantity"`
	AverageCost          float64   `json:"average_cost"`
	CurrentPrice         float64   `json:"current_price,omitempty"`
	MarketValue          float64   `json:"market_value,omitempty"`
	UnrealizedPnL        float64   `json:"unrealized_pnl,omitempty"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent,omitempty"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CostBasis returns the total cost of the held quantity at average cost.
func (p *Position) CostBasis() float64 {
	return p.Quantity * p.AverageCost
}

// Quote is an ephemeral market data fact. Only the latest one is cached
// onto a Position; quotes are never stored as history here.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// PricePoint is one bar of a historical price series, oldest first.
type PricePoint struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Classification buckets a symbol for diversification breakdowns.
type Classification struct {
	Sector     string `json:"sector"`
	AssetClass string `json:"asset_class"`
	Region     string `json:"region"`
}

// Rebalance schedule frequencies.
const (
	FrequencyWeekly    = "weekly"
	FrequencyMonthly   = "monthly"
	FrequencyQuarterly = "quarterly"
)

// RebalanceSchedule is a stored preference checked on demand; there is no
// background scheduler executing trades. At most one per portfolio.
type RebalanceSchedule struct {
	ID                 int64     `json:"id,omitempty"`
	PortfolioID        string    `json:"portfolio_id"`
	Frequency          string    `json:"frequency"`
	DeviationThreshold float64   `json:"deviation_threshold"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// IntervalDays maps the schedule frequency to its calendar interval.
func (s *RebalanceSchedule) IntervalDays() int {
	switch s.Frequency {
	case FrequencyWeekly:
		return 7
	case FrequencyQuarterly:
		return 90
	default:
		return 30
	}
}
