package processors

import (
	"math"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

// Colombian rates used by the estimator. Capital gains are taxed flat on
// positive gains only; losses are not offset against gains within the year
// (a named simplification carried by the cost-basis policy model). The IVA
// rate applies to transaction fees on both sides.
const (
	capitalGainsRate = 0.10
	ivaRate          = 0.19
)

// CostBasisPolicy decides the cost matched against a sale's proceeds.
// history holds the symbol's transactions strictly preceding the sale, in
// chronological order.
type CostBasisPolicy interface {
	Name() string
	MatchedCost(sale models.Transaction, history []models.Transaction) float64
}

// AverageCostPolicy matches at the weighted-average cost in effect at the
// time of the sale, replayed from the transaction stream. This preserves
// the original estimator's placeholder behavior as the default policy.
type AverageCostPolicy struct{}

func (AverageCostPolicy) Name() string { return "average_cost" }

func (AverageCostPolicy) MatchedCost(sale models.Transaction, history []models.Transaction) float64 {
	qty, avgCost := 0.0, 0.0
	for _, t := range history {
		switch t.Action {
		case models.ActionBuy:
			newQty := qty + t.Quantity
			if newQty > 0 {
				avgCost = (qty*avgCost + t.Quantity*t.Price) / newQty
			}
			qty = newQty
		case models.ActionSell:
			qty -= t.Quantity
			if qty < 0 {
				qty = 0
			}
		}
	}
	matched := math.Min(sale.Quantity, qty)
	return matched * avgCost
}

// FIFOPolicy matches sale quantity against the oldest open purchase lots.
type FIFOPolicy struct{}

func (FIFOPolicy) Name() string { return "fifo" }

func (FIFOPolicy) MatchedCost(sale models.Transaction, history []models.Transaction) float64 {
	type lot struct {
		quantity float64
		price    float64
	}
	var lots []lot
	for _, t := range history {
		switch t.Action {
		case models.ActionBuy:
			lots = append(lots, lot{quantity: t.Quantity, price: t.Price})
		case models.ActionSell:
			remaining := t.Quantity
			for remaining > 0 && len(lots) > 0 {
				matched := math.Min(remaining, lots[0].quantity)
				lots[0].quantity -= matched
				remaining -= matched
				if lots[0].quantity == 0 {
					lots = lots[1:]
				}
			}
		}
	}

	cost := 0.0
	remaining := sale.Quantity
	for remaining > 0 && len(lots) > 0 {
		matched := math.Min(remaining, lots[0].quantity)
		cost += matched * lots[0].price
		lots[0].quantity -= matched
		remaining -= matched
		if lots[0].quantity == 0 {
			lots = lots[1:]
		}
	}
	return cost
}

type TaxProcessor struct {
	policy CostBasisPolicy
}

func NewTaxProcessor(policy CostBasisPolicy) *TaxProcessor {
	if policy == nil {
		policy = AverageCostPolicy{}
	}
	return &TaxProcessor{policy: policy}
}

// Compute estimates the year's liabilities. allTransactions is the
// portfolio's full chronological stream (cost-basis matching needs history
// from before the year); currencyImpact comes from the FX collaborator and
// yearEndValue from the current valuation.
func (p *TaxProcessor) Compute(portfolioID string, year int, allTransactions []models.Transaction, currencyImpact, yearEndValue float64) *models.TaxCalculation {
	capitalGainsTax := 0.0
	ivaTax := 0.0

	for i, t := range allTransactions {
		if t.Date.Year() != year {
			continue
		}
		ivaTax += t.Fees * ivaRate

		if t.Action != models.ActionSell {
			continue
		}
		history := priorTransactions(allTransactions, i, t.Symbol)
		proceeds := t.Quantity * t.Price
		gain := proceeds - p.policy.MatchedCost(t, history)
		if gain > 0 {
			capitalGainsTax += gain * capitalGainsRate
		}
	}

	totalTax := capitalGainsTax + ivaTax + currencyImpact

	effectiveRate := 0.0
	if yearEndValue > 0 {
		effectiveRate = totalTax / yearEndValue
	}

	return &models.TaxCalculation{
		PortfolioID:        portfolioID,
		Year:               year,
		CapitalGainsTax:    capitalGainsTax,
		IVATax:             ivaTax,
		CurrencyImpact:     currencyImpact,
		TotalTax:           totalTax,
		YearEndValue:       yearEndValue,
		EffectiveTaxRate:   effectiveRate,
		TaxEfficiencyScore: math.Max(0, 100-effectiveRate*100),
		CalculatedAt:       time.Now().UTC(),
	}
}

// priorTransactions returns the symbol's transactions before index i in the
// chronological stream.
func priorTransactions(transactions []models.Transaction, i int, symbol string) []models.Transaction {
	var history []models.Transaction
	for j := 0; j < i; j++ {
		if transactions[j].Symbol == symbol {
			history = append(history, transactions[j])
		}
	}
	return history
}
