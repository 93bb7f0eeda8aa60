package processors

import (
	"testing"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

func tx(symbol, action string, quantity, price, fees float64, date string) models.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return models.Transaction{
		PortfolioID: "pf-1",
		Symbol:      symbol,
		Action:      action,
		Quantity:    quantity,
		Price:       price,
		Fees:        fees,
		Date:        d,
	}
}

func TestTaxBuyOnlyYearHasNoCapitalGains(t *testing.T) {
	transactions := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 5, "2025-02-01"),
		tx("GOOG", models.ActionBuy, 5, 200, 5, "2025-06-15"),
	}

	calc := NewTaxProcessor(nil).Compute("pf-1", 2025, transactions, 0, 20000)

	if calc.CapitalGainsTax != 0 {
		t.Errorf("CapitalGainsTax = %v, want 0 for a buy-only year", calc.CapitalGainsTax)
	}
	wantIVA := (5 + 5) * 0.19
	if !almostEqual(calc.IVATax, wantIVA) {
		t.Errorf("IVATax = %v, want %v", calc.IVATax, wantIVA)
	}
	if !almostEqual(calc.TotalTax, wantIVA) {
		t.Errorf("TotalTax = %v, want %v", calc.TotalTax, wantIVA)
	}
}

func TestTaxAverageCostGain(t *testing.T) {
	// Two buys at 100 and 200 average to 150; selling 10 at 250 realizes
	// a 1000 gain taxed at 10%.
	transactions := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 0, "2024-01-10"),
		tx("AAPL", models.ActionBuy, 10, 200, 0, "2024-02-10"),
		tx("AAPL", models.ActionSell, 10, 250, 0, "2025-03-01"),
	}

	calc := NewTaxProcessor(AverageCostPolicy{}).Compute("pf-1", 2025, transactions, 0, 5000)

	if !almostEqual(calc.CapitalGainsTax, 100) {
		t.Errorf("CapitalGainsTax = %v, want 100", calc.CapitalGainsTax)
	}
	// The 2024 buys are outside the report year and contribute no IVA.
	if calc.IVATax != 0 {
		t.Errorf("IVATax = %v, want 0", calc.IVATax)
	}
}

func TestTaxFIFOGainDiffersFromAverage(t *testing.T) {
	transactions := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 0, "2024-01-10"),
		tx("AAPL", models.ActionBuy, 10, 200, 0, "2024-02-10"),
		tx("AAPL", models.ActionSell, 10, 250, 0, "2025-03-01"),
	}

	// FIFO matches all 10 shares against the 100-cost lot: 1500 gain.
	fifo := NewTaxProcessor(FIFOPolicy{}).Compute("pf-1", 2025, transactions, 0, 5000)
	if !almostEqual(fifo.CapitalGainsTax, 150) {
		t.Errorf("FIFO CapitalGainsTax = %v, want 150", fifo.CapitalGainsTax)
	}
}

func TestTaxLossesAreNotOffset(t *testing.T) {
	transactions := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 0, "2024-01-10"),
		tx("GOOG", models.ActionBuy, 10, 300, 0, "2024-01-10"),
		tx("AAPL", models.ActionSell, 10, 150, 0, "2025-02-01"), // +500 gain
		tx("GOOG", models.ActionSell, 10, 200, 0, "2025-02-01"), // -1000 loss, ignored
	}

	calc := NewTaxProcessor(nil).Compute("pf-1", 2025, transactions, 0, 0)

	if !almostEqual(calc.CapitalGainsTax, 50) {
		t.Errorf("CapitalGainsTax = %v, want 50 (loss not offset)", calc.CapitalGainsTax)
	}
}

func TestTaxEffectiveRateAndEfficiency(t *testing.T) {
	transactions := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 0, "2025-01-10"),
	}

	calc := NewTaxProcessor(nil).Compute("pf-1", 2025, transactions, 100, 10000)

	if !almostEqual(calc.TotalTax, 100) {
		t.Errorf("TotalTax = %v, want 100 (currency impact only)", calc.TotalTax)
	}
	if !almostEqual(calc.EffectiveTaxRate, 0.01) {
		t.Errorf("EffectiveTaxRate = %v, want 0.01", calc.EffectiveTaxRate)
	}
	if !almostEqual(calc.TaxEfficiencyScore, 99) {
		t.Errorf("TaxEfficiencyScore = %v, want 99", calc.TaxEfficiencyScore)
	}

	// Zero year-end value must not divide.
	empty := NewTaxProcessor(nil).Compute("pf-1", 2025, nil, 0, 0)
	if empty.EffectiveTaxRate != 0 {
		t.Errorf("EffectiveTaxRate on zero value = %v, want 0", empty.EffectiveTaxRate)
	}
	if !almostEqual(empty.TaxEfficiencyScore, 100) {
		t.Errorf("TaxEfficiencyScore on zero tax = %v, want 100", empty.TaxEfficiencyScore)
	}
}

func TestAverageCostPolicyReplaysSells(t *testing.T) {
	// Buy 10@100, sell 5, buy 10@220. Average after the third leg is
	// (5*100 + 10*220) / 15 = 180.
	sale := tx("AAPL", models.ActionSell, 5, 300, 0, "2025-06-01")
	history := []models.Transaction{
		tx("AAPL", models.ActionBuy, 10, 100, 0, "2024-01-01"),
		tx("AAPL", models.ActionSell, 5, 120, 0, "2024-02-01"),
		tx("AAPL", models.ActionBuy, 10, 220, 0, "2024-03-01"),
	}

	got := AverageCostPolicy{}.MatchedCost(sale, history)
	if !almostEqual(got, 5*180) {
		t.Errorf("MatchedCost = %v, want %v", got, 5*180.0)
	}
}
