package processors

import (
	"errors"
	"testing"

	"github.com/username/folioserve/backend/src/models"
)

func position(symbol string, marketValue float64) models.Position {
	return models.Position{PortfolioID: "pf-1", Symbol: symbol, Quantity: 1, MarketValue: marketValue}
}

func TestDiversificationEmptyPortfolio(t *testing.T) {
	p := NewDiversificationProcessor()

	_, err := p.Compute("pf-1", nil, nil, 0)
	if !errors.Is(err, models.ErrEmptyPortfolio) {
		t.Fatalf("expected ErrEmptyPortfolio, got %v", err)
	}

	// Positions whose quotes all failed value to zero and are just as empty.
	_, err = p.Compute("pf-1", []models.Position{position("AAPL", 0)}, nil, 0)
	if !errors.Is(err, models.ErrEmptyPortfolio) {
		t.Fatalf("expected ErrEmptyPortfolio for zero total value, got %v", err)
	}
}

func TestDiversificationAllocationsAndHerfindahl(t *testing.T) {
	positions := []models.Position{
		position("AAPL", 6000),
		position("GOOG", 3000),
		position("ECOPETROL", 1000),
	}
	classifications := map[string]models.Classification{
		"AAPL": {Sector: "Technology", AssetClass: "Equity", Region: "US"},
		"GOOG": {Sector: "Technology", AssetClass: "Equity", Region: "US"},
		// ECOPETROL deliberately unclassified.
	}

	a, err := NewDiversificationProcessor().Compute("pf-1", positions, classifications, 0.2)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if !almostEqual(a.SectorAllocation["Technology"], 90) {
		t.Errorf("Technology allocation = %v, want 90", a.SectorAllocation["Technology"])
	}
	if !almostEqual(a.SectorAllocation["Unknown"], 10) {
		t.Errorf("Unknown allocation = %v, want 10", a.SectorAllocation["Unknown"])
	}

	total := 0.0
	for _, pct := range a.SectorAllocation {
		total += pct
	}
	if !almostEqual(total, 100) {
		t.Errorf("sector allocations sum to %v, want 100", total)
	}

	want := 0.6*0.6 + 0.3*0.3 + 0.1*0.1
	if !almostEqual(a.HerfindahlIndex, want) {
		t.Errorf("HerfindahlIndex = %v, want %v", a.HerfindahlIndex, want)
	}
	if !almostEqual(a.Top10Percentage, 100) {
		t.Errorf("Top10Percentage = %v, want 100 for 3 positions", a.Top10Percentage)
	}
}

func TestDiversificationScoreRanking(t *testing.T) {
	// One concentrated position must score strictly below ten equal-weight
	// uncorrelated positions.
	single := []models.Position{position("AAPL", 10000)}
	var spread []models.Position
	for _, s := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"} {
		spread = append(spread, position(s, 1000))
	}

	p := NewDiversificationProcessor()
	lone, err := p.Compute("pf-1", single, nil, 0)
	if err != nil {
		t.Fatalf("Compute single: %v", err)
	}
	wide, err := p.Compute("pf-1", spread, nil, 0)
	if err != nil {
		t.Fatalf("Compute spread: %v", err)
	}

	if lone.DiversificationScore >= wide.DiversificationScore {
		t.Errorf("single-position score %v must be below ten-position score %v",
			lone.DiversificationScore, wide.DiversificationScore)
	}
	for _, a := range []float64{lone.DiversificationScore, wide.DiversificationScore} {
		if a < 0 || a > 100 {
			t.Errorf("score %v out of [0,100]", a)
		}
	}
}

func TestDiversificationScoreCorrelationPenalty(t *testing.T) {
	positions := []models.Position{position("A", 5000), position("B", 5000)}
	p := NewDiversificationProcessor()

	uncorrelated, _ := p.Compute("pf-1", positions, nil, 0)
	correlated, _ := p.Compute("pf-1", positions, nil, 0.9)

	if correlated.DiversificationScore >= uncorrelated.DiversificationScore {
		t.Errorf("highly correlated score %v must be below uncorrelated score %v",
			correlated.DiversificationScore, uncorrelated.DiversificationScore)
	}
}
