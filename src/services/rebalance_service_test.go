package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/repository"
)

func newRebalanceFixture(t *testing.T) (*RebalanceService, *memStore, *stubMarketData, *stubRecommendation) {
	t.Helper()
	store := newMemStore()
	seedPortfolio(store, "pf-1", 7)
	market := &stubMarketData{quotes: map[string]float64{}}
	recommendation := &stubRecommendation{}
	ledger := NewLedgerService(store, market, cache.New(time.Minute, time.Minute))
	svc := NewRebalanceService(store, ledger, market, recommendation)
	return svc, store, market, recommendation
}

func seedHolding(t *testing.T, svc *RebalanceService, symbol string, quantity, price float64) {
	t.Helper()
	tx := &models.Transaction{
		Symbol:   symbol,
		Action:   models.ActionBuy,
		Quantity: quantity,
		Price:    price,
		Date:     time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	if _, err := svc.ledger.ApplyTransaction(context.Background(), "pf-1", tx); err != nil {
		t.Fatalf("seed %s: %v", symbol, err)
	}
}

func TestSuggestBuildsTrades(t *testing.T) {
	svc, _, market, recommendation := newRebalanceFixture(t)
	ctx := context.Background()

	market.quotes = map[string]float64{"AAPL": 100, "GOOG": 50}
	seedHolding(t, svc, "AAPL", 80, 100) // 8000 at quote
	seedHolding(t, svc, "GOOG", 40, 50)  // 2000 at quote
	recommendation.target = map[string]float64{"AAPL": 0.5, "GOOG": 0.5}

	s, err := svc.Suggest(ctx, "pf-1")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(s.Trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(s.Trades))
	}
	if !almostEqual(s.TotalValue, 10000) {
		t.Errorf("TotalValue = %v, want 10000", s.TotalValue)
	}
}

func TestSuggestFallsBackToCurrentAllocationOnGatewayFailure(t *testing.T) {
	svc, _, market, recommendation := newRebalanceFixture(t)
	ctx := context.Background()

	market.quotes = map[string]float64{"AAPL": 100}
	seedHolding(t, svc, "AAPL", 10, 100)
	recommendation.err = models.ErrRecommendationUnavailable

	s, err := svc.Suggest(ctx, "pf-1")
	if err != nil {
		t.Fatalf("Suggest must not fail on recommendation outage: %v", err)
	}
	if len(s.Trades) != 0 {
		t.Errorf("fallback target equals current allocation, got %d trades", len(s.Trades))
	}
	if s.EstimatedCost != 0 {
		t.Errorf("EstimatedCost = %v, want 0", s.EstimatedCost)
	}
}

func TestSuggestEmptyPortfolio(t *testing.T) {
	svc, _, _, _ := newRebalanceFixture(t)
	_, err := svc.Suggest(context.Background(), "pf-1")
	if !errors.Is(err, models.ErrEmptyPortfolio) {
		t.Fatalf("expected ErrEmptyPortfolio, got %v", err)
	}
}

func TestExecuteAppliesTradesAtomically(t *testing.T) {
	svc, store, market, _ := newRebalanceFixture(t)
	ctx := context.Background()

	market.quotes = map[string]float64{"AAPL": 100, "GOOG": 50}
	seedHolding(t, svc, "AAPL", 80, 100)
	seedHolding(t, svc, "GOOG", 40, 50)

	suggestion := &models.RebalancingSuggestion{
		PortfolioID: "pf-1",
		Trades: []models.RebalancingTrade{
			{Symbol: "AAPL", Action: models.ActionSell, Quantity: 30, Price: 100},
			{Symbol: "GOOG", Action: models.ActionBuy, Quantity: 60, Price: 50},
		},
	}

	applied, err := svc.Execute(ctx, "pf-1", suggestion)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(applied) != 2 {
		t.Fatalf("got %d applied trades, want 2", len(applied))
	}
	for _, tx := range applied {
		if tx.Origin != models.OriginRebalance {
			t.Errorf("trade origin = %q, want %q", tx.Origin, models.OriginRebalance)
		}
	}

	aapl, _ := store.Repos().Positions.Get(ctx, "pf-1", "AAPL")
	if !almostEqual(aapl.Quantity, 50) {
		t.Errorf("AAPL quantity = %v, want 50", aapl.Quantity)
	}
	goog, _ := store.Repos().Positions.Get(ctx, "pf-1", "GOOG")
	if !almostEqual(goog.Quantity, 100) {
		t.Errorf("GOOG quantity = %v, want 100", goog.Quantity)
	}
}

func TestExecuteRollsBackWholeBatchOnFailure(t *testing.T) {
	svc, store, market, _ := newRebalanceFixture(t)
	ctx := context.Background()

	market.quotes = map[string]float64{"AAPL": 100, "GOOG": 50}
	seedHolding(t, svc, "AAPL", 80, 100)
	seedHolding(t, svc, "GOOG", 40, 50)

	// Trade 2 oversells GOOG; trades 1 and 3 are fine on their own.
	suggestion := &models.RebalancingSuggestion{
		PortfolioID: "pf-1",
		Trades: []models.RebalancingTrade{
			{Symbol: "AAPL", Action: models.ActionSell, Quantity: 10, Price: 100},
			{Symbol: "GOOG", Action: models.ActionSell, Quantity: 9999, Price: 50},
			{Symbol: "AAPL", Action: models.ActionBuy, Quantity: 5, Price: 100},
		},
	}

	_, err := svc.Execute(ctx, "pf-1", suggestion)
	if !errors.Is(err, models.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got %v", err)
	}

	// Nothing from the batch may have landed.
	txs, _ := store.Repos().Transactions.ListByPortfolio(ctx, "pf-1",
		repository.TransactionFilter{Origin: models.OriginRebalance})
	if len(txs) != 0 {
		t.Errorf("got %d rebalance transactions after failed batch, want 0", len(txs))
	}
	aapl, _ := store.Repos().Positions.Get(ctx, "pf-1", "AAPL")
	if !almostEqual(aapl.Quantity, 80) {
		t.Errorf("AAPL quantity = %v, want untouched 80", aapl.Quantity)
	}
}

func TestExecuteRejectsMismatchedSuggestion(t *testing.T) {
	svc, _, _, _ := newRebalanceFixture(t)

	_, err := svc.Execute(context.Background(), "pf-1", &models.RebalancingSuggestion{PortfolioID: "pf-2"})
	var vErr *models.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Execute(context.Background(), "pf-1", nil)
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for nil suggestion, got %v", err)
	}
}

func TestExecuteEmptyTradeListIsNoop(t *testing.T) {
	svc, store, _, _ := newRebalanceFixture(t)

	applied, err := svc.Execute(context.Background(), "pf-1", &models.RebalancingSuggestion{PortfolioID: "pf-1"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("got %d applied trades, want 0", len(applied))
	}
	txs, _ := store.Repos().Transactions.ListByPortfolio(context.Background(), "pf-1", repository.TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("no-op execute wrote %d transactions", len(txs))
	}
}

func TestScheduleLifecycle(t *testing.T) {
	svc, _, _, _ := newRebalanceFixture(t)
	ctx := context.Background()

	if _, err := svc.SetSchedule(ctx, "pf-1", "yearly", 0.05); err == nil {
		t.Error("expected validation error for unknown frequency")
	}
	if _, err := svc.SetSchedule(ctx, "pf-1", models.FrequencyMonthly, 1.5); err == nil {
		t.Error("expected validation error for out-of-range threshold")
	}

	created, err := svc.SetSchedule(ctx, "pf-1", models.FrequencyMonthly, 0.05)
	if err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}
	if created.IntervalDays() != 30 {
		t.Errorf("IntervalDays = %d, want 30", created.IntervalDays())
	}

	// Upsert keeps a single schedule per portfolio.
	if _, err := svc.SetSchedule(ctx, "pf-1", models.FrequencyWeekly, 0.10); err != nil {
		t.Fatalf("replace schedule: %v", err)
	}
	got, err := svc.GetSchedule(ctx, "pf-1")
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if got.Frequency != models.FrequencyWeekly || !almostEqual(got.DeviationThreshold, 0.10) {
		t.Errorf("schedule = %+v, want replaced weekly/0.10", got)
	}

	if err := svc.RemoveSchedule(ctx, "pf-1"); err != nil {
		t.Fatalf("RemoveSchedule: %v", err)
	}
	if _, err := svc.GetSchedule(ctx, "pf-1"); !errors.Is(err, models.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound after removal, got %v", err)
	}
}

func TestIsDueRequiresScheduleAndBothConditions(t *testing.T) {
	svc, store, market, recommendation := newRebalanceFixture(t)
	ctx := context.Background()

	if _, err := svc.IsDue(ctx, "pf-1"); !errors.Is(err, models.ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound without a schedule, got %v", err)
	}

	market.quotes = map[string]float64{"AAPL": 100, "GOOG": 50}
	seedHolding(t, svc, "AAPL", 80, 100)
	seedHolding(t, svc, "GOOG", 40, 50)
	if _, err := svc.SetSchedule(ctx, "pf-1", models.FrequencyMonthly, 0.05); err != nil {
		t.Fatalf("SetSchedule: %v", err)
	}

	// Deviation exceeds the threshold and there has never been a rebalance.
	recommendation.target = map[string]float64{"AAPL": 0.5, "GOOG": 0.5}
	due, err := svc.IsDue(ctx, "pf-1")
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Error("drifted portfolio with no prior rebalance must be due")
	}

	// A recent rebalance-tagged transaction suppresses it regardless of
	// deviation.
	store.data.transactions = append(store.data.transactions, models.Transaction{
		ID: 900, PortfolioID: "pf-1", Symbol: "AAPL", Action: models.ActionSell,
		Quantity: 1, Price: 100, Origin: models.OriginRebalance,
		Date: time.Now().UTC().AddDate(0, 0, -2),
	})
	due, err = svc.IsDue(ctx, "pf-1")
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Error("rebalance 2 days ago is inside the monthly interval, must not be due")
	}

	// Interval elapsed but allocations on target: still not due.
	store.data.transactions[len(store.data.transactions)-1].Date = time.Now().UTC().AddDate(0, 0, -45)
	recommendation.target = map[string]float64{"AAPL": 0.8, "GOOG": 0.2}
	due, err = svc.IsDue(ctx, "pf-1")
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if due {
		t.Error("on-target portfolio must not be due even after the interval")
	}

	// Interval elapsed and drifted: due.
	recommendation.target = map[string]float64{"AAPL": 0.5, "GOOG": 0.5}
	due, err = svc.IsDue(ctx, "pf-1")
	if err != nil {
		t.Fatalf("IsDue: %v", err)
	}
	if !due {
		t.Error("drifted portfolio past the interval must be due")
	}
}
