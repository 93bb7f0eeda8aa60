package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/username/folioserve/backend/src/database"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

func createPortfolio(t *testing.T, store *SQLStore, id string) {
	t.Helper()
	err := store.Repos().Portfolios.Create(context.Background(), &models.Portfolio{
		ID: id, UserID: 7, Name: "Test", Currency: "COP", IsActive: true,
	})
	if err != nil {
		t.Fatalf("create portfolio: %v", err)
	}
}

func TestPortfolioRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()

	createPortfolio(t, store, "pf-1")

	got, err := repos.Portfolios.GetByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Test" || got.UserID != 7 || !got.IsActive {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}

	got.Name = "Renamed"
	if err := repos.Portfolios.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = repos.Portfolios.GetByID(ctx, "pf-1")
	if got.Name != "Renamed" {
		t.Errorf("Name = %q after update, want Renamed", got.Name)
	}

	list, err := repos.Portfolios.ListByUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d portfolios, want 1", len(list))
	}

	if err := repos.Portfolios.SoftDelete(ctx, "pf-1"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	// The row survives, the listing hides it.
	got, err = repos.Portfolios.GetByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("GetByID after soft delete: %v", err)
	}
	if got.IsActive {
		t.Error("IsActive must be false after soft delete")
	}
	list, _ = repos.Portfolios.ListByUser(ctx, 7)
	if len(list) != 0 {
		t.Errorf("soft-deleted portfolio still listed: %d", len(list))
	}

	// A second soft delete finds no active row.
	if err := repos.Portfolios.SoftDelete(ctx, "pf-1"); !errors.Is(err, models.ErrPortfolioNotFound) {
		t.Errorf("double soft delete: got %v", err)
	}
	if _, err := repos.Portfolios.GetByID(ctx, "missing"); !errors.Is(err, models.ErrPortfolioNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
}

func TestTransactionInsertAndFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()
	createPortfolio(t, store, "pf-1")

	insert := func(symbol, action, origin, date string, quantity, price float64) {
		t.Helper()
		d, _ := time.Parse(dateLayout, date)
		tx := &models.Transaction{
			PortfolioID: "pf-1", Symbol: symbol, Action: action,
			Quantity: quantity, Price: price, Total: quantity * price,
			Origin: origin, Date: d,
		}
		if err := repos.Transactions.Insert(ctx, tx); err != nil {
			t.Fatalf("insert %s %s: %v", action, symbol, err)
		}
		if tx.ID == 0 {
			t.Fatal("insert must backfill the row id")
		}
	}

	insert("AAPL", models.ActionBuy, "", "2024-06-01", 10, 100)
	insert("AAPL", models.ActionSell, models.OriginRebalance, "2025-02-01", 2, 140)
	insert("GOOG", models.ActionBuy, models.OriginRebalance, "2025-03-01", 5, 200)

	all, err := repos.Transactions.ListByPortfolio(ctx, "pf-1", TransactionFilter{})
	if err != nil {
		t.Fatalf("ListByPortfolio: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d transactions, want 3", len(all))
	}
	// Chronological order, and the empty origin defaulted to manual.
	if !all[0].Date.Before(all[1].Date) {
		t.Error("transactions must come back oldest first")
	}
	if all[0].Origin != models.OriginManual {
		t.Errorf("origin = %q, want defaulted manual", all[0].Origin)
	}

	bySymbol, _ := repos.Transactions.ListByPortfolio(ctx, "pf-1", TransactionFilter{Symbol: "GOOG"})
	if len(bySymbol) != 1 || bySymbol[0].Symbol != "GOOG" {
		t.Errorf("symbol filter: %+v", bySymbol)
	}
	byYear, _ := repos.Transactions.ListByPortfolio(ctx, "pf-1", TransactionFilter{Year: 2024})
	if len(byYear) != 1 {
		t.Errorf("year filter returned %d rows, want 1", len(byYear))
	}
	byOrigin, _ := repos.Transactions.ListByPortfolio(ctx, "pf-1", TransactionFilter{Origin: models.OriginRebalance})
	if len(byOrigin) != 2 {
		t.Errorf("origin filter returned %d rows, want 2", len(byOrigin))
	}

	last, ok, err := repos.Transactions.LastRebalanceDate(ctx, "pf-1")
	if err != nil {
		t.Fatalf("LastRebalanceDate: %v", err)
	}
	if !ok || last.Format(dateLayout) != "2025-03-01" {
		t.Errorf("last rebalance = %v/%v, want 2025-03-01", last, ok)
	}

	_, ok, err = repos.Transactions.LastRebalanceDate(ctx, "other")
	if err != nil || ok {
		t.Errorf("portfolio without rebalances: ok=%v err=%v", ok, err)
	}
}

func TestPositionUpsertAndQuoteRefresh(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()
	createPortfolio(t, store, "pf-1")

	p := &models.Position{PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 10, AverageCost: 100}
	if err := repos.Positions.Upsert(ctx, p); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p.Quantity = 20
	p.AverageCost = 150
	if err := repos.Positions.Upsert(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repos.Positions.Get(ctx, "pf-1", "AAPL")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Quantity != 20 || got.AverageCost != 150 {
		t.Errorf("upsert merged wrong: %+v", got)
	}

	// UpdateQuote must leave quantity and average cost alone.
	got.CurrentPrice = 180
	got.MarketValue = 3600
	got.UnrealizedPnL = 600
	got.UnrealizedPnLPercent = 20
	got.Quantity = 999 // not part of the quote update
	if err := repos.Positions.UpdateQuote(ctx, got); err != nil {
		t.Fatalf("UpdateQuote: %v", err)
	}
	refreshed, _ := repos.Positions.Get(ctx, "pf-1", "AAPL")
	if refreshed.Quantity != 20 {
		t.Errorf("UpdateQuote touched quantity: %v", refreshed.Quantity)
	}
	if refreshed.CurrentPrice != 180 || refreshed.MarketValue != 3600 {
		t.Errorf("quote fields not refreshed: %+v", refreshed)
	}

	if err := repos.Positions.Delete(ctx, "pf-1", "AAPL"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repos.Positions.Get(ctx, "pf-1", "AAPL"); !errors.Is(err, models.ErrPositionNotFound) {
		t.Errorf("expected ErrPositionNotFound, got %v", err)
	}
}

func TestScheduleUpsertKeepsOnePerPortfolio(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	repos := store.Repos()
	createPortfolio(t, store, "pf-1")

	first := &models.RebalanceSchedule{PortfolioID: "pf-1", Frequency: models.FrequencyMonthly, DeviationThreshold: 0.05}
	if err := repos.Schedules.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &models.RebalanceSchedule{PortfolioID: "pf-1", Frequency: models.FrequencyWeekly, DeviationThreshold: 0.10}
	if err := repos.Schedules.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repos.Schedules.Get(ctx, "pf-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Frequency != models.FrequencyWeekly || got.DeviationThreshold != 0.10 {
		t.Errorf("schedule = %+v, want the replacement", got)
	}

	if err := repos.Schedules.Delete(ctx, "pf-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repos.Schedules.Get(ctx, "pf-1"); !errors.Is(err, models.ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createPortfolio(t, store, "pf-1")

	boom := errors.New("boom")
	err := store.InTx(ctx, func(repos Repositories) error {
		tx := &models.Transaction{
			PortfolioID: "pf-1", Symbol: "AAPL", Action: models.ActionBuy,
			Quantity: 10, Price: 100, Total: 1000,
			Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := repos.Transactions.Insert(ctx, tx); err != nil {
			return err
		}
		if err := repos.Positions.Upsert(ctx, &models.Position{
			PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 10, AverageCost: 100,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx returned %v, want the closure error", err)
	}

	txs, _ := store.Repos().Transactions.ListByPortfolio(ctx, "pf-1", TransactionFilter{})
	if len(txs) != 0 {
		t.Errorf("rolled-back transaction still visible: %d rows", len(txs))
	}
	if _, err := store.Repos().Positions.Get(ctx, "pf-1", "AAPL"); !errors.Is(err, models.ErrPositionNotFound) {
		t.Errorf("rolled-back position still visible: %v", err)
	}
}

func TestInTxCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	createPortfolio(t, store, "pf-1")

	err := store.InTx(ctx, func(repos Repositories) error {
		return repos.Positions.Upsert(ctx, &models.Position{
			PortfolioID: "pf-1", Symbol: "AAPL", Quantity: 5, AverageCost: 120,
		})
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	got, err := store.Repos().Positions.Get(ctx, "pf-1", "AAPL")
	if err != nil {
		t.Fatalf("Get after commit: %v", err)
	}
	if got.Quantity != 5 {
		t.Errorf("Quantity = %v, want 5", got.Quantity)
	}
}
