package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/folioserve/backend/src/logger"
	_ "modernc.org/sqlite"
)

// InitDB opens the sqlite database, ensures the schema exists and returns
// the pool. Callers inject the returned *sql.DB into the repositories;
// nothing in this package holds global state.
func InitDB(databasePath string) *sql.DB {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// on the paired transaction+position writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		stdlog.Fatalf("failed to enable foreign keys: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable(db)

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'COP',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL CHECK(action IN ('BUY','SELL')),
		quantity REAL NOT NULL CHECK(quantity > 0),
		price REAL NOT NULL CHECK(price > 0),
		fees REAL NOT NULL DEFAULT 0 CHECK(fees >= 0),
		total REAL NOT NULL,
		note TEXT,
		origin TEXT NOT NULL DEFAULT 'manual',
		transaction_date TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(portfolio_id) REFERENCES portfolios(id)
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL CHECK(quantity >= 0),
		average_cost REAL NOT NULL,
		current_price REAL,
		market_value REAL,
		unrealized_pnl REAL,
		unrealized_pnl_percent REAL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(portfolio_id) REFERENCES portfolios(id),
		UNIQUE(portfolio_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS rebalance_schedules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		portfolio_id TEXT NOT NULL UNIQUE,
		frequency TEXT NOT NULL CHECK(frequency IN ('weekly','monthly','quarterly')),
		deviation_threshold REAL NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(portfolio_id) REFERENCES portfolios(id)
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_portfolio_date
		ON transactions(portfolio_id, transaction_date);
	CREATE INDEX IF NOT EXISTS idx_positions_portfolio
		ON positions(portfolio_id);
	`

	if _, err = db.Exec(createTableStatement); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
	return db
}

// migrateTransactionsTable adds columns introduced after the first schema
// version to existing databases. Additive only.
func migrateTransactionsTable(db *sql.DB) {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return // table will be created with the full schema
		}
		stdlog.Printf("Error checking for 'transactions' table: %v", err)
		return
	}

	rows, err := db.Query("PRAGMA table_info(transactions)")
	if err != nil {
		stdlog.Printf("Error reading transactions table info: %v", err)
		return
	}
	defer rows.Close()

	hasOrigin := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			stdlog.Printf("Error scanning transactions table info: %v", err)
			return
		}
		if name == "origin" {
			hasOrigin = true
		}
	}

	if !hasOrigin {
		if _, err := db.Exec("ALTER TABLE transactions ADD COLUMN origin TEXT NOT NULL DEFAULT 'manual'"); err != nil {
			stdlog.Printf("Error adding 'origin' column to transactions: %v", err)
			return
		}
		if logger.L != nil {
			logger.L.Info("Migrated transactions table: added 'origin' column.")
		} else {
			stdlog.Println("Migrated transactions table: added 'origin' column.")
		}
	}
}
