package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/config"
	"github.com/username/folioserve/backend/src/database"
	"github.com/username/folioserve/backend/src/handlers"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/security"
	"github.com/username/folioserve/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Folioserve backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	db := database.InitDB(config.Cfg.DatabasePath)
	defer db.Close()
	store := repository.NewSQLStore(db)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(config.Cfg.ReportCacheTTL, 2*config.Cfg.ReportCacheTTL)
	logger.L.Info("Report cache initialized.")

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)

	marketDataService := services.NewMarketDataService(
		config.Cfg.MarketDataURL, config.Cfg.MarketDataTimeout, config.Cfg.QuoteCacheTTL)
	recommendationService := services.NewRecommendationService(
		config.Cfg.RecommendationURL, config.Cfg.MarketDataTimeout)
	classificationService := services.NewClassificationService(
		config.Cfg.ClassificationURL, config.Cfg.MarketDataTimeout)
	fxService := services.NewFXService(
		config.Cfg.FXServiceURL, config.Cfg.MarketDataTimeout)

	ledgerService := services.NewLedgerService(store, marketDataService, reportCache)
	portfolioService := services.NewPortfolioService(store, ledgerService, config.Cfg.DefaultCurrency)
	analyticsService := services.NewAnalyticsService(
		store, marketDataService, classificationService,
		config.Cfg.RiskFreeRate, config.Cfg.BenchmarkSymbol, reportCache)
	taxService := services.NewTaxService(store, ledgerService, fxService, nil)
	rebalanceService := services.NewRebalanceService(store, ledgerService, marketDataService, recommendationService)

	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	txHandler := handlers.NewTransactionHandler(portfolioService, ledgerService)
	analyticsHandler := handlers.NewAnalyticsHandler(portfolioService, analyticsService, taxService)
	rebalanceHandler := handlers.NewRebalanceHandler(portfolioService, rebalanceService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	authMiddleware := handlers.AuthMiddleware(authService)
	protected := func(handler http.HandlerFunc) http.Handler {
		return authMiddleware(handler)
	}

	apiRouter.Handle("POST /api/portfolios", protected(portfolioHandler.HandleCreatePortfolio))
	apiRouter.Handle("GET /api/portfolios", protected(portfolioHandler.HandleListPortfolios))
	apiRouter.Handle("GET /api/portfolios/{id}", protected(portfolioHandler.HandleGetPortfolio))
	apiRouter.Handle("PUT /api/portfolios/{id}", protected(portfolioHandler.HandleUpdatePortfolio))
	apiRouter.Handle("DELETE /api/portfolios/{id}", protected(portfolioHandler.HandleDeletePortfolio))
	apiRouter.Handle("GET /api/portfolios/{id}/summary", protected(portfolioHandler.HandleGetSummary))

	apiRouter.Handle("POST /api/portfolios/{id}/transactions", protected(txHandler.HandleCreateTransaction))
	apiRouter.Handle("GET /api/portfolios/{id}/transactions", protected(txHandler.HandleListTransactions))
	apiRouter.Handle("GET /api/portfolios/{id}/positions", protected(txHandler.HandleListPositions))

	apiRouter.Handle("GET /api/portfolios/{id}/performance", protected(analyticsHandler.HandleGetPerformance))
	apiRouter.Handle("GET /api/portfolios/{id}/risk", protected(analyticsHandler.HandleGetRisk))
	apiRouter.Handle("GET /api/portfolios/{id}/diversification", protected(analyticsHandler.HandleGetDiversification))
	apiRouter.Handle("GET /api/portfolios/{id}/taxes", protected(analyticsHandler.HandleGetTaxes))

	apiRouter.Handle("GET /api/portfolios/{id}/rebalancing/suggestion", protected(rebalanceHandler.HandleGetSuggestion))
	apiRouter.Handle("POST /api/portfolios/{id}/rebalancing/execute", protected(rebalanceHandler.HandleExecute))
	apiRouter.Handle("PUT /api/portfolios/{id}/rebalancing/schedule", protected(rebalanceHandler.HandleSetSchedule))
	apiRouter.Handle("GET /api/portfolios/{id}/rebalancing/schedule", protected(rebalanceHandler.HandleGetSchedule))
	apiRouter.Handle("DELETE /api/portfolios/{id}/rebalancing/schedule", protected(rebalanceHandler.HandleRemoveSchedule))
	apiRouter.Handle("GET /api/portfolios/{id}/rebalancing/due", protected(rebalanceHandler.HandleIsDue))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Folioserve backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
