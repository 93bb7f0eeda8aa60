package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	JWTSecret    string
	Port         string
	DatabasePath string
	LogLevel     string

	MarketDataURL     string
	RecommendationURL string
	ClassificationURL string
	FXServiceURL      string
	MarketDataTimeout time.Duration

	RiskFreeRate    float64
	BenchmarkSymbol string
	DefaultCurrency string

	QuoteCacheTTL  time.Duration
	ReportCacheTTL time.Duration
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getEnv("JWT_SECRET", "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes")
	if jwtSecret == "your-very-secure-and-long-jwt-secret-key-for-hs256-minimum-32-bytes" {
		log.Println("WARNING: Using default insecure JWT_SECRET. Set JWT_SECRET environment variable for production.")
	}

	riskFreeRateStr := getEnv("RISK_FREE_RATE", "0.03")
	riskFreeRate, err := strconv.ParseFloat(riskFreeRateStr, 64)
	if err != nil {
		log.Printf("WARNING: Invalid RISK_FREE_RATE format '%s'. Using default 0.03. Error: %v", riskFreeRateStr, err)
		riskFreeRate = 0.03
	}

	Cfg = &AppConfig{
		JWTSecret:    jwtSecret,
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./folioserve.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		MarketDataURL:     getEnv("MARKET_DATA_URL", "http://localhost:9001"),
		RecommendationURL: getEnv("RECOMMENDATION_URL", "http://localhost:9002"),
		ClassificationURL: getEnv("CLASSIFICATION_URL", "http://localhost:9003"),
		FXServiceURL:      getEnv("FX_URL", "http://localhost:9004"),
		MarketDataTimeout: getEnvAsDuration("MARKET_DATA_TIMEOUT", 5*time.Second),

		RiskFreeRate:    riskFreeRate,
		BenchmarkSymbol: getEnv("BENCHMARK_SYMBOL", "^GSPC"),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "COP"),

		QuoteCacheTTL:  getEnvAsDuration("QUOTE_CACHE_TTL", 1*time.Minute),
		ReportCacheTTL: getEnvAsDuration("REPORT_CACHE_TTL", 15*time.Minute),
	}

	log.Println("Application configuration loaded.")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("WARNING: Invalid %s format '%s'. Using default %s. Error: %v", key, valueStr, fallback, err)
		return fallback
	}
	return value
}
