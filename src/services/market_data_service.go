package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// marketDataServiceImpl talks to the market data gateway over HTTP.
// Quotes are cached for a short TTL; the last good quote is additionally
// kept without expiry so a gateway outage serves stale data instead of
// failing reads.
type marketDataServiceImpl struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	quoteCache *cache.Cache
	staleCache *cache.Cache
}

// NewMarketDataService creates the gateway client. timeout bounds every
// request; a timeout surfaces as models.ErrMarketDataUnavailable.
func NewMarketDataService(baseURL string, timeout, quoteTTL time.Duration) MarketDataService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &marketDataServiceImpl{
		baseURL: baseURL,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		limiter:    rate.NewLimiter(rate.Every(100*time.Millisecond), 10),
		quoteCache: cache.New(quoteTTL, 2*quoteTTL),
		staleCache: cache.New(cache.NoExpiration, 0),
	}
}

type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Timestamp     string  `json:"timestamp"`
}

func (s *marketDataServiceImpl) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if cached, found := s.quoteCache.Get(symbol); found {
		return cached.(*models.Quote), nil
	}

	quote, err := s.fetchQuote(ctx, symbol)
	if err != nil {
		if stale, found := s.staleCache.Get(symbol); found {
			logger.L.Warn("Serving stale quote after gateway failure", "symbol", symbol, "error", err)
			return stale.(*models.Quote), nil
		}
		return nil, err
	}

	s.quoteCache.Set(symbol, quote, cache.DefaultExpiration)
	s.staleCache.Set(symbol, quote, cache.NoExpiration)
	return quote, nil
}

func (s *marketDataServiceImpl) fetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	var resp quoteResponse
	endpoint := fmt.Sprintf("%s/quotes/%s", s.baseURL, url.PathEscape(symbol))
	if err := s.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339, resp.Timestamp)
	if err != nil {
		ts = time.Now().UTC()
	}
	return &models.Quote{
		Symbol:        resp.Symbol,
		Price:         resp.Price,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Volume:        resp.Volume,
		Timestamp:     ts,
	}, nil
}

func (s *marketDataServiceImpl) GetHistorical(ctx context.Context, symbol, period string) ([]models.PricePoint, error) {
	cacheKey := "historical:" + symbol + ":" + period
	if cached, found := s.quoteCache.Get(cacheKey); found {
		return cached.([]models.PricePoint), nil
	}

	endpoint := fmt.Sprintf("%s/quotes/%s/historical?period=%s",
		s.baseURL, url.PathEscape(symbol), url.QueryEscape(period))
	var points []models.PricePoint
	if err := s.getJSON(ctx, endpoint, &points); err != nil {
		return nil, err
	}

	s.quoteCache.Set(cacheKey, points, cache.DefaultExpiration)
	return points, nil
}

func (s *marketDataServiceImpl) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrMarketDataUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", models.ErrMarketDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Market data request failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%w: %v", models.ErrMarketDataUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("Market data request returned non-OK status", "endpoint", endpoint, "status", resp.StatusCode)
		return fmt.Errorf("%w: status %d", models.ErrMarketDataUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", models.ErrMarketDataUnavailable, err)
	}
	return nil
}
