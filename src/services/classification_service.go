package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
)

// unknownClassification is the degraded bucket when the gateway cannot
// resolve a symbol. A classification outage must never fail a
// diversification read, so Classify has no error return.
var unknownClassification = models.Classification{
	Sector:     "Unknown",
	AssetClass: "Unknown",
	Region:     "Unknown",
}

type classificationServiceImpl struct {
	baseURL    string
	httpClient *http.Client
	cache      *cache.Cache
}

func NewClassificationService(baseURL string, timeout time.Duration) ClassificationService {
	return &classificationServiceImpl{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		// Classifications change rarely; keep them for a day.
		cache: cache.New(24*time.Hour, time.Hour),
	}
}

func (s *classificationServiceImpl) Classify(ctx context.Context, symbol string) models.Classification {
	if cached, found := s.cache.Get(symbol); found {
		return cached.(models.Classification)
	}

	class, err := s.fetch(ctx, symbol)
	if err != nil {
		logger.L.Warn("Classification lookup failed, using Unknown buckets", "symbol", symbol, "error", err)
		return unknownClassification
	}

	s.cache.Set(symbol, class, cache.DefaultExpiration)
	return class
}

func (s *classificationServiceImpl) fetch(ctx context.Context, symbol string) (models.Classification, error) {
	endpoint := fmt.Sprintf("%s/classifications/%s", s.baseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return unknownClassification, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return unknownClassification, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return unknownClassification, fmt.Errorf("status %d", resp.StatusCode)
	}

	var class models.Classification
	if err := json.NewDecoder(resp.Body).Decode(&class); err != nil {
		return unknownClassification, err
	}
	if class.Sector == "" {
		class.Sector = "Unknown"
	}
	if class.AssetClass == "" {
		class.AssetClass = "Unknown"
	}
	if class.Region == "" {
		class.Region = "Unknown"
	}
	return class, nil
}
