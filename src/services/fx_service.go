package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/username/folioserve/backend/src/logger"
)

type fxServiceImpl struct {
	baseURL    string
	httpClient *http.Client
}

func NewFXService(baseURL string, timeout time.Duration) FXService {
	return &fxServiceImpl{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type currencyImpactResponse struct {
	PortfolioID string  `json:"portfolio_id"`
	Year        int     `json:"year"`
	Impact      float64 `json:"impact"`
}

func (s *fxServiceImpl) CurrencyImpact(ctx context.Context, portfolioID string, year int) (float64, error) {
	endpoint := fmt.Sprintf("%s/currency-impact?portfolio_id=%s&year=%d",
		s.baseURL, url.QueryEscape(portfolioID), year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		logger.L.Warn("Currency impact request failed", "portfolioID", portfolioID, "year", year, "error", err)
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("currency impact request: status %d", resp.StatusCode)
	}

	var decoded currencyImpactResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, err
	}
	return decoded.Impact, nil
}
