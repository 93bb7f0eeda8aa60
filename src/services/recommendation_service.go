package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
)

type recommendationServiceImpl struct {
	baseURL    string
	httpClient *http.Client
}

func NewRecommendationService(baseURL string, timeout time.Duration) RecommendationService {
	return &recommendationServiceImpl{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type optimizationResponse struct {
	TargetAllocations map[string]float64 `json:"target_allocations"`
}

func (s *recommendationServiceImpl) GetTargetAllocations(ctx context.Context, req RecommendationRequest) (map[string]float64, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrRecommendationUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/portfolio-optimization", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", models.ErrRecommendationUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		logger.L.Warn("Recommendation request failed", "portfolioID", req.PortfolioID, "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrRecommendationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("Recommendation request returned non-OK status",
			"portfolioID", req.PortfolioID, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", models.ErrRecommendationUnavailable, resp.StatusCode)
	}

	var decoded optimizationResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", models.ErrRecommendationUnavailable, err)
	}
	if len(decoded.TargetAllocations) == 0 {
		return nil, fmt.Errorf("%w: empty target allocations", models.ErrRecommendationUnavailable)
	}
	return decoded.TargetAllocations, nil
}
