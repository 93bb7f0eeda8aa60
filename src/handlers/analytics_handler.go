package handlers

import (
	"net/http"
	"strconv"

	"github.com/username/folioserve/backend/src/services"
	"github.com/username/folioserve/backend/src/utils"
)

// AnalyticsHandler serves the computed-view endpoints: performance, risk,
// diversification and taxes.
type AnalyticsHandler struct {
	portfolioService *services.PortfolioService
	analyticsService *services.AnalyticsService
	taxService       *services.TaxService
}

func NewAnalyticsHandler(
	portfolioService *services.PortfolioService,
	analyticsService *services.AnalyticsService,
	taxService *services.TaxService,
) *AnalyticsHandler {
	return &AnalyticsHandler{
		portfolioService: portfolioService,
		analyticsService: analyticsService,
		taxService:       taxService,
	}
}

func (h *AnalyticsHandler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1Y"
	}

	metrics, err := h.analyticsService.ComputePerformance(r.Context(), portfolioID, period)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, metrics, http.StatusOK)
}

func (h *AnalyticsHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	metrics, err := h.analyticsService.ComputeRisk(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, metrics, http.StatusOK)
}

func (h *AnalyticsHandler) HandleGetDiversification(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	analysis, err := h.analyticsService.ComputeDiversification(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, analysis, http.StatusOK)
}

func (h *AnalyticsHandler) HandleGetTaxes(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		utils.SendJSONError(w, "year parameter is required", http.StatusBadRequest)
		return
	}

	calculation, err := h.taxService.ComputeTaxes(r.Context(), portfolioID, year)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, calculation, http.StatusOK)
}

func (h *AnalyticsHandler) ownedPortfolio(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	portfolio, err := h.portfolioService.GetOwned(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err)
		return "", false
	}
	return portfolio.ID, true
}
