package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/folioserve/backend/src/services"
	"github.com/username/folioserve/backend/src/utils"
)

type PortfolioHandler struct {
	portfolioService *services.PortfolioService
}

func NewPortfolioHandler(portfolioService *services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

type portfolioPayload struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

func (h *PortfolioHandler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload portfolioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	portfolio, err := h.portfolioService.Create(r.Context(), userID, payload.Name, payload.Currency)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, portfolio, http.StatusCreated)
}

func (h *PortfolioHandler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	portfolios, err := h.portfolioService.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, portfolios, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	portfolio, err := h.portfolioService.GetOwned(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, portfolio, http.StatusOK)
}

func (h *PortfolioHandler) HandleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload portfolioPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	portfolio, err := h.portfolioService.Update(r.Context(), userID, r.PathValue("id"), payload.Name, payload.Currency)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, portfolio, http.StatusOK)
}

func (h *PortfolioHandler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	if err := h.portfolioService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

func (h *PortfolioHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	summary, err := h.portfolioService.Summary(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, summary, http.StatusOK)
}
