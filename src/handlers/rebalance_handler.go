package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/services"
	"github.com/username/folioserve/backend/src/utils"
)

type RebalanceHandler struct {
	portfolioService *services.PortfolioService
	rebalanceService *services.RebalanceService
}

func NewRebalanceHandler(portfolioService *services.PortfolioService, rebalanceService *services.RebalanceService) *RebalanceHandler {
	return &RebalanceHandler{
		portfolioService: portfolioService,
		rebalanceService: rebalanceService,
	}
}

func (h *RebalanceHandler) HandleGetSuggestion(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	suggestion, err := h.rebalanceService.Suggest(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, suggestion, http.StatusOK)
}

// HandleExecute applies the posted suggestion. Without a body, a fresh
// suggestion is computed and executed in one call.
func (h *RebalanceHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	var suggestion *models.RebalancingSuggestion
	if r.ContentLength > 0 {
		suggestion = &models.RebalancingSuggestion{}
		if err := json.NewDecoder(r.Body).Decode(suggestion); err != nil {
			utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		fresh, err := h.rebalanceService.Suggest(r.Context(), portfolioID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		suggestion = fresh
	}

	applied, err := h.rebalanceService.Execute(r.Context(), portfolioID, suggestion)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, map[string]any{
		"executed_trades": applied,
	}, http.StatusOK)
}

type schedulePayload struct {
	Frequency          string  `json:"frequency"`
	DeviationThreshold float64 `json:"deviation_threshold"`
}

func (h *RebalanceHandler) HandleSetSchedule(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	schedule, err := h.rebalanceService.SetSchedule(r.Context(), portfolioID, payload.Frequency, payload.DeviationThreshold)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, schedule, http.StatusOK)
}

func (h *RebalanceHandler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	schedule, err := h.rebalanceService.GetSchedule(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, schedule, http.StatusOK)
}

func (h *RebalanceHandler) HandleRemoveSchedule(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	if err := h.rebalanceService.RemoveSchedule(r.Context(), portfolioID); err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, map[string]string{"status": "removed"}, http.StatusOK)
}

func (h *RebalanceHandler) HandleIsDue(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	due, err := h.rebalanceService.IsDue(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, map[string]bool{"due": due}, http.StatusOK)
}

func (h *RebalanceHandler) ownedPortfolio(w http.ResponseWriter, r *http.Request) (string, bool) {
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
