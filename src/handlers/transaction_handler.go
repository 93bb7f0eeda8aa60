package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/repository"
	"github.com/username/folioserve/backend/src/services"
	"github.com/username/folioserve/backend/src/utils"
)

// TransactionHandler serves the transaction and position endpoints of the
// ledger.
type TransactionHandler struct {
	portfolioService *services.PortfolioService
	ledgerService    *services.LedgerService
}

func NewTransactionHandler(portfolioService *services.PortfolioService, ledgerService *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{
		portfolioService: portfolioService,
		ledgerService:    ledgerService,
	}
}

type transactionPayload struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Fees     float64 `json:"fees"`
	Note     string  `json:"note"`
	Date     string  `json:"transaction_date"`
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	var payload transactionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	txn := models.Transaction{
		Symbol:   payload.Symbol,
		Action:   payload.Action,
		Quantity: payload.Quantity,
		Price:    payload.Price,
		Fees:     payload.Fees,
		Note:     payload.Note,
		Origin:   models.OriginManual,
		Date:     utils.ParseDate(payload.Date),
	}

	position, err := h.ledgerService.ApplyTransaction(r.Context(), portfolioID, &txn)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	utils.SendJSONSuccess(w, map[string]any{
		"transaction": txn,
		"position":    position,
	}, http.StatusCreated)
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	filter := repository.TransactionFilter{
		Symbol: r.URL.Query().Get("symbol"),
		Origin: r.URL.Query().Get("origin"),
	}
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			utils.SendJSONError(w, "invalid year parameter", http.StatusBadRequest)
			return
		}
		filter.Year = year
	}

	transactions, err := h.ledgerService.ListTransactions(r.Context(), portfolioID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	sendWithETag(w, r, transactions)
}

func (h *TransactionHandler) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	portfolioID, ok := h.ownedPortfolio(w, r)
	if !ok {
		return
	}

	positions, err := h.ledgerService.ListPositions(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	sendWithETag(w, r, positions)
}

// ownedPortfolio resolves the path's portfolio id and checks ownership.
// On failure it has already written the response.
func (h *TransactionHandler) ownedPortfolio(w http.ResponseWriter, r *http.Request) (string, bool) {
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

// sendWithETag writes the list with an ETag and honors If-None-Match.
func sendWithETag(w http.ResponseWriter, r *http.Request, data any) {
	etag, err := utils.GenerateETag(data)
	if err == nil {
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
	}
	utils.SendJSONSuccess(w, data, http.StatusOK)
}
