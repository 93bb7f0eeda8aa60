package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/username/folioserve/backend/src/logger"
	"github.com/username/folioserve/backend/src/models"
	"github.com/username/folioserve/backend/src/security"
	"github.com/username/folioserve/backend/src/utils"
)

type contextKey string

const userIDContextKey = contextKey("userID")

// GetUserIDFromContext returns the authenticated user's id set by
// AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// AuthMiddleware validates the bearer token and stores the numeric user id
// in the request context. Token issuance lives with the external identity
// provider; only the signature and subject are checked here.
func AuthMiddleware(authService *security.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
				utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == "" {
				logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
				utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
				return
			}

			userIDStr, err := authService.ValidateToken(tokenString)
			if err != nil {
				logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
				utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			userIDInt, err := strconv.ParseInt(userIDStr, 10, 64)
			if err != nil {
				logger.L.Error("AuthMiddleware: Invalid user ID format in token", "userIDStr", userIDStr, "error", err)
				utils.SendJSONError(w, "Invalid user ID in token", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userIDInt)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// handleServiceError maps service errors onto the response envelope.
// Validation and domain-rule errors surface verbatim; dependency outages
// become 503; anything unexpected is logged in full and reported
// generically.
func handleServiceError(w http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.SendJSONValidationError(w, "invalid request", vErr.Fields)
	case errors.Is(err, models.ErrPortfolioNotFound),
		errors.Is(err, models.ErrPositionNotFound),
		errors.Is(err, models.ErrScheduleNotFound):
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrInsufficientQuantity),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrEmptyPortfolio):
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrDependencyUnavailable):
		utils.SendJSONError(w, "a required external dependency is unavailable", http.StatusServiceUnavailable)
	default:
		logger.L.Error("Unexpected service error", "error", err)
		utils.SendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}
