package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors. Handlers map these to HTTP statuses with errors.Is.
var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrPositionNotFound  = errors.New("position not found")
	ErrScheduleNotFound  = errors.New("rebalance schedule not found")

	ErrInsufficientQuantity = errors.New("sell quantity exceeds held quantity")
	ErrInsufficientData     = errors.New("not enough historical data points")
	ErrEmptyPortfolio       = errors.New("portfolio has no positions")

	// ErrDependencyUnavailable is the root of all gateway failures so that
	// callers can match any of them with a single errors.Is check.
	ErrDependencyUnavailable     = errors.New("external dependency unavailable")
	ErrMarketDataUnavailable     = fmt.Errorf("market data gateway: %w", ErrDependencyUnavailable)
	ErrRecommendationUnavailable = fmt.Errorf("recommendation gateway: %w", ErrDependencyUnavailable)
)

// ValidationError carries field-level messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for a field and returns the error for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = message
	return e
}

// HasErrors reports whether any field failed validation.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, e.Fields[f]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
