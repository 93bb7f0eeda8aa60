package validation

import (
	"strings"
	"time"

	"github.com/username/folioserve/backend/src/models"
)

const (
	maxSymbolLength = 12
	maxNameLength   = 100
	maxNoteLength   = 500
)

// ValidateTransactionInput checks and normalizes a transaction before it
// reaches the ledger. The returned error is nil when everything passed;
// the transaction's Symbol and Note fields are sanitized in place.
func ValidateTransactionInput(t *models.Transaction) *models.ValidationError {
	v := models.NewValidationError()

	t.Symbol = NormalizeSymbol(t.Symbol)
	if t.Symbol == "" {
		v.Add("symbol", "is required")
	} else if len(t.Symbol) > maxSymbolLength {
		v.Add("symbol", "is too long")
	}

	if t.Action != models.ActionBuy && t.Action != models.ActionSell {
		v.Add("action", "must be BUY or SELL")
	}
	if t.Quantity <= 0 {
		v.Add("quantity", "must be greater than zero")
	}
	if t.Price <= 0 {
		v.Add("price", "must be greater than zero")
	}
	if t.Fees < 0 {
		v.Add("fees", "must not be negative")
	}

	if t.Date.IsZero() {
		v.Add("transaction_date", "is required")
	} else if t.Date.After(time.Now().AddDate(0, 0, 1)) {
		v.Add("transaction_date", "must not be in the future")
	}

	t.Note = SanitizeForFormulaInjection(StripUnprintable(t.Note))
	if len(t.Note) > maxNoteLength {
		v.Add("note", "is too long")
	}

	if v.HasErrors() {
		return v
	}
	return nil
}

// ValidatePortfolioInput checks the create/update payload for a portfolio
// and sanitizes the name in place.
func ValidatePortfolioInput(name *string, currency *string) *models.ValidationError {
	v := models.NewValidationError()

	*name = strings.TrimSpace(StripUnprintable(*name))
	if *name == "" {
		v.Add("name", "is required")
	} else if len(*name) > maxNameLength {
		v.Add("name", "is too long")
	}

	*currency = strings.ToUpper(strings.TrimSpace(*currency))
	if *currency != "" && len(*currency) != 3 {
		v.Add("currency", "must be a 3-letter code")
	}

	if v.HasErrors() {
		return v
	}
	return nil
}

// ValidateSchedule checks a rebalance schedule payload.
func ValidateSchedule(frequency string, deviationThreshold float64) *models.ValidationError {
	v := models.NewValidationError()

	switch frequency {
	case models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyQuarterly:
	default:
		v.Add("frequency", "must be weekly, monthly or quarterly")
	}
	if deviationThreshold <= 0 || deviationThreshold >= 1 {
		v.Add("deviation_threshold", "must be a fraction between 0 and 1")
	}

	if v.HasErrors() {
		return v
	}
	return nil
}

// ValidateTaxYear bounds the tax estimator's year input.
func ValidateTaxYear(year int) *models.ValidationError {
	if year < 1990 || year > time.Now().Year()+1 {
		return models.NewValidationError().Add("year", "is out of range")
	}
	return nil
}
