package core

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

const (
	EntryExpense EntryType = "expense"
	EntryIncome  EntryType = "income"
)

const (
	AlertOverBudgetToday     AlertType = "overBudgetToday"
	AlertOverBudgetThreshold AlertType = "overBudgetThreshold"
	AlertBudgetEndingSoon    AlertType = "budgetEndingSoon"
)

type (
	Frequency string
	EntryType string
	AlertType string

	Budget struct {
		ID           string    `json:"id"`
		UserID       string    `json:"userId"`
		Name         string    `json:"name,omitempty"`
		StartDate    Day       `json:"startDate"`
		EndDate      Day       `json:"endDate"`
		MainCurrency string    `json:"mainCurrency"`
		CreatedAt    time.Time `json:"createdAt"`
		// LegacyTotal is the single-amount budget total kept by budgets
		// created before per-currency assets existed.
		LegacyTotal decimal.NullDecimal `json:"-"`
	}

	CurrencyRate struct {
		ID         string          `json:"id"`
		BudgetID   string          `json:"budgetId"`
		Code       string          `json:"currencyCode"`
		RateToMain decimal.Decimal `json:"rateToMain"`
	}

	Asset struct {
		ID       string          `json:"id"`
		BudgetID string          `json:"budgetId"`
		Currency string          `json:"currencyCode"`
		Amount   decimal.Decimal `json:"amount"`
	}

	Expense struct {
		ID          string          `json:"id"`
		BudgetID    string          `json:"budgetId"`
		UserID      string          `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currencyCode"`
		Date        Day             `json:"date"`
		Description string          `json:"description,omitempty"`
		Category    string          `json:"category,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	Income struct {
		ID          string          `json:"id"`
		BudgetID    string          `json:"budgetId"`
		UserID      string          `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currencyCode"`
		Date        Day             `json:"date"`
		Description string          `json:"description,omitempty"`
		CreatedAt   time.Time       `json:"createdAt"`
	}

	// Transfer is an append-only record of a currency exchange between two
	// assets of the same budget.
	Transfer struct {
		ID           string          `json:"id"`
		BudgetID     string          `json:"budgetId"`
		UserID       string          `json:"userId"`
		FromCurrency string          `json:"fromCurrency"`
		ToCurrency   string          `json:"toCurrency"`
		FromAmount   decimal.Decimal `json:"fromAmount"`
		ToAmount     decimal.Decimal `json:"toAmount"`
		RateUsed     decimal.Decimal `json:"rateUsed"`
		Date         int64           `json:"date"`
		Description  string          `json:"description,omitempty"`
	}

	RecurringItem struct {
		ID          string          `json:"id"`
		BudgetID    string          `json:"budgetId"`
		UserID      string          `json:"userId"`
		Type        EntryType       `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currencyCode"`
		Description string          `json:"description,omitempty"`
		Category    string          `json:"category,omitempty"`
		Frequency   Frequency       `json:"frequency"`
		StartDate   Day             `json:"startDate"`
		EndDate     Day             `json:"endDate,omitempty"`
		// LastGenerated is the watermark: the last day an occurrence was
		// materialized. NoDay when nothing has been generated yet.
		LastGenerated Day  `json:"lastGeneratedDate,omitempty"`
		Paused        bool `json:"paused"`
	}

	Alert struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		BudgetID  string    `json:"budgetId"`
		Type      AlertType `json:"type"`
		Message   string    `json:"message"`
		IsRead    bool      `json:"isRead"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

// DefaultCategories are offered for new expenses.
var DefaultCategories = []string{
	"Food", "Transport", "Entertainment", "Shopping", "Bills",
	"Health", "Education", "Travel", "Other",
}

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCurrencyCode accepts three-letter ISO-like codes.
func ValidateCurrencyCode(code string) error {
	if !currencyCodePattern.MatchString(code) {
		return Invalid("currencyCode", "Invalid currency code %q", code)
	}
	return nil
}

// ValidatePositive rejects zero and negative amounts.
func ValidatePositive(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return Invalid(field, "Amount must be greater than 0")
	}
	return nil
}

// ValidateNotFuture rejects days that have not started yet at now.
// A client's local midnight for its own today is always in the past.
func ValidateNotFuture(d Day, now time.Time) error {
	if err := d.Validate(); err != nil {
		return Invalid("date", "Date is required")
	}
	if int64(d) > now.UnixMilli() {
		return Invalid("date", "Date cannot be in the future")
	}
	return nil
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Monthly:
		return nil
	}
	return Invalid("frequency", "Invalid frequency %q", string(f))
}

func (t EntryType) Validate() error {
	switch t {
	case EntryExpense, EntryIncome:
		return nil
	}
	return Invalid("type", "Invalid recurring item type %q", string(t))
}

// MaxBudgetDays bounds the budget window. Breakdowns hold one row per day.
const MaxBudgetDays = 3660

func validateBudgetDay(field, label string, d Day) error {
	if d > MaxDay {
		return Invalid(field, "%s is out of range", label)
	}
	if err := d.Validate(); err != nil {
		return Invalid(field, "%s is required", label)
	}
	return nil
}

func (b Budget) Validate() error {
	if err := validateBudgetDay("startDate", "Start date", b.StartDate); err != nil {
		return err
	}
	if err := validateBudgetDay("endDate", "End date", b.EndDate); err != nil {
		return err
	}
	if b.EndDate < b.StartDate {
		return Invalid("endDate", "End date must be after start date")
	}
	if DaysBetween(b.StartDate, b.EndDate)+1 > MaxBudgetDays {
		return Invalid("endDate", "Budget cannot span more than %d days", MaxBudgetDays)
	}
	return ValidateCurrencyCode(b.MainCurrency)
}

// DisplayName falls back to "Budget" for unnamed budgets.
func (b Budget) DisplayName() string {
	if strings.TrimSpace(b.Name) == "" {
		return "Budget"
	}
	return b.Name
}

func (r RecurringItem) Validate() error {
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if err := ValidatePositive("amount", r.Amount); err != nil {
		return err
	}
	if err := r.Frequency.Validate(); err != nil {
		return err
	}
	if err := r.StartDate.Validate(); err != nil {
		return Invalid("startDate", "Start date is required")
	}
	if r.EndDate.IsSet() && r.EndDate <= r.StartDate {
		return Invalid("endDate", "End date must be after start date")
	}
	return nil
}
