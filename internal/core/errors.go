package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotAuthenticated is returned by mutations invoked without an identity.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound covers both missing entities and entities owned by someone
	// else, so existence is never leaked.
	ErrNotFound = errors.New("not found")
	// ErrValidation is the sentinel every *ValidationError matches.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientBalance is the sentinel every *InsufficientBalanceError matches.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrExternalService is the sentinel every *ExternalServiceError matches.
	ErrExternalService = errors.New("external service error")
	// ErrNoAsset is the sentinel every *NoAssetError matches.
	ErrNoAsset = errors.New("no asset for currency")
)

// ValidationError describes malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a *ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NoAssetError is returned when a debit targets a registered currency that
// holds no asset. It is also a validation failure.
type NoAssetError struct {
	Currency string
}

func (e *NoAssetError) Error() string {
	return fmt.Sprintf("No asset found for currency %s", e.Currency)
}

func (e *NoAssetError) Is(target error) bool { return target == ErrNoAsset || target == ErrValidation }

// InsufficientBalanceError is returned when a debit exceeds an asset balance.
type InsufficientBalanceError struct {
	Currency  string
	Available decimal.Decimal
	Required  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient balance. Available: %s %s, Required: %s %s",
		e.Available.StringFixed(2), e.Currency, e.Required.StringFixed(2), e.Currency)
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// ExternalKind classifies FX provider failures.
type ExternalKind string

const (
	ExternalMissingKey      ExternalKind = "missing_key"
	ExternalUnreachable     ExternalKind = "unreachable"
	ExternalHTTPStatus      ExternalKind = "http_status"
	ExternalInvalidKey      ExternalKind = "invalid_key"
	ExternalUnsupportedCode ExternalKind = "unsupported_code"
	ExternalNoData          ExternalKind = "no_data"
	ExternalProviderError   ExternalKind = "provider_error"
)

// ExternalServiceError wraps a failure of the FX rate provider.
type ExternalServiceError struct {
	Kind    ExternalKind
	Message string
	Err     error
}

func (e *ExternalServiceError) Error() string { return e.Message }

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
