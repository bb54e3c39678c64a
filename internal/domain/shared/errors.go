package shared

import (
	"errors"
	"fmt"
)

// ErrInvalidAmount is returned for zero or negative amounts where a positive
// amount is required.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// UnknownRepositoryError wraps an unexpected storage failure. It is always
// logged by the caller and never treated as a not-found condition.
type UnknownRepositoryError struct {
	Op  string
	Err error
}

func (e *UnknownRepositoryError) Error() string {
	return fmt.Sprintf("unknown repository error during %s: %v", e.Op, e.Err)
}

func (e *UnknownRepositoryError) Unwrap() error { return e.Err }

// Is matches any UnknownRepositoryError.
func (e *UnknownRepositoryError) Is(target error) bool {
	_, ok := target.(*UnknownRepositoryError)
	return ok
}

// MissingAmountError is returned when an operation needs an amount the caller
// did not provide, e.g. a fiat invoice.
type MissingAmountError struct {
	Reason string
}

func (e *MissingAmountError) Error() string {
	if e.Reason == "" {
		return "amount is required"
	}
	return "amount is required: " + e.Reason
}

func (e *MissingAmountError) Is(target error) bool {
	_, ok := target.(*MissingAmountError)
	return ok
}

// InvalidCurrencyError is returned when an operation is not supported for the
// wallet currency.
type InvalidCurrencyError struct {
	Currency WalletCurrency
	Op       string
}

func (e *InvalidCurrencyError) Error() string {
	return fmt.Sprintf("currency %q is not valid for %s", e.Currency, e.Op)
}

func (e *InvalidCurrencyError) Is(target error) bool {
	_, ok := target.(*InvalidCurrencyError)
	return ok
}
