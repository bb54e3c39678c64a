package payments

import "fmt"

// SelfPaymentError is returned when a wallet pays its own invoice or itself.
type SelfPaymentError struct {
	WalletID string
}

func (e *SelfPaymentError) Error() string {
	return "wallet " + e.WalletID + " cannot pay itself"
}

func (e *SelfPaymentError) Is(target error) bool {
	_, ok := target.(*SelfPaymentError)
	return ok
}

// PaymentInFlightError is returned while another dispatch of the same payment
// hash holds the payment lock.
type PaymentInFlightError struct {
	PaymentHash string
}

func (e *PaymentInFlightError) Error() string {
	return fmt.Sprintf("payment %s is already being sent", e.PaymentHash)
}

func (e *PaymentInFlightError) Is(target error) bool {
	_, ok := target.(*PaymentInFlightError)
	return ok
}
