package lightning

import (
	"errors"
	"fmt"

	"github.com/lnwallet-ledger/internal/domain/shared"
)

// ErrNoPayableRoute is reported by the node when it has no channel path with
// enough liquidity toward the destination.
var ErrNoPayableRoute = errors.New("failed to find payable route to destination")

// LnInvoiceDecodeError is returned for malformed invoices or invoices that
// require unsupported features.
type LnInvoiceDecodeError struct {
	Reason string
	Err    error
}

func (e *LnInvoiceDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid lightning invoice: %s: %v", e.Reason, e.Err)
	}
	return "invalid lightning invoice: " + e.Reason
}

func (e *LnInvoiceDecodeError) Unwrap() error { return e.Err }

func (e *LnInvoiceDecodeError) Is(target error) bool {
	_, ok := target.(*LnInvoiceDecodeError)
	return ok
}

// RouteNotFoundError means no viable path exists under the fee cap. Err is
// ErrNoPayableRoute when the node gave up for lack of liquidity.
type RouteNotFoundError struct {
	Destination Pubkey
	Err         error
}

func (e *RouteNotFoundError) Error() string {
	return "no route found to destination " + string(e.Destination)
}

func (e *RouteNotFoundError) Unwrap() error { return e.Err }

func (e *RouteNotFoundError) Is(target error) bool {
	_, ok := target.(*RouteNotFoundError)
	return ok
}

// FeeExceedsCapError means the node reported a fee above the allowed maximum.
type FeeExceedsCapError struct {
	Fee shared.Satoshis
	Cap shared.Satoshis
}

func (e *FeeExceedsCapError) Error() string {
	return fmt.Sprintf("payment fee %d exceeds cap %d", e.Fee, e.Cap)
}

func (e *FeeExceedsCapError) Is(target error) bool {
	_, ok := target.(*FeeExceedsCapError)
	return ok
}

// LightningServiceError is a generic node failure. Timeout marks a call whose
// outcome is unknown: a deadline, a dropped connection or a payment stream
// that ended before a final update.
type LightningServiceError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *LightningServiceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("lightning %s outcome unknown: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("lightning %s failed: %v", e.Op, e.Err)
}

func (e *LightningServiceError) Unwrap() error { return e.Err }

func (e *LightningServiceError) Is(target error) bool {
	_, ok := target.(*LightningServiceError)
	return ok
}

// IsTimeout reports whether err is a gateway timeout, i.e. an unknown outcome.
func IsTimeout(err error) bool {
	var lnErr *LightningServiceError
	return errors.As(err, &lnErr) && lnErr.Timeout
}

// InvoiceNotFoundError is returned when the node does not know the invoice.
type InvoiceNotFoundError struct {
	PaymentHash PaymentHash
}

func (e *InvoiceNotFoundError) Error() string {
	return "invoice not found: " + string(e.PaymentHash)
}

// Is matches any InvoiceNotFoundError when the target hash is empty.
func (e *InvoiceNotFoundError) Is(target error) bool {
	t, ok := target.(*InvoiceNotFoundError)
	if !ok {
		return false
	}
	return t.PaymentHash == "" || t.PaymentHash == e.PaymentHash
}

// PaymentNotFoundError is returned when neither the node nor the repository
// knows the payment.
type PaymentNotFoundError struct {
	PaymentHash PaymentHash
}

func (e *PaymentNotFoundError) Error() string {
	return "payment not found: " + string(e.PaymentHash)
}

// Is matches any PaymentNotFoundError when the target hash is empty.
func (e *PaymentNotFoundError) Is(target error) bool {
	t, ok := target.(*PaymentNotFoundError)
	if !ok {
		return false
	}
	return t.PaymentHash == "" || t.PaymentHash == e.PaymentHash
}
