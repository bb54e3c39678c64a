package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/price"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/payments"
)

// Error codes returned in ErrorInfo.Code.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeInvalidInvoice      = "INVALID_INVOICE"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeMissingAmount       = "MISSING_AMOUNT"
	CodeInvalidCurrency     = "INVALID_CURRENCY"
	CodeSelfPayment         = "SELF_PAYMENT"
	CodeWalletNotFound      = "WALLET_NOT_FOUND"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeRouteNotFound       = "ROUTE_NOT_FOUND"
	CodeFeeExceedsCap       = "FEE_EXCEEDS_CAP"
	CodePaymentInFlight     = "PAYMENT_IN_FLIGHT"
	CodeDuplicate           = "DUPLICATE_TRANSACTION"
	CodePriceUnavailable    = "PRICE_UNAVAILABLE"
	CodeLightningFailure    = "LIGHTNING_UNAVAILABLE"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

type errorMapping struct {
	match  func(error) bool
	status int
	code   string
}

func is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// errorMappings is checked in order; the first match wins.
var errorMappings = []errorMapping{
	{is[*lightning.LnInvoiceDecodeError], http.StatusBadRequest, CodeInvalidInvoice},
	{func(err error) bool { return errors.Is(err, shared.ErrInvalidAmount) }, http.StatusBadRequest, CodeInvalidAmount},
	{is[*shared.MissingAmountError], http.StatusBadRequest, CodeMissingAmount},
	{is[*shared.InvalidCurrencyError], http.StatusBadRequest, CodeInvalidCurrency},
	{is[*payments.SelfPaymentError], http.StatusBadRequest, CodeSelfPayment},
	{is[*wallet.CouldNotFindWalletFromIDError], http.StatusNotFound, CodeWalletNotFound},
	{is[*ledger.InsufficientBalanceError], http.StatusUnprocessableEntity, CodeInsufficientBalance},
	{is[*lightning.RouteNotFoundError], http.StatusUnprocessableEntity, CodeRouteNotFound},
	{is[*lightning.FeeExceedsCapError], http.StatusUnprocessableEntity, CodeFeeExceedsCap},
	{is[*payments.PaymentInFlightError], http.StatusConflict, CodePaymentInFlight},
	{is[*ledger.DuplicateTransactionError], http.StatusConflict, CodeDuplicate},
	{is[*price.NoPriceAvailableError], http.StatusServiceUnavailable, CodePriceUnavailable},
	{is[*price.StalePriceError], http.StatusServiceUnavailable, CodePriceUnavailable},
	{is[*lightning.LightningServiceError], http.StatusBadGateway, CodeLightningFailure},
}

// respondError maps a domain error to its status code. Unknown errors are
// logged by the request logger through c.Error and hidden from the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	for _, m := range errorMappings {
		if m.match(err) {
			RespondWithError(c, m.status, m.code, err.Error())
			return
		}
	}
	RespondInternalError(c)
}
