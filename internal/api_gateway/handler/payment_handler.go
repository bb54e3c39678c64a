package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/api_gateway/service"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/lnwallet-ledger/internal/payments"
)

// PaymentHandler serves outgoing payments.
type PaymentHandler struct {
	payments service.PaymentService
	logger   *slog.Logger
}

func NewPaymentHandler(logger *slog.Logger, payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		payments: payments,
		logger:   logger,
	}
}

// PayInvoice pays a Lightning invoice from the wallet. A payment whose outcome
// is not known yet is answered with 202 and resolved in the background.
func (h *PaymentHandler) PayInvoice(c *gin.Context) {
	var req PayInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.payments.PayInvoice(c.Request.Context(), shared.SendPaymentRequest{
		WalletID:       c.Param("id"),
		PaymentRequest: req.PaymentRequest,
		Amount:         shared.Satoshis(req.Amount),
		MaxFeeOverride: shared.Satoshis(req.MaxFeeOverride),
		Memo:           req.Memo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondResult(c, result)
}

// IntraLedger sends sats to another wallet of this operator.
func (h *PaymentHandler) IntraLedger(c *gin.Context) {
	var req IntraLedgerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.payments.SendIntraLedger(c.Request.Context(), shared.IntraLedgerSendRequest{
		SenderWalletID:    c.Param("id"),
		RecipientWalletID: req.RecipientWalletID,
		Amount:            shared.Satoshis(req.Amount),
		Memo:              req.Memo,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	RespondOK(c, result)
}

// Keysend pays a node from the funder wallet without an invoice.
func (h *PaymentHandler) Keysend(c *gin.Context) {
	var req KeysendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.payments.PayToPubkey(c.Request.Context(), shared.KeysendRequest{
		Destination: req.Destination,
		Amount:      shared.Satoshis(req.Amount),
		Message:     req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.Info("Keysend sent", "destination", req.Destination, "amount", req.Amount, "status", result.Status)
	respondResult(c, result)
}

// respondResult answers 202 while the payment is still in flight.
func respondResult(c *gin.Context, result payments.Result) {
	if result.Status == payments.StatusPending {
		RespondAccepted(c, result)
		return
	}
	RespondOK(c, result)
}
