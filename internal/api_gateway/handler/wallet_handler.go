package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lnwallet-ledger/internal/api_gateway/service"
	"github.com/lnwallet-ledger/internal/domain/lightning"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// WalletHandler serves invoices, balance and history of one wallet.
type WalletHandler struct {
	wallets service.WalletService
	logger  *slog.Logger
}

func NewWalletHandler(logger *slog.Logger, wallets service.WalletService) *WalletHandler {
	return &WalletHandler{
		wallets: wallets,
		logger:  logger,
	}
}

// CreateInvoice registers an invoice paying into the wallet.
func (h *WalletHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	invoice, err := h.wallets.AddInvoice(c.Request.Context(), shared.AddInvoiceRequest{
		WalletID: c.Param("id"),
		Amount:   req.Amount,
		Memo:     req.Memo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("Invoice created", "wallet_id", c.Param("id"), "payment_hash", invoice.PaymentHash)
	RespondCreated(c, mapInvoiceToResponse(invoice))
}

// Balance returns the wallet balance in sats and in fiat.
func (h *WalletHandler) Balance(c *gin.Context) {
	balance, err := h.wallets.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	RespondOK(c, balance)
}

// Transactions returns one page of the wallet history, newest first.
func (h *WalletHandler) Transactions(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	txs, err := h.wallets.TransactionHistory(c.Request.Context(), c.Param("id"), pagination.PerPage, pagination.offset())
	if err != nil {
		respondError(c, err)
		return
	}
	RespondWithPage(c, txs, pagination.Page, pagination.PerPage, len(txs))
}

func mapInvoiceToResponse(invoice lightning.Invoice) InvoiceResponse {
	res := InvoiceResponse{
		PaymentHash:    string(invoice.PaymentHash),
		PaymentRequest: string(invoice.PaymentRequest),
		Amount:         int64(invoice.Amount),
		Description:    invoice.Description,
	}
	if !invoice.ExpiresAt.IsZero() {
		res.ExpiresAt = invoice.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return res
}
