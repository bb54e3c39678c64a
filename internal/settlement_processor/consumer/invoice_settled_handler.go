package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lnwallet-ledger/internal/domain/wallet"
	"github.com/lnwallet-ledger/internal/platform/messaging/producers"
)

// InvoiceSettledEvent is emitted by the node watcher for every settled invoice.
type InvoiceSettledEvent struct {
	PaymentHash string `json:"payment_hash"`
}

// InvoiceSettler books a settled wallet invoice.
type InvoiceSettler interface {
	SettleInvoice(ctx context.Context, paymentHash string) error
}

// InvoiceSettledHandler handles invoice settlement messages.
type InvoiceSettledHandler struct {
	settler InvoiceSettler
	dlq     producers.DeadLetterPublisher
	logger  *slog.Logger
}

func NewInvoiceSettledHandler(logger *slog.Logger, settler InvoiceSettler, dlq producers.DeadLetterPublisher) *InvoiceSettledHandler {
	return &InvoiceSettledHandler{
		settler: settler,
		dlq:     dlq,
		logger:  logger.With("handler", "invoice_settled"),
	}
}

// HandleMessage settles the invoice named by the message. Invoices not
// created by a wallet are acknowledged and skipped.
func (h *InvoiceSettledHandler) HandleMessage(ctx context.Context, key, value []byte) error {
	var event InvoiceSettledEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return rejectMessage(ctx, h.logger, h.dlq, key, value, "Failed to unmarshal invoice settled event", err)
	}
	if event.PaymentHash == "" {
		return rejectMessage(ctx, h.logger, h.dlq, key, value, "Invalid invoice settled event", errors.New("payment_hash is required"))
	}

	logger := h.logger.With("payment_hash", event.PaymentHash)
	err := h.settler.SettleInvoice(ctx, event.PaymentHash)
	if errors.Is(err, &wallet.CouldNotFindInvoiceError{}) {
		logger.Info("Settled invoice does not belong to a wallet, skipping")
		return nil
	}
	if err != nil {
		logger.Error("Failed to settle invoice", "error", err)
		return fmt.Errorf("settling invoice %s failed: %w", event.PaymentHash, err)
	}

	logger.Debug("Processed invoice settled event")
	return nil
}
