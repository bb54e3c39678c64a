package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
)

// WalletEvent tells downstream consumers that a customer balance changed.
type WalletEvent struct {
	EventID       uuid.UUID              `json:"event_id"`
	TransactionID uuid.UUID              `json:"transaction_id"`
	WalletID      string                 `json:"wallet_id"`
	Account       string                 `json:"account"`
	Type          ledger.TransactionType `json:"type"`
	Amount        shared.Satoshis        `json:"amount"` // signed balance change
	Fee           shared.Satoshis        `json:"fee"`
	Pending       bool                   `json:"pending"`
	PaymentHash   string                 `json:"payment_hash,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Message is a wallet event waiting in the outbox table to be published. It
// is written in the same database transaction as the ledger legs.
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	WalletID      string              `json:"wallet_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessages builds one message per customer leg of txn. Reserve accounts do
// not produce events.
func NewMessages(txn ledger.Transaction) ([]*Message, error) {
	var messages []*Message
	for _, leg := range txn.Legs {
		walletID, ok := ledger.WalletIDFromPath(leg.Account)
		if !ok {
			continue
		}
		event := WalletEvent{
			EventID:       uuid.New(),
			TransactionID: txn.ID,
			WalletID:      walletID,
			Account:       leg.Account,
			Type:          txn.Type,
			Amount:        leg.Delta(),
			Fee:           leg.Fee,
			Pending:       leg.Pending,
			PaymentHash:   leg.PaymentHash,
			OccurredAt:    leg.Timestamp,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &Message{
			TransactionID: txn.ID,
			WalletID:      walletID,
			Payload:       payload,
			Status:        shared.OutboxStatusPending,
			CreatedAt:     time.Now(),
		})
	}
	return messages, nil
}

// WalletEvent decodes the payload.
func (m *Message) WalletEvent() (*WalletEvent, error) {
	var event WalletEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
