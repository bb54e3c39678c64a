package ledger

import (
	"slices"
	"time"

	"github.com/lnwallet-ledger/internal/domain/shared"
)

// SettlementMethod is the rail a wallet transaction settled on.
type SettlementMethod string

const (
	SettlementOnChain     SettlementMethod = "onchain"
	SettlementLightning   SettlementMethod = "lightning"
	SettlementIntraLedger SettlementMethod = "intraledger"
)

// PendingDescription labels unconfirmed incoming on-chain outputs.
const PendingDescription = "pending"

// WalletTransaction is the user facing view of a ledger leg. It is derived and
// never stored.
type WalletTransaction struct {
	ID                  string           `json:"id"`
	SettlementVia       SettlementMethod `json:"settlement_via"`
	Description         string           `json:"description"`
	SettlementAmount    shared.Satoshis  `json:"settlement_amount"`
	SettlementFee       shared.Satoshis  `json:"settlement_fee"`
	PendingConfirmation bool             `json:"pending_confirmation"`
	CreatedAt           time.Time        `json:"created_at"`
	Addresses           []string         `json:"addresses,omitempty"`
	PaymentHash         string           `json:"payment_hash,omitempty"`
	RecipientID         string           `json:"recipient_id,omitempty"`
	Username            string           `json:"username,omitempty"`
	TxHash              string           `json:"tx_hash,omitempty"`
}

// TxOutput is an output of an on-chain transaction.
type TxOutput struct {
	Address string          `json:"address" bson:"address"`
	Sats    shared.Satoshis `json:"sats" bson:"sats"`
}

// SubmittedTransaction is an on-chain transaction seen in the mempool but not
// yet confirmed.
type SubmittedTransaction struct {
	ID        string     `json:"id" bson:"_id"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	Outputs   []TxOutput `json:"outputs" bson:"outputs"`
}

// HistoryTranslator turns booked legs into wallet transactions. Memos on
// inbound amounts below MemoSharingThreshold are withheld.
type HistoryTranslator struct {
	MemoSharingThreshold shared.Satoshis
}

// ShouldDisplayMemo is true for outbound legs and for inbound legs at or above
// the sharing threshold.
func (h HistoryTranslator) ShouldDisplayMemo(credit shared.Satoshis) bool {
	return credit == 0 || credit >= h.MemoSharingThreshold
}

// TranslateDescription picks the first available of: payer memo, invoice memo,
// counterparty username, transaction type.
func (h HistoryTranslator) TranslateDescription(e Entry) string {
	if h.ShouldDisplayMemo(e.Credit) {
		if e.MemoFromPayer != "" {
			return e.MemoFromPayer
		}
		if e.LnMemo != "" {
			return e.LnMemo
		}
	}
	if e.Username != "" {
		if e.Credit > 0 {
			return "from " + e.Username
		}
		return "to " + e.Username
	}
	return string(e.Type)
}

// TranslateToWalletTransaction classifies a confirmed leg by settlement rail.
func (h HistoryTranslator) TranslateToWalletTransaction(e Entry) WalletTransaction {
	tx := WalletTransaction{
		ID:                  e.TransactionID.String(),
		Description:         h.TranslateDescription(e),
		SettlementAmount:    e.Delta(),
		SettlementFee:       e.Fee,
		PendingConfirmation: e.Pending,
		CreatedAt:           e.Timestamp,
	}

	switch {
	case e.Type == TypeIntraLedger || e.Type == TypeOnChainIntraLedger:
		tx.SettlementVia = SettlementIntraLedger
		tx.PaymentHash = e.PaymentHash
		tx.RecipientID = e.Username
	case len(e.Addresses) > 0:
		tx.SettlementVia = SettlementOnChain
		tx.Addresses = e.Addresses
		tx.TxHash = e.TxHash
	default:
		tx.SettlementVia = SettlementLightning
		tx.PaymentHash = e.PaymentHash
		tx.Username = e.Username
	}
	return tx
}

// Confirmed translates legs in order, skipping voided ones.
func (h HistoryTranslator) Confirmed(entries []Entry) ConfirmedHistory {
	txs := make([]WalletTransaction, 0, len(entries))
	for _, e := range entries {
		if e.Voided {
			continue
		}
		txs = append(txs, h.TranslateToWalletTransaction(e))
	}
	return ConfirmedHistory{Transactions: txs}
}

// ConfirmedHistory is the translated history of booked legs.
type ConfirmedHistory struct {
	Transactions []WalletTransaction
}

// AddPendingIncoming prepends unconfirmed outputs paying one of addresses.
// An output already booked as a confirmed on-chain receipt (same address and
// amount, and same tx hash when both are known) is not shown twice.
func (c ConfirmedHistory) AddPendingIncoming(pending []SubmittedTransaction, addresses []string) []WalletTransaction {
	var merged []WalletTransaction
	for _, sub := range pending {
		for _, out := range sub.Outputs {
			if !slices.Contains(addresses, out.Address) || c.isBooked(sub.ID, out) {
				continue
			}
			merged = append(merged, WalletTransaction{
				ID:                  sub.ID,
				SettlementVia:       SettlementOnChain,
				Description:         PendingDescription,
				SettlementAmount:    out.Sats,
				SettlementFee:       0,
				PendingConfirmation: true,
				CreatedAt:           sub.CreatedAt,
				Addresses:           []string{out.Address},
				TxHash:              sub.ID,
			})
		}
	}
	return append(merged, c.Transactions...)
}

func (c ConfirmedHistory) isBooked(txHash string, out TxOutput) bool {
	for _, tx := range c.Transactions {
		if tx.SettlementVia != SettlementOnChain || tx.PendingConfirmation {
			continue
		}
		if tx.SettlementAmount != out.Sats || !slices.Contains(tx.Addresses, out.Address) {
			continue
		}
		if tx.TxHash != "" && tx.TxHash != txHash {
			continue
		}
		return true
	}
	return false
}
