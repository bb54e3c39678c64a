package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var (
	ErrTooFewLegs  = errors.New("transaction needs at least two legs")
	ErrInvalidLeg  = errors.New("leg must have exactly one positive side")
	ErrMissingKind = errors.New("transaction type is required")
)

// Transaction is a group of legs posted atomically. IdempotencyKey is unique
// across the journal; posting the same key twice is rejected.
type Transaction struct {
	ID             uuid.UUID
	IdempotencyKey string
	Type           TransactionType
	Legs           []Entry
	CreatedAt      time.Time
}

// Validate checks the double-entry invariant: total credit equals total debit.
func (t Transaction) Validate() error {
	if t.Type == "" {
		return ErrMissingKind
	}
	if len(t.Legs) < 2 {
		return ErrTooFewLegs
	}
	var credit, debit shared.Satoshis
	for _, leg := range t.Legs {
		if leg.Credit < 0 || leg.Debit < 0 || (leg.Credit > 0) == (leg.Debit > 0) {
			return fmt.Errorf("%w: account %s", ErrInvalidLeg, leg.Account)
		}
		credit += leg.Credit
		debit += leg.Debit
	}
	if credit != debit {
		return &UnbalancedTransactionError{Credit: credit, Debit: debit}
	}
	return nil
}

// Metadata is copied onto every leg of a transaction.
type Metadata struct {
	MemoFromPayer string
	LnMemo        string
	PaymentHash   string
	Addresses     []string
	TxHash        string
	Pending       bool
	FiatAmount    decimal.NullDecimal
	SatsPerUnit   decimal.NullDecimal
}

func newTransaction(kind TransactionType, key string, meta Metadata, legs ...Entry) Transaction {
	id := uuid.New()
	now := time.Now().UTC()
	for i := range legs {
		legs[i].TransactionID = id
		legs[i].Currency = shared.LedgerCurrency
		legs[i].Type = kind
		legs[i].Pending = meta.Pending
		legs[i].MemoFromPayer = meta.MemoFromPayer
		legs[i].LnMemo = meta.LnMemo
		legs[i].PaymentHash = meta.PaymentHash
		legs[i].Addresses = meta.Addresses
		legs[i].TxHash = meta.TxHash
		legs[i].FiatAmount = meta.FiatAmount
		legs[i].SatsPerUnit = meta.SatsPerUnit
		legs[i].Timestamp = now
	}
	return Transaction{ID: id, IdempotencyKey: key, Type: kind, Legs: legs, CreatedAt: now}
}

func credit(account string, amount shared.Satoshis) Entry {
	return Entry{Account: account, Credit: amount}
}

func debit(account string, amount shared.Satoshis) Entry {
	return Entry{Account: account, Debit: amount}
}

// LightningReceipt credits a wallet for a settled invoice.
func LightningReceipt(walletAccount string, amount shared.Satoshis, key string, meta Metadata) Transaction {
	return newTransaction(TypeInvoice, key, meta,
		credit(walletAccount, amount),
		debit(LndAccountingPath, amount),
	)
}

// LightningPayment debits a wallet for an outgoing payment including its fee.
func LightningPayment(walletAccount string, amount, fee shared.Satoshis, key string, meta Metadata) Transaction {
	walletLeg := debit(walletAccount, amount+fee)
	walletLeg.Fee = fee
	return newTransaction(TypePayment, key, meta,
		walletLeg,
		credit(LndAccountingPath, amount+fee),
	)
}

// Party is one side of an intraledger transfer.
type Party struct {
	Account  string
	Username string
}

// IntraLedgerTransfer moves sats between two customer accounts. Each leg
// records the counterparty username.
func IntraLedgerTransfer(sender, recipient Party, amount shared.Satoshis, key string, meta Metadata) Transaction {
	senderLeg := debit(sender.Account, amount)
	recipientLeg := credit(recipient.Account, amount)
	txn := newTransaction(TypeIntraLedger, key, meta, senderLeg, recipientLeg)
	txn.Legs[0].Username = recipient.Username
	txn.Legs[1].Username = sender.Username
	return txn
}

// OnChainReceipt credits a wallet for a confirmed on-chain output.
func OnChainReceipt(walletAccount string, amount shared.Satoshis, key string, meta Metadata) Transaction {
	return newTransaction(TypeOnChainReceipt, key, meta,
		credit(walletAccount, amount),
		debit(BitcoindAccountingPath, amount),
	)
}

// FeeReimbursement returns the part of a reserved routing fee that was not spent.
func FeeReimbursement(walletAccount string, amount shared.Satoshis, key string, paymentHash string) Transaction {
	return newTransaction(TypeFeeReimbursement, key, Metadata{PaymentHash: paymentHash},
		credit(walletAccount, amount),
		debit(LndAccountingPath, amount),
	)
}

// FeeReservation returns the payer account of a payment and the routing fee
// its legs hold.
func FeeReservation(legs []Entry) (string, shared.Satoshis) {
	for _, leg := range legs {
		if leg.Debit > 0 && leg.Fee > 0 {
			return leg.Account, leg.Fee
		}
	}
	return "", 0
}

// Reversal cancels the effect of legs. Both the reversal and the reversed legs
// end up voided and hidden from the wallet history.
func Reversal(legs []Entry, key string) Transaction {
	reversed := make([]Entry, 0, len(legs))
	for _, leg := range legs {
		reversed = append(reversed, Entry{
			Account: leg.Account,
			Credit:  leg.Debit,
			Debit:   leg.Credit,
			Fee:     leg.Fee,
		})
	}
	var meta Metadata
	if len(legs) > 0 {
		meta.PaymentHash = legs[0].PaymentHash
	}
	txn := newTransaction(TypeReversal, key, meta, reversed...)
	for i := range txn.Legs {
		txn.Legs[i].Voided = true
	}
	return txn
}
