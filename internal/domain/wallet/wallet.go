package wallet

import (
	"time"

	"github.com/lnwallet-ledger/internal/domain/ledger"
	"github.com/lnwallet-ledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OnChainAddress is a receive address owned by a wallet.
type OnChainAddress struct {
	Address string `bson:"address" json:"address"`
	Pubkey  string `bson:"pubkey,omitempty" json:"pubkey,omitempty"`
}

// Wallet maps a user balance to its ledger account. Currency is fixed at
// creation.
type Wallet struct {
	ID          string                `bson:"_id" json:"id"`
	OwnerUserID string                `bson:"owner_user_id" json:"owner_user_id"`
	Username    string                `bson:"username,omitempty" json:"username,omitempty"`
	Currency    shared.WalletCurrency `bson:"currency" json:"currency"`
	OnChain     []OnChainAddress      `bson:"onchain" json:"onchain"`
	CreatedAt   time.Time             `bson:"created_at" json:"created_at"`
}

// AccountPath is the ledger account holding the wallet balance.
func (w Wallet) AccountPath() string {
	return ledger.CustomerPath(w.ID)
}

// Addresses returns the on-chain receive addresses of the wallet.
func (w Wallet) Addresses() []string {
	addresses := make([]string, 0, len(w.OnChain))
	for _, a := range w.OnChain {
		addresses = append(addresses, a.Address)
	}
	return addresses
}

// Invoice links a Lightning invoice to the wallet that created it. Fiat
// invoices keep the face value and the price snapshot used for conversion.
type Invoice struct {
	PaymentHash   string                `bson:"_id" json:"payment_hash"`
	WalletID      string                `bson:"wallet_id" json:"wallet_id"`
	Pubkey        string                `bson:"pubkey" json:"pubkey"`
	Currency      shared.WalletCurrency `bson:"currency" json:"currency"`
	Sats          shared.Satoshis       `bson:"sats" json:"sats"`
	FiatAmount    string                `bson:"fiat_amount,omitempty" json:"fiat_amount,omitempty"`
	SatsPerUnit   string                `bson:"sats_per_unit,omitempty" json:"sats_per_unit,omitempty"`
	Memo          string                `bson:"memo,omitempty" json:"memo,omitempty"`
	SelfGenerated bool                  `bson:"self_generated" json:"self_generated"`
	Paid          bool                  `bson:"paid" json:"paid"`
	CreatedAt     time.Time             `bson:"created_at" json:"created_at"`
}

// FiatSnapshot returns the fiat face value and conversion price, if recorded.
func (i Invoice) FiatSnapshot() (amount, satsPerUnit decimal.NullDecimal) {
	if i.FiatAmount != "" {
		if d, err := decimal.NewFromString(i.FiatAmount); err == nil {
			amount = decimal.NewNullDecimal(d)
		}
	}
	if i.SatsPerUnit != "" {
		if d, err := decimal.NewFromString(i.SatsPerUnit); err == nil {
			satsPerUnit = decimal.NewNullDecimal(d)
		}
	}
	return amount, satsPerUnit
}

// Balance is a wallet balance in sats with its fiat equivalent at the current
// spot price.
type Balance struct {
	WalletID string                `json:"wallet_id"`
	Currency shared.WalletCurrency `json:"currency"`
	Sats     shared.Satoshis       `json:"sats"`
	Fiat     decimal.Decimal       `json:"fiat"`
}

// Notification is a message for the owner of a wallet. Delivery is handled
// downstream of the notifications topic.
type Notification struct {
	WalletID  string    `json:"wallet_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
