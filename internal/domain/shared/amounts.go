package shared

import "math"

// Satoshis is an amount of bitcoin in sats.
type Satoshis int64

// MilliSatoshis is an amount in thousandths of a sat, as reported by the node.
type MilliSatoshis int64

// ToMilliSats converts sats to msats.
func (s Satoshis) ToMilliSats() MilliSatoshis {
	return MilliSatoshis(int64(s) * 1000)
}

// RoundedUpSats converts msats to sats rounding any remainder up, so fees are
// never under-reported.
func (m MilliSatoshis) RoundedUpSats() Satoshis {
	return Satoshis(int64(math.Ceil(float64(m) / 1000)))
}

// WalletCurrency is the denomination a wallet is created with.
type WalletCurrency string

const (
	CurrencyBTC  WalletCurrency = "BTC"
	CurrencyFiat WalletCurrency = "FIAT"
)

// LedgerCurrency is the unit ledger legs are booked in. Every leg is settled
// in sats regardless of the wallet denomination.
const LedgerCurrency = "BTC"

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
