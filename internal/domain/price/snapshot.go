package price

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SatsPerBTC is the number of sats in one bitcoin.
var SatsPerBTC = decimal.NewFromInt(100_000_000)

// Snapshot is the spot price observed at a point in time, expressed as the
// number of sats one fiat unit buys.
type Snapshot struct {
	SpotSatsPerUnit decimal.Decimal `json:"spot_sats_per_unit"`
	ObservedAt      time.Time       `json:"observed_at"`
}

// ErrInvalidPrice is returned for zero or negative prices.
var ErrInvalidPrice = errors.New("price must be greater than zero")

// FromFiatPerBTC converts an exchange quote (fiat units per BTC) into a snapshot.
func FromFiatPerBTC(fiatPerBTC decimal.Decimal, observedAt time.Time) (Snapshot, error) {
	if !fiatPerBTC.IsPositive() {
		return Snapshot{}, ErrInvalidPrice
	}
	return Snapshot{
		SpotSatsPerUnit: SatsPerBTC.Div(fiatPerBTC),
		ObservedAt:      observedAt,
	}, nil
}

// SatsFor converts a fiat amount to sats, rounding half away from zero.
func (s Snapshot) SatsFor(fiat decimal.Decimal) int64 {
	return fiat.Mul(s.SpotSatsPerUnit).Round(0).IntPart()
}

// FiatFor converts sats to fiat, rounded to cents.
func (s Snapshot) FiatFor(sats int64) decimal.Decimal {
	if s.SpotSatsPerUnit.IsZero() {
		return decimal.Zero
	}
	return decimal.NewFromInt(sats).Div(s.SpotSatsPerUnit).Round(2)
}

// NoPriceAvailableError is returned before the first refresh.
type NoPriceAvailableError struct{}

func (e *NoPriceAvailableError) Error() string { return "no price available" }

func (e *NoPriceAvailableError) Is(target error) bool {
	_, ok := target.(*NoPriceAvailableError)
	return ok
}

// StalePriceError is returned when the latest snapshot is older than allowed.
type StalePriceError struct {
	ObservedAt time.Time
	MaxAge     time.Duration
}

func (e *StalePriceError) Error() string {
	return fmt.Sprintf("price observed at %s is older than %s", e.ObservedAt.Format(time.RFC3339), e.MaxAge)
}

func (e *StalePriceError) Is(target error) bool {
	_, ok := target.(*StalePriceError)
	return ok
}
