// Package price_oracle keeps the current BTC spot price in memory for the
// wallet conversions. One refresher writes, any number of goroutines read.
package price_oracle

import (
	"sync/atomic"
	"time"

	"github.com/lnwallet-ledger/internal/domain/price"
)

// Oracle holds the latest snapshot. Store swaps the whole value, so readers
// never see a price from one snapshot with the timestamp of another.
type Oracle struct {
	current atomic.Pointer[price.Snapshot]
	maxAge  time.Duration
	now     func() time.Time
}

// NewOracle returns an empty oracle. A zero maxAge accepts snapshots of any age.
func NewOracle(maxAge time.Duration) *Oracle {
	return &Oracle{maxAge: maxAge, now: time.Now}
}

// Latest returns the current snapshot.
func (o *Oracle) Latest() (price.Snapshot, error) {
	snapshot := o.current.Load()
	if snapshot == nil {
		return price.Snapshot{}, &price.NoPriceAvailableError{}
	}
	if o.maxAge > 0 && o.now().Sub(snapshot.ObservedAt) > o.maxAge {
		return price.Snapshot{}, &price.StalePriceError{ObservedAt: snapshot.ObservedAt, MaxAge: o.maxAge}
	}
	return *snapshot, nil
}

// Store replaces the current snapshot. Older snapshots than the current one
// are ignored so a slow cache warm-up cannot roll back a fresh refresh.
func (o *Oracle) Store(snapshot price.Snapshot) bool {
	next := &snapshot
	for {
		current := o.current.Load()
		if current != nil && snapshot.ObservedAt.Before(current.ObservedAt) {
			return false
		}
		if o.current.CompareAndSwap(current, next) {
			return true
		}
	}
}
