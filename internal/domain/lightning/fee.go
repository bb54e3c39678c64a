package lightning

import "github.com/lnwallet-ledger/internal/domain/shared"

const basisPointsDivisor = 10_000

// FeeCalculator computes the maximum routing fee accepted for a payment:
// max(floor, amount x rate) clamped to the ceiling. It is pure.
type FeeCalculator struct {
	floor       shared.Satoshis
	basisPoints int64
	ceiling     shared.Satoshis
}

// NewFeeCalculator builds a calculator. A ceiling below the floor is raised to
// the floor so that Max never returns less than the floor.
func NewFeeCalculator(floor shared.Satoshis, basisPoints int64, ceiling shared.Satoshis) FeeCalculator {
	if floor < 0 {
		floor = 0
	}
	if basisPoints < 0 {
		basisPoints = 0
	}
	if ceiling < floor {
		ceiling = floor
	}
	return FeeCalculator{floor: floor, basisPoints: basisPoints, ceiling: ceiling}
}

// Max returns the fee cap for amount.
func (c FeeCalculator) Max(amount shared.Satoshis) shared.Satoshis {
	if amount < 0 {
		amount = 0
	}
	proportional := shared.Satoshis(int64(amount) * c.basisPoints / basisPointsDivisor)
	return min(max(c.floor, proportional), c.ceiling)
}

// Floor is the smallest cap the calculator returns.
func (c FeeCalculator) Floor() shared.Satoshis {
	return c.floor
}
