package payouts

import "math"

// DefaultTransferFeeRate is the rail fee applied to owner transfers.
const DefaultTransferFeeRate = 0.0025

// FeeCalculator computes rail fees and movable amounts. It is pure and does
// no I/O.
type FeeCalculator struct {
	rate float64
}

// NewFeeCalculator constructs a calculator. Non-positive rates fall back to
// the default.
func NewFeeCalculator(rate float64) FeeCalculator {
	if rate <= 0 {
		rate = DefaultTransferFeeRate
	}
	return FeeCalculator{rate: rate}
}

// TransferFee returns the fee for a transfer, rounded to cents.
func (c FeeCalculator) TransferFee(ownerPayout float64) float64 {
	return math.Round(ownerPayout*c.rate*100) / 100
}

// TransferTotal returns the total amount moved for a transfer: payout plus fee.
func (c FeeCalculator) TransferTotal(ownerPayout float64) float64 {
	return ownerPayout + c.TransferFee(ownerPayout)
}

// CollectionAmount returns the amount charged back for a collection. No fee
// applies to collections.
func (c FeeCalculator) CollectionAmount(ownerPayout float64) float64 {
	return math.Abs(ownerPayout)
}

// MovedAmount returns the total moved for a statement in its natural
// direction: transfer total for positive payouts, collection amount for
// negative ones.
func (c FeeCalculator) MovedAmount(ownerPayout float64) float64 {
	if ownerPayout > 0 {
		return c.TransferTotal(ownerPayout)
	}
	return c.CollectionAmount(ownerPayout)
}

// MinorUnits converts a currency amount to the rail's smallest unit.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
