package application

import (
	"context"
	"errors"
	"math"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// SufficiencyReport compares funds needed against the rail's available
// platform balance, per currency in minor units.
type SufficiencyReport struct {
	Sufficient          bool
	AvailableByCurrency map[string]int64
	ShortfallByCurrency map[string]int64
}

// BalanceGuard is a pure query/command pair against the rail. It never
// mutates statements. The sufficiency check is best-effort: it is not
// transactionally tied to the rail call that follows it, and the rail's own
// insufficient-funds rejection remains the authoritative backstop.
type BalanceGuard struct {
	rail      payouts.Rail
	bufferPct float64
}

// NewBalanceGuard constructs a guard. bufferPct pads top-ups against rounding
// and timing drift.
func NewBalanceGuard(rail payouts.Rail, bufferPct float64) (*BalanceGuard, error) {
	if rail == nil {
		return nil, errors.New("balance guard: nil rail")
	}
	if bufferPct < 0 {
		return nil, errors.New("balance guard: negative buffer")
	}
	return &BalanceGuard{rail: rail, bufferPct: bufferPct}, nil
}

// CheckSufficiency queries the rail's available balance for each needed
// currency and reports per-currency shortfalls.
func (g *BalanceGuard) CheckSufficiency(ctx context.Context, neededByCurrency map[string]int64) (SufficiencyReport, error) {
	report := SufficiencyReport{
		Sufficient:          true,
		AvailableByCurrency: make(map[string]int64, len(neededByCurrency)),
		ShortfallByCurrency: make(map[string]int64),
	}
	for currency, needed := range neededByCurrency {
		available, err := g.rail.RetrieveBalance(ctx, currency)
		if err != nil {
			return SufficiencyReport{}, err
		}
		report.AvailableByCurrency[currency] = available
		if available < needed {
			report.Sufficient = false
			report.ShortfallByCurrency[currency] = needed - available
		}
	}
	return report, nil
}

// RequestTopUp issues a platform top-up sized at the shortfall plus the
// configured buffer, rounded up to the smallest rail unit.
func (g *BalanceGuard) RequestTopUp(ctx context.Context, shortfallMinor int64, currency string, metadata map[string]string) (payouts.TopUpReceipt, error) {
	if shortfallMinor <= 0 {
		return payouts.TopUpReceipt{}, errors.New("balance guard: non-positive shortfall")
	}
	if currency == "" {
		return payouts.TopUpReceipt{}, errors.New("balance guard: empty currency")
	}
	amount := int64(math.Ceil(float64(shortfallMinor) * (1 + g.bufferPct)))
	return g.rail.CreateTopUp(ctx, amount, currency, metadata)
}
