package payouts

import (
	"math"
	"testing"
)

func TestTransferFee(t *testing.T) {
	calc := NewFeeCalculator(0.0025)

	cases := []struct {
		payout float64
		fee    float64
		total  float64
	}{
		{500.00, 1.25, 501.25},
		{4000.00, 10.00, 4010.00},
		{3500.00, 8.75, 3508.75},
		{0.01, 0.00, 0.01},
		{1999.99, 5.00, 2004.99},
	}
	for _, tc := range cases {
		fee := calc.TransferFee(tc.payout)
		if math.Abs(fee-tc.fee) > 1e-9 {
			t.Fatalf("fee for %.2f: expected %.2f, got %v", tc.payout, tc.fee, fee)
		}
		total := calc.TransferTotal(tc.payout)
		if math.Abs(total-tc.total) > 1e-9 {
			t.Fatalf("total for %.2f: expected %.2f, got %v", tc.payout, tc.total, total)
		}
	}
}

func TestCollectionAmount(t *testing.T) {
	calc := NewFeeCalculator(0.0025)
	if amount := calc.CollectionAmount(-120.00); amount != 120.00 {
		t.Fatalf("expected 120.00, got %v", amount)
	}
	if amount := calc.CollectionAmount(120.00); amount != 120.00 {
		t.Fatalf("expected 120.00, got %v", amount)
	}
}

func TestMovedAmount(t *testing.T) {
	calc := NewFeeCalculator(0.0025)
	if moved := calc.MovedAmount(500.00); math.Abs(moved-501.25) > 1e-9 {
		t.Fatalf("expected 501.25, got %v", moved)
	}
	if moved := calc.MovedAmount(-120.00); moved != 120.00 {
		t.Fatalf("expected 120.00, got %v", moved)
	}
}

func TestNewFeeCalculatorDefaultsRate(t *testing.T) {
	calc := NewFeeCalculator(0)
	if fee := calc.TransferFee(1000.00); math.Abs(fee-2.50) > 1e-9 {
		t.Fatalf("expected default rate fee 2.50, got %v", fee)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount float64
		minor  int64
	}{
		{501.25, 50125},
		{120.00, 12000},
		{0.01, 1},
		{2506.25, 250625},
	}
	for _, tc := range cases {
		if got := MinorUnits(tc.amount); got != tc.minor {
			t.Fatalf("minor units for %v: expected %d, got %d", tc.amount, tc.minor, got)
		}
	}
}
