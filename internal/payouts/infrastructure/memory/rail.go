package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// Rail is an in-memory payment rail honoring idempotency keys. It implements
// both the Rail interface and the TransferLog used by the audit.
type Rail struct {
	mu              sync.Mutex
	balances        map[string]int64
	transfers       []payouts.TransferRecord
	charges         []payouts.ChargeParams
	topUps          []payouts.TopUpReceipt
	accounts        map[string]payouts.AccountInfo
	byKey           map[string]string
	transferErr     error
	chargeErr       error
	topUpErr        error
	balanceCalls    int
	transferCalls   int
	chargeCalls     int
	creditOnTopUp   bool
	nextID          int
	availabilityLag time.Duration
}

// NewRail constructs a rail with the given per-currency balances in minor
// units.
func NewRail(balances map[string]int64) *Rail {
	copied := make(map[string]int64, len(balances))
	for currency, amount := range balances {
		copied[currency] = amount
	}
	return &Rail{
		balances:      copied,
		accounts:      make(map[string]payouts.AccountInfo),
		byKey:         make(map[string]string),
		creditOnTopUp: true,
	}
}

// SetAccount seeds the rail's view of a connected account.
func (r *Rail) SetAccount(info payouts.AccountInfo) {
	r.mu.Lock()
	r.accounts[info.ID] = info
	r.mu.Unlock()
}

// FailTransfersWith makes subsequent transfer calls fail.
func (r *Rail) FailTransfersWith(err error) {
	r.mu.Lock()
	r.transferErr = err
	r.mu.Unlock()
}

// FailChargesWith makes subsequent charge calls fail.
func (r *Rail) FailChargesWith(err error) {
	r.mu.Lock()
	r.chargeErr = err
	r.mu.Unlock()
}

// FailTopUpsWith makes subsequent top-up calls fail.
func (r *Rail) FailTopUpsWith(err error) {
	r.mu.Lock()
	r.topUpErr = err
	r.mu.Unlock()
}

// SetCreditOnTopUp controls whether a top-up immediately lands on the
// balance. Disable it to model the funding delay.
func (r *Rail) SetCreditOnTopUp(credit bool) {
	r.mu.Lock()
	r.creditOnTopUp = credit
	r.mu.Unlock()
}

// Credit adds to a currency balance, simulating a completed top-up.
func (r *Rail) Credit(currency string, amountMinor int64) {
	r.mu.Lock()
	r.balances[currency] += amountMinor
	r.mu.Unlock()
}

// TransferCalls reports how many transfer calls reached the rail.
func (r *Rail) TransferCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transferCalls
}

// ChargeCalls reports how many charge calls reached the rail.
func (r *Rail) ChargeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chargeCalls
}

// TopUps returns issued top-up receipts.
func (r *Rail) TopUps() []payouts.TopUpReceipt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]payouts.TopUpReceipt, len(r.topUps))
	copy(out, r.topUps)
	return out
}

// RetrieveBalance returns the available balance for a currency.
func (r *Rail) RetrieveBalance(ctx context.Context, currency string) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.balanceCalls++
	return r.balances[currency], nil
}

// CreateTopUp issues a platform top-up.
func (r *Rail) CreateTopUp(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (payouts.TopUpReceipt, error) {
	_ = ctx
	_ = metadata
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.topUpErr != nil {
		return payouts.TopUpReceipt{}, r.topUpErr
	}
	r.nextID++
	receipt := payouts.TopUpReceipt{
		ID:                   fmt.Sprintf("tu_%06d", r.nextID),
		AmountMinor:          amountMinor,
		Currency:             currency,
		ExpectedAvailability: time.Now().UTC().Add(r.availabilityLag),
	}
	r.topUps = append(r.topUps, receipt)
	if r.creditOnTopUp {
		r.balances[currency] += amountMinor
	}
	return receipt, nil
}

// CreateTransfer moves funds to a destination account. Repeating an
// idempotency key returns the original transfer id without a new effect.
func (r *Rail) CreateTransfer(ctx context.Context, params payouts.TransferParams) (string, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return id, nil
	}
	if r.transferErr != nil {
		return "", r.transferErr
	}
	if r.balances[params.Currency] < params.AmountMinor {
		return "", &payouts.RailError{Kind: payouts.RailErrorInsufficientFunds, Message: "insufficient platform balance"}
	}
	r.transferCalls++
	r.nextID++
	id := fmt.Sprintf("tr_%06d", r.nextID)
	r.balances[params.Currency] -= params.AmountMinor
	metadata := make(map[string]string, len(params.Metadata))
	for key, value := range params.Metadata {
		metadata[key] = value
	}
	r.transfers = append(r.transfers, payouts.TransferRecord{
		ID:          id,
		AmountMinor: params.AmountMinor,
		Currency:    params.Currency,
		Destination: params.DestinationAccountID,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	})
	if params.IdempotencyKey != "" {
		r.byKey[params.IdempotencyKey] = id
	}
	return id, nil
}

// CreateCharge collects funds from an owner's account.
func (r *Rail) CreateCharge(ctx context.Context, params payouts.ChargeParams) (string, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return id, nil
	}
	if r.chargeErr != nil {
		return "", r.chargeErr
	}
	r.chargeCalls++
	r.nextID++
	id := fmt.Sprintf("ch_%06d", r.nextID)
	r.balances[params.Currency] += params.AmountMinor
	r.charges = append(r.charges, params)
	if params.IdempotencyKey != "" {
		r.byKey[params.IdempotencyKey] = id
	}
	return id, nil
}

// RetrieveAccount returns the rail's view of a connected account.
func (r *Rail) RetrieveAccount(ctx context.Context, accountID string) (payouts.AccountInfo, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.accounts[accountID]
	if !ok {
		return payouts.AccountInfo{}, &payouts.RailError{Kind: payouts.RailErrorOther, Message: "no such account: " + accountID}
	}
	return info, nil
}

// ListTransfers returns transfers created at or after since.
func (r *Rail) ListTransfers(ctx context.Context, since time.Time) ([]payouts.TransferRecord, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payouts.TransferRecord
	for _, record := range r.transfers {
		if record.CreatedAt.Before(since) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}
