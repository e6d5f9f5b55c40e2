package payouts

import (
	"context"
	"errors"
	"time"
)

// RailErrorKind classifies a payment rail failure. Callers branch on the kind
// structurally instead of matching message substrings.
type RailErrorKind string

const (
	RailErrorAuth              RailErrorKind = "auth"
	RailErrorRateLimit         RailErrorKind = "rate_limit"
	RailErrorInsufficientFunds RailErrorKind = "insufficient_funds"
	RailErrorOther             RailErrorKind = "other"
)

// RailError is a typed failure returned by the payment rail abstraction.
type RailError struct {
	Kind    RailErrorKind
	Message string
}

func (e *RailError) Error() string {
	if e == nil {
		return ""
	}
	return "rail: " + string(e.Kind) + ": " + e.Message
}

// RailErrorKindOf extracts the kind from an error chain; non-rail errors
// classify as other.
func RailErrorKindOf(err error) RailErrorKind {
	var railErr *RailError
	if errors.As(err, &railErr) {
		return railErr.Kind
	}
	return RailErrorOther
}

// TopUpReceipt identifies a platform funding operation at the rail.
type TopUpReceipt struct {
	ID                   string    `json:"id"`
	AmountMinor          int64     `json:"amount_minor"`
	Currency             string    `json:"currency"`
	ExpectedAvailability time.Time `json:"expected_availability,omitempty"`
}

// TransferParams describes a transfer to an owner's destination account.
// Amounts are in the rail's smallest currency unit.
type TransferParams struct {
	AmountMinor          int64
	Currency             string
	DestinationAccountID string
	IdempotencyKey       string
	Metadata             map[string]string
}

// ChargeParams describes a collection from an owner's account.
type ChargeParams struct {
	AmountMinor     int64
	Currency        string
	SourceAccountID string
	IdempotencyKey  string
	Metadata        map[string]string
}

// AccountInfo is the rail's view of a connected account.
type AccountInfo struct {
	ID             string
	ChargesEnabled bool
	PayoutsEnabled bool
	Requirements   []string
}

// TransferRecord is one entry in the rail's own transaction log, used by the
// settlement audit.
type TransferRecord struct {
	ID          string
	AmountMinor int64
	Currency    string
	Destination string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Rail is the payment processor abstraction that moves real funds. Every call
// is blocking network I/O and must be given a context with a deadline; a
// timeout is a failure even though the rail may have completed the operation,
// which is why idempotency keys are mandatory.
type Rail interface {
	RetrieveBalance(ctx context.Context, currency string) (int64, error)
	CreateTopUp(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (TopUpReceipt, error)
	CreateTransfer(ctx context.Context, params TransferParams) (string, error)
	CreateCharge(ctx context.Context, params ChargeParams) (string, error)
	RetrieveAccount(ctx context.Context, accountID string) (AccountInfo, error)
}

// TransferLog exposes the rail's transaction history for reconciliation. Kept
// separate from Rail because settlement itself never reads history.
type TransferLog interface {
	ListTransfers(ctx context.Context, since time.Time) ([]TransferRecord, error)
}
