package payouts

import (
	"context"
	"time"
)

// SettledUpdate records the outcome of a successful rail call.
type SettledUpdate struct {
	PayoutStatus        string
	PayoutTransferID    string
	StripeFee           float64
	TotalTransferAmount float64
	PaidAt              time.Time
}

// StatementRepository persists the payout fields of owner statements.
//
// TransitionStatus is the cross-process concurrency guard: it must be a
// single atomic compare-and-set on the storage layer and report whether the
// row was actually moved.
type StatementRepository interface {
	GetByID(ctx context.Context, id string) (*Statement, error)
	GetByIDs(ctx context.Context, ids []string) ([]Statement, error)
	ListByPayoutStatus(ctx context.Context, payoutStatus string) ([]Statement, error)
	TransitionStatus(ctx context.Context, id, to string, priors []string) (bool, error)
	MarkSettled(ctx context.Context, id string, update SettledUpdate) (bool, error)
	MarkFailed(ctx context.Context, id, message string) error
}

// AccountRepository reads payment account configuration for listings and
// groups and writes refreshed onboarding state.
type AccountRepository interface {
	ListingAccount(ctx context.Context, listingID string) (*PaymentAccount, error)
	GroupAccount(ctx context.Context, groupID string) (*PaymentAccount, error)
	SetOnboardingStatus(ctx context.Context, destinationAccountID, status string) error
}
