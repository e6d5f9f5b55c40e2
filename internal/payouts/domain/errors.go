package payouts

import "errors"

var (
	// ErrStatementNotFound is returned when a statement does not exist.
	ErrStatementNotFound = errors.New("payouts: statement not found")
	// ErrNilStatement is returned when a nil statement is supplied.
	ErrNilStatement = errors.New("payouts: nil statement")
	// ErrNotFinal is returned when a settlement targets a non-final statement.
	ErrNotFinal = errors.New("payouts: statement is not final")
	// ErrZeroPayout is returned when the owner payout is zero.
	ErrZeroPayout = errors.New("payouts: owner payout is zero")
	// ErrDirectionMismatch is returned when the requested operation class does
	// not match the payout sign.
	ErrDirectionMismatch = errors.New("payouts: operation does not match payout sign")
	// ErrStatusConflict is returned when the conditional status transition
	// affected zero rows because another caller moved the statement first.
	ErrStatusConflict = errors.New("payouts: statement not in expected state")
	// ErrNoListing is returned when a statement references no listing.
	ErrNoListing = errors.New("payouts: statement has no associated listing")
	// ErrNoAccount is returned when neither the group nor the listing has a
	// configured destination account.
	ErrNoAccount = errors.New("payouts: no configured Stripe account")
	// ErrAccountNotFound is returned when a destination account id is unknown.
	ErrAccountNotFound = errors.New("payouts: payment account not found")
	// ErrInsufficientBalance is returned when a drain run aborts because the
	// platform balance still does not cover the queued set.
	ErrInsufficientBalance = errors.New("payouts: insufficient platform balance")
)
