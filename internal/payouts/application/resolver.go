package application

import (
	"context"
	"errors"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// AccountResolver maps a statement to a destination rail account. A group's
// configured account wins over the listing's. No side effects.
type AccountResolver struct {
	accounts payouts.AccountRepository
}

// NewAccountResolver constructs a resolver.
func NewAccountResolver(accounts payouts.AccountRepository) (*AccountResolver, error) {
	if accounts == nil {
		return nil, errors.New("account resolver: nil account repository")
	}
	return &AccountResolver{accounts: accounts}, nil
}

// Resolve returns the destination account id for a statement.
func (r *AccountResolver) Resolve(ctx context.Context, stmt *payouts.Statement) (string, error) {
	if stmt == nil {
		return "", payouts.ErrNilStatement
	}
	if stmt.GroupID != "" {
		account, err := r.accounts.GroupAccount(ctx, stmt.GroupID)
		if err != nil && !errors.Is(err, payouts.ErrAccountNotFound) {
			return "", err
		}
		if account.HasDestination() {
			return account.DestinationAccountID, nil
		}
	}
	listingID := stmt.PrimaryPropertyID()
	if listingID == "" {
		return "", payouts.ErrNoListing
	}
	account, err := r.accounts.ListingAccount(ctx, listingID)
	if err != nil && !errors.Is(err, payouts.ErrAccountNotFound) {
		return "", err
	}
	if account.HasDestination() {
		return account.DestinationAccountID, nil
	}
	return "", payouts.ErrNoAccount
}
