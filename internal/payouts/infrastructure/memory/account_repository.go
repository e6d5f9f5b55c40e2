package memory

import (
	"context"
	"sync"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// AccountRepository is an in-memory payment account store.
type AccountRepository struct {
	mu       sync.RWMutex
	listings map[string]payouts.PaymentAccount
	groups   map[string]payouts.PaymentAccount
}

// NewAccountRepository constructs a repository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		listings: make(map[string]payouts.PaymentAccount),
		groups:   make(map[string]payouts.PaymentAccount),
	}
}

// PutListingAccount seeds a listing's payment account.
func (r *AccountRepository) PutListingAccount(listingID string, account payouts.PaymentAccount) {
	r.mu.Lock()
	r.listings[listingID] = account
	r.mu.Unlock()
}

// PutGroupAccount seeds a group's payment account.
func (r *AccountRepository) PutGroupAccount(groupID string, account payouts.PaymentAccount) {
	r.mu.Lock()
	r.groups[groupID] = account
	r.mu.Unlock()
}

// ListingAccount returns the listing's account.
func (r *AccountRepository) ListingAccount(ctx context.Context, listingID string) (*payouts.PaymentAccount, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.listings[listingID]
	if !ok {
		return nil, payouts.ErrAccountNotFound
	}
	copied := account
	return &copied, nil
}

// GroupAccount returns the group's account.
func (r *AccountRepository) GroupAccount(ctx context.Context, groupID string) (*payouts.PaymentAccount, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.groups[groupID]
	if !ok {
		return nil, payouts.ErrAccountNotFound
	}
	copied := account
	return &copied, nil
}

// SetOnboardingStatus updates every account with the destination id.
func (r *AccountRepository) SetOnboardingStatus(ctx context.Context, destinationAccountID, status string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	found := false
	for key, account := range r.listings {
		if account.DestinationAccountID == destinationAccountID {
			account.OnboardingStatus = status
			r.listings[key] = account
			found = true
		}
	}
	for key, account := range r.groups {
		if account.DestinationAccountID == destinationAccountID {
			account.OnboardingStatus = status
			r.groups[key] = account
			found = true
		}
	}
	if !found {
		return payouts.ErrAccountNotFound
	}
	return nil
}
