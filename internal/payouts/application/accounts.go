package application

import (
	"context"
	"errors"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// AccountService re-derives payment account onboarding state from the rail.
type AccountService struct {
	accounts    payouts.AccountRepository
	rail        payouts.Rail
	railTimeout time.Duration
}

// NewAccountService constructs a service.
func NewAccountService(accounts payouts.AccountRepository, rail payouts.Rail, cfg Config) (*AccountService, error) {
	if accounts == nil {
		return nil, errors.New("account service: nil account repository")
	}
	if rail == nil {
		return nil, errors.New("account service: nil rail")
	}
	return &AccountService{accounts: accounts, rail: rail, railTimeout: cfg.RailTimeout}, nil
}

// RefreshAccountStatus fetches the rail's current account view and persists
// the derived onboarding status.
func (s *AccountService) RefreshAccountStatus(ctx context.Context, destinationAccountID string) (string, error) {
	if destinationAccountID == "" {
		return "", errors.New("account service: empty account id")
	}
	railCtx, cancel := context.WithTimeout(ctx, s.railTimeout)
	defer cancel()

	info, err := s.rail.RetrieveAccount(railCtx, destinationAccountID)
	if err != nil {
		return "", err
	}
	status := payouts.DeriveOnboardingStatus(info)
	if err := s.accounts.SetOnboardingStatus(ctx, destinationAccountID, status); err != nil {
		return "", err
	}
	return status, nil
}
