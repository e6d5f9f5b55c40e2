package application

import (
	"context"
	"testing"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/memory"
)

func TestRefreshAccountStatus_Verified(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutListingAccount("prop-1", payouts.PaymentAccount{
		DestinationAccountID: "acct_1",
		OnboardingStatus:     payouts.OnboardingStatusPending,
	})
	rail := memory.NewRail(nil)
	rail.SetAccount(payouts.AccountInfo{ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true})

	service, err := NewAccountService(accounts, rail, testConfig())
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	status, err := service.RefreshAccountStatus(context.Background(), "acct_1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if status != payouts.OnboardingStatusVerified {
		t.Fatalf("expected verified, got %s", status)
	}
	stored, _ := accounts.ListingAccount(context.Background(), "prop-1")
	if stored.OnboardingStatus != payouts.OnboardingStatusVerified {
		t.Fatalf("expected persisted verified, got %s", stored.OnboardingStatus)
	}
}

func TestRefreshAccountStatus_RequiresAction(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutGroupAccount("group-1", payouts.PaymentAccount{DestinationAccountID: "acct_2"})
	rail := memory.NewRail(nil)
	rail.SetAccount(payouts.AccountInfo{ID: "acct_2", Requirements: []string{"external_account"}})

	service, _ := NewAccountService(accounts, rail, testConfig())
	status, err := service.RefreshAccountStatus(context.Background(), "acct_2")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if status != payouts.OnboardingStatusRequiresAction {
		t.Fatalf("expected requires_action, got %s", status)
	}
}

func TestRefreshAccountStatus_UnknownAccount(t *testing.T) {
	service, _ := NewAccountService(memory.NewAccountRepository(), memory.NewRail(nil), testConfig())
	if _, err := service.RefreshAccountStatus(context.Background(), "acct_missing"); err == nil {
		t.Fatal("expected rail error for unknown account")
	}
}

func TestRefreshAccountStatus_EmptyID(t *testing.T) {
	service, _ := NewAccountService(memory.NewAccountRepository(), memory.NewRail(nil), testConfig())
	if _, err := service.RefreshAccountStatus(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}
