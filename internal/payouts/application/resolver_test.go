package application

import (
	"context"
	"errors"
	"testing"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/memory"
)

func TestResolve_GroupAccountWins(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutGroupAccount("group-1", payouts.PaymentAccount{DestinationAccountID: "acct_group"})
	accounts.PutListingAccount("prop-1", payouts.PaymentAccount{DestinationAccountID: "acct_listing"})
	resolver, err := NewAccountResolver(accounts)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}

	stmt := &payouts.Statement{ID: "stmt-1", GroupID: "group-1", PropertyID: "prop-1"}
	destination, err := resolver.Resolve(context.Background(), stmt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if destination != "acct_group" {
		t.Fatalf("expected group account, got %s", destination)
	}
}

func TestResolve_FallsBackToListing(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutListingAccount("prop-1", payouts.PaymentAccount{DestinationAccountID: "acct_listing"})
	resolver, _ := NewAccountResolver(accounts)

	stmt := &payouts.Statement{ID: "stmt-1", GroupID: "group-unknown", PropertyID: "prop-1"}
	destination, err := resolver.Resolve(context.Background(), stmt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if destination != "acct_listing" {
		t.Fatalf("expected listing account, got %s", destination)
	}
}

func TestResolve_EmptyGroupDestinationFallsThrough(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutGroupAccount("group-1", payouts.PaymentAccount{})
	accounts.PutListingAccount("prop-1", payouts.PaymentAccount{DestinationAccountID: "acct_listing"})
	resolver, _ := NewAccountResolver(accounts)

	stmt := &payouts.Statement{ID: "stmt-1", GroupID: "group-1", PropertyID: "prop-1"}
	destination, err := resolver.Resolve(context.Background(), stmt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if destination != "acct_listing" {
		t.Fatalf("expected listing account, got %s", destination)
	}
}

func TestResolve_NoListing(t *testing.T) {
	resolver, _ := NewAccountResolver(memory.NewAccountRepository())
	stmt := &payouts.Statement{ID: "stmt-1"}
	if _, err := resolver.Resolve(context.Background(), stmt); !errors.Is(err, payouts.ErrNoListing) {
		t.Fatalf("expected ErrNoListing, got %v", err)
	}
}

func TestResolve_NoConfiguredAccount(t *testing.T) {
	resolver, _ := NewAccountResolver(memory.NewAccountRepository())
	stmt := &payouts.Statement{ID: "stmt-1", PropertyID: "prop-1"}
	if _, err := resolver.Resolve(context.Background(), stmt); !errors.Is(err, payouts.ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
}

func TestResolve_FirstPropertyIDUsed(t *testing.T) {
	accounts := memory.NewAccountRepository()
	accounts.PutListingAccount("prop-a", payouts.PaymentAccount{DestinationAccountID: "acct_a"})
	resolver, _ := NewAccountResolver(accounts)

	stmt := &payouts.Statement{ID: "stmt-1", PropertyIDs: []string{"prop-a", "prop-b"}}
	destination, err := resolver.Resolve(context.Background(), stmt)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if destination != "acct_a" {
		t.Fatalf("expected acct_a, got %s", destination)
	}
}
