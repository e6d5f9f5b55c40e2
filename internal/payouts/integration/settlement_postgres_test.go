package integration_test

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"testing"
	"time"

	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/memory"
	payoutrepo "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type testClock struct{}

func (testClock) Now() time.Time { return time.Now().UTC() }

func TestSettlementClosedLoop_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "owner_statements") ||
		!tableExists(db, "listing_payment_accounts") ||
		!tableExists(db, "group_payment_accounts") ||
		!tableExists(db, "rail_webhook_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	statementID := "stmt-it-settle"
	listingID := "prop-it-settle"

	_, _ = db.ExecContext(ctx, "DELETE FROM owner_statements WHERE id = $1", statementID)
	_, _ = db.ExecContext(ctx, "DELETE FROM listing_payment_accounts WHERE listing_id = $1", listingID)

	if _, err := db.ExecContext(ctx, `
INSERT INTO owner_statements (id, owner_payout, currency, status, property_id, owner_name,
	week_start_date, week_end_date, payout_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		statementID, 500.00, "usd", payouts.StatementStatusFinal, listingID, "Jordan Smith",
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		payouts.PayoutStatusMissing); err != nil {
		t.Fatalf("insert statement: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
INSERT INTO listing_payment_accounts (listing_id, destination_account_id, onboarding_status)
VALUES ($1, $2, $3)`, listingID, "acct_it_1", payouts.OnboardingStatusVerified); err != nil {
		t.Fatalf("insert account: %v", err)
	}

	statements := payoutrepo.NewStatementRepository(db)
	accounts := payoutrepo.NewAccountRepository(db)
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	rail.SetAccount(payouts.AccountInfo{ID: "acct_it_1", ChargesEnabled: true, PayoutsEnabled: true})

	cfg := payoutapp.Config{
		FeeRate:         0.0025,
		TopUpBufferPct:  0.05,
		DefaultCurrency: "usd",
		RailTimeout:     5 * time.Second,
	}
	logger := log.New(io.Discard, "", 0)
	resolver, err := payoutapp.NewAccountResolver(accounts)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	processor, err := payoutapp.NewSettlementProcessor(statements, resolver, payouts.NewFeeCalculator(cfg.FeeRate), rail, cfg, testClock{}, logger)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}

	result, err := processor.Settle(ctx, statementID, "")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if result.PayoutStatus != payouts.PayoutStatusPaid {
		t.Fatalf("payout status %q", result.PayoutStatus)
	}
	if result.StripeFee != 1.25 || result.TotalTransferAmount != 501.25 {
		t.Fatalf("fee math: %+v", result)
	}

	stored, err := statements.GetByID(ctx, statementID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored == nil || stored.PayoutStatus != payouts.PayoutStatusPaid {
		t.Fatalf("stored %+v", stored)
	}
	if stored.PayoutTransferID == "" || stored.PaidAt.IsZero() {
		t.Fatalf("settlement fields not persisted: %+v", stored)
	}

	// Repeat is a no-op against the terminal row: no new rail call.
	calls := rail.TransferCalls()
	second, err := processor.Settle(ctx, statementID, "")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if !second.AlreadySettled {
		t.Fatalf("expected already settled, got %+v", second)
	}
	if rail.TransferCalls() != calls {
		t.Fatalf("repeat settle hit the rail: %d vs %d", rail.TransferCalls(), calls)
	}
}

func TestWebhookEventStore_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "rail_webhook_events") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	eventID := "evt-it-dedup"
	_, _ = db.ExecContext(ctx, "DELETE FROM rail_webhook_events WHERE event_id = $1", eventID)

	store := payoutrepo.NewWebhookEventStore(db)
	seen, err := store.HasProcessed(ctx, eventID)
	if err != nil {
		t.Fatalf("has processed: %v", err)
	}
	if seen {
		t.Fatal("fresh event reported as processed")
	}
	if err := store.MarkProcessed(ctx, eventID, "topup.succeeded"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	// Re-delivery is a conflict no-op.
	if err := store.MarkProcessed(ctx, eventID, "topup.succeeded"); err != nil {
		t.Fatalf("mark again: %v", err)
	}
	seen, err = store.HasProcessed(ctx, eventID)
	if err != nil {
		t.Fatalf("has processed: %v", err)
	}
	if !seen {
		t.Fatal("processed event not found")
	}
}

func tableExists(db *sql.DB, table string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, table).Scan(&exists)
	if err != nil {
		return false
	}
	return exists
}
