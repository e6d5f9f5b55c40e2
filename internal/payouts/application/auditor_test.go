package application

import (
	"context"
	"testing"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/memory"
)

func railTransfer(t *testing.T, rail *memory.Rail, statementID string, amountMinor int64) string {
	t.Helper()
	id, err := rail.CreateTransfer(context.Background(), payouts.TransferParams{
		AmountMinor:          amountMinor,
		Currency:             "usd",
		DestinationAccountID: "acct_1",
		Metadata:             map[string]string{"statement_id": statementID},
	})
	if err != nil {
		t.Fatalf("create transfer: %v", err)
	}
	return id
}

func paidStatement(id, transferID string, total float64) payouts.Statement {
	stmt := finalStatement(id, total)
	stmt.PayoutStatus = payouts.PayoutStatusPaid
	stmt.PayoutTransferID = transferID
	stmt.TotalTransferAmount = total
	stmt.PaidAt = time.Now().UTC()
	return stmt
}

func TestAudit_CleanRunFindsNothing(t *testing.T) {
	statements := memory.NewStatementRepository()
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	transferID := railTransfer(t, rail, "stmt-1", 50125)
	statements.Put(paidStatement("stmt-1", transferID, 501.25))

	auditor, err := NewSettlementAuditor(statements, rail, testLogger())
	if err != nil {
		t.Fatalf("auditor: %v", err)
	}
	discrepancies, err := auditor.Audit(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(discrepancies) != 0 {
		t.Fatalf("expected clean audit, got %v", discrepancies)
	}
}

func TestAudit_PaidButMissingOnRail(t *testing.T) {
	statements := memory.NewStatementRepository()
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	statements.Put(paidStatement("stmt-1", "tr_gone", 501.25))

	auditor, _ := NewSettlementAuditor(statements, rail, testLogger())
	discrepancies, err := auditor.Audit(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(discrepancies) != 1 {
		t.Fatalf("expected one discrepancy, got %d", len(discrepancies))
	}
	if discrepancies[0].Kind != DiscrepancyMissingOnRail {
		t.Fatalf("expected %s, got %s", DiscrepancyMissingOnRail, discrepancies[0].Kind)
	}
	if discrepancies[0].StatementID != "stmt-1" {
		t.Fatalf("unexpected statement %s", discrepancies[0].StatementID)
	}
}

func TestAudit_AmountMismatch(t *testing.T) {
	statements := memory.NewStatementRepository()
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	transferID := railTransfer(t, rail, "stmt-1", 50125)
	statements.Put(paidStatement("stmt-1", transferID, 600.00))

	auditor, _ := NewSettlementAuditor(statements, rail, testLogger())
	discrepancies, err := auditor.Audit(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(discrepancies) != 1 || discrepancies[0].Kind != DiscrepancyAmountMismatch {
		t.Fatalf("expected amount mismatch, got %v", discrepancies)
	}
}

func TestAudit_UnclaimedRailTransfer(t *testing.T) {
	statements := memory.NewStatementRepository()
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	railTransfer(t, rail, "stmt-orphan", 50125)

	// The local statement never recorded the settlement: the timeout-debt
	// case where the rail executed but the caller died before persisting.
	failed := finalStatement("stmt-orphan", 500.00)
	failed.PayoutStatus = payouts.PayoutStatusFailed
	failed.PayoutError = "context deadline exceeded"
	statements.Put(failed)

	auditor, _ := NewSettlementAuditor(statements, rail, testLogger())
	discrepancies, err := auditor.Audit(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(discrepancies) != 1 || discrepancies[0].Kind != DiscrepancyUnknownTransfer {
		t.Fatalf("expected unknown transfer, got %v", discrepancies)
	}
	if discrepancies[0].StatementID != "stmt-orphan" {
		t.Fatalf("expected stmt-orphan, got %s", discrepancies[0].StatementID)
	}
}

func TestAudit_IgnoresTransfersBeforeWindow(t *testing.T) {
	statements := memory.NewStatementRepository()
	rail := memory.NewRail(map[string]int64{"usd": 100_000_00})
	railTransfer(t, rail, "stmt-old", 50125)

	auditor, _ := NewSettlementAuditor(statements, rail, testLogger())
	discrepancies, err := auditor.Audit(context.Background(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(discrepancies) != 0 {
		t.Fatalf("expected nothing inside the window, got %v", discrepancies)
	}
}
