package application

import (
	"context"
	"errors"
	"log"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// Discrepancy is one mismatch between local payout state and the rail's
// transaction log.
type Discrepancy struct {
	StatementID      string `json:"statement_id,omitempty"`
	PayoutTransferID string `json:"payout_transfer_id,omitempty"`
	RailTransferID   string `json:"rail_transfer_id,omitempty"`
	Kind             string `json:"kind"`
	Detail           string `json:"detail"`
}

// Discrepancy kinds.
const (
	DiscrepancyMissingOnRail   = "missing_on_rail"
	DiscrepancyAmountMismatch  = "amount_mismatch"
	DiscrepancyUnknownTransfer = "unknown_transfer"
)

// SettlementAuditor compares settled statements against the rail's transfer
// log. A rail call that the caller never saw complete (timeout) may still
// have executed; this is the periodic check that surfaces such debt. The
// auditor is read-only and never mutates statements.
type SettlementAuditor struct {
	statements payouts.StatementRepository
	transfers  payouts.TransferLog
	logger     *log.Logger
}

// NewSettlementAuditor constructs an auditor.
func NewSettlementAuditor(statements payouts.StatementRepository, transfers payouts.TransferLog, logger *log.Logger) (*SettlementAuditor, error) {
	if statements == nil {
		return nil, errors.New("settlement auditor: nil statement repository")
	}
	if transfers == nil {
		return nil, errors.New("settlement auditor: nil transfer log")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SettlementAuditor{statements: statements, transfers: transfers, logger: logger}, nil
}

// Audit cross-checks paid statements against rail transfers created since
// the given time.
func (a *SettlementAuditor) Audit(ctx context.Context, since time.Time) ([]Discrepancy, error) {
	records, err := a.transfers.ListTransfers(ctx, since)
	if err != nil {
		return nil, err
	}
	byTransferID := make(map[string]payouts.TransferRecord, len(records))
	for _, record := range records {
		byTransferID[record.ID] = record
	}

	paid, err := a.statements.ListByPayoutStatus(ctx, payouts.PayoutStatusPaid)
	if err != nil {
		return nil, err
	}

	var discrepancies []Discrepancy
	claimed := make(map[string]bool, len(paid))
	for _, stmt := range paid {
		if stmt.PaidAt.Before(since) {
			continue
		}
		record, ok := byTransferID[stmt.PayoutTransferID]
		if !ok {
			discrepancies = append(discrepancies, Discrepancy{
				StatementID:      stmt.ID,
				PayoutTransferID: stmt.PayoutTransferID,
				Kind:             DiscrepancyMissingOnRail,
				Detail:           "statement marked paid but transfer not in rail log",
			})
			continue
		}
		claimed[record.ID] = true
		if record.AmountMinor != payouts.MinorUnits(stmt.TotalTransferAmount) {
			discrepancies = append(discrepancies, Discrepancy{
				StatementID:      stmt.ID,
				PayoutTransferID: stmt.PayoutTransferID,
				RailTransferID:   record.ID,
				Kind:             DiscrepancyAmountMismatch,
				Detail:           "local total does not match rail amount",
			})
		}
	}

	for _, record := range records {
		if claimed[record.ID] {
			continue
		}
		// Transfers carrying our statement metadata but unclaimed locally are
		// the timeout-debt case: the rail executed, we never recorded it.
		if statementID := record.Metadata["statement_id"]; statementID != "" {
			discrepancies = append(discrepancies, Discrepancy{
				StatementID:    statementID,
				RailTransferID: record.ID,
				Kind:           DiscrepancyUnknownTransfer,
				Detail:         "rail transfer references a statement not marked paid",
			})
		}
	}

	if len(discrepancies) > 0 {
		a.logger.Printf("settlement audit found %d discrepancies since %s", len(discrepancies), since.Format(time.RFC3339))
	}
	return discrepancies, nil
}
