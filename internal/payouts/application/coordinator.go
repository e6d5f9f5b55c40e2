package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/notify"
)

// Skip reasons reported by FundAndQueue.
const (
	SkipReasonNotFound          = "not found"
	SkipReasonNotFinal          = "not final"
	SkipReasonNonPositivePayout = "non-positive payout"
	SkipReasonAlreadySettled    = "already settled"
	SkipReasonAlreadyQueued     = "already queued"
	SkipReasonNoAccount         = "no Stripe account"
)

// SkippedStatement names a statement excluded from a batch and why.
type SkippedStatement struct {
	StatementID string `json:"statement_id"`
	Reason      string `json:"reason"`
}

// BatchItem is the per-statement outcome inside a batch.
type BatchItem struct {
	StatementID      string `json:"statement_id"`
	PayoutStatus     string `json:"payout_status"`
	PayoutTransferID string `json:"payout_transfer_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

// BatchResult is the single transactional answer to "what happened" for a
// fund-and-queue call: either every valid statement was settled now, or the
// whole valid set was queued behind one top-up.
type BatchResult struct {
	BatchID             string                `json:"batch_id"`
	Queued              bool                  `json:"queued"`
	Processed           int                   `json:"processed"`
	Failed              int                   `json:"failed"`
	Items               []BatchItem           `json:"items,omitempty"`
	Skipped             []SkippedStatement    `json:"skipped,omitempty"`
	NeededByCurrency    map[string]int64      `json:"needed_by_currency,omitempty"`
	ShortfallByCurrency map[string]int64      `json:"shortfall_by_currency,omitempty"`
	TopUps              []payouts.TopUpReceipt `json:"topups,omitempty"`
}

// TopUpCreationError aborts the whole queuing path: no statement status
// changed and the error is surfaced for manual intervention.
type TopUpCreationError struct {
	Currency string
	Err      error
}

func (e *TopUpCreationError) Error() string {
	return fmt.Sprintf("payouts: top-up creation failed for %s: %v", e.Currency, e.Err)
}

func (e *TopUpCreationError) Unwrap() error { return e.Err }

// BatchCoordinator validates a batch of statements and decides between
// settling immediately and queue-and-top-up.
type BatchCoordinator struct {
	statements payouts.StatementRepository
	resolver   *AccountResolver
	guard      *BalanceGuard
	processor  *SettlementProcessor
	fees       payouts.FeeCalculator
	currency   string
	clock      Clock
	logger     *log.Logger
	notifier   notify.Notifier
}

// NewBatchCoordinator constructs a coordinator. A nil notifier discards
// queue alerts.
func NewBatchCoordinator(
	statements payouts.StatementRepository,
	resolver *AccountResolver,
	guard *BalanceGuard,
	processor *SettlementProcessor,
	fees payouts.FeeCalculator,
	cfg Config,
	clock Clock,
	logger *log.Logger,
	notifier notify.Notifier,
) (*BatchCoordinator, error) {
	if statements == nil {
		return nil, errors.New("batch coordinator: nil statement repository")
	}
	if resolver == nil {
		return nil, errors.New("batch coordinator: nil resolver")
	}
	if guard == nil {
		return nil, errors.New("batch coordinator: nil balance guard")
	}
	if processor == nil {
		return nil, errors.New("batch coordinator: nil processor")
	}
	if clock == nil {
		return nil, errors.New("batch coordinator: nil clock")
	}
	if logger == nil {
		logger = log.Default()
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &BatchCoordinator{
		statements: statements,
		resolver:   resolver,
		guard:      guard,
		processor:  processor,
		fees:       fees,
		currency:   cfg.DefaultCurrency,
		clock:      clock,
		logger:     logger,
		notifier:   notifier,
	}, nil
}

// FundAndQueue validates the batch, checks platform balance and either
// settles every valid statement synchronously or queues the whole valid set
// and requests one top-up per short currency. No statement is charged on the
// queue path.
func (c *BatchCoordinator) FundAndQueue(ctx context.Context, statementIDs []string) (BatchResult, error) {
	start := c.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveFundAndQueue(result, time.Since(start))
	}()

	out := BatchResult{BatchID: uuid.NewString()}

	loaded, err := c.statements.GetByIDs(ctx, statementIDs)
	if err != nil {
		result = metrics.ResultError
		return BatchResult{}, err
	}
	byID := make(map[string]payouts.Statement, len(loaded))
	for _, stmt := range loaded {
		byID[stmt.ID] = stmt
	}

	var valid []payouts.Statement
	for _, id := range statementIDs {
		stmt, ok := byID[id]
		if !ok {
			out.Skipped = append(out.Skipped, SkippedStatement{StatementID: id, Reason: SkipReasonNotFound})
			continue
		}
		if reason := c.skipReason(ctx, &stmt); reason != "" {
			out.Skipped = append(out.Skipped, SkippedStatement{StatementID: id, Reason: reason})
			continue
		}
		valid = append(valid, stmt)
	}
	if len(valid) == 0 {
		return out, nil
	}

	needed := make(map[string]int64)
	for _, stmt := range valid {
		currency := stmt.Currency
		if currency == "" {
			currency = c.currency
		}
		needed[currency] += payouts.MinorUnits(c.fees.MovedAmount(stmt.OwnerPayout))
	}
	out.NeededByCurrency = needed

	report, err := c.guard.CheckSufficiency(ctx, needed)
	if err != nil {
		result = metrics.ResultError
		return BatchResult{}, err
	}

	if report.Sufficient {
		for _, stmt := range valid {
			item := BatchItem{StatementID: stmt.ID}
			settled, err := c.processor.Settle(ctx, stmt.ID, "")
			if err != nil {
				item.PayoutStatus = payouts.PayoutStatusFailed
				item.Error = err.Error()
				out.Failed++
			} else {
				item.PayoutStatus = settled.PayoutStatus
				item.PayoutTransferID = settled.PayoutTransferID
				out.Processed++
			}
			out.Items = append(out.Items, item)
		}
		return out, nil
	}

	// Insufficient balance: fund first so a top-up failure leaves every
	// statement untouched, then queue the valid set without any rail charge.
	out.Queued = true
	out.ShortfallByCurrency = report.ShortfallByCurrency
	for currency, shortfall := range report.ShortfallByCurrency {
		receipt, err := c.guard.RequestTopUp(ctx, shortfall, currency, map[string]string{
			"batch_id":   out.BatchID,
			"statements": fmt.Sprintf("%d", len(valid)),
		})
		if err != nil {
			result = metrics.ResultError
			return BatchResult{}, &TopUpCreationError{Currency: currency, Err: err}
		}
		metrics.IncTopUpRequested(currency)
		out.TopUps = append(out.TopUps, receipt)
	}

	for _, stmt := range valid {
		item := BatchItem{StatementID: stmt.ID}
		moved, err := c.statements.TransitionStatus(ctx, stmt.ID, payouts.PayoutStatusQueued, payouts.SettleEligiblePriors())
		switch {
		case err != nil:
			item.PayoutStatus = payouts.PayoutStatusFailed
			item.Error = err.Error()
			out.Failed++
		case !moved:
			item.PayoutStatus = payouts.PayoutStatusFailed
			item.Error = payouts.ErrStatusConflict.Error()
			out.Failed++
		default:
			item.PayoutStatus = payouts.PayoutStatusQueued
			out.Processed++
		}
		out.Items = append(out.Items, item)
	}
	c.logger.Printf("fund-and-queue batch %s: queued %d statements, %d topups", out.BatchID, out.Processed, len(out.TopUps))

	msg := notify.AlertMessage{
		Event:               "payouts.batch_queued",
		BatchID:             out.BatchID,
		Queued:              out.Processed,
		Processed:           out.Processed,
		Failed:              out.Failed,
		ShortfallByCurrency: report.ShortfallByCurrency,
		Detail:              "batch queued behind top-up",
		Meta:                map[string]string{"requested": fmt.Sprintf("%d", len(statementIDs))},
	}
	for _, item := range out.Items {
		if item.PayoutStatus == payouts.PayoutStatusQueued {
			msg.StatementIDs = append(msg.StatementIDs, item.StatementID)
		}
	}
	for _, receipt := range out.TopUps {
		msg.TopUpIDs = append(msg.TopUpIDs, receipt.ID)
	}
	if err := c.notifier.Notify(ctx, msg); err != nil {
		c.logger.Printf("fund-and-queue batch %s: notify error: %v", out.BatchID, err)
	}
	return out, nil
}

// skipReason returns a non-empty reason when the statement cannot join the
// batch. Fund-and-queue only moves positive payouts; collections go through
// single settlement.
func (c *BatchCoordinator) skipReason(ctx context.Context, stmt *payouts.Statement) string {
	if stmt.Status != payouts.StatementStatusFinal {
		return SkipReasonNotFinal
	}
	if stmt.OwnerPayout <= 0 {
		return SkipReasonNonPositivePayout
	}
	if stmt.IsSettled() {
		return SkipReasonAlreadySettled
	}
	if stmt.PayoutStatus == payouts.PayoutStatusQueued {
		return SkipReasonAlreadyQueued
	}
	if _, err := c.resolver.Resolve(ctx, stmt); err != nil {
		return SkipReasonNoAccount
	}
	return ""
}
