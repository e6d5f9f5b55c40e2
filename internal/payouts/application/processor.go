package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SettlementResult reports the outcome of one statement settlement.
type SettlementResult struct {
	StatementID         string  `json:"statement_id"`
	PayoutStatus        string  `json:"payout_status"`
	PayoutTransferID    string  `json:"payout_transfer_id,omitempty"`
	StripeFee           float64 `json:"stripe_fee"`
	TotalTransferAmount float64 `json:"total_transfer_amount"`
	AlreadySettled      bool    `json:"already_settled"`
}

// SettlementProcessor executes a single statement settlement against the
// rail, with idempotency and status persistence. Retrying is the caller's
// responsibility; every attempt starts by re-reading persisted state.
type SettlementProcessor struct {
	statements  payouts.StatementRepository
	resolver    *AccountResolver
	fees        payouts.FeeCalculator
	rail        payouts.Rail
	railTimeout time.Duration
	currency    string
	clock       Clock
	logger      *log.Logger
}

// NewSettlementProcessor constructs a processor.
func NewSettlementProcessor(
	statements payouts.StatementRepository,
	resolver *AccountResolver,
	fees payouts.FeeCalculator,
	rail payouts.Rail,
	cfg Config,
	clock Clock,
	logger *log.Logger,
) (*SettlementProcessor, error) {
	if statements == nil {
		return nil, errors.New("settlement processor: nil statement repository")
	}
	if resolver == nil {
		return nil, errors.New("settlement processor: nil resolver")
	}
	if rail == nil {
		return nil, errors.New("settlement processor: nil rail")
	}
	if clock == nil {
		return nil, errors.New("settlement processor: nil clock")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SettlementProcessor{
		statements:  statements,
		resolver:    resolver,
		fees:        fees,
		rail:        rail,
		railTimeout: cfg.RailTimeout,
		currency:    cfg.DefaultCurrency,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Settle moves funds for one statement in the requested direction.
//
// Already-settled statements return the existing receipt without any rail
// call. The transition to pending is a conditional update; losing it means
// another caller owns the attempt and this one aborts with ErrStatusConflict.
func (p *SettlementProcessor) Settle(ctx context.Context, statementID string, direction payouts.Direction) (SettlementResult, error) {
	start := p.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettle(result, time.Since(start))
	}()

	stmt, err := p.statements.GetByID(ctx, statementID)
	if err != nil {
		result = metrics.ResultError
		return SettlementResult{}, err
	}
	if stmt == nil {
		result = metrics.ResultError
		return SettlementResult{}, payouts.ErrStatementNotFound
	}
	if stmt.IsSettled() {
		return SettlementResult{
			StatementID:         stmt.ID,
			PayoutStatus:        stmt.PayoutStatus,
			PayoutTransferID:    stmt.PayoutTransferID,
			StripeFee:           stmt.StripeFee,
			TotalTransferAmount: stmt.TotalTransferAmount,
			AlreadySettled:      true,
		}, nil
	}

	if stmt.Status != payouts.StatementStatusFinal {
		result = metrics.ResultError
		return SettlementResult{}, payouts.ErrNotFinal
	}
	implied, err := payouts.DirectionFor(stmt.OwnerPayout)
	if err != nil {
		result = metrics.ResultError
		return SettlementResult{}, err
	}
	if direction == "" {
		direction = implied
	}
	if direction != implied {
		result = metrics.ResultError
		return SettlementResult{}, payouts.ErrDirectionMismatch
	}

	destination, err := p.resolver.Resolve(ctx, stmt)
	if err != nil {
		result = metrics.ResultError
		if errors.Is(err, payouts.ErrNoListing) || errors.Is(err, payouts.ErrNoAccount) {
			if markErr := p.statements.MarkFailed(ctx, stmt.ID, err.Error()); markErr != nil {
				p.logger.Printf("settle %s: mark failed error: %v", stmt.ID, markErr)
			}
		}
		return SettlementResult{}, err
	}

	moved, err := p.statements.TransitionStatus(ctx, stmt.ID, payouts.PayoutStatusPending, payouts.SettleEligiblePriors())
	if err != nil {
		result = metrics.ResultError
		return SettlementResult{}, err
	}
	if !moved {
		result = metrics.ResultError
		return SettlementResult{}, payouts.ErrStatusConflict
	}

	currency := stmt.Currency
	if currency == "" {
		currency = p.currency
	}

	railCtx, cancel := context.WithTimeout(ctx, p.railTimeout)
	defer cancel()

	var (
		transferID  string
		fee         float64
		total       float64
		finalStatus string
	)
	switch direction {
	case payouts.DirectionTransfer:
		fee = p.fees.TransferFee(stmt.OwnerPayout)
		total = stmt.OwnerPayout + fee
		amountMinor := payouts.MinorUnits(total)
		transferID, err = p.rail.CreateTransfer(railCtx, payouts.TransferParams{
			AmountMinor:          amountMinor,
			Currency:             currency,
			DestinationAccountID: destination,
			IdempotencyKey:       idempotencyKey(stmt.ID, direction, amountMinor, destination),
			Metadata:             settlementMetadata(stmt),
		})
		finalStatus = payouts.PayoutStatusPaid
	case payouts.DirectionCollect:
		fee = 0
		total = p.fees.CollectionAmount(stmt.OwnerPayout)
		amountMinor := payouts.MinorUnits(total)
		transferID, err = p.rail.CreateCharge(railCtx, payouts.ChargeParams{
			AmountMinor:     amountMinor,
			Currency:        currency,
			SourceAccountID: destination,
			IdempotencyKey:  idempotencyKey(stmt.ID, direction, amountMinor, destination),
			Metadata:        settlementMetadata(stmt),
		})
		finalStatus = payouts.PayoutStatusCollected
	default:
		result = metrics.ResultError
		return SettlementResult{}, payouts.ErrDirectionMismatch
	}
	if err != nil {
		result = metrics.ResultError
		metrics.IncRailError(string(payouts.RailErrorKindOf(err)))
		if markErr := p.statements.MarkFailed(ctx, stmt.ID, err.Error()); markErr != nil {
			p.logger.Printf("settle %s: mark failed error: %v", stmt.ID, markErr)
		}
		return SettlementResult{}, err
	}

	update := payouts.SettledUpdate{
		PayoutStatus:        finalStatus,
		PayoutTransferID:    transferID,
		StripeFee:           fee,
		TotalTransferAmount: total,
		PaidAt:              p.clock.Now().UTC(),
	}
	if _, err := p.statements.MarkSettled(ctx, stmt.ID, update); err != nil {
		// The rail call succeeded; surface the persistence failure so the
		// audit can reconcile the dangling transfer.
		result = metrics.ResultError
		p.logger.Printf("settle %s: transfer %s succeeded but persist failed: %v", stmt.ID, transferID, err)
		return SettlementResult{}, err
	}

	p.logger.Printf("settled statement %s: %s %s %.2f %s", stmt.ID, direction, transferID, total, currency)
	return SettlementResult{
		StatementID:         stmt.ID,
		PayoutStatus:        finalStatus,
		PayoutTransferID:    transferID,
		StripeFee:           fee,
		TotalTransferAmount: total,
	}, nil
}

func settlementMetadata(stmt *payouts.Statement) map[string]string {
	meta := map[string]string{
		"statement_id": stmt.ID,
	}
	if stmt.OwnerName != "" {
		meta["owner_name"] = stmt.OwnerName
	}
	if stmt.PropertyName != "" {
		meta["property_name"] = stmt.PropertyName
	}
	if period := stmt.Period(); period != "" {
		meta["period"] = period
	}
	return meta
}

// idempotencyKey derives a deterministic key from the attempt's identity so a
// retried rail call cannot duplicate an effect.
func idempotencyKey(statementID string, direction payouts.Direction, amountMinor int64, destination string) string {
	base := fmt.Sprintf("%s|%s|%d|%s", statementID, direction, amountMinor, destination)
	sum := sha256.Sum256([]byte(base))
	return "settle-" + hex.EncodeToString(sum[:16])
}
