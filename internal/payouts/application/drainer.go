package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/notify"
)

// ReasonNoLongerFinal is persisted on queued statements whose parent record
// was reverted or moved on before the drain reached them.
const ReasonNoLongerFinal = "Statement is no longer final"

// DrainResult reports one queue drain run.
type DrainResult struct {
	Processed           int              `json:"processed"`
	Failed              int              `json:"failed"`
	Items               []BatchItem      `json:"items,omitempty"`
	Aborted             bool             `json:"aborted"`
	ShortfallByCurrency map[string]int64 `json:"shortfall_by_currency,omitempty"`
}

// QueueDrainer re-validates queued statements and settles them once funds
// arrive. It runs on the top-up-succeeded webhook and on manual trigger.
type QueueDrainer struct {
	statements payouts.StatementRepository
	guard      *BalanceGuard
	processor  *SettlementProcessor
	fees       payouts.FeeCalculator
	currency   string
	clock      Clock
	logger     *log.Logger
	notifier   notify.Notifier
}

// NewQueueDrainer constructs a drainer. A nil notifier discards shortfall
// alerts.
func NewQueueDrainer(
	statements payouts.StatementRepository,
	guard *BalanceGuard,
	processor *SettlementProcessor,
	fees payouts.FeeCalculator,
	cfg Config,
	clock Clock,
	logger *log.Logger,
	notifier notify.Notifier,
) (*QueueDrainer, error) {
	if statements == nil {
		return nil, errors.New("queue drainer: nil statement repository")
	}
	if guard == nil {
		return nil, errors.New("queue drainer: nil balance guard")
	}
	if processor == nil {
		return nil, errors.New("queue drainer: nil processor")
	}
	if clock == nil {
		return nil, errors.New("queue drainer: nil clock")
	}
	if logger == nil {
		logger = log.Default()
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	return &QueueDrainer{
		statements: statements,
		guard:      guard,
		processor:  processor,
		fees:       fees,
		currency:   cfg.DefaultCurrency,
		notifier:   notifier,
		clock:      clock,
		logger:     logger,
	}, nil
}

// Drain settles every currently queued statement. The needed total is
// re-summed for the set as it stands now and the balance re-checked; balances
// can change between top-up initiation and completion, so a still-short run
// aborts without touching any statement. Individual failures never stop the
// run.
func (d *QueueDrainer) Drain(ctx context.Context) (DrainResult, error) {
	start := d.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveDrain(result, time.Since(start))
	}()

	queued, err := d.statements.ListByPayoutStatus(ctx, payouts.PayoutStatusQueued)
	if err != nil {
		result = metrics.ResultError
		return DrainResult{}, err
	}
	if len(queued) == 0 {
		return DrainResult{}, nil
	}

	needed := make(map[string]int64)
	for _, stmt := range queued {
		currency := stmt.Currency
		if currency == "" {
			currency = d.currency
		}
		needed[currency] += payouts.MinorUnits(d.fees.MovedAmount(stmt.OwnerPayout))
	}
	report, err := d.guard.CheckSufficiency(ctx, needed)
	if err != nil {
		result = metrics.ResultError
		return DrainResult{}, err
	}
	if !report.Sufficient {
		result = metrics.ResultError
		d.logger.Printf("queue drain aborted: still short %v", report.ShortfallByCurrency)
		msg := notify.AlertMessage{
			Event:               "payouts.drain_short",
			Queued:              len(queued),
			ShortfallByCurrency: report.ShortfallByCurrency,
			Detail:              "queue drain aborted: balance still insufficient",
		}
		for _, stmt := range queued {
			msg.StatementIDs = append(msg.StatementIDs, stmt.ID)
		}
		if notifyErr := d.notifier.Notify(ctx, msg); notifyErr != nil {
			d.logger.Printf("queue drain: notify error: %v", notifyErr)
		}
		return DrainResult{
			Aborted:             true,
			ShortfallByCurrency: report.ShortfallByCurrency,
		}, fmt.Errorf("%w: %v", payouts.ErrInsufficientBalance, report.ShortfallByCurrency)
	}

	var out DrainResult
	for _, stmt := range queued {
		item := BatchItem{StatementID: stmt.ID}

		// Re-read: the statement may have been reverted to draft or
		// deleted between queuing and draining.
		current, err := d.statements.GetByID(ctx, stmt.ID)
		if err != nil {
			item.PayoutStatus = payouts.PayoutStatusFailed
			item.Error = err.Error()
			out.Failed++
			out.Items = append(out.Items, item)
			continue
		}
		if current == nil || current.Status != payouts.StatementStatusFinal || current.PayoutStatus != payouts.PayoutStatusQueued {
			if current != nil {
				if markErr := d.statements.MarkFailed(ctx, stmt.ID, ReasonNoLongerFinal); markErr != nil {
					d.logger.Printf("drain %s: mark failed error: %v", stmt.ID, markErr)
				}
			}
			item.PayoutStatus = payouts.PayoutStatusFailed
			item.Error = ReasonNoLongerFinal
			out.Failed++
			out.Items = append(out.Items, item)
			continue
		}

		settled, err := d.processor.Settle(ctx, stmt.ID, "")
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
	d.logger.Printf("queue drain: processed=%d failed=%d", out.Processed, out.Failed)
	return out, nil
}
