package notify

import "context"

// AlertMessage represents an operations notification payload.
type AlertMessage struct {
	Event               string            `json:"event"`
	BatchID             string            `json:"batch_id,omitempty"`
	StatementIDs        []string          `json:"statement_ids,omitempty"`
	Queued              int               `json:"queued,omitempty"`
	Processed           int               `json:"processed,omitempty"`
	Failed              int               `json:"failed,omitempty"`
	TopUpIDs            []string          `json:"topup_ids,omitempty"`
	ShortfallByCurrency map[string]int64  `json:"shortfall_by_currency,omitempty"`
	Detail              string            `json:"detail,omitempty"`
	Meta                map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, AlertMessage) error { return nil }
