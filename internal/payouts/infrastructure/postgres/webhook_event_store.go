package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultWebhookEventsTable = "rail_webhook_events"

// WebhookEventStore deduplicates rail webhook deliveries. The rail may
// re-deliver an event; each one must trigger at most one drain.
type WebhookEventStore struct {
	db    *sql.DB
	table string
}

// WebhookEventOption configures the store.
type WebhookEventOption func(*WebhookEventStore)

// WithWebhookEventsTable overrides the table name.
func WithWebhookEventsTable(table string) WebhookEventOption {
	return func(store *WebhookEventStore) {
		if table != "" {
			store.table = table
		}
	}
}

// NewWebhookEventStore constructs a store.
func NewWebhookEventStore(db *sql.DB, opts ...WebhookEventOption) *WebhookEventStore {
	store := &WebhookEventStore{db: db, table: defaultWebhookEventsTable}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// HasProcessed checks whether the event was already handled.
func (s *WebhookEventStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	if s == nil || s.db == nil {
		return false, errors.New("webhook event store: nil db")
	}
	if eventID == "" {
		return false, errors.New("webhook event store: empty event id")
	}
	query := fmt.Sprintf(`
SELECT EXISTS (
	SELECT 1 FROM %s WHERE event_id = $1
)`, s.table)
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkProcessed records an event as handled.
func (s *WebhookEventStore) MarkProcessed(ctx context.Context, eventID, eventType string) error {
	if s == nil || s.db == nil {
		return errors.New("webhook event store: nil db")
	}
	if eventID == "" {
		return errors.New("webhook event store: empty event id")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (event_id, event_type, processed_at)
VALUES ($1, $2, $3)
ON CONFLICT (event_id)
DO NOTHING`, s.table)
	_, err := s.db.ExecContext(ctx, query, eventID, eventType, time.Now().UTC())
	return err
}
