package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
)

// EventStore records processed webhook event ids for dedup.
type EventStore interface {
	HasProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string) error
}

// WebhookHandler consumes payment rail events. Top-up arrival triggers a
// queue drain; account updates refresh onboarding status.
type WebhookHandler struct {
	drainer  *payoutapp.QueueDrainer
	accounts *payoutapp.AccountService
	events   EventStore
	logger   *log.Logger
}

// NewWebhookHandler constructs a webhook handler.
func NewWebhookHandler(drainer *payoutapp.QueueDrainer, accounts *payoutapp.AccountService, events EventStore, logger *log.Logger) (*WebhookHandler, error) {
	if drainer == nil {
		return nil, errors.New("rail webhook: nil drainer")
	}
	if events == nil {
		return nil, errors.New("rail webhook: nil event store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &WebhookHandler{drainer: drainer, accounts: accounts, events: events, logger: logger}, nil
}

type railEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		AccountID string `json:"account_id"`
		TopUpID   string `json:"topup_id"`
		Currency  string `json:"currency"`
	} `json:"data"`
}

// ServeHTTP handles POST /webhooks/rail.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var event railEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if event.ID == "" || event.Type == "" {
		http.Error(w, "id and type are required", http.StatusBadRequest)
		return
	}

	seen, err := h.events.HasProcessed(r.Context(), event.ID)
	if err != nil {
		metrics.IncWebhookEvent(event.Type, "error")
		http.Error(w, "event store error", http.StatusInternalServerError)
		return
	}
	if seen {
		metrics.IncWebhookEvent(event.Type, "duplicate")
		writeJSON(w, map[string]string{"status": "duplicate"})
		return
	}

	disposition, status, body := h.dispatch(r.Context(), event)
	if status < 300 {
		if err := h.events.MarkProcessed(r.Context(), event.ID, event.Type); err != nil {
			h.logger.Printf("rail webhook: mark processed failed event=%s err=%v", event.ID, err)
		}
	}
	metrics.IncWebhookEvent(event.Type, disposition)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (h *WebhookHandler) dispatch(ctx context.Context, event railEvent) (string, int, any) {
	switch event.Type {
	case "topup.succeeded":
		result, err := h.drainer.Drain(ctx)
		if err != nil && !result.Aborted {
			h.logger.Printf("rail webhook: drain failed event=%s err=%v", event.ID, err)
			return "error", http.StatusInternalServerError, map[string]string{"error": err.Error()}
		}
		// A still-insufficient balance is acknowledged, not retried: the
		// next top-up event drains again.
		return "processed", http.StatusOK, result
	case "account.updated":
		if h.accounts == nil || event.Data.AccountID == "" {
			return "ignored", http.StatusOK, map[string]string{"status": "ignored"}
		}
		status, err := h.accounts.RefreshAccountStatus(ctx, event.Data.AccountID)
		if err != nil {
			h.logger.Printf("rail webhook: account refresh failed account=%s err=%v", event.Data.AccountID, err)
			return "error", http.StatusInternalServerError, map[string]string{"error": err.Error()}
		}
		return "processed", http.StatusOK, map[string]string{
			"destination_account_id": event.Data.AccountID,
			"onboarding_status":      status,
		}
	default:
		return "ignored", http.StatusOK, map[string]string{"status": "ignored"}
	}
}
