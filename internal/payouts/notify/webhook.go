package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier sends alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	content := formatAlertMessage(msg)
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatAlertMessage(msg AlertMessage) string {
	var b strings.Builder
	b.WriteString("[Payout Alert]\n")
	if msg.Event != "" {
		fmt.Fprintf(&b, "Event: %s\n", msg.Event)
	}
	if msg.BatchID != "" {
		fmt.Fprintf(&b, "Batch: %s\n", msg.BatchID)
	}
	if msg.Processed > 0 || msg.Failed > 0 || msg.Queued > 0 {
		fmt.Fprintf(&b, "Processed: %d Failed: %d Queued: %d\n", msg.Processed, msg.Failed, msg.Queued)
	}
	if len(msg.TopUpIDs) > 0 {
		fmt.Fprintf(&b, "Top-ups: %s\n", strings.Join(msg.TopUpIDs, ", "))
	}
	if len(msg.ShortfallByCurrency) > 0 {
		currencies := make([]string, 0, len(msg.ShortfallByCurrency))
		for currency := range msg.ShortfallByCurrency {
			currencies = append(currencies, currency)
		}
		sort.Strings(currencies)
		parts := make([]string, 0, len(currencies))
		for _, currency := range currencies {
			parts = append(parts, fmt.Sprintf("%s %d", currency, msg.ShortfallByCurrency[currency]))
		}
		fmt.Fprintf(&b, "Shortfall: %s\n", strings.Join(parts, ", "))
	}
	if msg.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", msg.Detail)
	}
	if len(msg.StatementIDs) > 0 {
		fmt.Fprintf(&b, "Statements: %s\n", strings.Join(msg.StatementIDs, ", "))
	}
	return strings.TrimSpace(b.String())
}
