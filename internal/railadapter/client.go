package railadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// Client is a REST client for the payment rail. It implements the Rail and
// TransferLog interfaces with typed error classification.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a rail client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("railadapter: empty base url")
	}
	if apiKey == "" {
		return nil, errors.New("railadapter: empty api key")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// RetrieveBalance returns the platform's available balance in minor units.
func (c *Client) RetrieveBalance(ctx context.Context, currency string) (int64, error) {
	var resp balanceResponse
	path := "/v1/balance?currency=" + url.QueryEscape(currency)
	if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Available, nil
}

// CreateTopUp funds the platform account.
func (c *Client) CreateTopUp(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (payouts.TopUpReceipt, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"metadata": metadata,
	}
	var resp topUpResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/topups", "", body, &resp); err != nil {
		return payouts.TopUpReceipt{}, err
	}
	receipt := payouts.TopUpReceipt{
		ID:          resp.ID,
		AmountMinor: resp.Amount,
		Currency:    resp.Currency,
	}
	if resp.ExpectedAvailabilityDate > 0 {
		receipt.ExpectedAvailability = time.Unix(resp.ExpectedAvailabilityDate, 0).UTC()
	}
	return receipt, nil
}

// CreateTransfer moves funds to an owner's destination account.
func (c *Client) CreateTransfer(ctx context.Context, params payouts.TransferParams) (string, error) {
	body := map[string]any{
		"amount":      params.AmountMinor,
		"currency":    params.Currency,
		"destination": params.DestinationAccountID,
		"metadata":    params.Metadata,
	}
	var resp idResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/transfers", params.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateCharge collects funds from an owner's account.
func (c *Client) CreateCharge(ctx context.Context, params payouts.ChargeParams) (string, error) {
	body := map[string]any{
		"amount":   params.AmountMinor,
		"currency": params.Currency,
		"source":   params.SourceAccountID,
		"metadata": params.Metadata,
	}
	var resp idResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/charges", params.IdempotencyKey, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RetrieveAccount fetches the rail's view of a connected account.
func (c *Client) RetrieveAccount(ctx context.Context, accountID string) (payouts.AccountInfo, error) {
	if accountID == "" {
		return payouts.AccountInfo{}, errors.New("railadapter: empty account id")
	}
	var resp accountResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/accounts/"+url.PathEscape(accountID), "", nil, &resp); err != nil {
		return payouts.AccountInfo{}, err
	}
	return payouts.AccountInfo{
		ID:             resp.ID,
		ChargesEnabled: resp.ChargesEnabled,
		PayoutsEnabled: resp.PayoutsEnabled,
		Requirements:   resp.Requirements.CurrentlyDue,
	}, nil
}

// ListTransfers pages through the rail's transfer log since the given time.
func (c *Client) ListTransfers(ctx context.Context, since time.Time) ([]payouts.TransferRecord, error) {
	var out []payouts.TransferRecord
	startingAfter := ""
	for {
		path := fmt.Sprintf("/v1/transfers?created_gte=%d&limit=100", since.Unix())
		if startingAfter != "" {
			path += "&starting_after=" + url.QueryEscape(startingAfter)
		}
		var resp transferListResponse
		if err := c.doJSON(ctx, http.MethodGet, path, "", nil, &resp); err != nil {
			return nil, err
		}
		for _, item := range resp.Data {
			out = append(out, payouts.TransferRecord{
				ID:          item.ID,
				AmountMinor: item.Amount,
				Currency:    item.Currency,
				Destination: item.Destination,
				Metadata:    item.Metadata,
				CreatedAt:   time.Unix(item.Created, 0).UTC(),
			})
		}
		if !resp.HasMore || len(resp.Data) == 0 {
			break
		}
		startingAfter = resp.Data[len(resp.Data)-1].ID
	}
	return out, nil
}

type balanceResponse struct {
	Available int64  `json:"available"`
	Currency  string `json:"currency"`
}

type topUpResponse struct {
	ID                       string `json:"id"`
	Amount                   int64  `json:"amount"`
	Currency                 string `json:"currency"`
	ExpectedAvailabilityDate int64  `json:"expected_availability_date"`
}

type idResponse struct {
	ID string `json:"id"`
}

type accountResponse struct {
	ID             string `json:"id"`
	ChargesEnabled bool   `json:"charges_enabled"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
	Requirements   struct {
		CurrentlyDue []string `json:"currently_due"`
	} `json:"requirements"`
}

type transferListResponse struct {
	Data []struct {
		ID          string            `json:"id"`
		Amount      int64             `json:"amount"`
		Currency    string            `json:"currency"`
		Destination string            `json:"destination"`
		Metadata    map[string]string `json:"metadata"`
		Created     int64             `json:"created"`
	} `json:"data"`
	HasMore bool `json:"has_more"`
}

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doJSON(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &payouts.RailError{Kind: payouts.RailErrorOther, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return classifyHTTPError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// classifyHTTPError maps HTTP failures onto typed rail error kinds so
// callers never branch on message text.
func classifyHTTPError(resp *http.Response) error {
	var envelope errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	message := envelope.Error.Message
	if message == "" {
		message = fmt.Sprintf("http %d", resp.StatusCode)
	}

	kind := payouts.RailErrorOther
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = payouts.RailErrorAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = payouts.RailErrorRateLimit
	case resp.StatusCode == http.StatusPaymentRequired || envelope.Error.Code == "insufficient_funds" || envelope.Error.Code == "balance_insufficient":
		kind = payouts.RailErrorInsufficientFunds
	}
	return &payouts.RailError{Kind: kind, Message: message}
}
