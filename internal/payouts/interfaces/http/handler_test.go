package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/audit"
	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/infrastructure/memory"
)

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type recordingAuditLog struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (l *recordingAuditLog) Log(ctx context.Context, entry audit.Entry) error {
	_ = ctx
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

func (l *recordingAuditLog) actions() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for _, entry := range l.entries {
		out = append(out, entry.Action)
	}
	return out
}

type handlerFixture struct {
	handler    *Handler
	statements *memory.StatementRepository
	accounts   *memory.AccountRepository
	rail       *memory.Rail
	auditLog   *recordingAuditLog
}

func newHandlerFixture(t *testing.T, balances map[string]int64) *handlerFixture {
	t.Helper()
	cfg := payoutapp.Config{
		FeeRate:         0.0025,
		TopUpBufferPct:  0.05,
		DefaultCurrency: "usd",
		RailTimeout:     time.Second,
	}
	logger := log.New(io.Discard, "", 0)
	statements := memory.NewStatementRepository()
	accounts := memory.NewAccountRepository()
	rail := memory.NewRail(balances)

	resolver, err := payoutapp.NewAccountResolver(accounts)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	fees := payouts.NewFeeCalculator(cfg.FeeRate)
	processor, err := payoutapp.NewSettlementProcessor(statements, resolver, fees, rail, cfg, realClock{}, logger)
	if err != nil {
		t.Fatalf("processor: %v", err)
	}
	guard, err := payoutapp.NewBalanceGuard(rail, cfg.TopUpBufferPct)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	batch, err := payoutapp.NewBatchCoordinator(statements, resolver, guard, processor, fees, cfg, realClock{}, logger, nil)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	drainer, err := payoutapp.NewQueueDrainer(statements, guard, processor, fees, cfg, realClock{}, logger, nil)
	if err != nil {
		t.Fatalf("drainer: %v", err)
	}
	accountSvc, err := payoutapp.NewAccountService(accounts, rail, cfg)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	auditor, err := payoutapp.NewSettlementAuditor(statements, rail, logger)
	if err != nil {
		t.Fatalf("auditor: %v", err)
	}

	auditLog := &recordingAuditLog{}
	handler, err := NewHandler(processor, batch, drainer, accountSvc, auditor, statements, auditLog, logger)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &handlerFixture{
		handler:    handler,
		statements: statements,
		accounts:   accounts,
		rail:       rail,
		auditLog:   auditLog,
	}
}

func (f *handlerFixture) seed(stmt payouts.Statement, destination string) {
	f.statements.Put(stmt)
	if destination != "" {
		f.accounts.PutListingAccount(stmt.PrimaryPropertyID(), payouts.PaymentAccount{
			DestinationAccountID: destination,
			OnboardingStatus:     payouts.OnboardingStatusVerified,
		})
		f.rail.SetAccount(payouts.AccountInfo{
			ID:             destination,
			ChargesEnabled: true,
			PayoutsEnabled: true,
		})
	}
}

func finalTransfer(id string, payout float64) payouts.Statement {
	return payouts.Statement{
		ID:            id,
		OwnerPayout:   payout,
		Currency:      "usd",
		Status:        payouts.StatementStatusFinal,
		PropertyID:    "prop-" + id,
		OwnerName:     "Jordan Smith",
		WeekStartDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		WeekEndDate:   time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		PayoutStatus:  payouts.PayoutStatusMissing,
	}
}

func doRequest(f *handlerFixture, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleSettle_Success(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 100_000_00})
	f.seed(finalTransfer("stmt-1", 500.00), "acct_1")

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{"statement_id":"stmt-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result payoutapp.SettlementResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.PayoutStatus != payouts.PayoutStatusPaid {
		t.Fatalf("payout status %q", result.PayoutStatus)
	}
	if result.StripeFee != 1.25 || result.TotalTransferAmount != 501.25 {
		t.Fatalf("fee math: %+v", result)
	}
	actions := f.auditLog.actions()
	if len(actions) != 1 || actions[0] != "payouts.settle" {
		t.Fatalf("audit actions %v", actions)
	}
}

func TestHandleSettle_ValidationErrors(t *testing.T) {
	f := newHandlerFixture(t, nil)

	if rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
	if rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id: %d", rec.Code)
	}
	if rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{"statement_id":"s","direction":"sideways"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad direction: %d", rec.Code)
	}
	if rec := doRequest(f, http.MethodGet, "/api/v1/payouts/settle", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method: %d", rec.Code)
	}
}

func TestHandleSettle_NotFound(t *testing.T) {
	f := newHandlerFixture(t, nil)
	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{"statement_id":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleSettle_DraftConflicts(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 100_000_00})
	draft := finalTransfer("stmt-1", 500.00)
	draft.Status = payouts.StatementStatusDraft
	f.seed(draft, "acct_1")

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{"statement_id":"stmt-1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleFundAndQueue_InsufficientQueues(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 400_000})
	f.rail.SetCreditOnTopUp(false)
	f.seed(finalTransfer("stmt-1", 4000.00), "acct_1")
	f.seed(finalTransfer("stmt-2", 3500.00), "acct_2")

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/fund-and-queue", `{"statement_ids":["stmt-1","stmt-2"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result payoutapp.BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Queued {
		t.Fatalf("expected queued batch, got %+v", result)
	}
	if len(result.TopUps) != 1 {
		t.Fatalf("expected one top-up, got %d", len(result.TopUps))
	}
	actions := f.auditLog.actions()
	if len(actions) != 1 || actions[0] != "payouts.fund_and_queue" {
		t.Fatalf("audit actions %v", actions)
	}
}

func TestHandleFundAndQueue_RequiresIDs(t *testing.T) {
	f := newHandlerFixture(t, nil)
	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/fund-and-queue", `{"statement_ids":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleProcessQueued_AbortedConflicts(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 100})
	queued := finalTransfer("stmt-1", 500.00)
	queued.PayoutStatus = payouts.PayoutStatusQueued
	f.seed(queued, "acct_1")

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/process-queued", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result payoutapp.DrainResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Aborted {
		t.Fatalf("expected aborted result, got %+v", result)
	}
}

func TestHandleProcessQueued_Settles(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 100_000_00})
	queued := finalTransfer("stmt-1", 500.00)
	queued.PayoutStatus = payouts.PayoutStatusQueued
	f.seed(queued, "acct_1")

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/process-queued", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result payoutapp.DrainResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected drain result %+v", result)
	}
}

func TestHandleRefreshAccount(t *testing.T) {
	f := newHandlerFixture(t, nil)
	f.accounts.PutListingAccount("prop-1", payouts.PaymentAccount{
		DestinationAccountID: "acct_1",
		OnboardingStatus:     payouts.OnboardingStatusPending,
	})
	f.rail.SetAccount(payouts.AccountInfo{ID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true})

	rec := doRequest(f, http.MethodPost, "/api/v1/payouts/accounts/refresh", `{"destination_account_id":"acct_1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["onboarding_status"] != payouts.OnboardingStatusVerified {
		t.Fatalf("status %q", resp["onboarding_status"])
	}
}

func TestHandleStatement_GetAndExport(t *testing.T) {
	f := newHandlerFixture(t, map[string]int64{"usd": 100_000_00})
	f.seed(finalTransfer("stmt-1", 500.00), "acct_1")
	if rec := doRequest(f, http.MethodPost, "/api/v1/payouts/settle", `{"statement_id":"stmt-1"}`); rec.Code != http.StatusOK {
		t.Fatalf("settle: %d", rec.Code)
	}

	rec := doRequest(f, http.MethodGet, "/api/v1/payouts/statements/stmt-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	var view statementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.PayoutStatus != payouts.PayoutStatusPaid || view.Period != "2024-03-04 - 2024-03-10" {
		t.Fatalf("view %+v", view)
	}
	if view.PaidAt == "" {
		t.Fatal("expected paid_at to be set")
	}

	pdf := doRequest(f, http.MethodGet, "/api/v1/payouts/statements/stmt-1/export.pdf", "")
	if pdf.Code != http.StatusOK {
		t.Fatalf("pdf: %d", pdf.Code)
	}
	if got := pdf.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("pdf content type %q", got)
	}
	if pdf.Body.Len() == 0 {
		t.Fatal("empty pdf body")
	}

	xlsx := doRequest(f, http.MethodGet, "/api/v1/payouts/statements/stmt-1/export.xlsx", "")
	if xlsx.Code != http.StatusOK {
		t.Fatalf("xlsx: %d", xlsx.Code)
	}
	if got := xlsx.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("xlsx content type %q", got)
	}
}

func TestHandleStatement_Unknown(t *testing.T) {
	f := newHandlerFixture(t, nil)
	if rec := doRequest(f, http.MethodGet, "/api/v1/payouts/statements/ghost", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
	if rec := doRequest(f, http.MethodGet, "/api/v1/payouts/statements/ghost/export.csv", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestHandleAudit_Empty(t *testing.T) {
	f := newHandlerFixture(t, nil)
	rec := doRequest(f, http.MethodGet, "/api/v1/payouts/audit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Since         string                  `json:"since"`
		Discrepancies []payoutapp.Discrepancy `json:"discrepancies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Discrepancies) != 0 {
		t.Fatalf("expected none, got %v", resp.Discrepancies)
	}
	if rec := doRequest(f, http.MethodGet, "/api/v1/payouts/audit?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since: %d", rec.Code)
	}
}
