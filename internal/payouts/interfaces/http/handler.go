package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/audit"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/auth"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/observability/metrics"
	payoutapp "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/application"
	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
	"github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/interfaces"
)

const timeLayout = time.RFC3339

// Handler provides payout HTTP endpoints.
type Handler struct {
	processor  *payoutapp.SettlementProcessor
	batch      *payoutapp.BatchCoordinator
	drainer    *payoutapp.QueueDrainer
	accounts   *payoutapp.AccountService
	auditor    *payoutapp.SettlementAuditor
	statements payouts.StatementRepository
	auditLog   audit.Logger
	logger     *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(
	processor *payoutapp.SettlementProcessor,
	batch *payoutapp.BatchCoordinator,
	drainer *payoutapp.QueueDrainer,
	accounts *payoutapp.AccountService,
	auditor *payoutapp.SettlementAuditor,
	statements payouts.StatementRepository,
	auditLog audit.Logger,
	logger *log.Logger,
) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("payouts handler: nil processor")
	}
	if batch == nil {
		return nil, errors.New("payouts handler: nil batch coordinator")
	}
	if drainer == nil {
		return nil, errors.New("payouts handler: nil drainer")
	}
	if statements == nil {
		return nil, errors.New("payouts handler: nil statement repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		processor:  processor,
		batch:      batch,
		drainer:    drainer,
		accounts:   accounts,
		auditor:    auditor,
		statements: statements,
		auditLog:   auditLog,
		logger:     logger,
	}, nil
}

// ServeHTTP handles /api/v1/payouts and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/payouts/settle":
		h.requirePost(w, r, h.handleSettle)
	case r.URL.Path == "/api/v1/payouts/fund-and-queue":
		h.requirePost(w, r, h.handleFundAndQueue)
	case r.URL.Path == "/api/v1/payouts/process-queued":
		h.requirePost(w, r, h.handleProcessQueued)
	case r.URL.Path == "/api/v1/payouts/accounts/refresh":
		h.requirePost(w, r, h.handleRefreshAccount)
	case r.URL.Path == "/api/v1/payouts/audit":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleAudit(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/payouts/statements/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleStatement(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) requirePost(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	next(w, r)
}

type settleRequest struct {
	StatementID string `json:"statement_id"`
	Direction   string `json:"direction,omitempty"`
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.StatementID == "" {
		http.Error(w, "statement_id is required", http.StatusBadRequest)
		return
	}
	direction := payouts.Direction(req.Direction)
	switch direction {
	case "", payouts.DirectionTransfer, payouts.DirectionCollect:
	default:
		http.Error(w, "direction must be transfer or collect", http.StatusBadRequest)
		return
	}

	result, err := h.processor.Settle(r.Context(), req.StatementID, direction)
	h.writeAudit(r, "payouts.settle", "statement", req.StatementID, settleAuditMeta(result, err))
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	writeJSON(w, result)
}

type fundAndQueueRequest struct {
	StatementIDs []string `json:"statement_ids"`
}

func (h *Handler) handleFundAndQueue(w http.ResponseWriter, r *http.Request) {
	var req fundAndQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if len(req.StatementIDs) == 0 {
		http.Error(w, "statement_ids is required", http.StatusBadRequest)
		return
	}

	result, err := h.batch.FundAndQueue(r.Context(), req.StatementIDs)
	meta, _ := json.Marshal(map[string]any{
		"batch_id":  result.BatchID,
		"requested": len(req.StatementIDs),
		"queued":    result.Queued,
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	h.writeAudit(r, "payouts.fund_and_queue", "batch", result.BatchID, meta)
	if err != nil {
		var topUpErr *payoutapp.TopUpCreationError
		if errors.As(err, &topUpErr) {
			http.Error(w, topUpErr.Error(), http.StatusBadGateway)
			return
		}
		respondPayoutError(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) handleProcessQueued(w http.ResponseWriter, r *http.Request) {
	result, err := h.drainer.Drain(r.Context())
	meta, _ := json.Marshal(map[string]any{
		"processed": result.Processed,
		"failed":    result.Failed,
		"aborted":   result.Aborted,
	})
	h.writeAudit(r, "payouts.process_queued", "queue", "", meta)
	if err != nil {
		if result.Aborted {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(result)
			return
		}
		respondPayoutError(w, err)
		return
	}
	writeJSON(w, result)
}

type refreshAccountRequest struct {
	DestinationAccountID string `json:"destination_account_id"`
}

func (h *Handler) handleRefreshAccount(w http.ResponseWriter, r *http.Request) {
	if h.accounts == nil {
		http.Error(w, "account refresh not configured", http.StatusNotImplemented)
		return
	}
	var req refreshAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DestinationAccountID == "" {
		http.Error(w, "destination_account_id is required", http.StatusBadRequest)
		return
	}

	status, err := h.accounts.RefreshAccountStatus(r.Context(), req.DestinationAccountID)
	if err != nil {
		respondPayoutError(w, err)
		return
	}
	writeJSON(w, map[string]string{
		"destination_account_id": req.DestinationAccountID,
		"onboarding_status":      status,
	})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		http.Error(w, "settlement audit not configured", http.StatusNotImplemented)
		return
	}
	since := time.Now().AddDate(0, 0, -7).UTC()
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed.UTC()
	}
	discrepancies, err := h.auditor.Audit(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"since":         since.Format(timeLayout),
		"discrepancies": discrepancies,
	})
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/payouts/statements/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	stmt, err := h.statements.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if stmt == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if len(parts) == 1 {
		writeJSON(w, statementView(stmt))
		return
	}
	if len(parts) != 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch parts[1] {
	case "export.pdf":
		h.export(w, stmt, "pdf")
	case "export.xlsx":
		h.export(w, stmt, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) export(w http.ResponseWriter, stmt *payouts.Statement, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		data, err = interfaces.BuildStatementPDF(stmt)
		contentType = "application/pdf"
	case "xlsx":
		data, err = interfaces.BuildStatementXLSX(stmt)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="payout-`+stmt.ID+`.`+format+`"`)
	_, _ = w.Write(data)
}

func (h *Handler) writeAudit(r *http.Request, action, resourceType, resourceID string, metadata json.RawMessage) {
	if h == nil || h.auditLog == nil {
		return
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditLog.Log(r.Context(), entry); err != nil {
		h.logger.Printf("payouts handler: audit log failed action=%s resource=%s err=%v", action, resourceID, err)
	}
}

func settleAuditMeta(result payoutapp.SettlementResult, err error) json.RawMessage {
	payload := map[string]any{
		"payout_status":   result.PayoutStatus,
		"already_settled": result.AlreadySettled,
	}
	if result.PayoutTransferID != "" {
		payload["payout_transfer_id"] = result.PayoutTransferID
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	raw, _ := json.Marshal(payload)
	return raw
}

type statementResponse struct {
	ID                  string   `json:"id"`
	OwnerName           string   `json:"owner_name"`
	PropertyID          string   `json:"property_id,omitempty"`
	PropertyIDs         []string `json:"property_ids,omitempty"`
	PropertyName        string   `json:"property_name,omitempty"`
	Period              string   `json:"period"`
	Status              string   `json:"status"`
	OwnerPayout         float64  `json:"owner_payout"`
	Currency            string   `json:"currency"`
	PayoutStatus        string   `json:"payout_status"`
	PayoutTransferID    string   `json:"payout_transfer_id,omitempty"`
	StripeFee           float64  `json:"stripe_fee"`
	TotalTransferAmount float64  `json:"total_transfer_amount"`
	PaidAt              string   `json:"paid_at,omitempty"`
	PayoutError         string   `json:"payout_error,omitempty"`
}

func statementView(stmt *payouts.Statement) statementResponse {
	view := statementResponse{
		ID:                  stmt.ID,
		OwnerName:           stmt.OwnerName,
		PropertyID:          stmt.PropertyID,
		PropertyIDs:         stmt.PropertyIDs,
		PropertyName:        stmt.PropertyName,
		Period:              stmt.Period(),
		Status:              stmt.Status,
		OwnerPayout:         stmt.OwnerPayout,
		Currency:            stmt.Currency,
		PayoutStatus:        stmt.PayoutStatus,
		PayoutTransferID:    stmt.PayoutTransferID,
		StripeFee:           stmt.StripeFee,
		TotalTransferAmount: stmt.TotalTransferAmount,
		PayoutError:         stmt.PayoutError,
	}
	if !stmt.PaidAt.IsZero() {
		view.PaidAt = stmt.PaidAt.Format(timeLayout)
	}
	return view
}

func respondPayoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payouts.ErrStatementNotFound), errors.Is(err, payouts.ErrAccountNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, payouts.ErrNotFinal),
		errors.Is(err, payouts.ErrStatusConflict),
		errors.Is(err, payouts.ErrZeroPayout),
		errors.Is(err, payouts.ErrDirectionMismatch),
		errors.Is(err, payouts.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payouts.ErrNoListing), errors.Is(err, payouts.ErrNoAccount):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		var railErr *payouts.RailError
		if errors.As(err, &railErr) {
			http.Error(w, railErr.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
