package memory

import (
	"context"
	"sync"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// StatementRepository is an in-memory statement store with the same
// compare-and-set semantics as the Postgres implementation.
type StatementRepository struct {
	mu   sync.Mutex
	data map[string]*payouts.Statement
}

// NewStatementRepository constructs a repository.
func NewStatementRepository() *StatementRepository {
	return &StatementRepository{data: make(map[string]*payouts.Statement)}
}

// Put seeds or replaces a statement.
func (r *StatementRepository) Put(stmt payouts.Statement) {
	if stmt.PayoutStatus == "" {
		stmt.PayoutStatus = payouts.PayoutStatusMissing
	}
	r.mu.Lock()
	r.data[stmt.ID] = &stmt
	r.mu.Unlock()
}

// Delete removes a statement, simulating deletion by the statement subsystem.
func (r *StatementRepository) Delete(id string) {
	r.mu.Lock()
	delete(r.data, id)
	r.mu.Unlock()
}

// GetByID loads a statement copy.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*payouts.Statement, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stmt, ok := r.data[id]
	if !ok {
		return nil, nil
	}
	copied := *stmt
	return &copied, nil
}

// GetByIDs loads copies of the known subset of ids.
func (r *StatementRepository) GetByIDs(ctx context.Context, ids []string) ([]payouts.Statement, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []payouts.Statement
	for _, id := range ids {
		if stmt, ok := r.data[id]; ok {
			result = append(result, *stmt)
		}
	}
	return result, nil
}

// ListByPayoutStatus returns copies of statements in the given status.
func (r *StatementRepository) ListByPayoutStatus(ctx context.Context, payoutStatus string) ([]payouts.Statement, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []payouts.Statement
	for _, stmt := range r.data {
		if stmt.PayoutStatus == payoutStatus {
			result = append(result, *stmt)
		}
	}
	return result, nil
}

// TransitionStatus performs the atomic compare-and-set under the repository
// lock, mirroring the single-row conditional UPDATE.
func (r *StatementRepository) TransitionStatus(ctx context.Context, id, to string, priors []string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stmt, ok := r.data[id]
	if !ok {
		return false, nil
	}
	for _, prior := range priors {
		if stmt.PayoutStatus == prior {
			stmt.PayoutStatus = to
			stmt.PayoutError = ""
			return true, nil
		}
	}
	return false, nil
}

// MarkSettled records a successful settlement, guarded on pending.
func (r *StatementRepository) MarkSettled(ctx context.Context, id string, update payouts.SettledUpdate) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stmt, ok := r.data[id]
	if !ok || stmt.PayoutStatus != payouts.PayoutStatusPending {
		return false, nil
	}
	stmt.PayoutStatus = update.PayoutStatus
	stmt.PayoutTransferID = update.PayoutTransferID
	stmt.StripeFee = update.StripeFee
	stmt.TotalTransferAmount = update.TotalTransferAmount
	stmt.PaidAt = update.PaidAt
	stmt.PayoutError = ""
	return true, nil
}

// MarkFailed records a failed attempt unless the statement is terminal.
func (r *StatementRepository) MarkFailed(ctx context.Context, id, message string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stmt, ok := r.data[id]
	if !ok {
		return nil
	}
	if stmt.PayoutStatus == payouts.PayoutStatusPaid || stmt.PayoutStatus == payouts.PayoutStatusCollected {
		return nil
	}
	stmt.PayoutStatus = payouts.PayoutStatusFailed
	stmt.PayoutError = message
	return nil
}
