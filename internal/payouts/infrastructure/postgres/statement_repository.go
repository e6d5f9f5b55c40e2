package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

const statementColumns = `
id, owner_payout, currency, status, group_id, property_id,
	array_to_string(property_ids, ','), property_name, owner_name,
	week_start_date, week_end_date, payout_status, payout_transfer_id,
	stripe_fee, total_transfer_amount, paid_at, payout_error`

// StatementRepository persists the payout fields of owner statements.
type StatementRepository struct {
	db *sql.DB
}

// NewStatementRepository constructs a repository.
func NewStatementRepository(db *sql.DB) *StatementRepository {
	return &StatementRepository{db: db}
}

// GetByID fetches one statement.
func (r *StatementRepository) GetByID(ctx context.Context, id string) (*payouts.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+statementColumns+`
FROM owner_statements
WHERE id = $1
LIMIT 1`, id)
	return scanStatement(row)
}

// GetByIDs fetches a set of statements; missing ids are simply absent.
func (r *StatementRepository) GetByIDs(ctx context.Context, ids []string) ([]payouts.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `
SELECT ` + statementColumns + `
FROM owner_statements
WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStatements(rows)
}

// ListByPayoutStatus returns all statements in the given payout status.
func (r *StatementRepository) ListByPayoutStatus(ctx context.Context, payoutStatus string) ([]payouts.Statement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("statement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+statementColumns+`
FROM owner_statements
WHERE payout_status = $1
ORDER BY week_start_date ASC, id ASC`, payoutStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStatements(rows)
}

// TransitionStatus is the cross-process concurrency guard: a single-row
// compare-and-set that only succeeds when the current payout status is one of
// the expected priors. The new attempt clears any previous payout error.
func (r *StatementRepository) TransitionStatus(ctx context.Context, id, to string, priors []string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("statement repo: nil db")
	}
	if len(priors) == 0 {
		return false, errors.New("statement repo: empty priors")
	}
	args := []any{to, time.Now().UTC(), id}
	placeholders := make([]string, len(priors))
	for i, prior := range priors {
		args = append(args, prior)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := `
UPDATE owner_statements
SET payout_status = $1, payout_error = NULL, updated_at = $2
WHERE id = $3 AND payout_status IN (` + strings.Join(placeholders, ",") + `)`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkSettled records a successful rail call. Guarded on pending so a stale
// writer cannot clobber a terminal state.
func (r *StatementRepository) MarkSettled(ctx context.Context, id string, update payouts.SettledUpdate) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("statement repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE owner_statements
SET payout_status = $1, payout_transfer_id = $2, stripe_fee = $3,
	total_transfer_amount = $4, paid_at = $5, payout_error = NULL, updated_at = $6
WHERE id = $7 AND payout_status = $8`,
		update.PayoutStatus, update.PayoutTransferID, update.StripeFee,
		update.TotalTransferAmount, update.PaidAt, time.Now().UTC(),
		id, payouts.PayoutStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// MarkFailed records a failed attempt with its message. Terminal statements
// are never overwritten.
func (r *StatementRepository) MarkFailed(ctx context.Context, id, message string) error {
	if r == nil || r.db == nil {
		return errors.New("statement repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE owner_statements
SET payout_status = $1, payout_error = $2, updated_at = $3
WHERE id = $4 AND payout_status NOT IN ($5, $6)`,
		payouts.PayoutStatusFailed, message, time.Now().UTC(),
		id, payouts.PayoutStatusPaid, payouts.PayoutStatusCollected)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStatement(row rowScanner) (*payouts.Statement, error) {
	var stmt payouts.Statement
	var groupID sql.NullString
	var propertyID sql.NullString
	var propertyIDs sql.NullString
	var propertyName sql.NullString
	var ownerName sql.NullString
	var weekStart sql.NullTime
	var weekEnd sql.NullTime
	var transferID sql.NullString
	var stripeFee sql.NullFloat64
	var total sql.NullFloat64
	var paidAt sql.NullTime
	var payoutError sql.NullString
	err := row.Scan(
		&stmt.ID,
		&stmt.OwnerPayout,
		&stmt.Currency,
		&stmt.Status,
		&groupID,
		&propertyID,
		&propertyIDs,
		&propertyName,
		&ownerName,
		&weekStart,
		&weekEnd,
		&stmt.PayoutStatus,
		&transferID,
		&stripeFee,
		&total,
		&paidAt,
		&payoutError,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	stmt.GroupID = groupID.String
	stmt.PropertyID = propertyID.String
	if propertyIDs.Valid && propertyIDs.String != "" {
		stmt.PropertyIDs = strings.Split(propertyIDs.String, ",")
	}
	stmt.PropertyName = propertyName.String
	stmt.OwnerName = ownerName.String
	if weekStart.Valid {
		stmt.WeekStartDate = weekStart.Time.UTC()
	}
	if weekEnd.Valid {
		stmt.WeekEndDate = weekEnd.Time.UTC()
	}
	stmt.PayoutTransferID = transferID.String
	stmt.StripeFee = stripeFee.Float64
	stmt.TotalTransferAmount = total.Float64
	if paidAt.Valid {
		stmt.PaidAt = paidAt.Time.UTC()
	}
	stmt.PayoutError = payoutError.String
	if stmt.PayoutStatus == "" {
		stmt.PayoutStatus = payouts.PayoutStatusMissing
	}
	return &stmt, nil
}

func collectStatements(rows *sql.Rows) ([]payouts.Statement, error) {
	var result []payouts.Statement
	for rows.Next() {
		stmt, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			result = append(result, *stmt)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
