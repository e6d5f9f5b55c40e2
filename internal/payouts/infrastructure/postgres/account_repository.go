package postgres

import (
	"context"
	"database/sql"
	"errors"

	payouts "github.com/dnovakovic099/owner-statements-app-complete-sub001/internal/payouts/domain"
)

// AccountRepository reads payment account configuration owned by the listing
// and group subsystems and writes refreshed onboarding state.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository constructs a repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ListingAccount returns the payment account configured on a listing.
func (r *AccountRepository) ListingAccount(ctx context.Context, listingID string) (*payouts.PaymentAccount, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT destination_account_id, onboarding_status
FROM listing_payment_accounts
WHERE listing_id = $1
LIMIT 1`, listingID)
	return scanAccount(row)
}

// GroupAccount returns the payment account configured on a listing group.
func (r *AccountRepository) GroupAccount(ctx context.Context, groupID string) (*payouts.PaymentAccount, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("account repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT destination_account_id, onboarding_status
FROM group_payment_accounts
WHERE group_id = $1
LIMIT 1`, groupID)
	return scanAccount(row)
}

// SetOnboardingStatus writes the derived onboarding status everywhere the
// destination account is configured.
func (r *AccountRepository) SetOnboardingStatus(ctx context.Context, destinationAccountID, status string) error {
	if r == nil || r.db == nil {
		return errors.New("account repo: nil db")
	}
	listingRes, err := r.db.ExecContext(ctx, `
UPDATE listing_payment_accounts
SET onboarding_status = $1
WHERE destination_account_id = $2`, status, destinationAccountID)
	if err != nil {
		return err
	}
	groupRes, err := r.db.ExecContext(ctx, `
UPDATE group_payment_accounts
SET onboarding_status = $1
WHERE destination_account_id = $2`, status, destinationAccountID)
	if err != nil {
		return err
	}
	listingRows, _ := listingRes.RowsAffected()
	groupRows, _ := groupRes.RowsAffected()
	if listingRows == 0 && groupRows == 0 {
		return payouts.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row *sql.Row) (*payouts.PaymentAccount, error) {
	var destination sql.NullString
	var onboarding sql.NullString
	if err := row.Scan(&destination, &onboarding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payouts.ErrAccountNotFound
		}
		return nil, err
	}
	account := &payouts.PaymentAccount{
		DestinationAccountID: destination.String,
		OnboardingStatus:     onboarding.String,
	}
	if account.OnboardingStatus == "" {
		account.OnboardingStatus = payouts.OnboardingStatusMissing
	}
	return account, nil
}
