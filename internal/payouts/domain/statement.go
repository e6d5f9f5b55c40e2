package payouts

import "time"

const (
	StatementStatusDraft = "draft"
	StatementStatusFinal = "final"
)

const (
	PayoutStatusMissing   = "missing"
	PayoutStatusPending   = "pending"
	PayoutStatusQueued    = "queued"
	PayoutStatusPaid      = "paid"
	PayoutStatusCollected = "collected"
	PayoutStatusFailed    = "failed"
)

// Statement is the settlement-relevant view of a weekly owner statement.
// The statement subsystem owns the record; this engine reads it and writes
// only the payout fields.
type Statement struct {
	ID            string
	OwnerPayout   float64
	Currency      string
	Status        string
	GroupID       string
	PropertyID    string
	PropertyIDs   []string
	PropertyName  string
	OwnerName     string
	WeekStartDate time.Time
	WeekEndDate   time.Time

	PayoutStatus        string
	PayoutTransferID    string
	StripeFee           float64
	TotalTransferAmount float64
	PaidAt              time.Time
	PayoutError         string
}

// Direction is the operation class of a settlement.
type Direction string

const (
	DirectionTransfer Direction = "transfer"
	DirectionCollect  Direction = "collect"
)

// DirectionFor returns the operation class implied by the payout sign.
func DirectionFor(ownerPayout float64) (Direction, error) {
	switch {
	case ownerPayout > 0:
		return DirectionTransfer, nil
	case ownerPayout < 0:
		return DirectionCollect, nil
	default:
		return "", ErrZeroPayout
	}
}

// IsSettled reports whether the statement reached a terminal payout state.
func (s *Statement) IsSettled() bool {
	if s == nil {
		return false
	}
	return s.PayoutStatus == PayoutStatusPaid || s.PayoutStatus == PayoutStatusCollected
}

// PrimaryPropertyID returns the listing used for account resolution when the
// statement has no group account.
func (s *Statement) PrimaryPropertyID() string {
	if s == nil {
		return ""
	}
	if s.PropertyID != "" {
		return s.PropertyID
	}
	if len(s.PropertyIDs) > 0 {
		return s.PropertyIDs[0]
	}
	return ""
}

// Period returns the statement week as a display string.
func (s *Statement) Period() string {
	if s == nil || s.WeekStartDate.IsZero() {
		return ""
	}
	return s.WeekStartDate.Format("2006-01-02") + " - " + s.WeekEndDate.Format("2006-01-02")
}

// SettleEligiblePriors lists payout statuses a settlement attempt may start
// from. The conditional transition to pending (and to queued) only succeeds
// from these; paid and collected are terminal.
func SettleEligiblePriors() []string {
	return []string{PayoutStatusMissing, PayoutStatusQueued, PayoutStatusFailed}
}
